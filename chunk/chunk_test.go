package chunk

import (
	"bytes"
	"testing"
)

func TestSizeFor(t *testing.T) {
	cases := []struct {
		name       string
		maxRequest uint32
		want       int
	}{
		{"tiny server floors at minimum", 1000, MinSize},
		{"exactly at the floor boundary", MinSize * 4, MinSize},
		{"large server uses a quarter", 1 << 20, (1 << 20) / 4},
		{"zero floors at minimum", 0, MinSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SizeFor(tc.maxRequest); got != tc.want {
				t.Errorf("SizeFor(%d) = %d, want %d", tc.maxRequest, got, tc.want)
			}
		})
	}
}

func TestIsLarge(t *testing.T) {
	if IsLarge(100, 100) {
		t.Error("payload equal to chunk size must not be large")
	}
	if !IsLarge(101, 100) {
		t.Error("payload exceeding chunk size must be large")
	}
}

func TestSlicerReassemblesPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{'#'}, 1<<20+37)
	s := Of(payload, 4096)

	var got []byte
	chunks := 0
	for !s.Done() {
		c := s.Next()
		if len(c) == 0 {
			t.Fatal("Next returned an empty chunk before Done()")
		}
		got = append(got, c...)
		chunks++
	}
	// one more call yields the terminator
	term := s.Next()
	if len(term) != 0 {
		t.Fatalf("expected zero-length terminator, got %d bytes", len(term))
	}

	if !bytes.Equal(got, payload) {
		t.Fatal("reassembled payload does not match source")
	}
	wantChunks := (len(payload) + 4095) / 4096
	if chunks != wantChunks {
		t.Errorf("got %d chunks, want %d", chunks, wantChunks)
	}
}

func TestSlicerEmptyPayload(t *testing.T) {
	s := Of(nil, 4096)
	if !s.Done() {
		t.Fatal("empty payload should be immediately done")
	}
	if c := s.Next(); len(c) != 0 {
		t.Fatalf("expected empty terminator chunk, got %d bytes", len(c))
	}
}

func TestSlicerSmallPayloadSingleChunk(t *testing.T) {
	payload := []byte("Foobarbaz")
	s := Of(payload, 4096)
	c := s.Next()
	if !bytes.Equal(c, payload) {
		t.Fatalf("expected single chunk to equal payload, got %q", c)
	}
	if !s.Done() {
		t.Fatal("expected Done() after consuming the only chunk")
	}
}
