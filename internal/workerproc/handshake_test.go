package workerproc

import (
	"bytes"
	"testing"

	"github.com/emmabastas/libxclip/xclipcfg"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		opts    Options
		payload []byte
	}{
		{"small", Options{Display: ":0", SelectionName: "CLIPBOARD"}, []byte("hello")},
		{"empty payload", Options{Display: ":1", SelectionName: "PRIMARY"}, []byte{}},
		{"nil payload", Options{SelectionName: "CLIPBOARD"}, nil},
		{"config and metrics addr", Options{
			Display:       ":0",
			SelectionName: "CLIPBOARD",
			Config:        xclipcfg.New(xclipcfg.WithChunkSizeFloor(8192)),
			MetricsAddr:   "127.0.0.1:9090",
		}, []byte("payload")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeFrame(&buf, tc.opts, tc.payload); err != nil {
				t.Fatalf("writeFrame() error = %v", err)
			}

			gotOpts, gotPayload, err := readFrame(&buf)
			if err != nil {
				t.Fatalf("readFrame() error = %v", err)
			}
			if gotOpts.Display != tc.opts.Display || gotOpts.SelectionName != tc.opts.SelectionName || gotOpts.MetricsAddr != tc.opts.MetricsAddr {
				t.Fatalf("readFrame() opts = %+v, want %+v", gotOpts, tc.opts)
			}
			if (gotOpts.Config == nil) != (tc.opts.Config == nil) {
				t.Fatalf("readFrame() Config = %+v, want %+v", gotOpts.Config, tc.opts.Config)
			}
			if tc.opts.Config != nil && *gotOpts.Config != *tc.opts.Config {
				t.Fatalf("readFrame() Config = %+v, want %+v", gotOpts.Config, tc.opts.Config)
			}
			if len(gotPayload) != len(tc.payload) || !bytes.Equal(gotPayload, tc.payload) {
				t.Fatalf("readFrame() payload = %q, want %q", gotPayload, tc.payload)
			}
		})
	}
}

func TestIsWorkerRespectsEnv(t *testing.T) {
	t.Setenv(WorkerEnvSentinel, "")
	if IsWorker() {
		t.Fatal("IsWorker() = true with empty sentinel")
	}
	t.Setenv(WorkerEnvSentinel, "1")
	if !IsWorker() {
		t.Fatal("IsWorker() = false with sentinel set to 1")
	}
}
