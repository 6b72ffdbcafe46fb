package xfer

import (
	"testing"

	"github.com/emmabastas/libxclip/chunk"
	"github.com/emmabastas/libxclip/xwire"
)

func newSlicer() *chunk.Slicer {
	return chunk.Of([]byte("hello world"), 4)
}

func TestInsertFindRemove(t *testing.T) {
	tbl := New()
	if tbl.Find(1) != nil {
		t.Fatal("expected no record in a fresh table")
	}

	rec := tbl.Insert(1, 100, newSlicer())
	if rec.Requestor != 1 || rec.Property != 100 || rec.BytesSent() != 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if got := tbl.Find(1); got != rec {
		t.Fatal("Find should return the same record pointer inserted")
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}

	tbl.Remove(1)
	if tbl.Find(1) != nil {
		t.Fatal("expected no record after Remove")
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tbl.Len())
	}
}

func TestInsertDuplicatePanics(t *testing.T) {
	tbl := New()
	tbl.Insert(1, 100, newSlicer())
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate insert")
		}
	}()
	tbl.Insert(1, 200, newSlicer())
}

func TestRemoveAbsentPanics(t *testing.T) {
	tbl := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic removing an absent record")
		}
	}()
	tbl.Remove(99)
}

func TestMultipleRequestorsIndependent(t *testing.T) {
	tbl := New()
	tbl.Insert(1, 100, newSlicer())
	tbl.Insert(2, 200, newSlicer())

	tbl.Find(1).Slicer.Next()
	if tbl.Find(1).BytesSent() == 0 {
		t.Fatal("expected BytesSent to advance after Next")
	}
	if tbl.Find(2).BytesSent() != 0 {
		t.Fatal("records for distinct requestors must not interfere")
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}

	snap := tbl.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() returned %d entries, want 2", len(snap))
	}

	var asWindow = func(w xwire.Window) uint32 { return uint32(w) }
	found := map[uint32]bool{}
	for _, s := range snap {
		found[s.Requestor] = true
	}
	if !found[asWindow(1)] || !found[asWindow(2)] {
		t.Fatalf("snapshot missing expected requestors: %+v", snap)
	}
}
