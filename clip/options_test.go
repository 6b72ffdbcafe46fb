package clip

import (
	"testing"
	"time"

	"github.com/emmabastas/libxclip/xclipcfg"
)

func TestNewPutConfigDefaults(t *testing.T) {
	c := newPutConfig(nil)
	if c.selectionName != "CLIPBOARD" {
		t.Fatalf("selectionName = %q, want CLIPBOARD", c.selectionName)
	}
	if c.display != "" {
		t.Fatalf("display = %q, want empty (worker's own $DISPLAY)", c.display)
	}
	if c.metricsAddr != "" {
		t.Fatalf("metricsAddr = %q, want empty (metrics disabled by default)", c.metricsAddr)
	}
}

func TestPutOptionsApply(t *testing.T) {
	cfg := xclipcfg.New()
	c := newPutConfig([]PutOption{
		WithPutSelection("PRIMARY"),
		WithDisplay(":1"),
		WithPutConfig(cfg),
		WithMetricsAddr("127.0.0.1:9091"),
	})
	if c.selectionName != "PRIMARY" {
		t.Fatalf("selectionName = %q, want PRIMARY", c.selectionName)
	}
	if c.display != ":1" {
		t.Fatalf("display = %q, want :1", c.display)
	}
	if c.cfg != cfg {
		t.Fatal("cfg not threaded through WithPutConfig")
	}
	if c.metricsAddr != "127.0.0.1:9091" {
		t.Fatalf("metricsAddr = %q, want 127.0.0.1:9091", c.metricsAddr)
	}
}

func TestNewGetConfigDefaults(t *testing.T) {
	c := newGetConfig(nil)
	if c.selectionName != "CLIPBOARD" || c.targetName != "UTF8_STRING" {
		t.Fatalf("defaults = %+v, want CLIPBOARD/UTF8_STRING", c)
	}
	if c.timeout != 0 {
		t.Fatalf("timeout = %v, want 0 (no timeout)", c.timeout)
	}
}

func TestGetOptionsApply(t *testing.T) {
	c := newGetConfig([]GetOption{
		WithSelection("PRIMARY"),
		WithTarget("image/png"),
		WithTimeout(500 * time.Millisecond),
	})
	if c.selectionName != "PRIMARY" {
		t.Fatalf("selectionName = %q, want PRIMARY", c.selectionName)
	}
	if c.targetName != "image/png" {
		t.Fatalf("targetName = %q, want image/png", c.targetName)
	}
	if c.timeout != 500*time.Millisecond {
		t.Fatalf("timeout = %v, want 500ms", c.timeout)
	}
}
