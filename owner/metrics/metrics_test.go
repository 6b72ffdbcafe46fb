package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersAllThreeInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "run1")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) != 3 {
		t.Fatalf("registered %d metric families, want 3", len(families))
	}

	m.TransfersCompleted.Inc()
	m.BytesSent.Add(128)
	m.TransfersActive.Set(2)

	families, err = reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	got := map[string]*dto.MetricFamily{}
	for _, f := range families {
		got[f.GetName()] = f
	}

	if v := got["libxclip_owner_transfers_completed_total"].Metric[0].Counter.GetValue(); v != 1 {
		t.Fatalf("transfers_completed_total = %v, want 1", v)
	}
	if v := got["libxclip_owner_bytes_sent_total"].Metric[0].Counter.GetValue(); v != 128 {
		t.Fatalf("bytes_sent_total = %v, want 128", v)
	}
	if v := got["libxclip_owner_transfers_active"].Metric[0].Gauge.GetValue(); v != 2 {
		t.Fatalf("transfers_active = %v, want 2", v)
	}
}

func TestNewWithNilRegistryStillTracks(t *testing.T) {
	m := New(nil, "run2")
	m.TransfersCompleted.Inc()
	if v := testCounterValue(t, m.TransfersCompleted); v != 1 {
		t.Fatalf("TransfersCompleted = %v, want 1 (unregistered Metrics must still track)", v)
	}
}

func TestNewLabelsByRunID(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "abc123")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		for _, metric := range f.Metric {
			found := false
			for _, l := range metric.GetLabel() {
				if l.GetName() == "run_id" && l.GetValue() == "abc123" {
					found = true
				}
			}
			if !found {
				t.Fatalf("metric %s missing run_id=abc123 label: %+v", f.GetName(), metric.GetLabel())
			}
		}
	}
}

func testCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return out.Counter.GetValue()
}
