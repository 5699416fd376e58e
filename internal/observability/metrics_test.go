package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordStepUpdatesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.RecordStep(10*time.Millisecond, 42, 17.5)
	collector.RecordStep(20*time.Millisecond, 41, 17.0)

	if got := testutil.ToFloat64(collector.StepsTotal); got != 2 {
		t.Fatalf("sim_steps_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ParcelsInNetwork); got != 41 {
		t.Fatalf("sim_parcels_in_network = %v, want 41", got)
	}
	if got := testutil.ToFloat64(collector.SedimentVolume); got != 17.0 {
		t.Fatalf("sim_sediment_volume_m3 = %v, want 17", got)
	}
	if count := histogramSampleCount(t, reg, "sim_step_duration_seconds"); count != 2 {
		t.Fatalf("sim_step_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestNewSimCollectorTolerateDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector second registration: %v", err)
	}

	// Both collectors share the underlying metrics.
	first.StepsTotal.Inc()
	if got := testutil.ToFloat64(second.StepsTotal); got != 1 {
		t.Fatalf("sim_steps_total via second collector = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesSimSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.RecordStep(5*time.Millisecond, 7, 3.5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"sim_steps_total 1",
		"sim_parcels_in_network 7",
		"sim_sediment_volume_m3 3.5",
		"sim_step_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("/metrics body missing %q:\n%s", want, body)
		}
	}
}

func TestRecordStepOnNilCollector(t *testing.T) {
	var collector *SimCollector
	// Must not panic.
	collector.RecordStep(time.Millisecond, 1, 1)
}

func histogramSampleCount(t *testing.T, g prometheus.Gatherer, name string) uint64 {
	t.Helper()
	var families []*dto.MetricFamily
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				return h.GetSampleCount()
			}
		}
	}
	t.Fatalf("histogram %s not found", name)
	return 0
}
