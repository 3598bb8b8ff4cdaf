package observability

import (
	"sync"
	"testing"
)

func TestRegistryReusesMetrics(t *testing.T) {
	r := NewRegistry()
	r.Counter(MetricExports).Inc()
	r.Counter(MetricExports).Inc()
	r.Counter(MetricExports).Inc()
	if got := r.Counter(MetricExports).Value(); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	r.Gauge(MetricStoredDescriptors).Set(4)
	if got := r.Gauge(MetricStoredDescriptors).Value(); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	r.Counter(MetricValidations).Inc()
	h := r.Histogram(MetricPlanCommits)
	h.Observe(2)
	h.Observe(4)

	snap := r.Snapshot()
	if snap["counter."+MetricValidations] != int64(1) {
		t.Fatalf("unexpected counter: %v", snap)
	}
	if snap["histogram."+MetricPlanCommits+".avg"] != float64(3) {
		t.Fatalf("unexpected avg: %v", snap)
	}
	if snap["histogram."+MetricPlanCommits+".max"] != float64(4) {
		t.Fatalf("unexpected max: %v", snap)
	}
}

func TestCounterConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Counter(MetricPlans).Inc()
		}()
	}
	wg.Wait()
	if got := r.Counter(MetricPlans).Value(); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}
