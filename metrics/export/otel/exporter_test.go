package otel

import (
	"context"
	"sync"
	"testing"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot spartanfiles.MetricsSnapshot
}

func (f *fakeSource) MetricsSnapshot() spartanfiles.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := spartanfiles.MetricsSnapshot{
		Counters:   make(map[spartanfiles.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[spartanfiles.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				return sum.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("spartanfiles-test")

	src := &fakeSource{
		snapshot: spartanfiles.MetricsSnapshot{
			Counters: map[spartanfiles.MetricID]uint64{
				spartanfiles.MetricDownloadSuccess: 3,
			},
			Histograms: map[spartanfiles.MetricID][]uint64{
				spartanfiles.MetricResolveLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
	}

	exp, err := NewExporter(meter, src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	got, ok := findSum(rm, "spartanfiles_download_success_total")
	if !ok || got != 3 {
		t.Fatalf("expected download counter 3, got %d (found=%v)", got, ok)
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newTestMeter()

	if _, err := NewExporter(provider.Meter("spartanfiles-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("spartanfiles-test")

	src := &fakeSource{
		snapshot: spartanfiles.MetricsSnapshot{
			Counters: map[spartanfiles.MetricID]uint64{
				spartanfiles.MetricUploadSuccess: 1,
			},
			Histograms: map[spartanfiles.MetricID][]uint64{},
		},
	}

	exp, err := NewExporter(meter, src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[spartanfiles.MetricUploadSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
