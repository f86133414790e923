package internaldefs

import (
	"strings"
	"testing"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
)

func TestEveryCounterIsExported(t *testing.T) {
	exported := map[spartanfiles.MetricID]bool{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "spartanfiles_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
		exported[def.ID] = true
	}
	for _, def := range HistogramDefs {
		exported[def.ID] = true
	}
	for _, id := range spartanfiles.MetricIDs() {
		if !exported[id] {
			t.Fatalf("metric %s has no exporter definition", id)
		}
	}
}

func TestBuckets(t *testing.T) {
	if len(HistogramBounds) != len(HistogramBoundSuffix) || len(HistogramBounds) != len(spartanfiles.HistogramBounds())+1 {
		t.Fatal("bucket label tables disagree with the core histogram")
	}

	n := NormalizeBuckets([]uint64{1, 2, 3})
	if n != [8]uint64{1, 2, 3} {
		t.Fatalf("unexpected normalized buckets %v", n)
	}
	c := CumulativeBuckets([8]uint64{1, 1, 1, 1, 1, 1, 1, 1})
	if c[7] != 8 || c[0] != 1 {
		t.Fatalf("unexpected cumulative buckets %v", c)
	}
}
