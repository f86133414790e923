package spartanfiles

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that produced a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected credential pairs.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins refused by the attempt budget.
	MetricLoginRateLimited
	// MetricSessionCreated counts session records written to Redis.
	MetricSessionCreated
	// MetricSessionRejected counts tokens that parsed but were refused (missing record, user-agent mismatch).
	MetricSessionRejected
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts revoke-all calls.
	MetricLogoutAll
	// MetricUnauthorized counts storage calls made without a principal.
	MetricUnauthorized
	// MetricUploadSuccess counts stored uploads.
	MetricUploadSuccess
	// MetricUploadRejected counts uploads refused for type, size or name.
	MetricUploadRejected
	// MetricDeleteSuccess counts removed files.
	MetricDeleteSuccess
	// MetricDownloadSuccess counts opened downloads.
	MetricDownloadSuccess
	// MetricNotFound counts lookups of missing categories or files.
	MetricNotFound
	// MetricInvalidPath counts rejected department, category or file names.
	MetricInvalidPath
	// MetricStorageError counts underlying filesystem failures.
	MetricStorageError
	// MetricResolveLatency is the latency histogram for session resolution.
	MetricResolveLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:     "login_success",
	MetricLoginFailure:     "login_failure",
	MetricLoginRateLimited: "login_rate_limited",
	MetricSessionCreated:   "session_created",
	MetricSessionRejected:  "session_rejected",
	MetricLogout:           "logout",
	MetricLogoutAll:        "logout_all",
	MetricUnauthorized:     "unauthorized",
	MetricUploadSuccess:    "upload_success",
	MetricUploadRejected:   "upload_rejected",
	MetricDeleteSuccess:    "delete_success",
	MetricDownloadSuccess:  "download_success",
	MetricNotFound:         "not_found",
	MetricInvalidPath:      "invalid_path",
	MetricStorageError:     "storage_error",
	MetricResolveLatency:   "resolve_latency",
}

// String returns the snake_case name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every defined metric in declaration order.
func MetricIDs() []MetricID {
	out := make([]MetricID, 0, int(metricIDCount))
	for id := MetricID(0); id < metricIDCount; id++ {
		out = append(out, id)
	}
	return out
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram. A nil or disabled
// Metrics accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the resolve latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricResolveLatency carries a histogram;
// other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricResolveLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters. Counters are read one by one, so a snapshot taken under
// load is not a single atomic cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricResolveLatency].buckets[i])
		}
		s.Histograms[MetricResolveLatency] = buckets
	}

	return s
}

// HistogramBounds returns the upper bound of each latency bucket but the last, which is open.
func HistogramBounds() []time.Duration {
	return []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
	}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
