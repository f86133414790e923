package internaldefs

import (
	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   spartanfiles.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   spartanfiles.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: spartanfiles.MetricLoginSuccess, Name: "spartanfiles_login_success_total", Help: "Logins that opened a session."},
	{ID: spartanfiles.MetricLoginFailure, Name: "spartanfiles_login_failure_total", Help: "Logins rejected for invalid credentials."},
	{ID: spartanfiles.MetricLoginRateLimited, Name: "spartanfiles_login_rate_limited_total", Help: "Logins refused by the attempt budget."},
	{ID: spartanfiles.MetricSessionCreated, Name: "spartanfiles_session_created_total", Help: "Session records written."},
	{ID: spartanfiles.MetricSessionRejected, Name: "spartanfiles_session_rejected_total", Help: "Session tokens refused during resolution."},
	{ID: spartanfiles.MetricLogout, Name: "spartanfiles_logout_total", Help: "Single-session logouts."},
	{ID: spartanfiles.MetricLogoutAll, Name: "spartanfiles_logout_all_total", Help: "Revoke-all operations."},
	{ID: spartanfiles.MetricUnauthorized, Name: "spartanfiles_unauthorized_total", Help: "Storage calls made without a session."},
	{ID: spartanfiles.MetricUploadSuccess, Name: "spartanfiles_upload_success_total", Help: "Stored uploads."},
	{ID: spartanfiles.MetricUploadRejected, Name: "spartanfiles_upload_rejected_total", Help: "Uploads refused for type or size."},
	{ID: spartanfiles.MetricDeleteSuccess, Name: "spartanfiles_delete_success_total", Help: "Deleted files."},
	{ID: spartanfiles.MetricDownloadSuccess, Name: "spartanfiles_download_success_total", Help: "Opened downloads."},
	{ID: spartanfiles.MetricNotFound, Name: "spartanfiles_not_found_total", Help: "Lookups of missing categories or files."},
	{ID: spartanfiles.MetricInvalidPath, Name: "spartanfiles_invalid_path_total", Help: "Rejected department, category or file names."},
	{ID: spartanfiles.MetricStorageError, Name: "spartanfiles_storage_error_total", Help: "Filesystem failures."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: spartanfiles.MetricResolveLatency, Name: "spartanfiles_resolve_latency_seconds", Help: "Session resolution latency."},
}

// HistogramBounds are the Prometheus "le" labels of the eight buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable inside instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to exactly eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
