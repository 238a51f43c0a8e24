package metrics

import (
	"time"

	"velowind/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Warning archive metrics, exported by cmd/store
var (
	ArchiveOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velowind_archive_operations_total",
			Help: "Warning archive reads and writes by outcome",
		},
		[]string{"operation", "status"},
	)

	ArchiveOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "velowind_archive_operation_duration_seconds",
			Help:    "Latency of warning archive operations",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	ArchivePoolOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "velowind_archive_pool_open_connections",
			Help: "Open MySQL connections held by the warning archive",
		},
	)

	// WarningsArchivedTotal counts stored warnings per level
	WarningsArchivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velowind_warnings_archived_total",
			Help: "Wind warnings written to the archive",
		},
		[]string{"level"},
	)

	// StreamMessagesTotal counts warnings stream entries by result:
	// acked, failed (left pending for retry) or dropped (undecodable)
	StreamMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velowind_stream_messages_total",
			Help: "Warnings stream entries processed by the archiver",
		},
		[]string{"result"},
	)
)

// Archive operations
const (
	OpStoreWarning = "store_warning"
	OpListWarnings = "list_warnings"
)

// RecordArchiveOperation records one archive round trip
func RecordArchiveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ArchiveOperationsTotal.WithLabelValues(operation, status).Inc()
	ArchiveOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWarningArchived counts a warning that reached the archive
func RecordWarningArchived(level models.WarningLevel) {
	WarningsArchivedTotal.WithLabelValues(string(level)).Inc()
}

// RecordStreamMessage counts a consumed stream entry
func RecordStreamMessage(result string) {
	StreamMessagesTotal.WithLabelValues(result).Inc()
}

func UpdateArchivePoolStats(open int) {
	ArchivePoolOpen.Set(float64(open))
}
