package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrub_records_in_total",
		Help: "Input records delivered by the source.",
	})
	RecordsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrub_records_rejected_total",
		Help: "Records rejected before shaping (absent content, strict mismatch).",
	})
	RowsShaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrub_rows_shaped_total",
		Help: "Rows produced by the shaper.",
	})
	RowsMismatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrub_rows_field_mismatch_total",
		Help: "Delimited rows whose field count differs from the header count.",
	})
	BatchesFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrub_batches_flushed_total",
		Help: "Batches flushed, by reason (size, final).",
	}, []string{"reason"})
	BatchBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scrub_batch_bytes",
		Help:    "Serialized byte size of flushed batches.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 10),
	})
	ServiceRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrub_dlp_requests_total",
		Help: "Deidentify requests issued to the service.",
	})
	ServiceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrub_dlp_errors_total",
		Help: "Deidentify requests that returned an error.",
	})
	ServiceRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrub_dlp_retries_total",
		Help: "Per-batch retries performed by the pipeline retry policy.",
	})
)

func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}
