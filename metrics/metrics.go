package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/percona/search-clone/errors"
)

const metricNamespace = "search_clone"

// Counters.
var (
	//nolint:gochecknoglobals
	copyReadDocumentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "copy_read_document_total",
		Help:      "Total count of the documents read from the source index.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	copyUploadDocumentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "copy_upload_document_total",
		Help:      "Total count of the documents uploaded to the target index.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	copyBatchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "copy_batch_total",
		Help:      "Total number of batches transferred.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	failuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "failures_total",
		Help:      "Total number of aborted runs by phase.",
		Namespace: metricNamespace,
	}, []string{"phase"})
)

// Gauges.
var (
	//nolint:gochecknoglobals
	estimatedTotalDocuments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "estimated_total_documents",
		Help:      "Document count reported by the source index on the first query.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	copyReadBatchDurationSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "copy_read_batch_duration_seconds",
		Help:      "Read batch duration time in seconds.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	copyUploadBatchDurationSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "copy_upload_batch_duration_seconds",
		Help:      "Upload batch duration time in seconds.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	lastRunSuccessTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last completed clone.",
		Namespace: metricNamespace,
	})
)

//nolint:gochecknoglobals
var copyBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:      "copy_batch_size",
	Help:      "Number of documents per transferred batch.",
	Namespace: metricNamespace,
	Buckets:   []float64{1, 10, 50, 100, 250, 500, 750, 1000},
})

// Init initializes and registers the metrics.
func Init(reg prometheus.Registerer) {
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: metricNamespace,
	}))

	reg.MustRegister(
		copyReadDocumentTotal,
		copyUploadDocumentTotal,
		copyBatchTotal,
		failuresTotal,

		estimatedTotalDocuments,
		copyReadBatchDurationSeconds,
		copyUploadBatchDurationSeconds,
		lastRunSuccessTimestamp,

		copyBatchSize,
	)
}

// WriteTextfile writes every metric gathered by g to filename in the text
// exposition format, for the node exporter textfile collector.
func WriteTextfile(filename string, g prometheus.Gatherer) error {
	err := prometheus.WriteToTextfile(filename, g)

	return errors.Wrapf(err, "write metrics to %q", filename)
}

// SetEstimatedTotalDocuments sets the source document estimate gauge.
func SetEstimatedTotalDocuments(v int64) {
	estimatedTotalDocuments.Set(float64(v))
}

// AddCopyReadDocumentCount increments the total count of the read documents.
func AddCopyReadDocumentCount(v int) {
	copyReadDocumentTotal.Add(float64(v))
}

// AddCopyUploadDocumentCount increments the total count of the uploaded documents.
func AddCopyUploadDocumentCount(v int) {
	copyUploadDocumentTotal.Add(float64(v))
}

// ObserveCopyBatch counts one transferred batch of size n.
func ObserveCopyBatch(n int) {
	copyBatchTotal.Inc()
	copyBatchSize.Observe(float64(n))
}

// SetCopyReadBatchDurationSeconds sets the duration in seconds for the copy read batch operation.
func SetCopyReadBatchDurationSeconds(dur time.Duration) {
	copyReadBatchDurationSeconds.Set(dur.Seconds())
}

// SetCopyUploadBatchDurationSeconds sets the duration in seconds for the copy upload batch
// operation.
func SetCopyUploadBatchDurationSeconds(dur time.Duration) {
	copyUploadBatchDurationSeconds.Set(dur.Seconds())
}

func IncFailures(phase string) {
	failuresTotal.WithLabelValues(phase).Inc()
}

func SetLastSuccess(t time.Time) {
	lastRunSuccessTimestamp.Set(float64(t.Unix()))
}
