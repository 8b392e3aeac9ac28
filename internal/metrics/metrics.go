package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"bluecarbon/internal/models"
)

var (
	submissionsByStatusDesc = prometheus.NewDesc(
		"bluecarbon_submissions",
		"Current number of submissions by review status",
		[]string{"status"},
		nil,
	)

	submissionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bluecarbon_submissions_created_total",
		Help: "Total submissions accepted from the mobile app",
	})

	reviewDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bluecarbon_review_decisions_total",
		Help: "Total admin review decisions by decision and outcome",
	}, []string{"decision", "outcome"})

	creditsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bluecarbon_credits_issued_total",
		Help: "Total carbon credits issued on the ledger",
	})

	verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bluecarbon_verifications_total",
		Help: "Total AI verifications by result and source",
	}, []string{"result", "source"})

	verificationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bluecarbon_verification_duration_seconds",
		Help:    "Wall time of AI verifications including retries",
		Buckets: prometheus.DefBuckets,
	})

	ledgerSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bluecarbon_ledger_call_duration_seconds",
		Help:    "Duration of ledger transactions by method and outcome",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"method", "outcome"})
)

// StatusSource reports submission counts per status.
type StatusSource interface {
	StatusCounts(ctx context.Context) (map[string]int64, error)
}

// SubmissionCollector is a custom Prometheus collector that reads submission
// counts from the database on each scrape.
type SubmissionCollector struct {
	source StatusSource
	logger *zap.Logger
}

// NewSubmissionCollector creates a collector over source.
func NewSubmissionCollector(source StatusSource, logger *zap.Logger) *SubmissionCollector {
	return &SubmissionCollector{source: source, logger: logger}
}

// Describe sends the metric descriptor to the channel.
func (c *SubmissionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- submissionsByStatusDesc
}

// Collect queries the database for per-status counts and emits them as gauges.
func (c *SubmissionCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.source.StatusCounts(ctx)
	if err != nil {
		c.logger.Error("failed to collect submission metrics", zap.Error(err))
		return
	}
	for _, status := range []string{models.StatusPending, models.StatusApproved, models.StatusRejected} {
		ch <- prometheus.MustNewConstMetric(
			submissionsByStatusDesc,
			prometheus.GaugeValue,
			float64(counts[status]),
			status,
		)
	}
}

var initOnce sync.Once

// Init registers the collectors with the default registry.
// Must be called once at startup.
func Init(source StatusSource, logger *zap.Logger) {
	initOnce.Do(func() {
		prometheus.MustRegister(
			NewSubmissionCollector(source, logger),
			submissionsCreated,
			reviewDecisions,
			creditsIssued,
			verifications,
			verificationSeconds,
			ledgerSeconds,
		)
	})
}

// RecordSubmissionCreated counts an accepted submission.
func RecordSubmissionCreated() {
	submissionsCreated.Inc()
}

// RecordReview counts an approve or reject decision. err decides the outcome label.
func RecordReview(decision string, err error) {
	reviewDecisions.WithLabelValues(decision, outcome(err)).Inc()
}

// RecordCreditsIssued adds amount to the issued credits counter.
func RecordCreditsIssued(amount int64) {
	if amount > 0 {
		creditsIssued.Add(float64(amount))
	}
}

// RecordVerification counts a verdict and observes how long it took.
func RecordVerification(v models.Verdict, took time.Duration) {
	verifications.WithLabelValues(v.Result, v.Source).Inc()
	verificationSeconds.Observe(took.Seconds())
}

// ObserveLedger records the duration of a ledger call started at start.
func ObserveLedger(method string, start time.Time, err error) {
	ledgerSeconds.WithLabelValues(method, outcome(err)).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
