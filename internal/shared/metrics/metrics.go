package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cvtailor"

var (
	registry = prometheus.NewRegistry()

	tailorings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tailorings_total",
		Help:      "Tailorings by lifecycle outcome.",
	}, []string{"outcome"})

	renderTruncated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_truncated_total",
		Help:      "Rendered documents that lost lines to the page budget.",
	})

	credits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_total",
		Help:      "Credits moved through the ledger by kind.",
	}, []string{"kind"})

	creditRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credit_rejections_total",
		Help:      "Requests refused for insufficient credits.",
	})

	jobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_jobs_total",
		Help:      "Queue messages by worker outcome.",
	}, []string{"outcome"})

	tailoringDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tailoring_duration_seconds",
		Help:      "End-to-end pipeline duration.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	llmDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_duration_seconds",
		Help:      "Completion call duration.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
)

func init() {
	registry.MustRegister(
		tailorings, renderTruncated, credits, creditRejections, jobs,
		tailoringDuration, llmDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func IncTailoringStarted()   { tailorings.WithLabelValues("started").Inc() }
func IncTailoringCompleted() { tailorings.WithLabelValues("completed").Inc() }
func IncTailoringFailed()    { tailorings.WithLabelValues("failed").Inc() }

// IncRenderTruncated counts rendered documents that lost lines to the page budget.
func IncRenderTruncated() { renderTruncated.Inc() }

func AddCreditsReserved(n int)  { addCredits("reserved", n) }
func AddCreditsRefunded(n int)  { addCredits("refunded", n) }
func AddCreditsPurchased(n int) { addCredits("purchased", n) }

func addCredits(kind string, n int) {
	if n > 0 {
		credits.WithLabelValues(kind).Add(float64(n))
	}
}

// IncCreditsRejected counts requests refused for lack of credits.
func IncCreditsRejected() { creditRejections.Inc() }

// Queue worker outcomes. Unrecoverable messages are malformed and dropped.
func IncJobsReceived()      { jobs.WithLabelValues("received").Inc() }
func IncJobsCompleted()     { jobs.WithLabelValues("completed").Inc() }
func IncJobsFailed()        { jobs.WithLabelValues("failed").Inc() }
func IncJobsUnrecoverable() { jobs.WithLabelValues("unrecoverable").Inc() }

// ObserveTailoringDurationMs records a pipeline duration given in milliseconds.
func ObserveTailoringDurationMs(ms float64) { tailoringDuration.Observe(seconds(ms)) }

// ObserveLLMDurationMs records a completion call duration given in milliseconds.
func ObserveLLMDurationMs(ms float64) { llmDuration.Observe(seconds(ms)) }

func seconds(ms float64) float64 {
	return max(ms, 0) / 1000
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
