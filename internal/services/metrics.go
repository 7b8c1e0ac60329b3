// Domain-level Prometheus counters. HTTP traffic metrics live in the
// middleware; the counters here track business outcomes so dashboards can
// answer "how many uploads were rejected and why" without log scraping.

package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// uploadsIngested counts successfully ingested training videos.
	uploadsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lora_uploads_ingested_total",
			Help: "Total number of successfully ingested training videos.",
		},
	)

	// uploadsRejected counts upload rejections by stable denial code.
	uploadsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lora_uploads_rejected_total",
			Help: "Total number of rejected upload attempts.",
		},
		[]string{"code"},
	)

	// walletDebits counts successful wallet debits.
	walletDebits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lora_wallet_debits_total",
			Help: "Total number of successful wallet debits.",
		},
	)

	// trainingSubmitted counts training jobs accepted by a provider.
	trainingSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lora_training_jobs_submitted_total",
			Help: "Total number of training jobs submitted to a provider.",
		},
	)

	// trainingFinished counts terminal job transitions by final status.
	trainingFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lora_training_jobs_finished_total",
			Help: "Total number of training jobs reaching a terminal state.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(uploadsIngested, uploadsRejected, walletDebits, trainingSubmitted, trainingFinished)
}
