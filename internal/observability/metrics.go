package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WriteConflicts counts version-check misses that forced a re-read.
	WriteConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodtruck_write_conflicts_total",
		Help: "Optimistic concurrency conflicts by entity",
	}, []string{"entity"})

	// LinkFailures counts post/campaign back-reference updates that failed
	// and were left for reconciliation.
	LinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodtruck_campaign_link_failures_total",
		Help: "Best-effort campaign post link updates that failed",
	}, []string{"op"})

	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodtruck_event_publish_failures_total",
		Help: "Domain events that could not be published",
	}, []string{"type"})

	PlatformPublishResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodtruck_platform_publish_results_total",
		Help: "Publish callbacks by platform and outcome",
	}, []string{"platform", "outcome"})

	WorkerJobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodtruck_worker_job_runs_total",
		Help: "Worker job executions by job and result",
	}, []string{"job", "result"})

	CampaignsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodtruck_campaigns_auto_completed_total",
		Help: "Active campaigns moved to completed after their end date",
	})
)
