package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	createProjectMetric  = promauto.NewSummary(prometheus.SummaryOpts{Name: "vendorhub_create_project", Help: "Project creation"})
	updateStatusMetric   = promauto.NewSummary(prometheus.SummaryOpts{Name: "vendorhub_update_status", Help: "Project status transitions"})
	assignVendorMetric   = promauto.NewSummary(prometheus.SummaryOpts{Name: "vendorhub_assign_vendor", Help: "Vendor assignment"})
	saveEvaluationMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "vendorhub_save_evaluation", Help: "Evaluation recording"})
	chatMessageMetric    = promauto.NewSummary(prometheus.SummaryOpts{Name: "vendorhub_chat_message", Help: "Assistant chat completions"})

	rejectedTransitionsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vendorhub_rejected_transitions_total",
		Help: "Status transitions rejected by the workflow rules",
	})
)
