// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aldoetobex/caseflow/pkg/models"
)

var (
	MetricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caseflow",
		Name:      "transitions_total",
		Help:      "Requested case transitions by edge, actor and outcome.",
	}, []string{"from", "to", "actor", "outcome"})

	MetricDocumentOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caseflow",
		Name:      "document_operations_total",
		Help:      "Document attach and detach operations by actor and outcome.",
	}, []string{"op", "actor", "outcome"})

	MetricEventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "caseflow",
		Name:      "event_publish_failures_total",
		Help:      "Case events that could not be published after retries.",
	})
)

// Outcome is the label value for err: "ok" or the lowercased error code.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(models.CodeOf(err))
}

func Transition(from, to models.CaseStatus, actor models.Actor, err error) {
	MetricTransitions.
		With(prometheus.Labels{"from": string(from), "to": string(to), "actor": string(actor), "outcome": Outcome(err)}).
		Inc()
}

func DocumentOp(op string, actor models.Actor, err error) {
	MetricDocumentOps.
		With(prometheus.Labels{"op": op, "actor": string(actor), "outcome": Outcome(err)}).
		Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
