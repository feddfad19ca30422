package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var samplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sitewatch",
	Subsystem: "ingest",
	Name:      "samples_total",
	Help:      "Running-hours samples by outcome (applied or rejected).",
}, []string{"outcome"})

func recordSample(applied bool) {
	outcome := "applied"
	if !applied {
		outcome = "rejected"
	}
	samplesTotal.WithLabelValues(outcome).Inc()
}
