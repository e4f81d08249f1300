package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paisaledger",
		Subsystem: "statement",
		Name:      "imports_total",
		Help:      "Statement import batches by outcome.",
	}, []string{"outcome"})

	importRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paisaledger",
		Subsystem: "statement",
		Name:      "import_rows_total",
		Help:      "Imported statement rows by per-row outcome.",
	}, []string{"status"})

	analyzeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paisaledger",
		Subsystem: "statement",
		Name:      "analyze_total",
		Help:      "Statement analyze requests by file format.",
	}, []string{"format"})
)
