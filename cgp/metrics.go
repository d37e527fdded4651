package cgp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// generationsTotal counts completed generations
	generationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cgp_generations_total",
		Help: "Total generations run by every population",
	})

	// bestFitness tracks the best fitness seen so far
	bestFitness = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cgp_best_fitness",
		Help: "Best fitness found by the most recently stepped population",
	})

	// speciesCount tracks the species alive after speciation
	speciesCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cgp_species_count",
		Help: "Number of species after the latest speciation",
	})

	// evaluationDuration tracks the time spent in the fitness function
	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cgp_evaluation_duration_seconds",
		Help:    "Fitness evaluation duration per generation in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
	})
)
