// Package metrics exposes Prometheus collectors for federation activity.
//
// Brokers and cores take an optional *Collectors. A nil *Collectors is valid
// and records nothing, so instrumented code never checks for it.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	b, _ := broker.New(broker.Config{Name: "root", Metrics: m})
package metrics
