// Package metrics exposes Prometheus metrics for the guardian policy
// engine: validation decisions, mode transitions, and temporary grant
// lifecycle events.
//
// PolicyMetrics implements engine.EventRecorder, so wiring is a single
// line at composition time:
//
//	collector := metrics.NewPolicyMetrics(cfg, nil)
//	eng, err := engine.New(doc, &engine.Config{Events: collector})
package metrics
