// Package metrics provides cycle metrics for depotwatch.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics never need nil checks at call sites:
//
//	reg := metrics.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	t := tracker.New(st, fetcher, tracker.WithRecorder(rec))
//
// The daemon serves the registry through HTTPHandler on /metrics.
package metrics
