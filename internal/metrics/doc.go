// Package metrics exposes itemkeeper's Prometheus instrumentation.
//
// Metrics are registered on an explicit registry rather than the global
// default so tests can build as many instances as they like:
//
//	reg, m := metrics.NewRegistry(db)
//	router.Handle("/metrics", metrics.Handler(reg))
//	m.RecordLogin(metrics.LoginSuccess)
package metrics
