// Package metrics exposes Prometheus instrumentation for the area core.
//
// Everything registers on a private registry so tests and multiple servers in
// one process never collide on the global default registry. The package
// provides:
//   - HTTP request counters and latency histograms (Middleware)
//   - authorisation decision counters (ObserveDecision, an auth.DecisionObserver)
//   - area lifecycle event counters (AreaEvent)
//   - the scrape endpoint (Handler)
package metrics
