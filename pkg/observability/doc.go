/*
Package observability turns engine lifecycle hooks into Prometheus metrics and structured logs.

	collector := observability.NewCollector(prometheus.NewRegistry())
	hooks := collector.Hooks().Merge(observability.LogHooks(logger))
	agent, err := intake.New(cfg, intake.WithLifecycleHooks(hooks))
*/
package observability
