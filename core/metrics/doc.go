// Package metrics defines the sinks used to record optimization metrics.
// Every sink records finished trials; sinks may additionally implement
// BestRecorder or SimulationRecorder, which MultiSink forwards when
// supported. NewMetricsSink builds sinks from configuration through the
// registry populated by infra/metrics.
package metrics
