package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTrial forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordTrial(res TrialResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordTrial(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordBest forwards improvements to sinks implementing BestRecorder.
func (m *MultiSink) RecordBest(b BestObjective) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(BestRecorder); ok {
			if err := rec.RecordBest(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSimulation forwards simulations to sinks implementing SimulationRecorder.
func (m *MultiSink) RecordSimulation(res SimulationResult) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SimulationRecorder); ok {
			if err := rec.RecordSimulation(res); err != nil {
				return err
			}
		}
	}
	return nil
}
