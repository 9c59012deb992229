package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlanResult forwards the result to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPlanResult(res PlanResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlanResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssignments forwards placements when supported by the sink.
func (m *MultiSink) RecordAssignments(evs []AssignmentEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AssignmentRecorder); ok {
			if err := rec.RecordAssignments(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordUnplaced forwards unplaced vessels when supported by the sink.
func (m *MultiSink) RecordUnplaced(evs []UnplacedEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(UnplacedRecorder); ok {
			if err := rec.RecordUnplaced(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTransition forwards lifecycle changes when supported by the sink.
func (m *MultiSink) RecordTransition(ev TransitionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TransitionRecorder); ok {
			if err := rec.RecordTransition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordConflict forwards conflict counts when supported by the sink.
func (m *MultiSink) RecordConflict(trigger string) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ConflictRecorder); ok {
			if err := rec.RecordConflict(trigger); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRejection forwards rejected events when supported by the sink.
func (m *MultiSink) RecordRejection(ev RejectionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RejectionRecorder); ok {
			if err := rec.RecordRejection(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
