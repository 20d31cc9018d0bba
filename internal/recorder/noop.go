package recorder

// NoopRecorder is used when no history store is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordCycle(_ *CycleSnapshot) error { return nil }
func (n *NoopRecorder) Close() error                       { return nil }
