package telemetry

import "time"

// MovementSnapshot is one movement's solved state at a point in the
// super-iteration loop, the unit an introspection client displays.
type MovementSnapshot struct {
	MovementID         string
	TODName            string
	SuperIteration     int
	PredictedDelay     float64
	PredictedStopRatio float64
	CalibrationDiff    float64
	At                 time.Time
}

// Reporter is the narrow interface the network solver pushes snapshots
// through; a nil Reporter (the default) makes telemetry a no-op so a plain
// solve call pays nothing for it.
type Reporter interface {
	Report(MovementSnapshot)
}

// ChannelReporter pushes snapshots onto a channel, dropping one instead of
// blocking the solver if the channel isn't being drained fast enough.
type ChannelReporter struct {
	updates chan MovementSnapshot
}

// NewChannelReporter returns a ChannelReporter with the given channel
// buffer depth.
func NewChannelReporter(buffer int) *ChannelReporter {
	return &ChannelReporter{updates: make(chan MovementSnapshot, buffer)}
}

// Report implements Reporter, dropping the snapshot if the buffer is full.
func (r *ChannelReporter) Report(s MovementSnapshot) {
	select {
	case r.updates <- s:
	default:
	}
}

// Updates returns the channel snapshots are pushed onto.
func (r *ChannelReporter) Updates() <-chan MovementSnapshot {
	return r.updates
}

// Close closes the underlying channel. Callers must stop calling Report
// before closing.
func (r *ChannelReporter) Close() {
	close(r.updates)
}
