package telemetry

// Progress accumulates a running total fed by the network solver (predict.go's
// reportProgress adds each solved movement's delay metric, the same value
// recordMetric keeps for the convergence check) and a processed count, across
// however many goroutines a concurrent pass is using.
type Progress struct {
	objective *AtomicFloat64
	processed *AtomicFloat64
}

// NewProgress returns a zeroed Progress accumulator.
func NewProgress() *Progress {
	return &Progress{
		objective: NewAtomicFloat64(0),
		processed: NewAtomicFloat64(0),
	}
}

// AddObjective folds delta into the running objective total.
func (p *Progress) AddObjective(delta float64) {
	p.objective.Add(delta)
}

// MarkProcessed records that one more movement finished this pass.
func (p *Progress) MarkProcessed() {
	p.processed.Add(1)
}

// Objective returns the current running objective total.
func (p *Progress) Objective() float64 {
	return p.objective.Load()
}

// Processed returns the count of movements marked processed so far.
func (p *Progress) Processed() int {
	return int(p.processed.Load())
}

// Reset zeroes the accumulator for the next super-iteration.
func (p *Progress) Reset() {
	p.objective.Store(0)
	p.processed.Store(0)
}
