package queue

// SingleQueuePmf is a 1D queue-length PMF that grows by arrival steps and
// shrinks by departure steps, used inside the per-movement departure solver
// (component C6) where a full joint (queue, residual-queue) propagation is
// unnecessary. A fresh SingleQueuePmf starts with all mass at queue length 0.
type SingleQueuePmf struct {
	pmf []float64
}

// NewSingleQueuePmf returns a PMF with all mass at queue length 0.
func NewSingleQueuePmf() *SingleQueuePmf {
	return &SingleQueuePmf{pmf: []float64{1}}
}

// PMF returns the current probability mass function, indexed by queue length.
func (q *SingleQueuePmf) PMF() []float64 {
	return append([]float64(nil), q.pmf...)
}

// ArrivalStep advances the PMF by one arrival with probability arrivalProb
// (clamped to [0,1]): each bin either stays (no arrival) or moves up by one
// (arrival), then the tail is truncated.
func (q *SingleQueuePmf) ArrivalStep(arrivalProb float64) []float64 {
	arrivalProb = clamp01(arrivalProb)
	n := len(q.pmf)

	noArrival := make([]float64, n+1)
	copy(noArrival, q.pmf)
	withArrival := make([]float64, n+1)
	copy(withArrival[1:], q.pmf)

	next := make([]float64, n+1)
	for i := range next {
		next[i] = noArrival[i]*(1-arrivalProb) + withArrival[i]*arrivalProb
	}
	q.pmf = next
	q.RemoveTail(1e-3)
	return q.PMF()
}

// DepartureStep advances the PMF by one departure with probability
// departureProb (clamped to [0,1]): bin 0 either stays at 0 (if it departs,
// its mass is absorbed back into bin 0 since there is nothing to depart) or
// every bin above 0 shifts down by one. Returns the actual departure
// probability realized: (1 - P[queue==0]) * departureProb.
func (q *SingleQueuePmf) DepartureStep(departureProb float64) float64 {
	departureProb = clamp01(departureProb)
	n := len(q.pmf)
	noResidualProb := q.pmf[0]

	withDeparture := make([]float64, n)
	if n > 1 {
		copy(withDeparture, q.pmf[1:])
	}
	withDeparture[0] += noResidualProb

	next := make([]float64, n)
	for i := range next {
		next[i] = withDeparture[i]*departureProb + q.pmf[i]*(1-departureProb)
	}
	q.pmf = next
	q.RemoveTail(1e-3)
	return (1 - noResidualProb) * departureProb
}

// GetMean returns the expected queue length sum(idx * pmf[idx]).
func (q *SingleQueuePmf) GetMean() float64 {
	mean := 0.0
	for idx, p := range q.pmf {
		mean += float64(idx) * p
	}
	return mean
}

// GetProb returns the probability that the queue length is >= arrivals.
func (q *SingleQueuePmf) GetProb(arrivals int) float64 {
	cum := 0.0
	for idx, p := range q.pmf {
		if idx >= arrivals {
			cum += p
		}
	}
	return cum
}

// WithResidualProb returns the probability of a nonzero queue (GetProb(1)).
func (q *SingleQueuePmf) WithResidualProb() float64 {
	return q.GetProb(1)
}

// RemoveTail truncates the PMF to the shortest prefix whose cumulative mass
// reaches 1-prop, then renormalizes so it sums to 1.
func (q *SingleQueuePmf) RemoveTail(prop float64) {
	total := 0.0
	cutIndex := 0
	for i, p := range q.pmf {
		total += p
		cutIndex = i
		if total >= 1-prop {
			break
		}
	}
	q.pmf = q.pmf[:cutIndex+1]

	sum := 0.0
	for _, p := range q.pmf {
		sum += p
	}
	scale := 1.0 / sum
	for i := range q.pmf {
		q.pmf[i] *= scale
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
