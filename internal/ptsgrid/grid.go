// Package ptsgrid builds the periodic time-space (PTS) gridline matrices of
// spec.md §4.3 (component C3) from the queue, residual-queue and transit
// matrices produced by internal/queue.
package ptsgrid

// ArrivalFunc returns the per-step arrival probability a(t).
type ArrivalFunc func(t int) float64

// QueueMatToHorizontalGridlinesMat converts a queue matrix (time x max_queue)
// into horizontal PTS gridlines: each row holds, for column n, the
// probability that at least n vehicles are queued at that instant. Rows in
// the red portion of the local cycle are left as they are; rows in the
// green portion are shifted right along the shockwave by
// (t mod cycle) - red + 1 columns, so the columns below the shockwave read
// zero.
func QueueMatToHorizontalGridlinesMat(queueMatrix [][]float64, cycle int, greenSplit float64) [][]float64 {
	h := queueMatrixToHorizontalMatrix(queueMatrix)
	totalTime := len(queueMatrix)
	if totalTime == 0 {
		return h
	}
	red := cycle - roundHalfAwayFromZero(float64(cycle)*greenSplit)

	for t := 0; t < totalTime; t++ {
		tInC := t % cycle
		if tInC >= red {
			shift := tInC - red + 1
			shiftRightZeroFill(h[t], shift, 0)
		}
	}
	return h
}

// ResQueueMatToHorizontalGridlinesMat is QueueMatToHorizontalGridlinesMat's
// counterpart for the residual-queue matrix: the shockwave shift always
// applies (there is no red/green gating), growing with t_in_cycle+1 every
// step since the residual queue is continuously draining into the link.
func ResQueueMatToHorizontalGridlinesMat(resQueueMatrix [][]float64, cycle int) [][]float64 {
	h := queueMatrixToHorizontalMatrix(resQueueMatrix)
	totalTime := len(resQueueMatrix)
	for t := 0; t < totalTime; t++ {
		tInCycle := t % cycle
		shiftRightZeroFill(h[t], tInCycle+1, 0)
	}
	return h
}

// ResQueueMatToVerticalGridlinesMat builds the residual-queue's vertical
// gridlines, filling the sub-shockwave region with resQueueDep[t] (the
// per-step actual residual departure probability) instead of zero.
func ResQueueMatToVerticalGridlinesMat(resQueueMatrix [][]float64, resQueueDep []float64, a ArrivalFunc, cycle int, initQueue []float64) [][]float64 {
	v := queueMatrixToVerticalMatrix(resQueueMatrix, initQueue, a)
	totalTime := len(resQueueMatrix)
	for t := 0; t < totalTime; t++ {
		tInCycle := t % cycle
		shiftRightFill(v[t], tInCycle, resQueueDep[t])
	}
	return v
}

// TransitMatToVerticalGridlinesMat builds the vertical PTS gridlines from the
// diagonal-transit matrix, filling the sub-shockwave region (during green)
// with the actual departure probability dActual[t].
func TransitMatToVerticalGridlinesMat(transit [][]float64, dActual []float64, cycle int, greenSplit float64) [][]float64 {
	v := transitMatrixToVerticalMatrix(transit)
	totalTime := len(transit)
	if totalTime == 0 {
		return v
	}
	red := cycle - roundHalfAwayFromZero(float64(cycle)*greenSplit)

	for t := 0; t < totalTime; t++ {
		tInC := t % cycle
		if tInC >= red {
			shift := tInC - red + 1
			shiftRightFillOffsetOne(v[t], shift, dActual[t])
		}
	}
	return v
}

// UpdateGridlines grafts the residual-queue gridlines into the tail of the
// main gridline matrices, beyond the green-plus-elapsed-time column, mutating
// hGrid and vGrid in place.
func UpdateGridlines(cycle int, greenSplit float64, hGrid, vGrid, resHGrid, resVGrid [][]float64) {
	green := roundHalfAwayFromZero(float64(cycle) * greenSplit)
	totalTime := len(hGrid)
	if totalTime == 0 {
		return
	}
	maxQueue := len(hGrid[0])

	for t := 0; t < totalTime; t++ {
		tInCycle := t % cycle
		dest := green + tInCycle
		if dest >= maxQueue {
			continue
		}
		src := tInCycle
		n := maxQueue - dest
		copy(hGrid[t][dest:dest+n], resHGrid[t][src:src+n])
	}
	for t := 0; t < totalTime; t++ {
		tInCycle := t % cycle
		dest := green + tInCycle
		if dest >= maxQueue {
			continue
		}
		src := tInCycle
		n := maxQueue - dest
		copy(vGrid[t][dest:dest+n], resVGrid[t][src:src+n])
	}
}

// queueMatrixToHorizontalMatrix computes, for each row, the reverse
// cumulative sum (suffix sum) h[t][n] = sum(m[t][n:]), then zeroes column 0 —
// this is the unshifted portion common to both the queue and residual-queue
// horizontal conversions.
func queueMatrixToHorizontalMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for t, row := range m {
		n := len(row)
		h := make([]float64, n)
		suffix := 0.0
		for i := n - 1; i >= 0; i-- {
			suffix += row[i]
			h[i] = suffix
		}
		if n > 0 {
			h[0] = 0
		}
		out[t] = h
	}
	return out
}

// queueMatrixToVerticalMatrix computes v[t][n] = sum(prevRow(t)[0:n]) * a(t),
// where prevRow(t) is m[t-1] for t>0, or initQueue for t==0.
func queueMatrixToVerticalMatrix(m [][]float64, initQueue []float64, a ArrivalFunc) [][]float64 {
	out := make([][]float64, len(m))
	for t := range m {
		maxQueue := len(m[t])
		var prev []float64
		if t == 0 {
			if initQueue != nil {
				prev = initQueue
			} else {
				prev = make([]float64, maxQueue)
				prev[0] = 1
			}
		} else {
			prev = m[t-1]
		}

		v := make([]float64, maxQueue)
		cum := 0.0
		for n := 0; n < maxQueue; n++ {
			if n > 0 {
				cum += prev[n-1]
			}
			v[n] = cum * a(t)
		}
		out[t] = v
	}
	return out
}

// transitMatrixToVerticalMatrix computes v[t][n] = sum(transit[t][0:n]).
func transitMatrixToVerticalMatrix(transit [][]float64) [][]float64 {
	out := make([][]float64, len(transit))
	for t, row := range transit {
		n := len(row)
		v := make([]float64, n)
		cum := 0.0
		for i := 0; i < n; i++ {
			if i > 0 {
				cum += row[i-1]
			}
			v[i] = cum
		}
		out[t] = v
	}
	return out
}

// shiftRightZeroFill shifts row right by shift positions in place, filling
// the vacated leading positions with fillValue.
func shiftRightZeroFill(row []float64, shift int, fillValue float64) {
	n := len(row)
	if shift <= 0 {
		return
	}
	if shift >= n {
		for i := range row {
			row[i] = fillValue
		}
		return
	}
	old := append([]float64(nil), row...)
	for i := n - 1; i >= shift; i-- {
		row[i] = old[i-shift]
	}
	for i := 0; i < shift; i++ {
		row[i] = fillValue
	}
}

// shiftRightFill implements the residual-queue vertical shift: destination
// index j (for j >= shift+1) reads source index j-shift; indices [0,shift]
// are filled with fillValue.
func shiftRightFill(row []float64, shift int, fillValue float64) {
	n := len(row)
	old := append([]float64(nil), row...)
	for j := n - 1; j >= shift+1; j-- {
		src := j - shift
		if src < n {
			row[j] = old[src]
		}
	}
	for j := 0; j <= shift && j < n; j++ {
		row[j] = fillValue
	}
}

// shiftRightFillOffsetOne implements the transit vertical shift: destination
// index j (for j >= shift) reads source index j-shift+1; indices [0,shift)
// are filled with fillValue.
func shiftRightFillOffsetOne(row []float64, shift int, fillValue float64) {
	n := len(row)
	old := append([]float64(nil), row...)
	for j := n - 1; j >= shift; j-- {
		src := j - shift + 1
		if src >= 0 && src < n {
			row[j] = old[src]
		}
	}
	for j := 0; j < shift && j < n; j++ {
		row[j] = fillValue
	}
}

func roundHalfAwayFromZero(x float64) int {
	if x >= 0 {
		return int(x + 0.5)
	}
	return -int(-x + 0.5)
}
