// Package movement implements the movement data model of spec.md §3 and the
// per-movement departure-curve solver of §4.6 (component C6).
package movement

import (
	"math"

	"corridorsolve/internal/curvemath"
)

// ArrivalCurve holds a movement's arrival-side histogram, scaled
// probability, and prediction, plus a per-origin breakdown.
type ArrivalCurve struct {
	RawDataList       []float64
	RawDataDict       map[string][]float64
	CurveList         []float64
	ProbList          []float64
	PredictList       []float64
	OriginCurveDict   map[string][]float64
	OriginProbDict    map[string][]float64
	OriginPredictDict map[string][]float64
	Dimension         int
}

// UpdateProbCurve scales CurveList into ProbList by coefficient, the way a
// penetration-rate rescale does. A curve with no histogram keeps its
// ProbList.
func (a *ArrivalCurve) UpdateProbCurve(coefficient float64) {
	if a.CurveList == nil {
		return
	}
	a.ProbList = scale(a.CurveList, coefficient)
}

// PredictionError returns the L-norm distance between ProbList and
// PredictList.
func (a *ArrivalCurve) PredictionError(norm float64) float64 {
	return predictionError(a.ProbList, a.PredictList, norm)
}

// DepartureCurve holds a movement's departure-side histogram, scaled
// probability, prediction, and their cycle-folded aggregates.
type DepartureCurve struct {
	RawDataList    []float64
	CurveList      []float64
	ProbList       []float64
	PredictList    []float64
	Dimension      int
	ExtendCycles   int
	AggCurveList   []float64
	AggProbList    []float64
	AggPredictList []float64
}

// UpdateProbCurve scales CurveList into ProbList by coefficient. A curve
// with no histogram keeps its ProbList.
func (d *DepartureCurve) UpdateProbCurve(coefficient float64) {
	if d.CurveList == nil {
		return
	}
	d.ProbList = scale(d.CurveList, coefficient)
}

// PredictionError returns the L-norm distance between ProbList and
// PredictList.
func (d *DepartureCurve) PredictionError(norm float64) float64 {
	return predictionError(d.ProbList, d.PredictList, norm)
}

// AggCurves folds CurveList, ProbList and PredictList (whichever are present
// and match Dimension) down to one cycle's length via ExtendCycles.
func (d *DepartureCurve) AggCurves() {
	if d.ProbList != nil && len(d.ProbList) == d.Dimension {
		d.AggProbList = curvemath.Aggregate(d.ProbList, d.ExtendCycles)
	}
	if d.CurveList != nil && len(d.CurveList) == d.Dimension {
		d.AggCurveList = curvemath.Aggregate(d.CurveList, d.ExtendCycles)
	}
	if d.PredictList != nil && len(d.PredictList) == d.Dimension {
		d.AggPredictList = curvemath.Aggregate(d.PredictList, d.ExtendCycles)
	}
}

func scale(xs []float64, coefficient float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * coefficient
	}
	return out
}

func predictionError(prob, predict []float64, norm float64) float64 {
	total := 0.0
	for i := range prob {
		total += math.Pow(math.Abs(prob[i]-predict[i]), norm)
	}
	return math.Pow(total, 1/norm)
}
