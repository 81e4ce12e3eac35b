package network

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"corridorsolve/internal/movement"
	"corridorsolve/internal/signal"
	"corridorsolve/internal/telemetry"
)

// PredictionOptions bounds one call to UpdateNetworkPrediction
// (update_network_prediction's keyword arguments).
type PredictionOptions struct {
	OffsetDict        map[string]float64                // junction id -> additional offset
	GreenDict         map[string][]signal.GreenInterval // movement id -> green intervals
	CycleDict         map[string]float64                // junction id -> cycle length
	GlobalCycleLength *float64

	// GlobalPenetrationRate and PenetrationRateDict seed SetPenetrationRate
	// before the solve starts, the way global_p/p_dict do. A
	// PenetrationRateDict entry wins over GlobalPenetrationRate; a
	// movement's own PenetrationRate (carried over from a prior artifact)
	// is used only when neither supplies a rate.
	GlobalPenetrationRate *float64
	PenetrationRateDict   map[string]float64

	ThroughCostOnly     bool
	DependencyLoop      bool
	UsePredictedArrival bool

	MaxSuperIterations    int
	SuperStoppingCriteria float64
	RetryWithLoop         bool

	// Concurrency bounds how many movements within a single topological
	// pass may be solved at once via errgroup. 1 (the default) preserves
	// the reference scheduler's within-pass chaining exactly, where a
	// movement processed earlier in a pass can unblock one processed
	// later in the same pass. Values above 1 trade that same-pass
	// chaining for genuine parallelism: a pass's ready set is computed
	// once up front from movements resolved in strictly earlier passes,
	// then solved concurrently.
	Concurrency int

	// Progress, if set, receives each solved movement's delay metric
	// ((delay + 30*stop ratio)*trajectories, the value recordMetric keeps
	// for the convergence check) and a processed count; safe to share
	// across the concurrent pass runner.
	Progress *telemetry.Progress
	// Reporter, if set, receives a snapshot of each movement as it's solved.
	Reporter telemetry.Reporter
}

// DefaultPredictionOptions mirrors update_network_prediction's defaults.
func DefaultPredictionOptions() PredictionOptions {
	return PredictionOptions{
		UsePredictedArrival:   true,
		MaxSuperIterations:    5,
		SuperStoppingCriteria: 1e-8,
		RetryWithLoop:         true,
		Concurrency:           1,
	}
}

// UpdateNetworkPrediction re-solves every movement matching todName in
// topological order, iterating super-steps until the per-movement delay
// metric stabilizes, and returns the accumulated calibration-diff
// objective (update_network_prediction).
func UpdateNetworkPrediction(net *MovementNetDict, todName string, opts PredictionOptions) (float64, error) {
	if err := net.SetPenetrationRate(todName, opts.GlobalPenetrationRate, opts.PenetrationRateDict, true); err != nil {
		return 0, err
	}
	return updateNetworkPrediction(net, todName, opts, nil)
}

func updateNetworkPrediction(net *MovementNetDict, todName string, opts PredictionOptions, augmentProcessedList []string) (float64, error) {
	overallMovementsNumber := len(net.Dict)

	if augmentProcessedList == nil {
		augmentProcessedList = []string{}
		if opts.DependencyLoop {
			augmentProcessedList = throughMovementsUpdate(net, todName)
		}
	}

	totalCalibrationDiff := 0.0
	prevMetricDict := map[string]float64{}

	for superIter := 0; superIter < opts.MaxSuperIterations; superIter++ {
		processedSet := map[string]bool{}
		totalCalibrationDiff = 0
		remainingMovements := overallMovementsNumber
		metricDict := map[string]float64{}
		useProdConflicting := false

		for pass := 0; pass < overallMovementsNumber; pass++ {
			var processedThisRound []string

			if opts.Concurrency > 1 {
				processedThisRound, remainingMovements = runPassConcurrently(
					net, todName, opts, processedSet, augmentProcessedList, useProdConflicting, metricDict, &totalCalibrationDiff, superIter)
			} else {
				processedThisRound, remainingMovements = runPassSequential(
					net, todName, opts, processedSet, augmentProcessedList, useProdConflicting, metricDict, &totalCalibrationDiff, superIter)
			}

			if remainingMovements == 0 {
				break
			}
			if len(processedThisRound) == 0 {
				if !opts.DependencyLoop {
					break
				}
				if !useProdConflicting {
					useProdConflicting = true
				} else {
					break
				}
			} else {
				useProdConflicting = false
			}
		}

		if remainingMovements > 0 {
			if opts.DependencyLoop || !opts.RetryWithLoop {
				return 0, fmt.Errorf("network: topology not resolvable, %d movements unprocessed", remainingMovements)
			}
			retryOpts := opts
			retryOpts.DependencyLoop = true
			return updateNetworkPrediction(net, todName, retryOpts, nil)
		}

		diffRatio := metricDiffRatio(prevMetricDict, metricDict)
		if diffRatio <= opts.SuperStoppingCriteria {
			break
		}
		prevMetricDict = metricDict
	}

	return totalCalibrationDiff, nil
}

func runPassSequential(net *MovementNetDict, todName string, opts PredictionOptions,
	processedSet map[string]bool, augment []string, useProdConflicting bool,
	metricDict map[string]float64, totalCalibrationDiff *float64, superIter int) (processedThisRound []string, remainingMovements int) {

	for _, movementID := range net.sortedMovementIDs() {
		if processedSet[movementID] {
			continue
		}
		c := net.GetMovementTODCurve(movementID, todName)
		if c == nil {
			continue
		}
		remainingMovements++

		if !movementReady(c, processedSet, augment, useProdConflicting) {
			continue
		}

		res := processMovement(net, c, todName, opts)
		processedSet[movementID] = true
		processedThisRound = append(processedThisRound, movementID)
		remainingMovements--
		recordMetric(res, metricDict, totalCalibrationDiff)
		reportProgress(opts, c, todName, superIter, res)
	}
	return processedThisRound, remainingMovements
}

func runPassConcurrently(net *MovementNetDict, todName string, opts PredictionOptions,
	processedSet map[string]bool, augment []string, useProdConflicting bool,
	metricDict map[string]float64, totalCalibrationDiff *float64, superIter int) (processedThisRound []string, remainingMovements int) {

	var readyIDs []string
	for _, movementID := range net.sortedMovementIDs() {
		if processedSet[movementID] {
			continue
		}
		c := net.GetMovementTODCurve(movementID, todName)
		if c == nil {
			continue
		}
		remainingMovements++
		if movementReady(c, processedSet, augment, useProdConflicting) {
			readyIDs = append(readyIDs, movementID)
		}
	}

	results := make([]movementResult, len(readyIDs))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(opts.Concurrency)
	for i, movementID := range readyIDs {
		i, movementID := i, movementID
		g.Go(func() error {
			c := net.GetMovementTODCurve(movementID, todName)
			results[i] = processMovement(net, c, todName, opts)
			reportProgress(opts, c, todName, superIter, results[i])
			return nil
		})
	}
	_ = g.Wait()
	remainingMovements -= len(readyIDs)

	for _, res := range results {
		processedSet[res.movementID] = true
		processedThisRound = append(processedThisRound, res.movementID)
		recordMetric(res, metricDict, totalCalibrationDiff)
	}
	return processedThisRound, remainingMovements
}

// reportProgress pushes res onto opts.Progress/opts.Reporter when set; a
// solve call that leaves both nil pays nothing beyond this nil check.
func reportProgress(opts PredictionOptions, c *movement.Curve, todName string, superIter int, res movementResult) {
	if opts.Progress != nil {
		opts.Progress.AddObjective(res.delayMetric)
		opts.Progress.MarkProcessed()
	}
	if opts.Reporter != nil {
		opts.Reporter.Report(telemetry.MovementSnapshot{
			MovementID:         c.MovementID,
			TODName:            todName,
			SuperIteration:     superIter,
			PredictedDelay:     c.PredictedDelay,
			PredictedStopRatio: c.PredictedStopRatio,
			CalibrationDiff:    res.calibDiff,
		})
	}
}

type movementResult struct {
	movementID  string
	calibDiff   float64
	delayMetric float64
	throughSkip bool
}

func processMovement(net *MovementNetDict, c *movement.Curve, todName string, opts PredictionOptions) movementResult {
	if offset, ok := opts.OffsetDict[c.JunctionID]; ok {
		c.AdditionalOffset = offset
	}
	if cycle, ok := opts.CycleDict[c.JunctionID]; ok {
		c.CycleLength = cycle
	} else if opts.GlobalCycleLength != nil {
		c.CycleLength = *opts.GlobalCycleLength
	}
	if green, ok := opts.GreenDict[c.MovementID]; ok {
		c.GreenTime = green
	}

	if opts.UsePredictedArrival {
		net.PredictMovementArrival(c, true, true)
	}

	conflicting := net.conflictingMovements(c, todName)
	solveParams := movement.DefaultSolveParams()
	solveParams.UsePredictedArrival = opts.UsePredictedArrival
	movement.SolveDepartureCurve(c, conflicting, solveParams)

	if opts.ThroughCostOnly && !isThroughIndex(c.MovementIndex) {
		return movementResult{movementID: c.MovementID, throughSkip: true}
	}

	localCalibrationDiff := movement.CalibrationDiff(c, 30) * c.TotalTrajs / 3600
	localDelayMetric := (c.PredictedDelay + c.PredictedStopRatio*30) * c.TotalTrajs
	return movementResult{movementID: c.MovementID, calibDiff: localCalibrationDiff, delayMetric: localDelayMetric}
}

func recordMetric(res movementResult, metricDict map[string]float64, totalCalibrationDiff *float64) {
	if res.throughSkip {
		return
	}
	metricDict[res.movementID] = res.delayMetric
	if res.calibDiff >= 0 {
		*totalCalibrationDiff += res.calibDiff * res.calibDiff
	} else {
		*totalCalibrationDiff += res.calibDiff * res.calibDiff * 4
	}
}

func isThroughIndex(idx int) bool {
	return idx == 2 || idx == 4 || idx == 6 || idx == 8
}

func movementReady(c *movement.Curve, processedSet map[string]bool, augment []string, useProdConflicting bool) bool {
	upstreamReady := isin(c.UpstreamMovementList, processedSet)
	conflictingReady := isin(c.ConflictingMovementList, processedSet)
	if !useProdConflicting {
		return upstreamReady && conflictingReady
	}

	conflictingAugmentReady := isinCombined(c.ConflictingMovementList, processedSet, augment)
	var upstreamAugmentReady bool
	if c.MovementIndex%2 == 1 {
		upstreamAugmentReady = isinCombined(c.UpstreamMovementList, processedSet, augment)
	} else {
		upstreamAugmentReady = upstreamReady
	}
	return upstreamAugmentReady && conflictingAugmentReady
}

func isin(list []string, processedSet map[string]bool) bool {
	if list == nil {
		return true
	}
	for _, id := range list {
		if !processedSet[id] {
			return false
		}
	}
	return true
}

func isinCombined(list []string, processedSet map[string]bool, augment []string) bool {
	if list == nil {
		return true
	}
	augmentSet := make(map[string]bool, len(augment))
	for _, id := range augment {
		augmentSet[id] = true
	}
	for _, id := range list {
		if !processedSet[id] && !augmentSet[id] {
			return false
		}
	}
	return true
}

// throughMovementsUpdate re-solves every movement once, ignoring its
// conflicting movements' state, to seed the augmented-readiness set used
// when dependency_loop mode breaks a topological cycle
// (_through_movements_update).
func throughMovementsUpdate(net *MovementNetDict, todName string) []string {
	var processed []string
	for _, movementID := range net.sortedMovementIDs() {
		c := net.GetMovementTODCurve(movementID, todName)
		if c == nil {
			continue
		}
		params := movement.DefaultSolveParams()
		params.UsePredictedArrival = false
		movement.SolveDepartureCurve(c, nil, params)
		processed = append(processed, movementID)
	}
	return processed
}

func metricDiffRatio(prev, curr map[string]float64) float64 {
	if len(prev) != len(curr) {
		return 1e6
	}
	totalMetric := 0.0
	totalDiff := 0.0
	for id, m1 := range prev {
		m2 := curr[id]
		totalMetric += m1 * m1
		totalDiff += (m2 - m1) * (m2 - m1)
	}
	if totalMetric == 0 {
		return 0
	}
	return totalDiff / totalMetric
}
