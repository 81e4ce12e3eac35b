// Package artifact loads and saves the calibrated-curve JSON document of
// spec.md §6, the only persisted data the solver core consumes.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"

	"corridorsolve/internal/capacity"
	"corridorsolve/internal/movement"
	"corridorsolve/internal/network"
	"corridorsolve/internal/signal"
)

// Document is the on-disk shape of a MovementNetDict: a date list, the
// shared resolution and cycle-repeat count, the time-of-day window table,
// and every movement's curve data keyed by movement id and tod name.
type Document struct {
	DateList   []string                          `json:"date_list"`
	Resolution float64                           `json:"resolution"`
	Repeats    int                               `json:"repeats"`
	TODDict    map[string][2]float64             `json:"tod_dict"`
	Movements  map[string]map[string]MovementDoc `json:"movements"`
}

// GreenIntervalDoc mirrors signal.GreenInterval.
type GreenIntervalDoc struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// CurveDoc mirrors the common arrival/departure distribution fields
// (DistributionCurve).
type CurveDoc struct {
	RawDataList []float64 `json:"raw_data_list"`
	CurveList   []float64 `json:"curve_list"`
	ProbList    []float64 `json:"prob_list,omitempty"`
	PredictList []float64 `json:"predict_list,omitempty"`
	Dimension   int       `json:"dimension"`

	// Arrival-only.
	RawDataDict       map[string][]float64 `json:"raw_data_dict,omitempty"`
	OriginCurveDict   map[string][]float64 `json:"origin_curve_dict,omitempty"`
	OriginProbDict    map[string][]float64 `json:"origin_prob_dict,omitempty"`
	OriginPredictDict map[string][]float64 `json:"origin_predict_dict,omitempty"`

	// Departure-only.
	ExtendCycles   int       `json:"extend_cycles,omitempty"`
	AggCurveList   []float64 `json:"agg_curve_list,omitempty"`
	AggProbList    []float64 `json:"agg_prob_list,omitempty"`
	AggPredictList []float64 `json:"agg_predict_list,omitempty"`
}

// MovementDoc carries movement.Curve's (MovementTOD's) stored fields; the
// solver's per-step working lists (CapacityStateList, PMFList, CapacityList,
// EffCapacityList) are not written.
type MovementDoc struct {
	MovementID    string  `json:"movement_id"`
	MovementIndex int     `json:"movement_index"`
	JunctionID    string  `json:"junction_id"`
	TODName       string  `json:"tod_name"`
	Resolution    float64 `json:"resolution"`

	DepartureCycles int `json:"departure_cycles"`
	NumberOfDates   int `json:"number_of_dates"`

	ArrivalCurve   CurveDoc `json:"arrival_curve"`
	DepartureCurve CurveDoc `json:"departure_curve"`

	CycleLength          float64            `json:"cycle_length"`
	Offset               float64            `json:"offset"`
	GreenTime            []GreenIntervalDoc `json:"green_time"`
	AdditionalOffset     float64            `json:"additional_offset"`
	GreenStartShift      float64            `json:"green_start_shift"`
	EffectiveGreenChange float64            `json:"effective_green_change"`
	YellowChangeInterval float64            `json:"yellow_change_interval"`
	ClearanceInterval    float64            `json:"clearance_interval"`
	BinaryGreen          bool               `json:"binary_green"`

	SatFlowPerLane         float64  `json:"sat_flow_per_lane"`
	LaneNumber             float64  `json:"lane_number"`
	EquivalentLaneNumber   float64  `json:"equivalent_lane_number"`
	ShareLaneMovements     []string `json:"share_lane_movements"`
	ShareApproachMovements []string `json:"share_approach_movements"`
	UpstreamMovementList   []string `json:"upstream_movement_list"`
	UpstreamLength         float64  `json:"upstream_length"`

	ConflictingMovementList []string  `json:"conflicting_movement_list"`
	PermissiveType          string    `json:"permissive_type"`
	GapAcceptance           float64   `json:"gap_acceptance"`
	PermissiveCapacityList  []float64 `json:"permissive_capacity_list,omitempty"`
	LeftoverCapacityList    []float64 `json:"leftover_capacity_list,omitempty"`

	TotalTrajs        float64 `json:"total_trajs"`
	TotalStops        float64 `json:"total_stops"`
	TotalStoppedTrajs float64 `json:"total_stopped_trajs"`
	TotalControlDelay float64 `json:"total_control_delay"`
	TotalStopDelay    float64 `json:"total_stop_delay"`
	MeasuredFreeV     float64 `json:"measured_free_v"`

	PenetrationRate           *float64 `json:"penetration_rate"`
	DepartureCalibrationError float64  `json:"departure_calibration_error"`
	ArrivalCalibrationError   float64  `json:"arrival_calibration_error"`
	HourlyVolume              float64  `json:"hourly_volume"`
	PredictedDelay            float64  `json:"predicted_delay"`
	PredictedStopRatio        float64  `json:"predicted_stop_ratio"`

	OriginDivergeDict map[string]float64 `json:"origin_diverge_dict,omitempty"`
	OriginShiftDict   map[string]float64 `json:"origin_shift_dict,omitempty"`
	OriginErrorDict   map[string]float64 `json:"origin_error_dict,omitempty"`
}

// Load reads a calibrated-curve artifact from path into a MovementNetDict.
func Load(path string) (*network.MovementNetDict, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("artifact: decoding %s: %w", path, err)
	}
	return FromDocument(doc)
}

// Save writes net as a calibrated-curve artifact to path.
func Save(path string, net *network.MovementNetDict) error {
	doc := ToDocument(net)
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encoding: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// FromDocument converts a decoded Document into a MovementNetDict.
func FromDocument(doc Document) (*network.MovementNetDict, error) {
	net := network.New()
	net.Resolution = doc.Resolution
	net.DepartureRepeats = doc.Repeats
	net.DateList = doc.DateList
	for todName, window := range doc.TODDict {
		net.TODDict[todName] = network.TODWindow{StartHour: window[0], EndHour: window[1]}
	}

	for movementID, todMap := range doc.Movements {
		for todName, md := range todMap {
			c := movementFromDoc(movementID, todName, md)
			net.AddMovementTODCurve(c)
		}
	}
	return net, nil
}

func movementFromDoc(movementID, todName string, md MovementDoc) *movement.Curve {
	c := movement.New(movementID, todName)
	c.MovementIndex = md.MovementIndex
	c.JunctionID = md.JunctionID
	c.Resolution = md.Resolution
	c.DepartureCycles = md.DepartureCycles
	c.NumberOfDates = md.NumberOfDates

	c.Arrival = curveFromArrivalDoc(md.ArrivalCurve)
	c.Departure = curveFromDepartureDoc(md.DepartureCurve)

	c.CycleLength = md.CycleLength
	c.Offset = md.Offset
	c.GreenTime = greenTimeFromDoc(md.GreenTime)
	c.AdditionalOffset = md.AdditionalOffset
	c.GreenStartShift = md.GreenStartShift
	c.EffectiveGreenChange = md.EffectiveGreenChange
	c.YellowChangeInterval = md.YellowChangeInterval
	c.ClearanceInterval = md.ClearanceInterval
	c.BinaryGreen = md.BinaryGreen

	c.SetSatFlowPerLane(md.SatFlowPerLane)
	c.LaneNumber = md.LaneNumber
	c.SetEquivalentLaneNumber(md.EquivalentLaneNumber)
	c.ShareLaneMovements = md.ShareLaneMovements
	c.ShareApproachMovements = md.ShareApproachMovements
	c.UpstreamMovementList = md.UpstreamMovementList
	c.UpstreamLength = md.UpstreamLength

	c.ConflictingMovementList = md.ConflictingMovementList
	c.PermissiveType = permissiveTypeFromString(md.PermissiveType)
	c.GapAcceptance = md.GapAcceptance
	c.PermissiveCapacityList = md.PermissiveCapacityList
	c.LeftoverCapacityList = md.LeftoverCapacityList

	c.TotalTrajs = md.TotalTrajs
	c.TotalStops = md.TotalStops
	c.TotalStoppedTrajs = md.TotalStoppedTrajs
	c.TotalControlDelay = md.TotalControlDelay
	c.TotalStopDelay = md.TotalStopDelay
	c.MeasuredFreeV = md.MeasuredFreeV

	c.PenetrationRate = md.PenetrationRate
	c.DepartureCalibrationError = md.DepartureCalibrationError
	c.ArrivalCalibrationError = md.ArrivalCalibrationError
	c.HourlyVolume = md.HourlyVolume
	c.PredictedDelay = md.PredictedDelay
	c.PredictedStopRatio = md.PredictedStopRatio

	if md.OriginDivergeDict != nil {
		c.OriginDivergeDict = md.OriginDivergeDict
	}
	if md.OriginShiftDict != nil {
		c.OriginShiftDict = md.OriginShiftDict
	}
	if md.OriginErrorDict != nil {
		c.OriginErrorDict = md.OriginErrorDict
	}
	return c
}

func curveFromArrivalDoc(d CurveDoc) movement.ArrivalCurve {
	return movement.ArrivalCurve{
		RawDataList:       d.RawDataList,
		RawDataDict:       d.RawDataDict,
		CurveList:         d.CurveList,
		ProbList:          d.ProbList,
		PredictList:       d.PredictList,
		OriginCurveDict:   d.OriginCurveDict,
		OriginProbDict:    d.OriginProbDict,
		OriginPredictDict: d.OriginPredictDict,
		Dimension:         d.Dimension,
	}
}

func curveFromDepartureDoc(d CurveDoc) movement.DepartureCurve {
	return movement.DepartureCurve{
		RawDataList:    d.RawDataList,
		CurveList:      d.CurveList,
		ProbList:       d.ProbList,
		PredictList:    d.PredictList,
		Dimension:      d.Dimension,
		ExtendCycles:   d.ExtendCycles,
		AggCurveList:   d.AggCurveList,
		AggProbList:    d.AggProbList,
		AggPredictList: d.AggPredictList,
	}
}

func greenTimeFromDoc(gs []GreenIntervalDoc) []signal.GreenInterval {
	out := make([]signal.GreenInterval, len(gs))
	for i, g := range gs {
		out[i] = signal.GreenInterval{Start: g.Start, Duration: g.Duration}
	}
	return out
}

func permissiveTypeFromString(s string) capacity.PermissiveType {
	switch s {
	case "lt_turn_permissive":
		return capacity.LeftTurnPermissive
	case "lt_turn_protected":
		return capacity.LeftTurnProtected
	case "protected_permissive":
		return capacity.ProtectedPermissive
	default:
		return capacity.None
	}
}

// ToDocument converts net into its §6 wire-format Document.
func ToDocument(net *network.MovementNetDict) Document {
	doc := Document{
		DateList:   net.DateList,
		Resolution: net.Resolution,
		Repeats:    net.DepartureRepeats,
		TODDict:    map[string][2]float64{},
		Movements:  map[string]map[string]MovementDoc{},
	}
	for todName, window := range net.TODDict {
		doc.TODDict[todName] = [2]float64{window.StartHour, window.EndHour}
	}

	for movementID, todMap := range net.Dict {
		doc.Movements[movementID] = map[string]MovementDoc{}
		for todName, c := range todMap {
			doc.Movements[movementID][todName] = movementToDoc(c)
		}
	}
	return doc
}

func movementToDoc(c *movement.Curve) MovementDoc {
	return MovementDoc{
		MovementID:    c.MovementID,
		MovementIndex: c.MovementIndex,
		JunctionID:    c.JunctionID,
		TODName:       c.TODName,
		Resolution:    c.Resolution,

		DepartureCycles: c.DepartureCycles,
		NumberOfDates:   c.NumberOfDates,

		ArrivalCurve:   curveToDoc(c.Arrival),
		DepartureCurve: departureCurveToDoc(c.Departure),

		CycleLength:          c.CycleLength,
		Offset:               c.Offset,
		GreenTime:            greenTimeToDoc(c.GreenTime),
		AdditionalOffset:     c.AdditionalOffset,
		GreenStartShift:      c.GreenStartShift,
		EffectiveGreenChange: c.EffectiveGreenChange,
		YellowChangeInterval: c.YellowChangeInterval,
		ClearanceInterval:    c.ClearanceInterval,
		BinaryGreen:          c.BinaryGreen,

		SatFlowPerLane:         c.SatFlowPerLane(),
		LaneNumber:             c.LaneNumber,
		EquivalentLaneNumber:   c.EquivalentLaneNumber(),
		ShareLaneMovements:     c.ShareLaneMovements,
		ShareApproachMovements: c.ShareApproachMovements,
		UpstreamMovementList:   c.UpstreamMovementList,
		UpstreamLength:         c.UpstreamLength,

		ConflictingMovementList: c.ConflictingMovementList,
		PermissiveType:          c.PermissiveType.String(),
		GapAcceptance:           c.GapAcceptance,
		PermissiveCapacityList:  c.PermissiveCapacityList,
		LeftoverCapacityList:    c.LeftoverCapacityList,

		TotalTrajs:        c.TotalTrajs,
		TotalStops:        c.TotalStops,
		TotalStoppedTrajs: c.TotalStoppedTrajs,
		TotalControlDelay: c.TotalControlDelay,
		TotalStopDelay:    c.TotalStopDelay,
		MeasuredFreeV:     c.MeasuredFreeV,

		PenetrationRate:           c.PenetrationRate,
		DepartureCalibrationError: c.DepartureCalibrationError,
		ArrivalCalibrationError:   c.ArrivalCalibrationError,
		HourlyVolume:              c.HourlyVolume,
		PredictedDelay:            c.PredictedDelay,
		PredictedStopRatio:        c.PredictedStopRatio,

		OriginDivergeDict: c.OriginDivergeDict,
		OriginShiftDict:   c.OriginShiftDict,
		OriginErrorDict:   c.OriginErrorDict,
	}
}

func curveToDoc(a movement.ArrivalCurve) CurveDoc {
	return CurveDoc{
		RawDataList:       a.RawDataList,
		CurveList:         a.CurveList,
		ProbList:          a.ProbList,
		PredictList:       a.PredictList,
		Dimension:         a.Dimension,
		RawDataDict:       a.RawDataDict,
		OriginCurveDict:   a.OriginCurveDict,
		OriginProbDict:    a.OriginProbDict,
		OriginPredictDict: a.OriginPredictDict,
	}
}

func departureCurveToDoc(d movement.DepartureCurve) CurveDoc {
	return CurveDoc{
		RawDataList:    d.RawDataList,
		CurveList:      d.CurveList,
		ProbList:       d.ProbList,
		PredictList:    d.PredictList,
		Dimension:      d.Dimension,
		ExtendCycles:   d.ExtendCycles,
		AggCurveList:   d.AggCurveList,
		AggProbList:    d.AggProbList,
		AggPredictList: d.AggPredictList,
	}
}

func greenTimeToDoc(gs []signal.GreenInterval) []GreenIntervalDoc {
	out := make([]GreenIntervalDoc, len(gs))
	for i, g := range gs {
		out[i] = GreenIntervalDoc{Start: g.Start, Duration: g.Duration}
	}
	return out
}
