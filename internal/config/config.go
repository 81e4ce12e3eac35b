// Package config loads the solver's tunable parameters from a YAML file,
// following the teacher's viper + yaml.v3 loading shape.
package config

import (
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SolverConfig holds the tunables a corridor solve run needs outside of the
// per-movement SPaT/geometry data: iteration caps, stopping criteria, and
// the reference physical defaults. cmd/corridorsolve passes only the
// network-level fields (MaxSuperIterations, SuperStoppingCriteria,
// RetryWithLoop, Concurrency) on to the solver; the others are loaded but
// not applied.
type SolverConfig struct {
	// Resolution is the reference discretization step (seconds); movements
	// keep the resolution their artifact stores.
	Resolution float64 `mapstructure:"resolution"`

	// MaximumSteps mirrors SolveParams.MaximumSteps, the per-movement
	// departure-curve fixed point cap; the network solver runs each movement
	// with movement.DefaultSolveParams().
	MaximumSteps int `mapstructure:"maximumSteps"`
	// StoppingCriteria is the per-movement fixed point's relative
	// convergence threshold.
	StoppingCriteria float64 `mapstructure:"stoppingCriteria"`
	// OccupiedLookaheadCycles is the cross-cycle occupied-probability
	// look-ahead window (max_repeat).
	OccupiedLookaheadCycles int `mapstructure:"occupiedLookaheadCycles"`

	// MaxSuperIterations and SuperStoppingCriteria bound the network-level
	// super-iteration loop.
	MaxSuperIterations    int     `mapstructure:"maxSuperIterations"`
	SuperStoppingCriteria float64 `mapstructure:"superStoppingCriteria"`
	RetryWithLoop         bool    `mapstructure:"retryWithLoop"`

	// Concurrency bounds how many movements a single network-solver pass
	// may solve at once. 1 disables parallelism.
	Concurrency int `mapstructure:"concurrency"`

	// DefaultSatFlowPerLane and DefaultGapAcceptance are the reference
	// physical defaults; movement.New sets its own and does not read these.
	DefaultSatFlowPerLane float64 `mapstructure:"defaultSatFlowPerLane"`
	DefaultGapAcceptance  float64 `mapstructure:"defaultGapAcceptance"`
}

// Default returns the reference tuning used throughout the Python model.
func Default() SolverConfig {
	return SolverConfig{
		Resolution:              3,
		MaximumSteps:            15,
		StoppingCriteria:        1e-6,
		OccupiedLookaheadCycles: 3,
		MaxSuperIterations:      5,
		SuperStoppingCriteria:   1e-8,
		RetryWithLoop:           true,
		Concurrency:             1,
		DefaultSatFlowPerLane:   1800,
		DefaultGapAcceptance:    10,
	}
}

// FromYaml reads a SolverConfig from a flat YAML document at path. Unlike
// the teacher's RL config (which wraps its payload in a kind/def pair to
// select among algorithm variants), a solver run has exactly one shape, so
// this loads directly into SolverConfig without that indirection.
func FromYaml(path string) (SolverConfig, error) {
	cfg := Default()

	vp := viper.New()
	vp.SetConfigFile(filepath.Base(path))
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return SolverConfig{}, err
	}

	raw := map[string]interface{}{}
	if err := vp.Unmarshal(&raw); err != nil {
		return SolverConfig{}, err
	}

	spec, err := yaml.Marshal(raw)
	if err != nil {
		return SolverConfig{}, err
	}
	if err := yaml.Unmarshal(spec, &cfg); err != nil {
		return SolverConfig{}, err
	}
	return cfg, nil
}
