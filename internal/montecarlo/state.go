// Package montecarlo runs the Monte-Carlo replacement optimization of a contribution
// population and orchestrates independent repetitions of it.
package montecarlo

import (
	"github.com/GoSim-25-26J-441/mcfit-core/internal/fit"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// Phase is the state-machine position of a Core
type Phase string

const (
	PhaseInitialized Phase = "initialized"
	PhaseIterating   Phase = "iterating"
	PhaseTerminated  Phase = "terminated"
)

// State is the mutable optimization state of one repetition. Only the owning Core
// writes to it.
type State struct {
	Step     int
	Accepted int
	Gof      float64
	X        fit.Solution
	// ModelI is the unnormalized sum of all contribution intensities
	ModelI []float64

	// AcceptedSteps holds 0 for the initial baseline, then the 1-based iteration number
	// of every accepted move; AcceptedGofs holds the gof reached at each entry.
	AcceptedSteps []int
	AcceptedGofs  []float64

	Settings models.OptimizationSettings
}

func newState(modelI []float64, x fit.Solution, gof float64, settings models.OptimizationSettings) State {
	return State{
		Gof:           gof,
		X:             x,
		ModelI:        modelI,
		AcceptedSteps: []int{0},
		AcceptedGofs:  []float64{gof},
		Settings:      settings,
	}
}

func (s *State) recordAccept(x fit.Solution, gof float64) {
	s.X = x
	s.Gof = gof
	s.Accepted++
	s.AcceptedSteps = append(s.AcceptedSteps, s.Step+1)
	s.AcceptedGofs = append(s.AcceptedGofs, gof)
}
