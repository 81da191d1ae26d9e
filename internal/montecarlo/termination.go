package montecarlo

import (
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// TerminationCondition decides whether an optimization must stop before the next iteration
type TerminationCondition interface {
	// Check reports whether the condition holds for the current state
	Check(s *State) bool
	// Reason is the termination state recorded when the condition holds
	Reason() models.Termination
}

// ConvergedCondition holds once gof ≤ convCrit
type ConvergedCondition struct{}

func (ConvergedCondition) Check(s *State) bool { return s.Gof <= s.Settings.ConvCrit }

func (ConvergedCondition) Reason() models.Termination { return models.TerminationConverged }

// MaxAcceptCondition holds once accepted ≥ maxAccept. A maxAccept of zero never holds.
type MaxAcceptCondition struct{}

func (MaxAcceptCondition) Check(s *State) bool {
	return s.Settings.MaxAccept > 0 && s.Accepted >= s.Settings.MaxAccept
}

func (MaxAcceptCondition) Reason() models.Termination { return models.TerminationMaxAccept }

// MaxIterCondition holds once step ≥ maxIter
type MaxIterCondition struct{}

func (MaxIterCondition) Check(s *State) bool { return s.Step >= s.Settings.MaxIter }

func (MaxIterCondition) Reason() models.Termination { return models.TerminationMaxIter }

// DefaultConditions returns the three stop conditions in the order used to name the
// termination when several hold at once
func DefaultConditions() []TerminationCondition {
	return []TerminationCondition{ConvergedCondition{}, MaxAcceptCondition{}, MaxIterCondition{}}
}

// CheckTermination returns the reason of the first condition that holds, or
// models.TerminationNone
func CheckTermination(s *State, conditions []TerminationCondition) models.Termination {
	for _, c := range conditions {
		if c.Check(s) {
			return c.Reason()
		}
	}
	return models.TerminationNone
}
