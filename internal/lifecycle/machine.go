// Package lifecycle enforces legal stage transitions for a passport record.
// The machine is pure and in-memory: the owning mutation path is responsible
// for writing the resulting stage back to the store.
package lifecycle

import (
	"fmt"

	"dppengine/pkg/dpperrors"
)

// Stage is a lifecycle stage of a product passport.
type Stage string

const (
	StageDesign           Stage = "DESIGN"
	StageManufacturing    Stage = "MANUFACTURING"
	StageQualityAssurance Stage = "QUALITY_ASSURANCE"
	StageDistribution     Stage = "DISTRIBUTION"
	StageInUse            Stage = "IN_USE"
	StageMaintenance      Stage = "MAINTENANCE"
	StageEndOfLife        Stage = "END_OF_LIFE"
)

// transitions is the canonical edge table. MAINTENANCE branches from IN_USE
// and can return; END_OF_LIFE is terminal.
var transitions = map[Stage][]Stage{
	StageDesign:           {StageManufacturing},
	StageManufacturing:    {StageQualityAssurance},
	StageQualityAssurance: {StageDistribution},
	StageDistribution:     {StageInUse},
	StageInUse:            {StageMaintenance, StageEndOfLife},
	StageMaintenance:      {StageInUse},
	StageEndOfLife:        {},
}

// Stages lists every known stage in lifecycle order.
func Stages() []Stage {
	return []Stage{
		StageDesign,
		StageManufacturing,
		StageQualityAssurance,
		StageDistribution,
		StageInUse,
		StageMaintenance,
		StageEndOfLife,
	}
}

// Valid reports whether s is a known stage.
func Valid(s Stage) bool {
	_, ok := transitions[s]
	return ok
}

// InvalidTransitionError carries both ends of a rejected move for diagnostics.
type InvalidTransitionError struct {
	From Stage
	To   Stage
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition from %s to %s", e.From, e.To)
}

// Machine validates and applies stage transitions. The zero value is not
// usable; construct with NewMachine.
type Machine struct {
	current Stage
}

// NewMachine returns a machine positioned at the given stage. Unknown stages
// are rejected so a corrupted record cannot silently gain transitions.
func NewMachine(current Stage) (*Machine, error) {
	if !Valid(current) {
		return nil, dpperrors.Newf(dpperrors.CodeValidation, "unknown lifecycle stage %q", current)
	}
	return &Machine{current: current}, nil
}

// Current returns the machine's stage. No side effects.
func (m *Machine) Current() Stage {
	return m.current
}

// CanTransition reports whether next is reachable from the current stage.
// Never returns an error; unknown targets are simply unreachable.
func (m *Machine) CanTransition(next Stage) bool {
	for _, allowed := range transitions[m.current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition applies the move iff CanTransition allows it. On rejection the
// stage is left unchanged and the returned error wraps an
// InvalidTransitionError identifying both stages.
func (m *Machine) Transition(next Stage) error {
	if !m.CanTransition(next) {
		return dpperrors.Wrap(
			dpperrors.CodeInvalidTransition,
			"lifecycle transition rejected",
			&InvalidTransitionError{From: m.current, To: next},
		)
	}
	m.current = next
	return nil
}
