package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"dppengine/pkg/dpperrors"
)

type MachineSuite struct {
	suite.Suite
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

// allowed mirrors the canonical edge table; the legality matrix below checks
// every (from, to) pair against it.
var allowed = map[Stage][]Stage{
	StageDesign:           {StageManufacturing},
	StageManufacturing:    {StageQualityAssurance},
	StageQualityAssurance: {StageDistribution},
	StageDistribution:     {StageInUse},
	StageInUse:            {StageMaintenance, StageEndOfLife},
	StageMaintenance:      {StageInUse},
	StageEndOfLife:        nil,
}

func permitted(from, to Stage) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *MachineSuite) TestLegalityMatrix() {
	for _, from := range Stages() {
		for _, to := range Stages() {
			m, err := NewMachine(from)
			s.Require().NoError(err)

			want := permitted(from, to)
			s.Equal(want, m.CanTransition(to), "%s -> %s", from, to)

			err = m.Transition(to)
			if want {
				s.NoError(err, "%s -> %s", from, to)
				s.Equal(to, m.Current())
			} else {
				s.Error(err, "%s -> %s", from, to)
				s.Equal(from, m.Current(), "failed transition must not move the stage")
			}
		}
	}
}

func (s *MachineSuite) TestEndOfLifeIsTerminal() {
	m, err := NewMachine(StageEndOfLife)
	s.Require().NoError(err)
	for _, to := range Stages() {
		s.False(m.CanTransition(to), "END_OF_LIFE -> %s", to)
	}
	s.False(m.CanTransition(StageEndOfLife), "terminal stage has no self loop")
}

func (s *MachineSuite) TestRejectionCarriesBothStages() {
	m, err := NewMachine(StageMaintenance)
	s.Require().NoError(err)

	err = m.Transition(StageDistribution)
	s.Require().Error(err)
	s.True(dpperrors.Is(err, dpperrors.CodeInvalidTransition))

	var ite *InvalidTransitionError
	s.Require().True(errors.As(err, &ite))
	s.Equal(StageMaintenance, ite.From)
	s.Equal(StageDistribution, ite.To)
}

func (s *MachineSuite) TestMaintenanceRoundTrip() {
	m, err := NewMachine(StageInUse)
	s.Require().NoError(err)

	s.Require().NoError(m.Transition(StageMaintenance))
	s.Equal(StageMaintenance, m.Current())

	err = m.Transition(StageDistribution)
	s.Require().Error(err)
	s.Equal(StageMaintenance, m.Current())

	s.Require().NoError(m.Transition(StageInUse))
	s.Equal(StageInUse, m.Current())
}

func (s *MachineSuite) TestUnknownStageRejected() {
	_, err := NewMachine(Stage("RECYCLING"))
	s.Require().Error(err)
	s.True(dpperrors.Is(err, dpperrors.CodeValidation))
}

func (s *MachineSuite) TestUnknownTargetUnreachable() {
	m, err := NewMachine(StageInUse)
	s.Require().NoError(err)
	s.False(m.CanTransition(Stage("RECYCLING")))
}
