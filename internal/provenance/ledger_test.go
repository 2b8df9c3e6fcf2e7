package provenance

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dppengine/internal/passport"
	"dppengine/pkg/dpperrors"
)

type LedgerSuite struct {
	suite.Suite
	ledger *Ledger
	record passport.Record
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	seq := 0
	s.ledger = NewLedger(WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("ev-%d", seq)
	}))
	s.record = passport.Record{
		ID:        "DPP001",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *LedgerSuite) TestAppendCustodyStep() {
	s.Run("appends with required fields", func() {
		event, err := s.ledger.AppendCustodyStep(&s.record, CustodyStep{
			ActorID:   "did:example:alice",
			Timestamp: "2026-02-01T10:00:00Z",
			Location:  "Hamburg",
		})
		s.Require().NoError(err)
		s.Equal(StepCustodyUpdate, event.StepName)
		s.Equal("ev-1", event.ID)
		s.Len(s.record.Provenance, 1)
		s.Equal(event, s.record.Provenance[0])
	})

	s.Run("missing actorId", func() {
		_, err := s.ledger.AppendCustodyStep(&s.record, CustodyStep{Timestamp: "2026-02-01T10:00:00Z"})
		s.Require().Error(err)
		s.True(dpperrors.Is(err, dpperrors.CodeValidation))
	})

	s.Run("missing timestamp", func() {
		_, err := s.ledger.AppendCustodyStep(&s.record, CustodyStep{ActorID: "did:example:alice"})
		s.Require().Error(err)
		s.True(dpperrors.Is(err, dpperrors.CodeValidation))
	})

	s.Run("failed appends leave the ledger unchanged", func() {
		s.Len(s.record.Provenance, 1)
	})
}

func (s *LedgerSuite) TestAppendOwnershipTransfer() {
	event, err := s.ledger.AppendOwnershipTransfer(&s.record, CustodyStep{
		ActorID:         "did:example:bob",
		Timestamp:       "2026-02-02T09:00:00Z",
		TransactionHash: "0xabc",
	})
	s.Require().NoError(err)
	s.Equal(StepOwnershipTransfer, event.StepName)
	s.Equal("0xabc", event.TransactionHash)
}

func (s *LedgerSuite) TestAppendLifecycleEvent() {
	s.Run("requires eventType", func() {
		_, err := s.ledger.AppendLifecycleEvent(&s.record, LifecycleEvent{Timestamp: "2026-02-03T08:00:00Z"})
		s.Require().Error(err)
		s.True(dpperrors.Is(err, dpperrors.CodeValidation))
	})

	s.Run("appends with details", func() {
		event, err := s.ledger.AppendLifecycleEvent(&s.record, LifecycleEvent{
			EventType:        "Repair",
			Timestamp:        "2026-02-03T08:00:00Z",
			Details:          map[string]any{"component": "cell pack"},
			ResponsibleParty: "did:example:service-center",
		})
		s.Require().NoError(err)
		s.Equal("Repair", event.StepName)
		s.Equal("did:example:service-center", event.ActorID)
	})
}

// Append-only: after any sequence of appends, previously stored entries remain
// identical and in the same relative positions.
func (s *LedgerSuite) TestAppendOnly() {
	timestamps := []string{
		"2026-02-01T10:00:00Z",
		"2026-02-02T10:00:00Z",
		"2026-02-03T10:00:00Z",
	}
	var snapshots [][]passport.ProvenanceEvent
	for _, ts := range timestamps {
		_, err := s.ledger.AppendCustodyStep(&s.record, CustodyStep{ActorID: "did:example:alice", Timestamp: ts})
		s.Require().NoError(err)
		snapshots = append(snapshots, append([]passport.ProvenanceEvent(nil), s.record.Provenance...))
	}

	s.Len(s.record.Provenance, len(timestamps))
	for i, snapshot := range snapshots {
		s.Equal(snapshot, s.record.Provenance[:i+1], "prefix after append %d must be preserved verbatim", i+1)
	}
}
