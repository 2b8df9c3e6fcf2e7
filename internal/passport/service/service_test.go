package service_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dppengine/internal/lifecycle"
	"dppengine/internal/passport/service"
	"dppengine/internal/provenance"
	"dppengine/internal/provenance/stream"
	"dppengine/internal/store"
	"dppengine/pkg/dpperrors"
)

type memorySink struct {
	messages []stream.Message
}

func (m *memorySink) Publish(_ context.Context, msg stream.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memorySink) Close() {}

type ServiceSuite struct {
	suite.Suite

	now     time.Time
	store   *store.InMemoryRecordStore
	service *service.Service
	stream  *stream.Publisher
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.DiscardHandler)

	s.store = store.NewInMemoryRecordStore()
	s.Require().NoError(store.Seed(context.Background(), s.store, s.now))

	eventSeq := 0
	ledger := provenance.NewLedger(provenance.WithIDGenerator(func() string {
		eventSeq++
		return fmt.Sprintf("ev-%d", eventSeq)
	}))

	s.stream = stream.NewPublisher(&memorySink{}, stream.WithInboxSize(8))
	s.service = service.New(s.store, ledger, logger,
		service.WithClock(func() time.Time { return s.now }),
		service.WithIDGenerator(func() string { return "cert-1" }),
		service.WithStream(s.stream),
	)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestTransition() {
	ctx := context.Background()

	s.Run("legal move persists stage and stamps lastUpdated", func() {
		record, err := s.service.Transition(ctx, "DPP003", lifecycle.StageManufacturing)
		s.Require().NoError(err)
		s.Equal(lifecycle.StageManufacturing, record.LifecycleStage)
		s.Equal(s.now, record.LastUpdated)

		stored, err := s.store.Get(ctx, "DPP003")
		s.Require().NoError(err)
		s.Equal(lifecycle.StageManufacturing, stored.LifecycleStage)
	})

	s.Run("illegal move leaves the record untouched", func() {
		_, err := s.service.Transition(ctx, "DPP002", lifecycle.StageDesign)
		s.True(dpperrors.Is(err, dpperrors.CodeInvalidTransition))

		stored, err := s.store.Get(ctx, "DPP002")
		s.Require().NoError(err)
		s.Equal(lifecycle.StageDistribution, stored.LifecycleStage)
	})

	s.Run("unknown record", func() {
		_, err := s.service.Transition(ctx, "nope", lifecycle.StageManufacturing)
		s.True(dpperrors.Is(err, dpperrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestMaintenanceRoundTrip() {
	ctx := context.Background()

	record, err := s.service.Transition(ctx, "DPP001", lifecycle.StageMaintenance)
	s.Require().NoError(err)
	s.Equal(lifecycle.StageMaintenance, record.LifecycleStage)

	record, err = s.service.Transition(ctx, "DPP001", lifecycle.StageInUse)
	s.Require().NoError(err)
	s.Equal(lifecycle.StageInUse, record.LifecycleStage)
}

func (s *ServiceSuite) TestAddCustodyStep() {
	ctx := context.Background()

	event, err := s.service.AddCustodyStep(ctx, "DPP001", provenance.CustodyStep{
		ActorID:   "did:example:carrier-9",
		Timestamp: "2025-06-01T09:00:00Z",
		Location:  "Hamburg",
	})
	s.Require().NoError(err)
	s.Equal(provenance.StepCustodyUpdate, event.StepName)

	stored, err := s.store.Get(ctx, "DPP001")
	s.Require().NoError(err)
	s.Len(stored.Provenance, 2)
	s.Equal(s.now, stored.LastUpdated)
}

func (s *ServiceSuite) TestAppendValidationDoesNotTouchRecord() {
	ctx := context.Background()

	before, err := s.store.Get(ctx, "DPP001")
	s.Require().NoError(err)

	_, err = s.service.AddCustodyStep(ctx, "DPP001", provenance.CustodyStep{
		Timestamp: "2025-06-01T09:00:00Z",
	})
	s.True(dpperrors.Is(err, dpperrors.CodeValidation))

	after, err := s.store.Get(ctx, "DPP001")
	s.Require().NoError(err)
	s.Equal(before.LastUpdated, after.LastUpdated)
	s.Len(after.Provenance, len(before.Provenance))
}

func (s *ServiceSuite) TestTransferOwnership() {
	ctx := context.Background()

	event, err := s.service.TransferOwnership(ctx, "DPP001", provenance.CustodyStep{
		ActorID:         "did:example:owner-2",
		Timestamp:       "2025-06-01T11:00:00Z",
		TransactionHash: "0xabc123",
	})
	s.Require().NoError(err)
	s.Equal(provenance.StepOwnershipTransfer, event.StepName)
	s.Equal("0xabc123", event.TransactionHash)
}

func (s *ServiceSuite) TestAddLifecycleEvent() {
	ctx := context.Background()

	event, err := s.service.AddLifecycleEvent(ctx, "DPP001", provenance.LifecycleEvent{
		EventType:        "Maintenance Check",
		Timestamp:        "2025-06-01T10:00:00Z",
		ResponsibleParty: "did:example:service-2",
	})
	s.Require().NoError(err)
	s.Equal("Maintenance Check", event.StepName)
	s.Equal("did:example:service-2", event.ActorID)
}

func (s *ServiceSuite) TestAddCertification() {
	ctx := context.Background()

	s.Run("appends with generated id and timestamp", func() {
		cert, err := s.service.AddCertification(ctx, "DPP002", service.Certification{
			Name:        "CE Declaration",
			Issuer:      "TUV Nord",
			DocumentRef: "doc://ce-decl-2025",
		})
		s.Require().NoError(err)
		s.Equal("cert-1", cert.ID)
		s.Equal(s.now, cert.AddedAt)

		stored, err := s.store.Get(ctx, "DPP002")
		s.Require().NoError(err)
		s.Require().Len(stored.Certifications, 1)
		s.Equal("CE Declaration", stored.Certifications[0].Name)
	})

	s.Run("name is required", func() {
		_, err := s.service.AddCertification(ctx, "DPP002", service.Certification{Issuer: "x"})
		s.True(dpperrors.Is(err, dpperrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestList() {
	ctx := context.Background()

	s.Run("no filter returns everything", func() {
		records, err := s.service.List(ctx, service.Filter{})
		s.Require().NoError(err)
		s.Len(records, 3)
	})

	s.Run("status filter is case insensitive", func() {
		records, err := s.service.List(ctx, service.Filter{Status: "DRAFT"})
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal("DPP003", records[0].ID)
	})

	s.Run("query matches metadata name", func() {
		records, err := s.service.List(ctx, service.Filter{Query: "battery"})
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal("DPP001", records[0].ID)
	})

	s.Run("filters compose", func() {
		records, err := s.service.List(ctx, service.Filter{Status: "active", Stage: lifecycle.StageInUse})
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal("DPP001", records[0].ID)
	})
}

func (s *ServiceSuite) TestHistory() {
	ctx := context.Background()

	entries, err := s.service.History(ctx, "DPP001")
	s.Require().NoError(err)
	s.Require().NotEmpty(entries)
	s.Equal(provenance.EntryCreated, entries[len(entries)-1].Type)
}

func (s *ServiceSuite) TestComplianceWithoutCacheFallsBackToPureAggregate() {
	ctx := context.Background()

	summary, err := s.service.Compliance(ctx, "DPP001")
	s.Require().NoError(err)
	s.Equal("Pending Review", string(summary.Overall))
	s.Len(summary.Entries, 2)
}

func (s *ServiceSuite) TestComplianceUnknownRecord() {
	_, err := s.service.Compliance(context.Background(), "nope")
	s.True(dpperrors.Is(err, dpperrors.CodeNotFound))
}
