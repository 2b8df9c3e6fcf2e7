//go:build integration

package stream_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"dppengine/internal/passport"
	"dppengine/internal/provenance/stream"
	"dppengine/pkg/testutil/containers"
)

const testTopic = "dpp.provenance.test"

type KafkaSinkSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.redpanda = containers.NewRedpandaContainer(s.T())
}

func (s *KafkaSinkSuite) consumer() *kgo.Client {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	s.T().Cleanup(client.Close)
	return client
}

func (s *KafkaSinkSuite) poll(client *kgo.Client) []*kgo.Record {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fetches := client.PollFetches(ctx)
	s.Require().NoError(fetches.Err())
	return fetches.Records()
}

func (s *KafkaSinkSuite) TestPublishKeyedByRecordID() {
	ctx := context.Background()

	sink, err := stream.NewKafkaSink(ctx, []string{s.redpanda.Broker}, testTopic)
	s.Require().NoError(err)
	defer sink.Close()

	event := passport.ProvenanceEvent{
		ID:        "ev-1",
		StepName:  "Custody Update",
		ActorID:   "did:example:carrier-9",
		Timestamp: "2025-06-01T09:00:00Z",
		Location:  "Hamburg",
	}
	s.Require().NoError(sink.Publish(ctx, stream.Message{RecordID: "DPP001", Event: event}))

	records := s.poll(s.consumer())
	s.Require().Len(records, 1)
	s.Equal("DPP001", string(records[0].Key))

	var msg stream.Message
	s.Require().NoError(json.Unmarshal(records[0].Value, &msg))
	s.Equal(event, msg.Event)
}

// Connecting twice must tolerate the topic already existing.
func (s *KafkaSinkSuite) TestEnsureTopicIsIdempotent() {
	ctx := context.Background()

	sink, err := stream.NewKafkaSink(ctx, []string{s.redpanda.Broker}, testTopic)
	s.Require().NoError(err)
	sink.Close()

	sink, err = stream.NewKafkaSink(ctx, []string{s.redpanda.Broker}, testTopic)
	s.Require().NoError(err)
	sink.Close()
}

func (s *KafkaSinkSuite) TestPublisherDeliversEndToEnd() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink, err := stream.NewKafkaSink(ctx, []string{s.redpanda.Broker}, testTopic)
	s.Require().NoError(err)

	pub := stream.NewPublisher(sink)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pub.Run(ctx)
	}()

	pub.Enqueue("DPP002", passport.ProvenanceEvent{
		ID:        "ev-2",
		StepName:  "Ownership Transfer",
		ActorID:   "did:example:owner-2",
		Timestamp: "2025-06-01T11:00:00Z",
	})

	consumer := s.consumer()
	deadline := time.Now().Add(30 * time.Second)
	for {
		records := s.poll(consumer)
		found := false
		for _, r := range records {
			if string(r.Key) == "DPP002" {
				found = true
			}
		}
		if found {
			break
		}
		if time.Now().After(deadline) {
			s.FailNow("event was not delivered to the topic")
		}
	}

	cancel()
	<-done
}
