package main

import (
	"context"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/varejolabs/loja-backend/pkg/config"
	"github.com/varejolabs/loja-backend/pkg/db/models"
	"github.com/varejolabs/loja-backend/pkg/enums"
	"github.com/varejolabs/loja-backend/pkg/logger"
)

type stubOutboxRepo struct {
	pending   []models.OutboxEvent
	published []int64
	failed    []int64
	fetchErr  error
}

func (s *stubOutboxRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *stubOutboxRepo) MarkPublished(id int64) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(id int64, cause error) error {
	s.failed = append(s.failed, id)
	return nil
}

type stubResult struct {
	err error
}

func (r *stubResult) Get(ctx context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "msg-1", nil
}

type stubPublisher struct {
	messages []*gcppubsub.Message
	errs     map[int]error
}

func (p *stubPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	index := len(p.messages)
	p.messages = append(p.messages, msg)
	if err, ok := p.errs[index]; ok {
		return &stubResult{err: err}
	}
	return &stubResult{}
}

func testConfig() *config.Config {
	return &config.Config{
		Outbox: config.OutboxConfig{
			BatchSize:      10,
			PollIntervalMS: 10,
			MaxAttempts:    3,
		},
	}
}

func pendingEvent(id int64) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   42,
		Payload:       []byte(`{"version":1,"eventId":"evt-1","occurredAt":"2026-08-01T10:00:00Z","data":{}}`),
		Status:        enums.OutboxPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func newPublisherService(t *testing.T, repo *stubOutboxRepo, pub *stubPublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:    testConfig(),
		Logger:    logger.New(logger.Options{ServiceName: "outbox-publisher-test"}),
		Repo:      repo,
		Publisher: pub,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	repo := &stubOutboxRepo{pending: []models.OutboxEvent{pendingEvent(1), pendingEvent(2)}}
	pub := &stubPublisher{}
	svc := newPublisherService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch processed")
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected 2 published, got %v", repo.published)
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(pub.messages))
	}
	attrs := pub.messages[0].Attributes
	if attrs["event_type"] != "order_paid" || attrs["aggregate_id"] != "42" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
	if attrs["event_id"] != "evt-1" {
		t.Fatalf("expected envelope event id forwarded, got %q", attrs["event_id"])
	}
}

func TestProcessBatchMarksFailureAndContinues(t *testing.T) {
	repo := &stubOutboxRepo{pending: []models.OutboxEvent{pendingEvent(1), pendingEvent(2)}}
	pub := &stubPublisher{errs: map[int]error{0: errors.New("topic unavailable")}}
	svc := newPublisherService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != 1 {
		t.Fatalf("expected event 1 marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != 2 {
		t.Fatalf("expected event 2 published, got %v", repo.published)
	}
}

func TestProcessBatchEmptyQueue(t *testing.T) {
	repo := &stubOutboxRepo{}
	svc := newPublisherService(t, repo, &stubPublisher{})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if processed {
		t.Fatal("expected idle batch")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := &stubOutboxRepo{}
	svc := newPublisherService(t, repo, &stubPublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
