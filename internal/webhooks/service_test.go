package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/varejolabs/loja-backend/internal/payments"
	"github.com/varejolabs/loja-backend/pkg/config"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
	"github.com/varejolabs/loja-backend/pkg/mercadopago"
)

type stubReconciler struct {
	calls  []string
	result *payments.Result
	err    error
}

func (s *stubReconciler) ReconcileByPaymentID(ctx context.Context, paymentID string, trigger string) (*payments.Result, error) {
	s.calls = append(s.calls, paymentID)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubIdempotency struct {
	seen    map[string]bool
	deleted []string
	setErr  error
}

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{seen: map[string]bool{}}
}

func (s *stubIdempotency) Get(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (s *stubIdempotency) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.setErr != nil {
		return false, s.setErr
	}
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *stubIdempotency) IdempotencyKey(scope, id string) string {
	return "loja:idempotency:" + scope + ":" + id
}

func (s *stubIdempotency) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.seen, key)
		s.deleted = append(s.deleted, key)
	}
	return nil
}

func paymentEvent(id int64, paymentID string) mercadopago.WebhookEvent {
	event := mercadopago.WebhookEvent{
		ID:     id,
		Type:   "payment",
		Action: "payment.updated",
	}
	event.Data.ID = paymentID
	return event
}

func newWebhookService(t *testing.T, rec *stubReconciler, idem *stubIdempotency) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Reconciler:  rec,
		Idempotency: idem,
		Webhook:     config.WebhookConfig{EventTTL: time.Hour},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestProcessEventReconcilesPayment(t *testing.T) {
	rec := &stubReconciler{result: &payments.Result{Outcome: payments.OutcomeNewlyPaid}}
	svc := newWebhookService(t, rec, newStubIdempotency())

	result, err := svc.ProcessEvent(context.Background(), paymentEvent(100, "555001"))
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if result == nil || result.Outcome != payments.OutcomeNewlyPaid {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "555001" {
		t.Fatalf("unexpected reconciler calls %v", rec.calls)
	}
}

func TestProcessEventDropsDuplicates(t *testing.T) {
	rec := &stubReconciler{result: &payments.Result{Outcome: payments.OutcomeNewlyPaid}}
	svc := newWebhookService(t, rec, newStubIdempotency())

	event := paymentEvent(100, "555001")
	if _, err := svc.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("first ProcessEvent: %v", err)
	}
	result, err := svc.ProcessEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("second ProcessEvent: %v", err)
	}
	if result != nil {
		t.Fatalf("duplicate must be dropped, got %+v", result)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected a single reconcile, got %d", len(rec.calls))
	}
}

func TestProcessEventReleasesGuardOnFailure(t *testing.T) {
	rec := &stubReconciler{err: errors.New("gateway down")}
	idem := newStubIdempotency()
	svc := newWebhookService(t, rec, idem)

	event := paymentEvent(100, "555001")
	if _, err := svc.ProcessEvent(context.Background(), event); err == nil {
		t.Fatal("expected processing error")
	}
	if len(idem.deleted) != 1 {
		t.Fatalf("expected guard released, deleted=%v", idem.deleted)
	}

	// The gateway retry can now reprocess the same event.
	rec.err = nil
	rec.result = &payments.Result{Outcome: payments.OutcomeNoChange}
	result, err := svc.ProcessEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("retry ProcessEvent: %v", err)
	}
	if result == nil {
		t.Fatal("expected retry to run")
	}
}

func TestProcessEventIgnoresNonPayment(t *testing.T) {
	rec := &stubReconciler{}
	svc := newWebhookService(t, rec, newStubIdempotency())

	event := mercadopago.WebhookEvent{Type: "plan", Action: "created"}
	result, err := svc.ProcessEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if result != nil || len(rec.calls) != 0 {
		t.Fatal("non-payment events must be ignored")
	}
}

func TestProcessEventSucceedsWhenRedisDown(t *testing.T) {
	rec := &stubReconciler{result: &payments.Result{Outcome: payments.OutcomeNoChange}}
	idem := newStubIdempotency()
	idem.setErr = errors.New("redis down")
	svc := newWebhookService(t, rec, idem)

	result, err := svc.ProcessEvent(context.Background(), paymentEvent(100, "555001"))
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if result == nil || len(rec.calls) != 1 {
		t.Fatal("expected reconcile to run despite redis failure")
	}
}

func TestProcessEventAcksUnresolvableReference(t *testing.T) {
	rec := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	idem := newStubIdempotency()
	svc := newWebhookService(t, rec, idem)

	result, err := svc.ProcessEvent(context.Background(), paymentEvent(1, "999"))
	if err != nil {
		t.Fatalf("unresolvable reference should ack, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
	if len(idem.deleted) != 0 {
		t.Fatalf("guard should stay set for unresolvable events, deleted %v", idem.deleted)
	}

	// The replay is now a duplicate and never reaches the reconciler.
	if _, err := svc.ProcessEvent(context.Background(), paymentEvent(1, "999")); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected one reconciler call, got %d", len(rec.calls))
	}
}
