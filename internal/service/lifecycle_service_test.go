package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/support-console/internal/domain"
	"github.com/spec-kit/support-console/internal/events"
	"github.com/spec-kit/support-console/internal/repository"
	apperrors "github.com/spec-kit/support-console/pkg/util"
)

type captureBroadcaster struct {
	mu      sync.Mutex
	updates []events.TicketUpdate
}

func (c *captureBroadcaster) Publish(ctx context.Context, update events.TicketUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, update)
	return nil
}

func (c *captureBroadcaster) byType(updateType events.UpdateType) []events.TicketUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result []events.TicketUpdate
	for _, update := range c.updates {
		if update.UpdateType == updateType {
			result = append(result, update)
		}
	}
	return result
}

type testEnv struct {
	store     repository.TicketStore
	broadcast *captureBroadcaster
	lifecycle *LifecycleService
	messages  *MessageService
}

func newTestEnv() *testEnv {
	store := repository.NewMemoryTicketStore()
	broadcast := &captureBroadcaster{}
	logger := zap.NewNop()
	return &testEnv{
		store:     store,
		broadcast: broadcast,
		lifecycle: NewLifecycleService(LifecycleDependencies{
			Store:       store,
			Broadcaster: broadcast,
			Logger:      logger,
		}),
		messages: NewMessageService(MessageDependencies{
			Store:       store,
			Broadcaster: broadcast,
			Logger:      logger,
		}),
	}
}

func (e *testEnv) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := e.lifecycle.CreateTicket(context.Background(), "user-1", TicketCreateInput{
		Subject:  "printer on fire",
		Category: "hardware",
	})
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	return ticket
}

func TestCreateTicketStartsPending(t *testing.T) {
	env := newTestEnv()
	ticket := env.createTicket(t)

	if ticket.Status != domain.TicketStatusPending {
		t.Fatalf("expected PENDING, got %s", ticket.Status)
	}
	if ticket.AssignedAdmin != nil {
		t.Fatalf("expected no assigned admin, got %v", *ticket.AssignedAdmin)
	}
	if ticket.ID == "" || ticket.CreatedAt.IsZero() {
		t.Fatalf("expected store-assigned id and creation time")
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Fatalf("expected default MEDIUM priority, got %s", ticket.Priority)
	}
}

func TestAcceptAssignsAdmin(t *testing.T) {
	env := newTestEnv()
	ticket := env.createTicket(t)

	accepted, err := env.lifecycle.Accept(context.Background(), "admin-1", "Alice", ticket.ID)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if accepted.Status != domain.TicketStatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", accepted.Status)
	}
	if accepted.AssignedAdmin == nil || *accepted.AssignedAdmin != "admin-1" {
		t.Fatalf("expected assigned admin admin-1, got %v", accepted.AssignedAdmin)
	}
	if accepted.AcceptedAt == nil {
		t.Fatalf("expected acceptedAt to be set")
	}
	if got := env.broadcast.byType(events.UpdateTicketAccepted); len(got) != 1 {
		t.Fatalf("expected 1 accepted broadcast, got %d", len(got))
	}
}

func TestAcceptExclusivity(t *testing.T) {
	env := newTestEnv()
	ticket := env.createTicket(t)

	admins := []string{"admin-1", "admin-2"}
	results := make([]error, len(admins))
	var wg sync.WaitGroup
	for i, adminID := range admins {
		wg.Add(1)
		go func(i int, adminID string) {
			defer wg.Done()
			_, results[i] = env.lifecycle.Accept(context.Background(), adminID, adminID, ticket.ID)
		}(i, adminID)
	}
	wg.Wait()

	var winner string
	losses := 0
	for i, err := range results {
		switch {
		case err == nil:
			winner = admins[i]
		case apperrors.HasCode(err, apperrors.CodeAlreadyAccepted):
			losses++
		default:
			t.Fatalf("unexpected error for %s: %v", admins[i], err)
		}
	}
	if winner == "" || losses != 1 {
		t.Fatalf("expected exactly one winner and one ALREADY_ACCEPTED, got winner=%q losses=%d", winner, losses)
	}

	snapshot, err := env.lifecycle.GetSnapshot(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if snapshot.AssignedAdmin == nil || *snapshot.AssignedAdmin != winner {
		t.Fatalf("expected assignment to stay with winner %s, got %v", winner, snapshot.AssignedAdmin)
	}
}

func TestAcceptOnTakenTicket(t *testing.T) {
	env := newTestEnv()
	ticket := env.createTicket(t)

	if _, err := env.lifecycle.Accept(context.Background(), "admin-1", "Alice", ticket.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	_, err := env.lifecycle.Accept(context.Background(), "admin-2", "Bob", ticket.ID)
	if !apperrors.HasCode(err, apperrors.CodeAlreadyAccepted) {
		t.Fatalf("expected ALREADY_ACCEPTED, got %v", err)
	}
}

func TestRejectRecordsReasonWithoutHistory(t *testing.T) {
	env := newTestEnv()
	ticket := env.createTicket(t)

	rejected, err := env.lifecycle.Reject(context.Background(), "admin-1", "Alice", ticket.ID, "duplicate request")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != domain.TicketStatusRejected {
		t.Fatalf("expected REJECTED, got %s", rejected.Status)
	}
	if rejected.RejectReason == nil || *rejected.RejectReason != "duplicate request" {
		t.Fatalf("expected reject reason on ticket, got %v", rejected.RejectReason)
	}

	snapshot, err := env.lifecycle.GetSnapshot(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if len(snapshot.StatusHistory) != 0 {
		t.Fatalf("rejection must not append status history, got %d entries", len(snapshot.StatusHistory))
	}
}

func TestResolveAppendsHistory(t *testing.T) {
	env := newTestEnv()
	ticket := env.createTicket(t)

	if _, err := env.lifecycle.Accept(context.Background(), "admin-1", "Alice", ticket.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	resolved, err := env.lifecycle.Resolve(context.Background(), "admin-1", "Alice", ticket.ID, "replaced toner")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Status != domain.TicketStatusResolved {
		t.Fatalf("expected RESOLVED, got %s", resolved.Status)
	}
	if resolved.Resolution == nil || *resolved.Resolution != "replaced toner" {
		t.Fatalf("expected resolution text, got %v", resolved.Resolution)
	}

	snapshot, _ := env.lifecycle.GetSnapshot(context.Background(), ticket.ID)
	if len(snapshot.StatusHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(snapshot.StatusHistory))
	}
	entry := snapshot.StatusHistory[0]
	if entry.Status != domain.HistoryStatusResolved {
		t.Fatalf("expected RESOLVED history entry, got %s", entry.Status)
	}
	if entry.PerformedBy == nil || *entry.PerformedBy != "admin-1" {
		t.Fatalf("expected performedBy admin-1, got %v", entry.PerformedBy)
	}
}

func TestResolveFromInProgress(t *testing.T) {
	env := newTestEnv()
	ticket := env.createTicket(t)

	if _, err := env.lifecycle.Accept(context.Background(), "admin-1", "Alice", ticket.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if _, err := env.messages.PostMessage(context.Background(), ticket.ID, domain.SenderTypeAdmin, "admin-1", "Alice", "on it"); err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if _, err := env.lifecycle.Resolve(context.Background(), "admin-1", "Alice", ticket.ID, "done"); err != nil {
		t.Fatalf("Resolve from IN_PROGRESS failed: %v", err)
	}
}

func TestReopenReturnsToAccepted(t *testing.T) {
	env := newTestEnv()
	ticket := env.createTicket(t)

	if _, err := env.lifecycle.Accept(context.Background(), "admin-1", "Alice", ticket.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if _, err := env.lifecycle.Resolve(context.Background(), "admin-1", "Alice", ticket.ID, "done"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	adminID := "admin-2"
	reopened, err := env.lifecycle.Reopen(context.Background(), &adminID, "Bob", ticket.ID)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if reopened.Status != domain.TicketStatusAccepted {
		t.Fatalf("expected ACCEPTED after reopen, got %s", reopened.Status)
	}
	if reopened.AssignedAdmin == nil || *reopened.AssignedAdmin != "admin-2" {
		t.Fatalf("expected reassignment to admin-2, got %v", reopened.AssignedAdmin)
	}
	if reopened.Resolution != nil {
		t.Fatalf("expected resolution cleared on reopen")
	}

	snapshot, _ := env.lifecycle.GetSnapshot(context.Background(), ticket.ID)
	if len(snapshot.StatusHistory) != 2 {
		t.Fatalf("expected RESOLVED+REOPENED history, got %d entries", len(snapshot.StatusHistory))
	}
	if snapshot.StatusHistory[1].Status != domain.HistoryStatusReopened {
		t.Fatalf("expected REOPENED entry, got %s", snapshot.StatusHistory[1].Status)
	}
}

func TestTransitionClosure(t *testing.T) {
	type attempt struct {
		name string
		run  func(env *testEnv, ticketID string) error
	}
	resolve := attempt{"resolve", func(env *testEnv, id string) error {
		_, err := env.lifecycle.Resolve(context.Background(), "admin-1", "Alice", id, "done")
		return err
	}}
	reopen := attempt{"reopen", func(env *testEnv, id string) error {
		adminID := "admin-1"
		_, err := env.lifecycle.Reopen(context.Background(), &adminID, "Alice", id)
		return err
	}}
	reject := attempt{"reject", func(env *testEnv, id string) error {
		_, err := env.lifecycle.Reject(context.Background(), "admin-1", "Alice", id, "no")
		return err
	}}
	accept := attempt{"accept", func(env *testEnv, id string) error {
		_, err := env.lifecycle.Accept(context.Background(), "admin-1", "Alice", id)
		return err
	}}

	cases := []struct {
		name    string
		prepare func(t *testing.T, env *testEnv, ticketID string)
		illegal []attempt
	}{
		{
			name:    "pending",
			prepare: func(t *testing.T, env *testEnv, id string) {},
			illegal: []attempt{resolve, reopen},
		},
		{
			name: "accepted",
			prepare: func(t *testing.T, env *testEnv, id string) {
				if _, err := env.lifecycle.Accept(context.Background(), "admin-9", "Zoe", id); err != nil {
					t.Fatalf("prepare accept failed: %v", err)
				}
			},
			illegal: []attempt{reject, reopen},
		},
		{
			name: "resolved",
			prepare: func(t *testing.T, env *testEnv, id string) {
				if _, err := env.lifecycle.Accept(context.Background(), "admin-9", "Zoe", id); err != nil {
					t.Fatalf("prepare accept failed: %v", err)
				}
				if _, err := env.lifecycle.Resolve(context.Background(), "admin-9", "Zoe", id, "done"); err != nil {
					t.Fatalf("prepare resolve failed: %v", err)
				}
			},
			illegal: []attempt{accept, reject, resolve},
		},
		{
			name: "rejected is terminal",
			prepare: func(t *testing.T, env *testEnv, id string) {
				if _, err := env.lifecycle.Reject(context.Background(), "admin-9", "Zoe", id, "no"); err != nil {
					t.Fatalf("prepare reject failed: %v", err)
				}
			},
			illegal: []attempt{accept, reject, resolve, reopen},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			ticket := env.createTicket(t)
			tc.prepare(t, env, ticket.ID)
			before, _ := env.lifecycle.GetSnapshot(context.Background(), ticket.ID)

			for _, att := range tc.illegal {
				err := att.run(env, ticket.ID)
				if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
					t.Errorf("%s from %s: expected INVALID_TRANSITION, got %v", att.name, tc.name, err)
				}
			}

			after, _ := env.lifecycle.GetSnapshot(context.Background(), ticket.ID)
			if after.Status != before.Status {
				t.Fatalf("illegal events must not move status: %s -> %s", before.Status, after.Status)
			}
		})
	}
}

func TestOperationsOnMissingTicket(t *testing.T) {
	env := newTestEnv()

	if _, err := env.lifecycle.Accept(context.Background(), "admin-1", "Alice", "no-such-id"); !apperrors.HasCode(err, apperrors.CodeTicketNotFound) {
		t.Fatalf("expected TICKET_NOT_FOUND, got %v", err)
	}
	if _, err := env.lifecycle.GetSnapshot(context.Background(), "no-such-id"); !apperrors.HasCode(err, apperrors.CodeTicketNotFound) {
		t.Fatalf("expected TICKET_NOT_FOUND, got %v", err)
	}
}

// flakyHistoryStore simulates the combined status+history write failing,
// as a dropped connection mid-transaction would.
type flakyHistoryStore struct {
	repository.TicketStore
	fail bool
}

func (s *flakyHistoryStore) UpdateWithHistory(ctx context.Context, ticket *domain.Ticket, entry *domain.StatusHistoryEntry) error {
	if s.fail {
		return errors.New("connection reset")
	}
	return s.TicketStore.UpdateWithHistory(ctx, ticket, entry)
}

func newFlakyEnv() (*flakyHistoryStore, *LifecycleService) {
	store := &flakyHistoryStore{TicketStore: repository.NewMemoryTicketStore()}
	lifecycle := NewLifecycleService(LifecycleDependencies{
		Store:       store,
		Broadcaster: &captureBroadcaster{},
		Logger:      zap.NewNop(),
	})
	return store, lifecycle
}

func TestResolveWriteFailureLeavesTicketUntouched(t *testing.T) {
	store, lifecycle := newFlakyEnv()
	ctx := context.Background()

	ticket, err := lifecycle.CreateTicket(ctx, "user-1", TicketCreateInput{Subject: "no network"})
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if _, err := lifecycle.Accept(ctx, "admin-1", "Alice", ticket.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	store.fail = true
	if _, err := lifecycle.Resolve(ctx, "admin-1", "Alice", ticket.ID, "done"); err == nil {
		t.Fatalf("expected Resolve to surface the write failure")
	}

	store.fail = false
	snapshot, err := lifecycle.GetSnapshot(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if snapshot.Status != domain.TicketStatusAccepted {
		t.Fatalf("failed resolve must not change status, got %s", snapshot.Status)
	}
	if snapshot.Resolution != nil {
		t.Fatalf("failed resolve must not persist a resolution, got %v", *snapshot.Resolution)
	}
	if len(snapshot.StatusHistory) != 0 {
		t.Fatalf("failed resolve must not append history, got %d entries", len(snapshot.StatusHistory))
	}
}

func TestReopenWriteFailureLeavesTicketResolved(t *testing.T) {
	store, lifecycle := newFlakyEnv()
	ctx := context.Background()

	ticket, err := lifecycle.CreateTicket(ctx, "user-1", TicketCreateInput{Subject: "no network"})
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if _, err := lifecycle.Accept(ctx, "admin-1", "Alice", ticket.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if _, err := lifecycle.Resolve(ctx, "admin-1", "Alice", ticket.ID, "done"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	store.fail = true
	adminID := "admin-2"
	if _, err := lifecycle.Reopen(ctx, &adminID, "Bob", ticket.ID); err == nil {
		t.Fatalf("expected Reopen to surface the write failure")
	}

	store.fail = false
	snapshot, _ := lifecycle.GetSnapshot(ctx, ticket.ID)
	if snapshot.Status != domain.TicketStatusResolved {
		t.Fatalf("failed reopen must leave the ticket RESOLVED, got %s", snapshot.Status)
	}
	if snapshot.Resolution == nil || *snapshot.Resolution != "done" {
		t.Fatalf("failed reopen must keep the resolution, got %v", snapshot.Resolution)
	}
	if len(snapshot.StatusHistory) != 1 {
		t.Fatalf("failed reopen must not append history, got %d entries", len(snapshot.StatusHistory))
	}
}

func TestBroadcastCarriesPostCommitSnapshot(t *testing.T) {
	env := newTestEnv()
	ticket := env.createTicket(t)

	if _, err := env.lifecycle.Accept(context.Background(), "admin-1", "Alice", ticket.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	updates := env.broadcast.byType(events.UpdateTicketAccepted)
	if len(updates) != 1 {
		t.Fatalf("expected 1 accepted broadcast, got %d", len(updates))
	}
	update := updates[0]
	if update.TicketID != ticket.ID {
		t.Fatalf("broadcast ticket id mismatch: %s", update.TicketID)
	}
	if update.Snapshot == nil || update.Snapshot.Status != domain.TicketStatusAccepted {
		t.Fatalf("broadcast must carry the committed state, got %+v", update.Snapshot)
	}
	if update.Actor.ID != "admin-1" {
		t.Fatalf("expected actor admin-1, got %s", update.Actor.ID)
	}
}
