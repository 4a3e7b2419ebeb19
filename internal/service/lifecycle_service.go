package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-console/internal/domain"
	"github.com/spec-kit/support-console/internal/events"
	"github.com/spec-kit/support-console/internal/repository"
	apperrors "github.com/spec-kit/support-console/pkg/util"
)

// LifecycleService enforces the ticket state machine. Every transition is a
// short unit of work: guard, single aggregate write, post-commit broadcast.
type LifecycleService struct {
	store       repository.TicketStore
	broadcaster events.Broadcaster
	logger      *zap.Logger
}

// LifecycleDependencies bundles collaborators for the service.
type LifecycleDependencies struct {
	Store       repository.TicketStore
	Broadcaster events.Broadcaster
	Logger      *zap.Logger
}

// TicketCreateInput describes the intake payload.
type TicketCreateInput struct {
	Subject  string
	Category string
	Priority domain.TicketPriority
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		store:       deps.Store,
		broadcaster: deps.Broadcaster,
		logger:      deps.Logger,
	}
}

// CreateTicket records a new request in PENDING on behalf of the intake
// boundary. The store assigns id and creation time.
func (s *LifecycleService) CreateTicket(ctx context.Context, requesterID string, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError("subject required", nil)
	}

	ticket := &domain.Ticket{
		RequesterID: requesterID,
		Subject:     subject,
		Category:    strings.TrimSpace(input.Category),
		Priority:    input.Priority,
		Status:      domain.TicketStatusPending,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	if err := s.store.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishUpdate(ctx, events.UpdateTicketCreated, requesterActor(requesterID), ticket.ID)
	return ticket, nil
}

// Accept claims a PENDING ticket for the given administrator. The claim is a
// single conditional update against the store, so of two concurrent accepts
// exactly one wins; the loser gets ALREADY_ACCEPTED and never overwrites the
// winner's assignment.
func (s *LifecycleService) Accept(ctx context.Context, adminID, adminName, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	switch ticket.Status {
	case domain.TicketStatusPending:
		// attempt the claim below
	case domain.TicketStatusAccepted, domain.TicketStatusInProgress:
		return nil, apperrors.NewAlreadyAccepted(ticketID)
	default:
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), "accept")
	}

	won, err := s.store.AcceptIfPending(ctx, ticketID, adminID, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, err
	}
	if !won {
		return nil, apperrors.NewAlreadyAccepted(ticketID)
	}

	s.publishUpdate(ctx, events.UpdateTicketAccepted, adminActor(adminID, adminName), ticketID)
	return s.getTicket(ctx, ticketID)
}

// Reject closes a PENDING ticket without assignment. Terminal: rejected
// tickets have no reopen path. The reason lands on the ticket only, never
// in the status history.
func (s *LifecycleService) Reject(ctx context.Context, adminID, adminName, ticketID, reason string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusPending {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), "reject")
	}

	ticket.Status = domain.TicketStatusRejected
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		ticket.RejectReason = &trimmed
	}
	if err := s.store.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, events.UpdateTicketRejected, adminActor(adminID, adminName), ticketID)
	return ticket, nil
}

// Resolve finishes an ACCEPTED or IN_PROGRESS ticket and appends the
// structured RESOLVED history entry.
func (s *LifecycleService) Resolve(ctx context.Context, adminID, adminName, ticketID, resolution string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsMessageable() {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), "resolve")
	}

	now := time.Now()
	trimmed := strings.TrimSpace(resolution)
	ticket.Status = domain.TicketStatusResolved
	if trimmed != "" {
		ticket.Resolution = &trimmed
	}
	entry := &domain.StatusHistoryEntry{
		TicketID:        ticketID,
		Status:          domain.HistoryStatusResolved,
		PerformedBy:     &adminID,
		PerformedByName: adminName,
		Timestamp:       now,
	}
	if trimmed != "" {
		entry.Reason = &trimmed
	}
	// one atomic write: a ticket is never RESOLVED without its history row
	if err := s.store.UpdateWithHistory(ctx, ticket, entry); err != nil {
		return nil, err
	}
	ticket.StatusHistory = append(ticket.StatusHistory, *entry)

	s.publishUpdate(ctx, events.UpdateTicketResolved, adminActor(adminID, adminName), ticketID)
	return ticket, nil
}

// Reopen returns a RESOLVED ticket to ACCEPTED and appends the REOPENED
// history entry. When an admin id is supplied the ticket is reassigned to
// that administrator.
func (s *LifecycleService) Reopen(ctx context.Context, adminID *string, adminName, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusResolved {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), "reopen")
	}

	now := time.Now()
	ticket.Status = domain.TicketStatusAccepted
	ticket.Resolution = nil
	if adminID != nil {
		ticket.AssignedAdmin = adminID
	}
	entry := &domain.StatusHistoryEntry{
		TicketID:        ticketID,
		Status:          domain.HistoryStatusReopened,
		PerformedBy:     adminID,
		PerformedByName: adminName,
		Timestamp:       now,
	}
	if err := s.store.UpdateWithHistory(ctx, ticket, entry); err != nil {
		return nil, err
	}
	ticket.StatusHistory = append(ticket.StatusHistory, *entry)

	actor := events.Actor{SenderType: domain.SenderTypeAdmin, DisplayName: adminName}
	if adminID != nil {
		actor.ID = *adminID
	}
	s.publishUpdate(ctx, events.UpdateTicketReopened, actor, ticketID)
	return ticket, nil
}

// GetSnapshot returns the full aggregate for presentation.
func (s *LifecycleService) GetSnapshot(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.getTicket(ctx, ticketID)
}

// ListTickets returns summaries matching the console queue filter.
func (s *LifecycleService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.store.List(ctx, filter)
}

func (s *LifecycleService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, err
	}
	return ticket, nil
}

// publishUpdate broadcasts after the commit. Failures are logged, never
// escalated; the committed state is the source of truth.
func (s *LifecycleService) publishUpdate(ctx context.Context, updateType events.UpdateType, actor events.Actor, ticketID string) {
	if s.broadcaster == nil {
		return
	}
	snapshot, err := s.store.GetByID(ctx, ticketID)
	if err != nil {
		s.logger.Warn("broadcast snapshot load failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	update := events.TicketUpdate{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		UpdateType: updateType,
		Actor:      actor,
		Timestamp:  time.Now(),
		Snapshot:   snapshot,
	}
	if err := s.broadcaster.Publish(ctx, update); err != nil {
		s.logger.Warn("broadcast failed",
			zap.String("ticket_id", ticketID),
			zap.String("update_type", string(updateType)),
			zap.Error(err))
	}
}

func adminActor(adminID, adminName string) events.Actor {
	return events.Actor{SenderType: domain.SenderTypeAdmin, ID: adminID, DisplayName: adminName}
}

func requesterActor(requesterID string) events.Actor {
	return events.Actor{SenderType: domain.SenderTypeRequester, ID: requesterID}
}
