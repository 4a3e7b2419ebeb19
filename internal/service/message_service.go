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

// MessageService appends thread messages and drives the implicit
// ACCEPTED -> IN_PROGRESS promotion on the first admin reply.
type MessageService struct {
	store       repository.TicketStore
	broadcaster events.Broadcaster
	logger      *zap.Logger
}

// MessageDependencies bundles collaborators for the service.
type MessageDependencies struct {
	Store       repository.TicketStore
	Broadcaster events.Broadcaster
	Logger      *zap.Logger
}

// NewMessageService constructs the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	return &MessageService{
		store:       deps.Store,
		broadcaster: deps.Broadcaster,
		logger:      deps.Logger,
	}
}

// PostMessage appends a message to an ACCEPTED or IN_PROGRESS ticket. Any
// administrator with console access may post, not only the assignee. When
// an admin posts while the ticket is still ACCEPTED, the status advances to
// IN_PROGRESS through a conditional store update.
func (m *MessageService) PostMessage(ctx context.Context, ticketID string, senderType domain.SenderType, senderID, senderName, text string) (*domain.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, apperrors.NewEmptyMessage()
	}

	ticket, err := m.store.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, err
	}
	if !ticket.IsMessageable() {
		return nil, apperrors.NewNotMessageable(string(ticket.Status))
	}

	msg := &domain.Message{
		TicketID:          ticketID,
		SenderType:        senderType,
		SenderID:          senderID,
		SenderDisplayName: senderName,
		Text:              trimmed,
		Timestamp:         time.Now(),
	}
	appended, err := m.store.AppendMessageIfMessageable(ctx, msg)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, err
	}
	if !appended {
		// the ticket left its messageable state between the read above and
		// the write; report the current status
		current, err := m.store.GetByID(ctx, ticketID)
		if err != nil {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, apperrors.NewNotMessageable(string(current.Status))
	}

	if senderType == domain.SenderTypeAdmin && ticket.Status == domain.TicketStatusAccepted {
		promoted, err := m.store.PromoteIfAccepted(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		if !promoted {
			// a concurrent admin reply already advanced it
			m.logger.Debug("promotion skipped", zap.String("ticket_id", ticketID))
		}
	}

	m.publishMessageAdded(ctx, ticketID, msg)
	return msg, nil
}

func (m *MessageService) publishMessageAdded(ctx context.Context, ticketID string, msg *domain.Message) {
	if m.broadcaster == nil {
		return
	}
	snapshot, err := m.store.GetByID(ctx, ticketID)
	if err != nil {
		m.logger.Warn("broadcast snapshot load failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	update := events.TicketUpdate{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		UpdateType: events.UpdateMessageAdded,
		Actor: events.Actor{
			SenderType:  msg.SenderType,
			ID:          msg.SenderID,
			DisplayName: msg.SenderDisplayName,
		},
		Timestamp: time.Now(),
		Snapshot:  snapshot,
	}
	if err := m.broadcaster.Publish(ctx, update); err != nil {
		m.logger.Warn("broadcast failed",
			zap.String("ticket_id", ticketID),
			zap.String("update_type", string(events.UpdateMessageAdded)),
			zap.Error(err))
	}
}
