package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-console/internal/config"
	"github.com/spec-kit/support-console/internal/events"
	"github.com/spec-kit/support-console/internal/observability"
)

// NotificationService mirrors ticket updates into logs, metrics and the
// optional console webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every update type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, updateType := range []events.UpdateType{
		events.UpdateTicketCreated,
		events.UpdateTicketAccepted,
		events.UpdateTicketRejected,
		events.UpdateTicketResolved,
		events.UpdateTicketReopened,
		events.UpdateMessageAdded,
	} {
		n.dispatcher.Subscribe(updateType, n.handleUpdate)
	}
}

func (n *NotificationService) handleUpdate(ctx context.Context, update events.TicketUpdate) error {
	n.metrics.RecordTicketUpdate(string(update.UpdateType))
	n.logger.Info("ticket update",
		zap.String("ticket_id", update.TicketID),
		zap.String("update_type", string(update.UpdateType)),
		zap.String("actor", update.Actor.ID))
	n.sendWebhookNotificationStub(ctx, update)
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, update events.TicketUpdate) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", update.TicketID),
		zap.String("update_type", string(update.UpdateType)))
}
