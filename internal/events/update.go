package events

import (
	"context"
	"time"

	"github.com/spec-kit/support-console/internal/domain"
)

// UpdateType enumerates the mutations announced to administrative clients.
type UpdateType string

const (
	UpdateTicketCreated  UpdateType = "created"
	UpdateTicketAccepted UpdateType = "accepted"
	UpdateTicketRejected UpdateType = "rejected"
	UpdateTicketResolved UpdateType = "resolved"
	UpdateTicketReopened UpdateType = "reopened"
	UpdateMessageAdded   UpdateType = "message_added"
)

// Actor identifies who triggered an update.
type Actor struct {
	SenderType  domain.SenderType `json:"sender_type"`
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name,omitempty"`
}

// TicketUpdate is published after every committed mutation. Snapshot carries
// the post-commit aggregate; subscribers treat it as "something changed,
// re-derive from snapshot", not as a delta stream.
type TicketUpdate struct {
	ID         string         `json:"id"`
	TicketID   string         `json:"ticket_id"`
	UpdateType UpdateType     `json:"update_type"`
	Actor      Actor          `json:"actor"`
	Timestamp  time.Time      `json:"timestamp"`
	Snapshot   *domain.Ticket `json:"snapshot"`
}

// Broadcaster publishes updates to the administrative subscribers channel.
// Delivery is best-effort, at-most-once; publication happens strictly after
// the store commit.
type Broadcaster interface {
	Publish(ctx context.Context, update TicketUpdate) error
}
