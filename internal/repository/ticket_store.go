package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/support-console/internal/domain"
)

// ErrNotFound is returned when no ticket matches the requested id.
var ErrNotFound = errors.New("ticket not found")

// TicketFilter captures console queue listing parameters.
type TicketFilter struct {
	RequesterID   *string
	AssignedAdmin *string
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int
	Offset        int
}

// TicketStore is the persistence contract for the ticket aggregate. It holds
// no business logic; transition guards live in the services. AcceptIfPending
// and PromoteIfAccepted must be indivisible test-and-set operations so the
// accept race and the first-admin-message promotion serialize correctly.
type TicketStore interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// GetByID loads the full aggregate snapshot including messages and
	// status history in chronological order.
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// List returns ticket summaries without thread contents.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// AcceptIfPending assigns the admin and moves the ticket to ACCEPTED
	// only if it is still PENDING. Returns false when another admin won.
	AcceptIfPending(ctx context.Context, ticketID, adminID string, at time.Time) (bool, error)
	// PromoteIfAccepted moves ACCEPTED to IN_PROGRESS; false if the ticket
	// left ACCEPTED in the meantime.
	PromoteIfAccepted(ctx context.Context, ticketID string) (bool, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	// UpdateWithHistory applies the ticket mutation and appends the status
	// history entry as one indivisible write: either both land or neither
	// does. A resolved or reopened ticket always carries its history row.
	UpdateWithHistory(ctx context.Context, ticket *domain.Ticket, entry *domain.StatusHistoryEntry) error
	// AppendMessageIfMessageable appends only while the ticket is ACCEPTED
	// or IN_PROGRESS, re-checking the status inside the write itself.
	// Returns false when the ticket left a messageable state.
	AppendMessageIfMessageable(ctx context.Context, msg *domain.Message) (bool, error)
}
