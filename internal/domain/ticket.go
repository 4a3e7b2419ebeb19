package domain

import "time"

// TicketStatus enumerates lifecycle states for support tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusAccepted   TicketStatus = "ACCEPTED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusRejected   TicketStatus = "REJECTED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for one support request and its full history.
// Messages and StatusHistory are append-only and chronologically ordered;
// all mutation goes through the lifecycle and message services.
type Ticket struct {
	ID            string
	RequesterID   string
	Subject       string
	Category      string
	Priority      TicketPriority
	Status        TicketStatus
	AssignedAdmin *string
	CreatedAt     time.Time
	AcceptedAt    *time.Time
	Resolution    *string
	RejectReason  *string
	Messages      []Message
	StatusHistory []StatusHistoryEntry
}

// IsMessageable reports whether new messages may be appended to the thread.
// Pending tickets have no assigned admin yet; resolved and rejected tickets
// must first be reopened.
func (t *Ticket) IsMessageable() bool {
	return t.Status == TicketStatusAccepted || t.Status == TicketStatusInProgress
}

// IsClosed reports whether the ticket sits in a closed state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusResolved || t.Status == TicketStatusRejected
}
