package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-console/internal/domain"
)

// memoryTicketStore keeps aggregates in process memory. It backs local
// development without a POSTGRES_DSN and the service test suites. A single
// mutex serializes writers, which gives the conditional updates the same
// test-and-set semantics as the SQL statements.
type memoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketStore instantiates the in-memory store.
func NewMemoryTicketStore() TicketStore {
	return &memoryTicketStore{tickets: make(map[string]*domain.Ticket)}
}

func (s *memoryTicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	stored := cloneTicket(ticket)
	s.tickets[ticket.ID] = stored
	return nil
}

func (s *memoryTicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTicket(ticket), nil
}

func (s *memoryTicketStore) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*domain.Ticket
	for _, ticket := range s.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.AssignedAdmin != nil &&
			(ticket.AssignedAdmin == nil || *ticket.AssignedAdmin != *filter.AssignedAdmin) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
			continue
		}
		if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		matches = append(matches, ticket)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matches) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}

	result := make([]domain.Ticket, 0, end-offset)
	for _, ticket := range matches[offset:end] {
		summary := cloneTicket(ticket)
		summary.Messages = nil
		summary.StatusHistory = nil
		result = append(result, *summary)
	}
	return result, nil
}

func (s *memoryTicketStore) AcceptIfPending(ctx context.Context, ticketID, adminID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return false, ErrNotFound
	}
	if ticket.Status != domain.TicketStatusPending {
		return false, nil
	}
	admin := adminID
	acceptedAt := at
	ticket.Status = domain.TicketStatusAccepted
	ticket.AssignedAdmin = &admin
	ticket.AcceptedAt = &acceptedAt
	return true, nil
}

func (s *memoryTicketStore) PromoteIfAccepted(ctx context.Context, ticketID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return false, ErrNotFound
	}
	if ticket.Status != domain.TicketStatusAccepted {
		return false, nil
	}
	ticket.Status = domain.TicketStatusInProgress
	return true, nil
}

func (s *memoryTicketStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	applyTicketFields(stored, ticket)
	return nil
}

func applyTicketFields(stored, ticket *domain.Ticket) {
	stored.Status = ticket.Status
	stored.AssignedAdmin = copyString(ticket.AssignedAdmin)
	stored.Resolution = copyString(ticket.Resolution)
	stored.RejectReason = copyString(ticket.RejectReason)
	if ticket.AcceptedAt != nil {
		acceptedAt := *ticket.AcceptedAt
		stored.AcceptedAt = &acceptedAt
	} else {
		stored.AcceptedAt = nil
	}
}

// UpdateWithHistory mutates the ticket and appends the history entry inside
// one locked section, matching the transactional postgres implementation.
func (s *memoryTicketStore) UpdateWithHistory(ctx context.Context, ticket *domain.Ticket, entry *domain.StatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	applyTicketFields(stored, ticket)
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	stored.StatusHistory = append(stored.StatusHistory, *entry)
	return nil
}

func (s *memoryTicketStore) AppendMessageIfMessageable(ctx context.Context, msg *domain.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[msg.TicketID]
	if !ok {
		return false, ErrNotFound
	}
	if !ticket.IsMessageable() {
		return false, nil
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	ticket.Messages = append(ticket.Messages, *msg)
	return true, nil
}

func cloneTicket(ticket *domain.Ticket) *domain.Ticket {
	clone := *ticket
	clone.AssignedAdmin = copyString(ticket.AssignedAdmin)
	clone.Resolution = copyString(ticket.Resolution)
	clone.RejectReason = copyString(ticket.RejectReason)
	if ticket.AcceptedAt != nil {
		acceptedAt := *ticket.AcceptedAt
		clone.AcceptedAt = &acceptedAt
	}
	clone.Messages = append([]domain.Message(nil), ticket.Messages...)
	clone.StatusHistory = append([]domain.StatusHistoryEntry(nil), ticket.StatusHistory...)
	return &clone
}

func copyString(val *string) *string {
	if val == nil {
		return nil
	}
	copied := *val
	return &copied
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, priority domain.TicketPriority) bool {
	for _, candidate := range list {
		if candidate == priority {
			return true
		}
	}
	return false
}
