package dto

import (
	"time"

	"github.com/spec-kit/support-console/internal/domain"
)

// CreateTicketRequest payload for the intake boundary.
type CreateTicketRequest struct {
	Subject  string                `json:"subject"`
	Category string                `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
}

// RejectTicketRequest payload.
type RejectTicketRequest struct {
	Reason string `json:"reason"`
}

// ResolveTicketRequest payload.
type ResolveTicketRequest struct {
	Resolution string `json:"resolution"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Text string `json:"text"`
}

// TicketSummary response for queue listings.
type TicketSummary struct {
	ID            string                `json:"id"`
	RequesterID   string                `json:"requester_id"`
	Subject       string                `json:"subject"`
	Category      string                `json:"category"`
	Priority      domain.TicketPriority `json:"priority"`
	Status        domain.TicketStatus   `json:"status"`
	AssignedAdmin *string               `json:"assigned_admin"`
	CreatedAt     time.Time             `json:"created_at"`
}

// TicketDetailResponse is the full aggregate snapshot.
type TicketDetailResponse struct {
	ID            string                  `json:"id"`
	RequesterID   string                  `json:"requester_id"`
	Subject       string                  `json:"subject"`
	Category      string                  `json:"category"`
	Priority      domain.TicketPriority   `json:"priority"`
	Status        domain.TicketStatus     `json:"status"`
	AssignedAdmin *string                 `json:"assigned_admin"`
	CreatedAt     time.Time               `json:"created_at"`
	AcceptedAt    *time.Time              `json:"accepted_at"`
	Resolution    *string                 `json:"resolution"`
	RejectReason  *string                 `json:"reject_reason"`
	Messages      []MessageResponse       `json:"messages"`
	StatusHistory []StatusHistoryResponse `json:"status_history"`
}

// MessageResponse represents one thread message.
type MessageResponse struct {
	ID                string            `json:"id"`
	SenderType        domain.SenderType `json:"sender_type"`
	SenderID          string            `json:"sender_id"`
	SenderDisplayName string            `json:"sender_display_name"`
	Text              string            `json:"text"`
	Timestamp         time.Time         `json:"timestamp"`
}

// StatusHistoryResponse represents one structured status record.
type StatusHistoryResponse struct {
	ID              string               `json:"id"`
	Status          domain.HistoryStatus `json:"status"`
	PerformedBy     *string              `json:"performed_by"`
	PerformedByName string               `json:"performed_by_name"`
	Reason          *string              `json:"reason"`
	Timestamp       time.Time            `json:"timestamp"`
}

// TimelineNodeResponse is one reconciled activity entry.
type TimelineNodeResponse struct {
	Kind            string    `json:"kind"`
	Title           string    `json:"title"`
	Timestamp       time.Time `json:"timestamp"`
	LinkedMessageID *string   `json:"linked_message_id,omitempty"`
}

// ThreadMessageResponse pairs a message with its rendering flags.
type ThreadMessageResponse struct {
	MessageResponse
	ShowHeader    bool `json:"show_header"`
	ShowTimestamp bool `json:"show_timestamp"`
}
