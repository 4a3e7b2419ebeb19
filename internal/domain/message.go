package domain

import "time"

// SenderType indicates who authored a message.
type SenderType string

const (
	SenderTypeAdmin     SenderType = "ADMIN"
	SenderTypeRequester SenderType = "REQUESTER"
)

// Message captures one entry in a ticket thread. Immutable once appended.
type Message struct {
	ID                string
	TicketID          string
	SenderType        SenderType
	SenderID          string
	SenderDisplayName string
	Text              string
	Timestamp         time.Time
}
