package domain

import "time"

// HistoryStatus enumerates the transitions recorded as structured history.
// Rejection never reaches history; it is reflected only on the ticket status.
type HistoryStatus string

const (
	HistoryStatusResolved HistoryStatus = "RESOLVED"
	HistoryStatusReopened HistoryStatus = "REOPENED"
)

// StatusHistoryEntry is an immutable audit record of a resolve or reopen.
type StatusHistoryEntry struct {
	ID              string
	TicketID        string
	Status          HistoryStatus
	PerformedBy     *string
	PerformedByName string
	Reason          *string
	Timestamp       time.Time
}
