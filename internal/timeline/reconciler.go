// Package timeline derives presentation-ready views from a ticket snapshot.
// Everything here is pure: no I/O, no mutation of the input, identical
// output for identical input.
package timeline

import (
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/support-console/internal/domain"
)

// NodeKind enumerates the activity timeline entry kinds.
type NodeKind string

const (
	NodeSubmitted NodeKind = "submitted"
	NodeAccepted  NodeKind = "accepted"
	NodeResolved  NodeKind = "resolved"
	NodeReopened  NodeKind = "reopened"
)

// Node is one derived entry in the reconciled activity timeline.
// LinkedMessageID, when set, points at the chat message recording the same
// event so the presentation layer can jump into the conversation.
type Node struct {
	Kind            NodeKind
	Title           string
	Timestamp       time.Time
	LinkedMessageID *string
}

// CorrelationWindow is the tolerance for linking a structured status entry
// to the free-text system message older producers wrote alongside it.
const CorrelationWindow = 5 * time.Second

// statusKeywords maps a history status to the wording legacy producers used
// in the correlated chat message.
var statusKeywords = map[domain.HistoryStatus][]string{
	domain.HistoryStatusResolved: {"resolved", "closed"},
	domain.HistoryStatusReopened: {"reopened"},
}

var nodeTitles = map[NodeKind]string{
	NodeSubmitted: "Ticket submitted",
	NodeAccepted:  "Ticket accepted",
	NodeResolved:  "Ticket resolved",
	NodeReopened:  "Ticket reopened",
}

var kindPriority = map[NodeKind]int{
	NodeSubmitted: 0,
	NodeAccepted:  1,
	NodeResolved:  2,
	NodeReopened:  2,
}

// Reconcile merges the two event records of a ticket, the structured status
// history and the message log, into one ascending activity timeline. The
// same conceptual event may exist in both records; this function is the
// only place that hides the duplication. It never fails: missing or
// malformed correlations degrade to unlinked nodes.
func Reconcile(ticket *domain.Ticket) []Node {
	if ticket == nil {
		return nil
	}

	nodes := make([]Node, 0, 2+len(ticket.StatusHistory))

	submitted := Node{
		Kind:      NodeSubmitted,
		Title:     nodeTitles[NodeSubmitted],
		Timestamp: ticket.CreatedAt,
	}
	if len(ticket.Messages) > 0 {
		first := ticket.Messages[0]
		if withinWindow(first.Timestamp, ticket.CreatedAt) {
			id := first.ID
			submitted.LinkedMessageID = &id
		}
	}
	nodes = append(nodes, submitted)

	// This ticket population does not always carry an explicit accepted
	// record; the first admin reply is the canonical proxy for acceptance.
	if first := firstAdminMessage(ticket.Messages); first != nil {
		id := first.ID
		nodes = append(nodes, Node{
			Kind:            NodeAccepted,
			Title:           nodeTitles[NodeAccepted],
			Timestamp:       first.Timestamp,
			LinkedMessageID: &id,
		})
	}

	for _, entry := range ticket.StatusHistory {
		kind := NodeResolved
		if entry.Status == domain.HistoryStatusReopened {
			kind = NodeReopened
		}
		node := Node{
			Kind:      kind,
			Title:     nodeTitles[kind],
			Timestamp: entry.Timestamp,
		}
		if match := correlatedMessage(ticket.Messages, entry); match != nil {
			id := match.ID
			node.LinkedMessageID = &id
		}
		nodes = append(nodes, node)
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Timestamp.Equal(nodes[j].Timestamp) {
			return kindPriority[nodes[i].Kind] < kindPriority[nodes[j].Kind]
		}
		return nodes[i].Timestamp.Before(nodes[j].Timestamp)
	})
	return nodes
}

func firstAdminMessage(messages []domain.Message) *domain.Message {
	for i := range messages {
		if messages[i].SenderType == domain.SenderTypeAdmin {
			return &messages[i]
		}
	}
	return nil
}

// correlatedMessage finds an admin-authored message whose wording matches
// the status and whose timestamp falls inside the correlation window.
func correlatedMessage(messages []domain.Message, entry domain.StatusHistoryEntry) *domain.Message {
	keywords := statusKeywords[entry.Status]
	for i := range messages {
		msg := &messages[i]
		if msg.SenderType != domain.SenderTypeAdmin {
			continue
		}
		if !withinWindow(msg.Timestamp, entry.Timestamp) {
			continue
		}
		if matchesKeywords(msg.Text, keywords) {
			return msg
		}
	}
	return nil
}

func withinWindow(a, b time.Time) bool {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta <= CorrelationWindow
}

func matchesKeywords(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
