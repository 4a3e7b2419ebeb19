package timeline

import (
	"reflect"
	"testing"
	"time"

	"github.com/spec-kit/support-console/internal/domain"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func adminMsg(id string, offset time.Duration, text string) domain.Message {
	return domain.Message{
		ID:         id,
		SenderType: domain.SenderTypeAdmin,
		SenderID:   "admin-1",
		Text:       text,
		Timestamp:  base.Add(offset),
	}
}

func requesterMsg(id string, offset time.Duration, text string) domain.Message {
	return domain.Message{
		ID:         id,
		SenderType: domain.SenderTypeRequester,
		SenderID:   "user-1",
		Text:       text,
		Timestamp:  base.Add(offset),
	}
}

func historyEntry(status domain.HistoryStatus, offset time.Duration) domain.StatusHistoryEntry {
	adminID := "admin-1"
	return domain.StatusHistoryEntry{
		ID:          "h-" + string(status),
		Status:      status,
		PerformedBy: &adminID,
		Timestamp:   base.Add(offset),
	}
}

func TestReconcileEndToEnd(t *testing.T) {
	// created t=0, accepted (first admin reply) t=120s, resolved t=600s with
	// a correlated system message at t=602s, reopened t=3600s unmatched
	ticket := &domain.Ticket{
		ID:        "t-1",
		CreatedAt: base,
		Messages: []domain.Message{
			adminMsg("m-1", 120*time.Second, "Hi"),
			adminMsg("m-2", 602*time.Second, "Ticket has been resolved"),
		},
		StatusHistory: []domain.StatusHistoryEntry{
			historyEntry(domain.HistoryStatusResolved, 600*time.Second),
			historyEntry(domain.HistoryStatusReopened, 3600*time.Second),
		},
	}

	nodes := Reconcile(ticket)
	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d: %+v", len(nodes), nodes)
	}

	expectKinds := []NodeKind{NodeSubmitted, NodeAccepted, NodeResolved, NodeReopened}
	for i, kind := range expectKinds {
		if nodes[i].Kind != kind {
			t.Fatalf("node %d: expected %s, got %s", i, kind, nodes[i].Kind)
		}
	}

	if !nodes[0].Timestamp.Equal(base) {
		t.Errorf("submitted node at %v, want %v", nodes[0].Timestamp, base)
	}
	if !nodes[1].Timestamp.Equal(base.Add(120 * time.Second)) {
		t.Errorf("accepted node timestamp %v, want created+120s", nodes[1].Timestamp)
	}
	if nodes[1].LinkedMessageID == nil || *nodes[1].LinkedMessageID != "m-1" {
		t.Errorf("accepted node should link first admin message, got %v", nodes[1].LinkedMessageID)
	}

	// resolved node sits at the history timestamp, linked to the 602s message
	if !nodes[2].Timestamp.Equal(base.Add(600 * time.Second)) {
		t.Errorf("resolved node timestamp %v, want history timestamp", nodes[2].Timestamp)
	}
	if nodes[2].LinkedMessageID == nil || *nodes[2].LinkedMessageID != "m-2" {
		t.Errorf("resolved node should link the matching message, got %v", nodes[2].LinkedMessageID)
	}

	if nodes[3].LinkedMessageID != nil {
		t.Errorf("reopened node has no matching message, got link %v", *nodes[3].LinkedMessageID)
	}
}

func TestCorrelationWindow(t *testing.T) {
	cases := []struct {
		name   string
		offset time.Duration
		linked bool
	}{
		{"4s after is linked", 604 * time.Second, true},
		{"5s after is linked", 605 * time.Second, true},
		{"6s after is unlinked", 606 * time.Second, false},
		{"4s before is linked", 596 * time.Second, true},
		{"6s before is unlinked", 594 * time.Second, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ticket := &domain.Ticket{
				CreatedAt: base,
				Messages: []domain.Message{
					adminMsg("m-sys", tc.offset, "Ticket has been resolved"),
				},
				StatusHistory: []domain.StatusHistoryEntry{
					historyEntry(domain.HistoryStatusResolved, 600*time.Second),
				},
			}
			nodes := Reconcile(ticket)
			var resolved *Node
			for i := range nodes {
				if nodes[i].Kind == NodeResolved {
					resolved = &nodes[i]
				}
			}
			if resolved == nil {
				t.Fatalf("no resolved node emitted")
			}
			if got := resolved.LinkedMessageID != nil; got != tc.linked {
				t.Fatalf("linked=%v, want %v", got, tc.linked)
			}
		})
	}
}

func TestCorrelationIgnoresNonMatchingMessages(t *testing.T) {
	ticket := &domain.Ticket{
		CreatedAt: base,
		Messages: []domain.Message{
			// requester wording inside the window never links
			requesterMsg("m-1", 601*time.Second, "finally resolved!"),
			// admin message inside the window with unrelated wording
			adminMsg("m-2", 602*time.Second, "have a nice day"),
		},
		StatusHistory: []domain.StatusHistoryEntry{
			historyEntry(domain.HistoryStatusResolved, 600*time.Second),
		},
	}
	nodes := Reconcile(ticket)
	for _, node := range nodes {
		if node.Kind == NodeResolved && node.LinkedMessageID != nil {
			t.Fatalf("resolved node must stay unlinked, got %v", *node.LinkedMessageID)
		}
	}
}

func TestReconcileKeywordClosed(t *testing.T) {
	ticket := &domain.Ticket{
		CreatedAt: base,
		Messages: []domain.Message{
			adminMsg("m-1", 601*time.Second, "This ticket is now closed."),
		},
		StatusHistory: []domain.StatusHistoryEntry{
			historyEntry(domain.HistoryStatusResolved, 600*time.Second),
		},
	}
	nodes := Reconcile(ticket)
	for _, node := range nodes {
		if node.Kind == NodeResolved {
			if node.LinkedMessageID == nil || *node.LinkedMessageID != "m-1" {
				t.Fatalf("expected closed wording to link, got %v", node.LinkedMessageID)
			}
		}
	}
}

func TestSubmittedNodeLinksNearbyFirstMessage(t *testing.T) {
	ticket := &domain.Ticket{
		CreatedAt: base,
		Messages: []domain.Message{
			requesterMsg("m-1", 2*time.Second, "my printer is on fire"),
		},
	}
	nodes := Reconcile(ticket)
	if nodes[0].Kind != NodeSubmitted {
		t.Fatalf("expected submitted first, got %s", nodes[0].Kind)
	}
	if nodes[0].LinkedMessageID == nil || *nodes[0].LinkedMessageID != "m-1" {
		t.Fatalf("expected submitted node linked to opening message, got %v", nodes[0].LinkedMessageID)
	}

	// distant first message leaves the node unlinked
	ticket.Messages[0].Timestamp = base.Add(time.Hour)
	nodes = Reconcile(ticket)
	if nodes[0].LinkedMessageID != nil {
		t.Fatalf("expected unlinked submitted node, got %v", *nodes[0].LinkedMessageID)
	}
}

func TestReconcileDeterministicAndOrdered(t *testing.T) {
	ticket := &domain.Ticket{
		CreatedAt: base,
		Messages: []domain.Message{
			requesterMsg("m-0", time.Second, "help"),
			adminMsg("m-1", 120*time.Second, "Hi"),
			adminMsg("m-2", 601*time.Second, "resolved"),
		},
		StatusHistory: []domain.StatusHistoryEntry{
			historyEntry(domain.HistoryStatusResolved, 600*time.Second),
			historyEntry(domain.HistoryStatusReopened, 700*time.Second),
			historyEntry(domain.HistoryStatusResolved, 800*time.Second),
		},
	}

	first := Reconcile(ticket)
	second := Reconcile(ticket)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reconcile is not idempotent:\n%+v\n%+v", first, second)
	}

	for i := 1; i < len(first); i++ {
		if first[i].Timestamp.Before(first[i-1].Timestamp) {
			t.Fatalf("nodes out of order at %d: %v before %v", i, first[i].Timestamp, first[i-1].Timestamp)
		}
	}
}

func TestReconcileTieBreakByKind(t *testing.T) {
	// accepted proxy and resolved entry share one timestamp; kind priority
	// keeps the output stable
	ticket := &domain.Ticket{
		CreatedAt: base,
		Messages: []domain.Message{
			adminMsg("m-1", 0, "resolved"),
		},
		StatusHistory: []domain.StatusHistoryEntry{
			historyEntry(domain.HistoryStatusResolved, 0),
		},
	}
	nodes := Reconcile(ticket)
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	want := []NodeKind{NodeSubmitted, NodeAccepted, NodeResolved}
	for i, kind := range want {
		if nodes[i].Kind != kind {
			t.Fatalf("node %d: expected %s, got %s", i, kind, nodes[i].Kind)
		}
	}
}

func TestReconcileDegradesWithoutData(t *testing.T) {
	if nodes := Reconcile(nil); nodes != nil {
		t.Fatalf("nil ticket should yield nil, got %+v", nodes)
	}

	ticket := &domain.Ticket{CreatedAt: base}
	nodes := Reconcile(ticket)
	if len(nodes) != 1 || nodes[0].Kind != NodeSubmitted {
		t.Fatalf("empty ticket should yield the submitted node only, got %+v", nodes)
	}
	if nodes[0].LinkedMessageID != nil {
		t.Fatalf("no messages, so the submitted node must be unlinked")
	}
}
