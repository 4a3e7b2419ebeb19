package timeline

import (
	"time"

	"github.com/spec-kit/support-console/internal/domain"
)

// GroupingWindow is the maximum gap between two messages that still render
// as one visual cluster.
const GroupingWindow = 5 * time.Minute

// MessageGroupFlags tells the presentation layer how to render one message
// relative to its neighbors. The sender header shows only at the start of a
// cluster, the timestamp only at its end.
type MessageGroupFlags struct {
	GroupedWithPrevious bool
	GroupedWithNext     bool
	ShowHeader          bool
	ShowTimestamp       bool
}

// GroupMessages computes the cluster flags for an ordered message list in a
// single pass. No message depends on more than its immediate neighbors.
func GroupMessages(messages []domain.Message) []MessageGroupFlags {
	flags := make([]MessageGroupFlags, len(messages))
	for i := range messages {
		if i > 0 {
			flags[i].GroupedWithPrevious = groupedWith(&messages[i-1], &messages[i])
		}
		if i < len(messages)-1 {
			flags[i].GroupedWithNext = groupedWith(&messages[i], &messages[i+1])
		}
		flags[i].ShowHeader = !flags[i].GroupedWithPrevious
		flags[i].ShowTimestamp = !flags[i].GroupedWithNext
	}
	return flags
}

// groupedWith reports whether later joins earlier's cluster: same sender
// type, same calendar day, and sent less than the grouping window apart.
func groupedWith(earlier, later *domain.Message) bool {
	if earlier.SenderType != later.SenderType {
		return false
	}
	if !sameCalendarDay(earlier.Timestamp, later.Timestamp) {
		return false
	}
	return later.Timestamp.Sub(earlier.Timestamp) < GroupingWindow
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
