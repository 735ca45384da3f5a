package notify

import (
	"context"

	"autominer/internal/model"
)

type EventKind string

const (
	EventGoalReached     EventKind = "goal_reached"
	EventChallengeFailed EventKind = "challenge_failed"
	EventSessionSummary  EventKind = "session_summary"
	EventDailySummary    EventKind = "daily_summary"
)

// Event is something the operator should hear about while away from the
// terminal.
type Event struct {
	At     int64               `json:"atMs"`
	Kind   EventKind           `json:"kind"`
	Title  string              `json:"title"`
	Detail string              `json:"detail,omitempty"`
	Stats  *model.SessionStats `json:"stats,omitempty"`
}

type Notifier interface {
	NotifyEvent(ctx context.Context, evt Event)
}

// Noop drops every event. Used when email is disabled.
type Noop struct{}

func (Noop) NotifyEvent(context.Context, Event) {}

// Notable is implemented by bus payloads that deserve a notification.
type Notable interface {
	Notification() (Event, bool)
}
