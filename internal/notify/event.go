package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tells whether a user joined or left a minyan.
type Kind string

const (
	Joined Kind = "joined"
	Left   Kind = "left"
)

// Event describes one state-changing roster update.
type Event struct {
	ID          string
	Kind        Kind
	PageName    string
	MinyanLabel string
	DisplayName string
	Count       int
	At          time.Time
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(kind Kind, pageName, minyanLabel, displayName string, count int) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		PageName:    pageName,
		MinyanLabel: minyanLabel,
		DisplayName: displayName,
		Count:       count,
		At:          time.Now().UTC(),
	}
}

// Text renders the chat message for the event.
func (e Event) Text() string {
	icon, verb := "✅", "joined"
	if e.Kind == Left {
		icon, verb = "❌", "left"
	}
	return fmt.Sprintf("%s %s %s %s – %s (%d registered)", icon, e.DisplayName, verb, e.PageName, e.MinyanLabel, e.Count)
}
