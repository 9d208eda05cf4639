// Package lifecycle holds the prospect state machine. Statuses only move
// forward; any (status, signal) pair missing from the table leaves the status
// unchanged.
package lifecycle

import "github.com/example/prospector/internal/models"

// Signal is something observed on the target site after (or instead of) an action.
type Signal string

const (
	SignalNone              Signal = "none"
	SignalInviteSent        Signal = "invite_sent"
	SignalPendingLabel      Signal = "pending_label"
	SignalMessageAffordance Signal = "message_affordance"
	SignalMessageDelivered  Signal = "message_delivered"
)

type key struct {
	from   models.Status
	signal Signal
}

var transitions = map[key]models.Status{
	{models.StatusNew, SignalInviteSent}:        models.StatusInvited,
	{models.StatusNew, SignalPendingLabel}:      models.StatusInvited,
	{models.StatusNew, SignalMessageAffordance}: models.StatusConnected,

	{models.StatusInvited, SignalMessageAffordance}: models.StatusConnected,

	{models.StatusConnected, SignalMessageDelivered}: models.StatusMessaged,
}

// Next returns the status reached from cur on signal, and whether it changed.
func Next(cur models.Status, s Signal) (models.Status, bool) {
	next, ok := transitions[key{cur, s}]
	if !ok || next.Rank() <= cur.Rank() {
		return cur, false
	}
	return next, true
}

// Forward reports whether writing to over from is allowed (never backwards).
func Forward(from, to models.Status) bool {
	return to.Rank() >= from.Rank()
}

// InviteOutcome is what the invitation flow reports back.
type InviteOutcome struct {
	Attempted bool
	NoteUsed  bool
	// NoteConfirmed is false when note mode was entered but the note field
	// could not be filled. NoteUsed stays true in that case.
	NoteConfirmed bool
}

// PageSignals is what a re-inspection of the profile page found when the
// invitation was not attempted.
type PageSignals struct {
	MessageButton bool
	PendingLabel  bool
}

// Observe reduces an invite outcome and page inspection to one signal.
// The message affordance is a heuristic and wins over the pending label.
func Observe(out InviteOutcome, page PageSignals) Signal {
	switch {
	case out.Attempted:
		return SignalInviteSent
	case page.MessageButton:
		return SignalMessageAffordance
	case page.PendingLabel:
		return SignalPendingLabel
	}
	return SignalNone
}
