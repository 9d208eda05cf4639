// Package connection sends a connection invitation from a loaded profile page
// and works out what status the prospect ended up in.
package connection

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/prospector/internal/actions"
	"github.com/example/prospector/internal/lifecycle"
	"github.com/example/prospector/internal/logging"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/pacing"
	"github.com/example/prospector/internal/prospect"
	"github.com/example/prospector/internal/selectors"
)

// UnconfirmedNote is recorded in last_error when note mode was entered but
// the note field never appeared.
const UnconfirmedNote = "note field not found; invitation sent without a confirmed note"

// Result is the outcome of one invitation attempt.
type Result struct {
	lifecycle.InviteOutcome
	// NoteText is the personalized note, set whenever NoteUsed is.
	NoteText string
}

type Inviter struct {
	SendNote     bool
	NoteTemplate string
	log          *zap.Logger
}

func NewInviter(sendNote bool, noteTemplate string, log *zap.Logger) *Inviter {
	return &Inviter{SendNote: sendNote, NoteTemplate: noteTemplate, log: logging.Module(log, "connection")}
}

// Invite opens the overflow menu, picks Connect and submits the invitation.
// Every step before Connect must succeed; after Connect the invitation counts
// as attempted even if the final send click cannot be confirmed.
func (iv *Inviter) Invite(ctx context.Context, a *actions.Actor, firstName string) Result {
	if !a.ClickAny(selectors.MoreButtons, 5*time.Second) {
		iv.log.Debug("overflow menu not found")
		return Result{}
	}
	a.Pause(ctx, pacing.AfterMenu)

	if _, ok := a.WaitAny(selectors.VisibleDropdown, 4*time.Second); !ok {
		// The first click sometimes lands before the menu is wired up.
		a.ClickAny(selectors.MoreButtons, 2500*time.Millisecond)
		if _, ok := a.WaitAny(selectors.VisibleDropdown, 3*time.Second); !ok {
			iv.log.Debug("overflow dropdown never became visible")
			return Result{}
		}
	}
	a.Pause(ctx, pacing.AfterDropdown)

	if !a.ClickAny(selectors.DropdownConnect, 4*time.Second) {
		iv.log.Debug("connect item not in dropdown")
		return Result{}
	}
	a.Pause(ctx, pacing.AfterConnect)

	if !iv.SendNote {
		a.Pause(ctx, pacing.BeforeSend)
		if !a.ClickAny(selectors.SendWithoutNote, 3500*time.Millisecond) {
			a.ClickAny(selectors.SendInvite, 3500*time.Millisecond)
		}
		a.Pause(ctx, pacing.AfterSend)
		return Result{InviteOutcome: lifecycle.InviteOutcome{Attempted: true}}
	}

	res := Result{
		InviteOutcome: lifecycle.InviteOutcome{Attempted: true, NoteUsed: true},
		NoteText:      prospect.NoteText(iv.NoteTemplate, firstName),
	}
	a.ClickAny(selectors.AddNote, 3500*time.Millisecond)
	a.Pause(ctx, pacing.AfterDropdown)

	if a.FillAny(selectors.NoteTextarea, res.NoteText, 3500*time.Millisecond) {
		res.NoteConfirmed = true
		a.Pause(ctx, pacing.AfterNote)
	} else {
		iv.log.Warn(UnconfirmedNote)
	}

	a.ClickAny(selectors.SendInvite, 2500*time.Millisecond)
	a.Pause(ctx, pacing.AfterInvite)
	return res
}

// Inspect looks for signs of an existing relationship on the profile page.
func Inspect(a *actions.Actor) lifecycle.PageSignals {
	_, msg := a.WaitAny(selectors.MessageRole, 1500*time.Millisecond)
	return lifecycle.PageSignals{
		MessageButton: msg,
		PendingLabel:  !msg && a.HasAny(selectors.PendingLabel),
	}
}

// Status derives the prospect status from a fresh (new) profile's invitation
// outcome. The page is only inspected when no invitation was attempted.
func Status(out lifecycle.InviteOutcome, a *actions.Actor) models.Status {
	var page lifecycle.PageSignals
	if !out.Attempted {
		page = Inspect(a)
	}
	st, _ := lifecycle.Next(models.StatusNew, lifecycle.Observe(out, page))
	return st
}
