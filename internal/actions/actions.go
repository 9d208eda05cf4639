// Package actions holds the retrying UI primitives every flow is built from.
// Each primitive walks an ordered list of locators and degrades through
// fallbacks before reporting failure.
package actions

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/prospector/internal/browser"
	"github.com/example/prospector/internal/logging"
	"github.com/example/prospector/internal/pacing"
)

// fallbackTimeout bounds the best-effort steps (scroll, JS click) so a missing
// element does not cost a full wait twice.
const fallbackTimeout = time.Second

// ErrNoMatch is returned when no locator in a list satisfied the action.
var ErrNoMatch = eris.New("actions: no locator matched")

type Actor struct {
	Page  browser.Page
	Pacer *pacing.Pacer
	log   *zap.Logger
}

func New(p browser.Page, pacer *pacing.Pacer, log *zap.Logger) *Actor {
	return &Actor{Page: p, Pacer: pacer, log: logging.Module(log, "actions")}
}

// Resolve runs act against each locator in order and returns the first one
// for which it succeeds.
func Resolve(locs []browser.Locator, act func(browser.Locator) error) (browser.Locator, error) {
	for _, l := range locs {
		if err := act(l); err == nil {
			return l, nil
		}
	}
	return browser.Locator{}, ErrNoMatch
}

// ClickAny waits for each locator to be visible, scrolls it into view, and
// clicks it. When the normal click fails, a direct JS click is tried before
// moving on. It returns false only when every locator and fallback failed.
func (a *Actor) ClickAny(locs []browser.Locator, timeout time.Duration) bool {
	hit, err := Resolve(locs, func(l browser.Locator) error {
		if err := a.Page.WaitVisible(l, timeout); err == nil {
			_ = a.Page.ScrollIntoView(l, fallbackTimeout)
			if err := a.Page.Click(l, timeout); err == nil {
				return nil
			}
		}
		return a.Page.ClickJS(l, fallbackTimeout)
	})
	if err != nil {
		a.log.Debug("click failed on every locator", zap.Int("locators", len(locs)))
		return false
	}
	a.log.Debug("clicked", zap.Stringer("locator", hit))
	return true
}

// WaitAny returns the first locator that becomes visible within timeout.
func (a *Actor) WaitAny(locs []browser.Locator, timeout time.Duration) (browser.Locator, bool) {
	hit, err := Resolve(locs, func(l browser.Locator) error {
		return a.Page.WaitVisible(l, timeout)
	})
	return hit, err == nil
}

// FillAny replaces the value of the first visible matching field.
func (a *Actor) FillAny(locs []browser.Locator, text string, timeout time.Duration) bool {
	_, err := Resolve(locs, func(l browser.Locator) error {
		if err := a.Page.WaitVisible(l, timeout); err != nil {
			return err
		}
		return a.Page.Fill(l, text, timeout)
	})
	return err == nil
}

// TextAny returns the first non-empty text found.
func (a *Actor) TextAny(locs []browser.Locator, timeout time.Duration) string {
	var s string
	_, _ = Resolve(locs, func(l browser.Locator) error {
		t, err := a.Page.Text(l, timeout)
		if err != nil || t == "" {
			return ErrNoMatch
		}
		s = t
		return nil
	})
	return s
}

// HasAny reports whether any locator currently matches.
func (a *Actor) HasAny(locs []browser.Locator) bool {
	_, err := Resolve(locs, func(l browser.Locator) error {
		if a.Page.Has(l) {
			return nil
		}
		return ErrNoMatch
	})
	return err == nil
}

// Pause waits for a jitter step.
func (a *Actor) Pause(ctx context.Context, r pacing.Range) {
	a.Pacer.Wait(ctx, r)
}
