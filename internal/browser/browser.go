// Package browser drives isolated, authenticated browsing contexts. Flows use
// the Browser, Context and Page interfaces; Launch returns the rod-backed
// implementation and the browsertest package an in-memory one.
package browser

import (
	"context"
	"time"

	"github.com/example/prospector/internal/models"
)

// ContextOptions are the per-context emulation settings.
type ContextOptions struct {
	Locale         string
	Timezone       string
	ViewportWidth  int
	ViewportHeight int
	Referer        string
	// PageTimeout bounds any single page call that has no explicit timeout.
	PageTimeout time.Duration
}

// Browser creates one isolated context per identity session.
type Browser interface {
	NewContext(ctx context.Context, id models.Identity, opts ContextOptions) (Context, error)
	Close() error
}

// Context is an isolated cookie jar and storage partition.
type Context interface {
	Identity() models.Identity
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is the slice of a browser tab the flows drive. Every wait takes an
// explicit timeout; a timeout is reported as an ordinary error.
type Page interface {
	Navigate(url string, timeout time.Duration) error
	URL() string
	HTML() (string, error)

	// Has reports whether at least one element matches, without waiting.
	Has(loc Locator) bool
	WaitVisible(loc Locator, timeout time.Duration) error
	ScrollIntoView(loc Locator, timeout time.Duration) error
	Click(loc Locator, timeout time.Duration) error
	// ClickJS invokes the element's click() directly, bypassing hit-testing.
	ClickJS(loc Locator, timeout time.Duration) error
	Fill(loc Locator, text string, timeout time.Duration) error
	Text(loc Locator, timeout time.Duration) (string, error)

	// Type sends text to the focused element as key input.
	Type(text string) error
	PressEnter() error
	Scroll(dy float64) error

	Screenshot() ([]byte, error)
	Close() error
}
