// Package auth checks that an identity's saved session is still logged in
// and hands out browsing contexts only for identities that pass.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/prospector/internal/browser"
	"github.com/example/prospector/internal/logging"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/pacing"
)

var (
	// ErrSessionInvalid means the identity was redirected to a login or
	// challenge surface. It needs manual re-authentication.
	ErrSessionInvalid = eris.New("auth: session not authenticated")
	// ErrNoSession means the identity has no usable session blob.
	ErrNoSession = eris.New("auth: identity has no session state")
)

// Guard verifies a context by loading the home surface and inspecting where it landed.
type Guard struct {
	HomeURL string
	Markers []string
	Timeout time.Duration
	Pacer   *pacing.Pacer
	log     *zap.Logger
}

func NewGuard(homeURL string, markers []string, timeout time.Duration, pacer *pacing.Pacer, log *zap.Logger) *Guard {
	return &Guard{HomeURL: homeURL, Markers: markers, Timeout: timeout, Pacer: pacer, log: logging.Module(log, "auth")}
}

// Verify opens a transient page in bc and reports whether the session is
// still authenticated. The page is closed on every path.
func (g *Guard) Verify(ctx context.Context, bc browser.Context) bool {
	p, err := bc.NewPage(ctx)
	if err != nil {
		g.log.Warn("guard page failed", zap.Error(err))
		return false
	}
	defer p.Close()

	if err := p.Navigate(g.HomeURL, g.Timeout); err != nil {
		g.log.Warn("guard navigation failed", zap.String("identity", bc.Identity().DisplayName()), zap.Error(err))
		return false
	}
	g.Pacer.Wait(ctx, pacing.AfterGuard)

	landed := p.URL()
	if IsLoginURL(landed, g.Markers) {
		g.log.Warn("session bounced to login/challenge",
			zap.String("identity", bc.Identity().DisplayName()), zap.String("url", landed))
		return false
	}
	return true
}

// IsLoginURL reports whether u contains any of the login markers.
func IsLoginURL(u string, markers []string) bool {
	u = strings.ToLower(u)
	for _, m := range markers {
		if m != "" && strings.Contains(u, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Sessions opens contexts for identities over one run. Each identity is
// guarded on first use; one that fails stays excluded for the rest of the run.
type Sessions struct {
	browser browser.Browser
	guard   *Guard
	opts    browser.ContextOptions
	log     *zap.Logger

	verdict map[string]error
}

func NewSessions(b browser.Browser, g *Guard, opts browser.ContextOptions, log *zap.Logger) *Sessions {
	return &Sessions{
		browser: b,
		guard:   g,
		opts:    opts,
		log:     logging.Module(log, "auth"),
		verdict: map[string]error{},
	}
}

// Open returns a fresh context for id. The caller closes it.
func (s *Sessions) Open(ctx context.Context, id models.Identity) (browser.Context, error) {
	if err, seen := s.verdict[id.ID]; seen && err != nil {
		return nil, err
	}
	if id.Session == nil {
		s.verdict[id.ID] = ErrNoSession
		s.log.Warn("identity skipped for this run", zap.String("identity", id.DisplayName()), zap.Error(ErrNoSession))
		return nil, ErrNoSession
	}
	bc, err := s.browser.NewContext(ctx, id, s.opts)
	if err != nil {
		return nil, eris.Wrapf(err, "auth: open context for %s", id.DisplayName())
	}
	if _, seen := s.verdict[id.ID]; !seen {
		if !s.guard.Verify(ctx, bc) {
			_ = bc.Close()
			s.verdict[id.ID] = ErrSessionInvalid
			s.log.Warn("identity skipped for this run", zap.String("identity", id.DisplayName()), zap.Error(ErrSessionInvalid))
			return nil, ErrSessionInvalid
		}
		s.verdict[id.ID] = nil
		s.log.Info("session verified", zap.String("identity", id.DisplayName()))
	}
	return bc, nil
}

// Skipped reports whether id has been excluded for the run.
func (s *Sessions) Skipped(id models.Identity) bool {
	err, seen := s.verdict[id.ID]
	return seen && err != nil
}

// IsIdentityFailure reports whether err should skip the identity rather than the profile.
func IsIdentityFailure(err error) bool {
	return eris.Is(err, ErrSessionInvalid) || eris.Is(err, ErrNoSession)
}
