// Package messaging sends the follow-up direct message to accepted connections.
package messaging

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/prospector/internal/actions"
	"github.com/example/prospector/internal/auth"
	"github.com/example/prospector/internal/browser"
	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/lifecycle"
	"github.com/example/prospector/internal/logging"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/pacing"
	"github.com/example/prospector/internal/prospect"
	"github.com/example/prospector/internal/selectors"
)

const (
	buttonTimeout   = 5 * time.Second
	composerTimeout = 5 * time.Second
)

var (
	errNoMessageButton = eris.New("messaging: message button not found")
	errNoComposer      = eris.New("messaging: composer not found")
)

// Store is the slice of the store messaging uses.
type Store interface {
	FetchProspects(ctx context.Context, f models.ProspectFilter, limit int) ([]models.Prospect, error)
	PatchProspect(ctx context.Context, profileURL string, p models.ProspectPatch) (bool, error)
}

type Summary struct {
	Attempted         int
	Sent              int
	Errors            int
	SkippedIdentities int
}

type Service struct {
	rc       config.RunConfig
	st       Store
	sessions *auth.Sessions
	pacer    *pacing.Pacer
	log      *zap.Logger
	// root is the unscoped logger handed to per-page helpers.
	root     *zap.Logger
}

func New(rc config.RunConfig, st Store, sessions *auth.Sessions, pacer *pacing.Pacer, log *zap.Logger) *Service {
	return &Service{rc: rc, st: st, sessions: sessions, pacer: pacer, log: logging.Module(log, "messaging"), root: log}
}

// Run messages connected rows identity by identity until rc.Limit attempts
// have been made in total. A failed send leaves the row connected.
func (s *Service) Run(ctx context.Context, pool []models.Identity) Summary {
	var sum Summary
	for _, id := range pool {
		if ctx.Err() != nil || sum.Attempted >= s.rc.Limit {
			break
		}
		if id.Session == nil {
			sum.SkippedIdentities++
			s.log.Warn("identity has no session, skipped", zap.String("identity", id.DisplayName()))
			continue
		}
		s.runIdentity(ctx, id, &sum)
	}
	s.log.Info("messaging finished",
		zap.Int("attempted", sum.Attempted),
		zap.Int("sent", sum.Sent),
		zap.Int("errors", sum.Errors))
	return sum
}

func (s *Service) runIdentity(ctx context.Context, id models.Identity, sum *Summary) {
	log := s.log.With(zap.String("identity", id.DisplayName()))
	rows, err := s.st.FetchProspects(ctx, models.ProspectFilter{Status: models.StatusConnected, AssignedSender: id.ID}, s.rc.Limit-sum.Attempted)
	if err != nil {
		sum.Errors++
		log.Error("connected rows not loaded", zap.Error(err))
		return
	}
	log.Info("connected rows to message", zap.Int("count", len(rows)))
	if len(rows) == 0 {
		return
	}

	bc, err := s.sessions.Open(ctx, id)
	if err != nil {
		sum.SkippedIdentities++
		log.Warn("identity skipped", zap.Error(err))
		return
	}
	defer bc.Close()

	for i, row := range rows {
		if ctx.Err() != nil || sum.Attempted >= s.rc.Limit {
			return
		}
		sum.Attempted++
		rlog := log.With(zap.Int("index", i+1), zap.Int("total", len(rows)), zap.String("url", row.ProfileURL))
		text := prospect.MessageText(row.DMText, s.rc.DefaultDM, row.FirstName)
		if err := s.sendOne(ctx, bc, row.ProfileURL, text); err != nil {
			sum.Errors++
			rlog.Warn("message not sent", zap.Error(err))
		} else if s.markMessaged(ctx, row, text, rlog) {
			sum.Sent++
		} else {
			sum.Errors++
		}
		s.pacer.Wait(ctx, pacing.BetweenChecks)
	}
}

// sendOne opens the profile in a fresh page and sends text through the composer.
func (s *Service) sendOne(ctx context.Context, bc browser.Context, profileURL, text string) error {
	page, err := bc.NewPage(ctx)
	if err != nil {
		return eris.Wrap(err, "messaging: open page")
	}
	defer page.Close()

	if err := page.Navigate(profileURL, s.rc.NavTimeout); err != nil {
		return eris.Wrap(err, "messaging: load profile")
	}
	a := actions.New(page, s.pacer, s.root)
	a.Pause(ctx, pacing.AfterNavigate)

	if !a.ClickAny(selectors.MessageRole, buttonTimeout) && !a.ClickAny(selectors.MessageText, buttonTimeout) {
		return errNoMessageButton
	}
	a.Pause(ctx, pacing.AfterComposer)

	editor, ok := a.WaitAny(selectors.Composer, composerTimeout)
	if !ok {
		return errNoComposer
	}
	if !a.ClickAny([]browser.Locator{editor}, composerTimeout) {
		return errNoComposer
	}
	a.Pause(ctx, pacing.BeforeTyping)
	if err := page.Type(text); err != nil {
		return eris.Wrap(err, "messaging: type")
	}
	a.Pause(ctx, pacing.AfterTyping)
	if err := page.PressEnter(); err != nil {
		return eris.Wrap(err, "messaging: submit")
	}
	a.Pause(ctx, pacing.AfterSend)
	return nil
}

func (s *Service) markMessaged(ctx context.Context, row models.Prospect, text string, log *zap.Logger) bool {
	next, ok := lifecycle.Next(row.Status, lifecycle.SignalMessageDelivered)
	if !ok {
		log.Warn("row not in a messageable status", zap.String("status", string(row.Status)))
		return false
	}
	now := time.Now().UTC()
	applied, err := s.st.PatchProspect(ctx, row.ProfileURL, models.ProspectPatch{
		FromStatus:    row.Status,
		Status:        &next,
		MessageSentAt: &now,
		LastChecked:   &now,
		DMText:        &text,
		ClearError:    true,
	})
	if err != nil {
		log.Error("messaged status not saved", zap.Error(err))
		return false
	}
	if !applied {
		log.Warn("row moved on since it was fetched, left as is")
		return false
	}
	log.Info("message sent", zap.String("status", string(next)))
	return true
}
