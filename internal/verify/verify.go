// Package verify revisits invited prospects and marks those who accepted.
package verify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/prospector/internal/actions"
	"github.com/example/prospector/internal/auth"
	"github.com/example/prospector/internal/browser"
	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/lifecycle"
	"github.com/example/prospector/internal/logging"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/pacing"
	"github.com/example/prospector/internal/selectors"
)

// Store is the slice of the store verification uses.
type Store interface {
	FetchProspects(ctx context.Context, f models.ProspectFilter, limit int) ([]models.Prospect, error)
	PatchProspect(ctx context.Context, profileURL string, p models.ProspectPatch) (bool, error)
}

type Summary struct {
	Checked           int
	Connected         int
	Pending           int
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
	return &Service{rc: rc, st: st, sessions: sessions, pacer: pacer, log: logging.Module(log, "verify"), root: log}
}

// Run checks up to rc.Limit invited rows per identity. Per-row failures only
// touch last_checked; they never abort the batch.
func (s *Service) Run(ctx context.Context, pool []models.Identity) Summary {
	var sum Summary
	for _, id := range pool {
		if ctx.Err() != nil {
			break
		}
		s.runIdentity(ctx, id, &sum)
	}
	s.log.Info("verification finished",
		zap.Int("checked", sum.Checked),
		zap.Int("connected", sum.Connected),
		zap.Int("pending", sum.Pending),
		zap.Int("errors", sum.Errors))
	return sum
}

func (s *Service) runIdentity(ctx context.Context, id models.Identity, sum *Summary) {
	log := s.log.With(zap.String("identity", id.DisplayName()))
	rows, err := s.st.FetchProspects(ctx, models.ProspectFilter{Status: models.StatusInvited, AssignedSender: id.ID}, s.rc.Limit)
	if err != nil {
		sum.Errors++
		log.Error("invited rows not loaded", zap.Error(err))
		return
	}
	log.Info("invited rows to verify", zap.Int("count", len(rows)))
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
		if ctx.Err() != nil {
			return
		}
		s.check(ctx, bc, row, log.With(zap.Int("index", i+1), zap.Int("total", len(rows)), zap.String("url", row.ProfileURL)), sum)
		s.pacer.Wait(ctx, pacing.BetweenChecks)
	}
}

func (s *Service) check(ctx context.Context, bc browser.Context, row models.Prospect, log *zap.Logger, sum *Summary) {
	sum.Checked++
	page, err := bc.NewPage(ctx)
	if err != nil {
		sum.Errors++
		log.Error("page open failed", zap.Error(err))
		s.touch(ctx, row.ProfileURL, log)
		return
	}
	defer page.Close()

	if err := page.Navigate(row.ProfileURL, s.rc.NavTimeout); err != nil {
		sum.Errors++
		log.Warn("profile failed to load", zap.Error(err))
		s.touch(ctx, row.ProfileURL, log)
		return
	}
	a := actions.New(page, s.pacer, s.root)
	a.Pause(ctx, pacing.AfterNavigate)

	if !hasMessageControl(a) {
		sum.Pending++
		log.Info("still pending")
		s.touch(ctx, row.ProfileURL, log)
		return
	}

	next, ok := lifecycle.Next(row.Status, lifecycle.SignalMessageAffordance)
	if !ok {
		s.touch(ctx, row.ProfileURL, log)
		return
	}
	now := time.Now().UTC()
	applied, err := s.st.PatchProspect(ctx, row.ProfileURL, models.ProspectPatch{
		FromStatus:  row.Status,
		Status:      &next,
		ConnectedAt: &now,
		LastChecked: &now,
		ClearError:  true,
	})
	if err != nil {
		sum.Errors++
		log.Error("connected status not saved", zap.Error(err))
		return
	}
	if !applied {
		log.Info("row moved on since it was fetched, left as is")
		return
	}
	sum.Connected++
	log.Info("connected", zap.String("status", string(next)))
}

// hasMessageControl looks for the Message button by role, then by text.
func hasMessageControl(a *actions.Actor) bool {
	if _, ok := a.WaitAny(selectors.MessageRole, 3*time.Second); ok {
		return true
	}
	_, ok := a.WaitAny(selectors.MessageText, 2*time.Second)
	return ok
}

func (s *Service) touch(ctx context.Context, profileURL string, log *zap.Logger) {
	now := time.Now().UTC()
	if _, err := s.st.PatchProspect(ctx, profileURL, models.ProspectPatch{LastChecked: &now}); err != nil {
		log.Warn("last_checked not updated", zap.Error(err))
	}
}
