// Package search runs discovery: it walks a people-search results page,
// hands each new profile to an identity from the pool and records the outcome.
package search

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/prospector/internal/actions"
	"github.com/example/prospector/internal/auth"
	"github.com/example/prospector/internal/browser"
	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/connection"
	"github.com/example/prospector/internal/identity"
	"github.com/example/prospector/internal/logging"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/pacing"
	"github.com/example/prospector/internal/prospect"
	"github.com/example/prospector/internal/quota"
	"github.com/example/prospector/internal/selectors"
)

const (
	searchLoadTimeout = 60 * time.Second
	nameTimeout       = 3 * time.Second
	scrollStep        = 1800
)

// ErrFirstIdentity means the identity that owns the results page could not
// authenticate. Discovery cannot start without it.
var ErrFirstIdentity = eris.New("search: first identity not authenticated")

// Store is the slice of the store discovery uses.
type Store interface {
	quota.Counter
	ProfileExists(ctx context.Context, profileURL string) (bool, error)
	UpsertProspect(ctx context.Context, p models.Prospect) (bool, error)
	PatchProspect(ctx context.Context, profileURL string, p models.ProspectPatch) (bool, error)
	IncrementListCount(ctx context.Context, id string) (int, error)
}

// StopReason says why a discovery run ended.
type StopReason string

const (
	StopQuota      StopReason = "quota_reached"
	StopExhausted  StopReason = "scroll_exhausted"
	StopLoadFailed StopReason = "page_load_failed"
	StopCancelled  StopReason = "cancelled"
)

// Summary counts the outcomes of one run.
type Summary struct {
	Discovered int
	Duplicates int
	Processed  int
	Created    int
	ByStatus   map[models.Status]int
	Skipped    int
	Errors     int
	Stop       StopReason
}

type Service struct {
	rc       config.RunConfig
	st       Store
	sessions *auth.Sessions
	pool     []models.Identity
	inviter  *connection.Inviter
	pacer    *pacing.Pacer
	log      *zap.Logger
	// root is the unscoped logger handed to per-page helpers.
	root     *zap.Logger
}

func New(rc config.RunConfig, st Store, sessions *auth.Sessions, pool []models.Identity, pacer *pacing.Pacer, log *zap.Logger) *Service {
	return &Service{
		rc:       rc,
		st:       st,
		sessions: sessions,
		pool:     pool,
		inviter:  connection.NewInviter(rc.SendNote, rc.NoteText, log),
		pacer:    pacer,
		log:      logging.Module(log, "search"),
		root:     log,
	}
}

// run is the per-invocation state.
type run struct {
	seen    map[string]bool
	k       int
	tracker *quota.Tracker
	sum     Summary
}

// Run performs one discovery pass. It returns an error only for conditions
// that prevent discovery from starting.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	if len(s.pool) == 0 {
		return Summary{}, &identity.NoIdentitiesError{}
	}
	r := &run{
		seen:    map[string]bool{},
		tracker: quota.New(s.rc.Quota, s.rc.ListID, s.st, s.root),
		sum:     Summary{ByStatus: map[models.Status]int{}},
	}

	owner := s.pool[0]
	bc, err := s.sessions.Open(ctx, owner)
	if err != nil {
		if auth.IsIdentityFailure(err) {
			return r.sum, eris.Wrapf(ErrFirstIdentity, "%s: %v", owner.DisplayName(), err)
		}
		return r.sum, err
	}
	defer bc.Close()

	results, err := bc.NewPage(ctx)
	if err != nil {
		return r.sum, eris.Wrap(err, "search: open results page")
	}
	defer results.Close()

	s.log.Info("starting discovery",
		zap.String("search_url", s.rc.SearchURL),
		zap.Int("quota", r.tracker.Limit()),
		zap.String("list", s.rc.ListID),
		zap.Bool("collect_only", s.rc.CollectOnly),
		zap.String("rotation", string(s.rc.Rotation)),
		zap.Int("identities", len(s.pool)))

	if err := results.Navigate(s.rc.SearchURL, searchLoadTimeout); err != nil {
		s.log.Error("results page failed to load", zap.Error(err))
		s.artifact(results, "search_fail")
		r.sum.Stop = StopLoadFailed
		return r.sum, nil
	}
	s.pacer.Wait(ctx, pacing.AfterSearchLoad)

	r.sum.Stop = s.loop(ctx, r, results)
	s.log.Info("discovery finished",
		zap.String("stop", string(r.sum.Stop)),
		zap.Int("discovered", r.sum.Discovered),
		zap.Int("processed", r.sum.Processed),
		zap.Int("created", r.sum.Created),
		zap.Int("errors", r.sum.Errors))
	return r.sum, nil
}

func (s *Service) loop(ctx context.Context, r *run, results browser.Page) StopReason {
	scrolls := 0
	for {
		if ctx.Err() != nil {
			return StopCancelled
		}
		if r.tracker.Reached(ctx) {
			return StopQuota
		}

		fresh := s.freshLinks(ctx, r, results)
		if len(fresh) == 0 {
			if scrolls >= s.rc.MaxScrollAttempts {
				return StopExhausted
			}
			scrolls++
			s.log.Debug("no new links, scrolling", zap.Int("attempt", scrolls))
			if err := results.Scroll(scrollStep); err != nil {
				s.log.Warn("scroll failed", zap.Error(err))
			}
			s.pacer.Wait(ctx, pacing.AfterScroll)
			continue
		}
		scrolls = 0

		for _, link := range fresh {
			if ctx.Err() != nil {
				return StopCancelled
			}
			if r.tracker.Reached(ctx) {
				return StopQuota
			}
			id := identity.Assign(s.rc.Rotation, s.pool, r.k)
			r.k++
			s.process(ctx, r, link, id)
			s.pacer.Wait(ctx, pacing.BetweenProfiles)
		}
	}
}

// freshLinks scrapes the rendered results and keeps links neither seen this
// run nor already known to the store.
func (s *Service) freshLinks(ctx context.Context, r *run, results browser.Page) []string {
	html, err := results.HTML()
	if err != nil {
		s.log.Warn("results page unreadable", zap.Error(err))
		return nil
	}
	links, strategy, err := ExtractProfileLinks(html, s.rc.SiteBase)
	if err != nil {
		s.log.Warn("results page unparsable", zap.Error(err))
		return nil
	}
	var fresh []string
	for _, u := range links {
		if r.seen[u] {
			continue
		}
		r.seen[u] = true
		exists, err := s.st.ProfileExists(ctx, u)
		if err != nil {
			// Unknown means we might double-contact; skip it this run.
			s.log.Warn("existence check failed, skipping", zap.String("url", u), zap.Error(err))
			r.sum.Errors++
			continue
		}
		if exists {
			r.sum.Duplicates++
			continue
		}
		fresh = append(fresh, u)
	}
	r.sum.Discovered += len(fresh)
	if len(fresh) > 0 {
		s.log.Info("new profiles on results page", zap.Int("count", len(fresh)), zap.String("strategy", strategy))
	}
	return fresh
}

// process handles one profile in a fresh context under id. Failures stay here.
func (s *Service) process(ctx context.Context, r *run, link string, id models.Identity) {
	log := s.log.With(zap.Int("index", r.k), zap.String("url", link), zap.String("identity", id.DisplayName()))

	if s.sessions.Skipped(id) {
		r.sum.Skipped++
		log.Debug("identity excluded for this run, profile skipped")
		return
	}
	bc, err := s.sessions.Open(ctx, id)
	if err != nil {
		r.sum.Skipped++
		log.Warn("profile skipped, identity unavailable", zap.Error(err))
		return
	}
	defer bc.Close()

	page, err := bc.NewPage(ctx)
	if err != nil {
		r.sum.Errors++
		log.Error("page open failed", zap.Error(err))
		return
	}
	defer page.Close()

	r.tracker.Record()
	r.sum.Processed = r.tracker.Processed()

	if err := page.Navigate(link, s.rc.NavTimeout); err != nil {
		s.fail(ctx, r, log, page, link, err)
		return
	}
	a := actions.New(page, s.pacer, s.root)
	a.Pause(ctx, pacing.AfterNavigate)

	fullName := a.TextAny(selectors.NameHeading, nameTimeout)
	now := time.Now().UTC()
	p := models.Prospect{
		ProfileURL:     link,
		FullName:       fullName,
		FirstName:      prospect.FirstName(fullName),
		Status:         models.StatusNew,
		AssignedSender: id.ID,
		AssignedAt:     &now,
		LastChecked:    &now,
		ListID:         s.rc.ListID,
	}

	if !s.rc.CollectOnly {
		res := s.inviter.Invite(ctx, a, p.FirstName)
		p.Status = connection.Status(res.InviteOutcome, a)
		if p.Status != models.StatusNew {
			p.InvitedAt = &now
		}
		if res.NoteUsed {
			p.NoteSent = true
			p.NoteText = res.NoteText
			if !res.NoteConfirmed {
				p.LastError = connection.UnconfirmedNote
			}
		}
	}

	created, err := s.st.UpsertProspect(ctx, p)
	if err != nil {
		r.sum.Errors++
		log.Error("prospect not saved", zap.Error(err))
		return
	}
	if created {
		r.sum.Created++
		if s.rc.ListID != "" {
			if _, err := s.st.IncrementListCount(ctx, s.rc.ListID); err != nil {
				log.Warn("list count not advanced", zap.Error(err))
			}
		}
	}
	r.sum.ByStatus[p.Status]++
	log.Info("profile saved", zap.String("status", string(p.Status)), zap.Bool("note", p.NoteSent), zap.String("name", fullName))
}

// fail records a profile that could not be loaded. Discovery only visits
// profiles the store does not know, so the patch normally matches no row and
// the profile is picked up again on the next run. It lands only when another
// process saved the row in the meantime.
func (s *Service) fail(ctx context.Context, r *run, log *zap.Logger, page browser.Page, link string, cause error) {
	r.sum.Errors++
	log.Warn("profile failed", zap.Error(cause))
	s.artifact(page, "profile_fail")
	now := time.Now().UTC()
	msg := prospect.TruncateError(cause)
	if _, err := s.st.PatchProspect(ctx, link, models.ProspectPatch{LastError: &msg, LastChecked: &now}); err != nil {
		log.Warn("error not recorded", zap.Error(err))
	}
}

func (s *Service) artifact(p browser.Page, prefix string) {
	path, err := browser.SaveScreenshot(s.rc.ArtifactsDir, p, prefix)
	if err != nil {
		s.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	if path != "" {
		s.log.Info("screenshot saved", zap.String("path", path))
	}
}
