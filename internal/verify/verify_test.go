package verify

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/prospector/internal/auth"
	"github.com/example/prospector/internal/browser"
	"github.com/example/prospector/internal/browser/browsertest"
	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/pacing"
	"github.com/example/prospector/internal/selectors"
	"github.com/example/prospector/internal/store"
)

const home = "https://www.linkedin.com/feed/"

func setup(t *testing.T) (*browsertest.Browser, *store.SQLite, *Service) {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "v.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	b := browsertest.New()
	guard := auth.NewGuard(home, []string{"login"}, time.Second, pacing.Off(), nil)
	sessions := auth.NewSessions(b, guard, browser.ContextOptions{}, nil)
	rc := config.RunConfig{Kind: config.RunVerification, Limit: 50, NavTimeout: time.Second}
	return b, st, New(rc, st, sessions, pacing.Off(), nil)
}

func seed(t *testing.T, st *store.SQLite, url, sender string, status models.Status) {
	t.Helper()
	_, err := st.UpsertProspect(context.Background(), models.Prospect{ProfileURL: url, Status: status, AssignedSender: sender, LastError: "old"})
	require.NoError(t, err)
}

func ident(id string) models.Identity {
	return models.Identity{ID: id, Name: id, Enabled: true, Session: &models.SessionState{}}
}

func TestRun_NoMessageControlKeepsInvited(t *testing.T) {
	b, st, svc := setup(t)
	url := "https://www.linkedin.com/in/ana"
	seed(t, st, url, "s1", models.StatusInvited)
	b.Sites[url] = &browsertest.Site{}

	sum := svc.Run(context.Background(), []models.Identity{ident("s1")})
	assert.Equal(t, 1, sum.Checked)
	assert.Equal(t, 1, sum.Pending)

	p, err := st.GetProspect(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvited, p.Status)
	assert.NotNil(t, p.LastChecked)
	assert.Nil(t, p.ConnectedAt)
}

func TestRun_MessageControlMarksConnected(t *testing.T) {
	b, st, svc := setup(t)
	byRole := "https://www.linkedin.com/in/role"
	byText := "https://www.linkedin.com/in/text"
	seed(t, st, byRole, "s1", models.StatusInvited)
	seed(t, st, byText, "s1", models.StatusInvited)
	b.Sites[byRole] = &browsertest.Site{Visible: browsertest.Set(selectors.MessageRole...)}
	b.Sites[byText] = &browsertest.Site{Visible: browsertest.Set(selectors.MessageText...)}

	sum := svc.Run(context.Background(), []models.Identity{ident("s1")})
	assert.Equal(t, 2, sum.Connected)

	for _, url := range []string{byRole, byText} {
		p, err := st.GetProspect(context.Background(), url)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConnected, p.Status)
		assert.NotNil(t, p.ConnectedAt)
		assert.Empty(t, p.LastError)
	}
	assert.Equal(t, 0, b.PagesOpen)
	assert.Equal(t, 0, b.ContextsOpen)
}

func TestRun_NavigationErrorTouchesOnly(t *testing.T) {
	b, st, svc := setup(t)
	url := "https://www.linkedin.com/in/slow"
	seed(t, st, url, "s1", models.StatusInvited)
	b.Sites[url] = &browsertest.Site{NavigateErr: errors.New("timeout")}

	sum := svc.Run(context.Background(), []models.Identity{ident("s1")})
	assert.Equal(t, 1, sum.Errors)

	p, err := st.GetProspect(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvited, p.Status)
	assert.NotNil(t, p.LastChecked)
}

func TestRun_PerIdentityRowsAndSkips(t *testing.T) {
	b, st, svc := setup(t)
	mine := "https://www.linkedin.com/in/mine"
	theirs := "https://www.linkedin.com/in/theirs"
	seed(t, st, mine, "s1", models.StatusInvited)
	seed(t, st, theirs, "s2", models.StatusInvited)
	b.Sites[mine] = &browsertest.Site{Visible: browsertest.Set(selectors.MessageRole...)}
	b.Sites[theirs] = &browsertest.Site{Visible: browsertest.Set(selectors.MessageRole...)}
	b.Denied["s2"] = true

	sum := svc.Run(context.Background(), []models.Identity{ident("s1"), ident("s2"), ident("s3")})
	assert.Equal(t, 1, sum.Connected)
	assert.Equal(t, 1, sum.SkippedIdentities)

	p, err := st.GetProspect(context.Background(), theirs)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvited, p.Status)
	// s3 had no rows, so no context was opened for it.
	assert.Equal(t, 2, b.ContextsTotal)
}
