package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/prospector/internal/models"
)

func newSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestSQLite_Identities(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	require.NoError(t, s.PutIdentity(ctx, models.IdentityRecord{ID: "a", Name: "Alice", Enabled: true, SessionState: []byte(`{"cookies":[]}`)}))
	require.NoError(t, s.PutIdentity(ctx, models.IdentityRecord{ID: "b", Name: "Bob", Enabled: false}))
	require.NoError(t, s.PutIdentity(ctx, models.IdentityRecord{ID: "c", Name: "Cara", Enabled: true}))

	all, err := s.GetEnabledIdentities(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, `{"cookies":[]}`, string(all[0].SessionState))

	only, err := s.GetEnabledIdentities(ctx, []string{"b", "c"})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "c", only[0].ID)
	assert.Empty(t, only[0].SessionState)
}

func TestSQLite_UpsertCreatedAndMerge(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	url := "https://www.linkedin.com/in/ana"

	created, err := s.UpsertProspect(ctx, models.Prospect{ProfileURL: url, FullName: "Ana Lima", FirstName: "Ana", Status: models.StatusInvited, AssignedSender: "a"})
	require.NoError(t, err)
	assert.True(t, created)

	exists, err := s.ProfileExists(ctx, url)
	require.NoError(t, err)
	assert.True(t, exists)

	created, err = s.UpsertProspect(ctx, models.Prospect{ProfileURL: url, Status: models.StatusNew})
	require.NoError(t, err)
	assert.False(t, created)

	p, err := s.GetProspect(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvited, p.Status, "status must not move backwards")
	assert.Equal(t, "Ana Lima", p.FullName, "empty fields must not blank stored ones")
	assert.Equal(t, "a", p.AssignedSender)
}

func TestSQLite_PatchConditional(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	url := "https://www.linkedin.com/in/bo"
	_, err := s.UpsertProspect(ctx, models.Prospect{ProfileURL: url, Status: models.StatusInvited, LastError: "boom"})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	applied, err := s.PatchProspect(ctx, url, models.ProspectPatch{
		FromStatus:  models.StatusConnected,
		Status:      ptr(models.StatusMessaged),
		LastChecked: &now,
	})
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = s.PatchProspect(ctx, url, models.ProspectPatch{
		FromStatus:  models.StatusInvited,
		Status:      ptr(models.StatusConnected),
		ConnectedAt: &now,
		LastChecked: &now,
		ClearError:  true,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	p, err := s.GetProspect(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConnected, p.Status)
	require.NotNil(t, p.ConnectedAt)
	assert.True(t, now.Equal(*p.ConnectedAt))
	assert.Empty(t, p.LastError)

	applied, err = s.PatchProspect(ctx, url, models.ProspectPatch{Status: ptr(models.StatusInvited)})
	require.NoError(t, err)
	assert.False(t, applied, "backward move must be refused")
}

func TestSQLite_FetchProspects(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	for _, p := range []models.Prospect{
		{ProfileURL: "https://x/in/1", Status: models.StatusInvited, AssignedSender: "a"},
		{ProfileURL: "https://x/in/2", Status: models.StatusInvited, AssignedSender: "b"},
		{ProfileURL: "https://x/in/3", Status: models.StatusConnected, AssignedSender: "a", DMText: "hey"},
		{ProfileURL: "https://x/in/4", Status: models.StatusInvited, AssignedSender: "a"},
	} {
		_, err := s.UpsertProspect(ctx, p)
		require.NoError(t, err)
	}

	rows, err := s.FetchProspects(ctx, models.ProspectFilter{Status: models.StatusInvited, AssignedSender: "a"}, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = s.FetchProspects(ctx, models.ProspectFilter{Status: models.StatusInvited, AssignedSender: "a"}, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = s.FetchProspects(ctx, models.ProspectFilter{Status: models.StatusConnected}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hey", rows[0].DMText)
}

func TestSQLite_Lists(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	require.NoError(t, s.PutList(ctx, models.List{ID: "L1", SearchURL: "https://x/search", ProfileLimit: 3}))

	l, err := s.GetList(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, 3, l.ProfileLimit)

	n, err := s.IncrementListCount(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementListCount(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.PatchList(ctx, "L1", models.ListPatch{ProfileCount: ptr(7)}))
	n, err = s.GetListCount(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = s.GetList(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.IncrementListCount(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Settings(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	v, err := s.GetSetting(ctx, "LOCALE", "en-US")
	require.NoError(t, err)
	assert.Equal(t, "en-US", v)

	require.NoError(t, s.PutSetting(ctx, "LOCALE", "pt-BR"))
	v, err = s.GetSetting(ctx, "LOCALE", "en-US")
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", v)

	require.NoError(t, s.PutSetting(ctx, "DEFAULT_DM", "  "))
	v, err = s.GetSetting(ctx, "DEFAULT_DM", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}
