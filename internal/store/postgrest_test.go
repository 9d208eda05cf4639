package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/models"
)

type recorded struct {
	Method string
	Path   string
	Query  map[string]string
	Prefer string
	Body   map[string]any
}

type fakeREST struct {
	mu    sync.Mutex
	calls []recorded
	reply func(r recorded) (int, any)
}

func (f *fakeREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}, Prefer: r.Header.Get("Prefer")}
	for k := range r.URL.Query() {
		rec.Query[k] = r.URL.Query().Get(k)
	}
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &rec.Body)
	}
	if r.Header.Get("apikey") != "k" || r.Header.Get("Authorization") != "Bearer k" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, rec)
	f.mu.Unlock()

	code, body := http.StatusOK, any([]any{})
	if f.reply != nil {
		code, body = f.reply(rec)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func newPostgREST(t *testing.T, f *fakeREST) *PostgREST {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewPostgREST(config.PostgRESTConfig{
		URL:            srv.URL,
		Key:            "k",
		ProspectsTable: "li_prospects",
		SendersTable:   "li_senders",
		ListsTable:     "li_lists",
		SettingsTable:  "li_settings",
		TimeoutSecs:    5,
	}, nil)
}

func TestPostgREST_Identities(t *testing.T) {
	f := &fakeREST{reply: func(r recorded) (int, any) {
		return 200, []map[string]any{
			{"id": "s1", "name": "One", "enabled": true, "storage_state": map[string]any{"cookies": []any{}}},
			{"id": "s2", "name": "Two", "enabled": true, "storage_state": "{\"cookies\":[]}"},
		}
	}}
	s := newPostgREST(t, f)

	recs, err := s.GetEnabledIdentities(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.JSONEq(t, `{"cookies":[]}`, string(recs[0].SessionState))
	assert.Equal(t, `"{\"cookies\":[]}"`, string(recs[1].SessionState))

	require.Len(t, f.calls, 1)
	assert.Equal(t, "/rest/v1/li_senders", f.calls[0].Path)
	assert.Equal(t, "in.(s1,s2)", f.calls[0].Query["id"])
	assert.Equal(t, "eq.true", f.calls[0].Query["enabled"])
}

func TestPostgREST_UpsertNeverMovesBackwards(t *testing.T) {
	f := &fakeREST{reply: func(r recorded) (int, any) {
		if r.Method == http.MethodGet {
			return 200, []map[string]any{{"status": "connected"}}
		}
		return 201, nil
	}}
	s := newPostgREST(t, f)

	created, err := s.UpsertProspect(context.Background(), models.Prospect{ProfileURL: "https://x/in/a", Status: models.StatusInvited, FullName: "A"})
	require.NoError(t, err)
	assert.False(t, created)

	require.Len(t, f.calls, 2)
	post := f.calls[1]
	assert.Equal(t, http.MethodPost, post.Method)
	assert.Equal(t, "profile_url", post.Query["on_conflict"])
	assert.Contains(t, post.Prefer, "resolution=merge-duplicates")
	assert.NotContains(t, post.Body, "status")
	assert.Equal(t, "A", post.Body["full_name"])
}

func TestPostgREST_UpsertCreates(t *testing.T) {
	f := &fakeREST{reply: func(r recorded) (int, any) {
		if r.Method == http.MethodGet {
			return 200, []any{}
		}
		return 201, nil
	}}
	s := newPostgREST(t, f)

	created, err := s.UpsertProspect(context.Background(), models.Prospect{ProfileURL: "https://x/in/a"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "new", f.calls[1].Body["status"])
}

func TestPostgREST_PatchConditional(t *testing.T) {
	f := &fakeREST{reply: func(r recorded) (int, any) { return 200, []any{} }}
	s := newPostgREST(t, f)

	st := models.StatusConnected
	applied, err := s.PatchProspect(context.Background(), "https://x/in/a", models.ProspectPatch{
		FromStatus: models.StatusInvited,
		Status:     &st,
		ClearError: true,
	})
	require.NoError(t, err)
	assert.False(t, applied)

	call := f.calls[0]
	assert.Equal(t, http.MethodPatch, call.Method)
	assert.Equal(t, "eq.https://x/in/a", call.Query["profile_url"])
	assert.Equal(t, "eq.invited", call.Query["status"])
	assert.Equal(t, "connected", call.Body["status"])
	assert.Contains(t, call.Body, "last_error")
	assert.Nil(t, call.Body["last_error"])
}

func TestPostgREST_PatchOnlyForward(t *testing.T) {
	f := &fakeREST{reply: func(r recorded) (int, any) { return 200, []map[string]any{{"status": "connected"}} }}
	s := newPostgREST(t, f)

	st := models.StatusConnected
	applied, err := s.PatchProspect(context.Background(), "https://x/in/a", models.ProspectPatch{Status: &st})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "in.(new,invited,connected)", f.calls[0].Query["status"])
}

func TestPostgREST_UpsertMovesForward(t *testing.T) {
	f := &fakeREST{reply: func(r recorded) (int, any) {
		if r.Method == http.MethodGet {
			return 200, []map[string]any{{"status": "invited"}}
		}
		return 201, nil
	}}
	s := newPostgREST(t, f)

	created, err := s.UpsertProspect(context.Background(), models.Prospect{ProfileURL: "https://x/in/a", Status: models.StatusConnected})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "connected", f.calls[1].Body["status"])
}

func TestPostgREST_IncrementListCount(t *testing.T) {
	f := &fakeREST{reply: func(r recorded) (int, any) {
		if r.Method == http.MethodGet {
			return 200, []map[string]any{{"id": "L1", "profile_limit": 5, "profile_count": 2}}
		}
		return 204, nil
	}}
	s := newPostgREST(t, f)

	n, err := s.IncrementListCount(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, f.calls, 2)
	assert.EqualValues(t, 3, f.calls[1].Body["profile_count"])
}

func TestPostgREST_SettingsAndErrors(t *testing.T) {
	f := &fakeREST{reply: func(r recorded) (int, any) {
		switch r.Query["key"] {
		case "eq.LOCALE":
			return 200, []map[string]any{{"value": "de-DE"}}
		case "eq.BROKEN":
			return 500, map[string]any{"message": "down"}
		}
		return 200, []any{}
	}}
	s := newPostgREST(t, f)
	ctx := context.Background()

	v, err := s.GetSetting(ctx, "LOCALE", "en-US")
	require.NoError(t, err)
	assert.Equal(t, "de-DE", v)

	v, err = s.GetSetting(ctx, "MISSING", "x")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = s.GetSetting(ctx, "BROKEN", "y")
	assert.Error(t, err)
	assert.Equal(t, "y", v)

	_, err = s.GetList(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
