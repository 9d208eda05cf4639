package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/prospector/internal/browser"
	"github.com/example/prospector/internal/browser/browsertest"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/pacing"
)

const home = "https://www.linkedin.com/feed/"

var markers = []string{"login", "challenge", "uas/login"}

func newGuard() *Guard {
	return NewGuard(home, markers, time.Second, pacing.Off(), nil)
}

func withSession(id string) models.Identity {
	return models.Identity{ID: id, Name: id, Enabled: true, Session: &models.SessionState{}}
}

func TestVerify_Authenticated(t *testing.T) {
	b := browsertest.New()
	bc, err := b.NewContext(context.Background(), withSession("a"), browser.ContextOptions{})
	require.NoError(t, err)

	assert.True(t, newGuard().Verify(context.Background(), bc))
	assert.Equal(t, 0, b.PagesOpen, "transient page must be closed")
}

func TestVerify_RedirectedToLogin(t *testing.T) {
	b := browsertest.New()
	b.Denied["a"] = true
	bc, err := b.NewContext(context.Background(), withSession("a"), browser.ContextOptions{})
	require.NoError(t, err)

	assert.False(t, newGuard().Verify(context.Background(), bc))
	assert.Equal(t, 0, b.PagesOpen)
}

func TestVerify_NavigationError(t *testing.T) {
	b := browsertest.New()
	b.Sites[home] = &browsertest.Site{NavigateErr: errors.New("timeout")}
	bc, err := b.NewContext(context.Background(), withSession("a"), browser.ContextOptions{})
	require.NoError(t, err)

	assert.False(t, newGuard().Verify(context.Background(), bc))
	assert.Equal(t, 0, b.PagesOpen)
}

func TestIsLoginURL(t *testing.T) {
	assert.True(t, IsLoginURL("https://www.linkedin.com/checkpoint/challenge/xyz", markers))
	assert.True(t, IsLoginURL("https://www.linkedin.com/UAS/LOGIN", markers))
	assert.False(t, IsLoginURL("https://www.linkedin.com/feed/", markers))
}

func TestSessions_GuardOncePerIdentity(t *testing.T) {
	b := browsertest.New()
	s := NewSessions(b, newGuard(), browser.ContextOptions{}, nil)
	id := withSession("a")

	for i := 0; i < 3; i++ {
		bc, err := s.Open(context.Background(), id)
		require.NoError(t, err)
		require.NoError(t, bc.Close())
	}
	assert.Len(t, b.Actions("navigate", home), 1)
	assert.Equal(t, 0, b.ContextsOpen)
}

func TestSessions_FailedIdentityStaysSkipped(t *testing.T) {
	b := browsertest.New()
	b.Denied["bad"] = true
	s := NewSessions(b, newGuard(), browser.ContextOptions{}, nil)

	_, err := s.Open(context.Background(), withSession("bad"))
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.True(t, s.Skipped(withSession("bad")))
	assert.Equal(t, 0, b.ContextsOpen, "failed context must be closed")

	total := b.ContextsTotal
	_, err = s.Open(context.Background(), withSession("bad"))
	assert.True(t, IsIdentityFailure(err))
	assert.Equal(t, total, b.ContextsTotal, "no new context for a skipped identity")

	good, err := s.Open(context.Background(), withSession("good"))
	require.NoError(t, err)
	require.NoError(t, good.Close())
}

func TestSessions_NoSession(t *testing.T) {
	b := browsertest.New()
	s := NewSessions(b, newGuard(), browser.ContextOptions{}, nil)

	_, err := s.Open(context.Background(), models.Identity{ID: "x"})
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, 0, b.ContextsTotal)
}
