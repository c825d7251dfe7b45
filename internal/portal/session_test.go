package portal

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/plategate-go/internal/errors"
	"github.com/anime-shed/plategate-go/internal/logger"
	"github.com/anime-shed/plategate-go/internal/portal/portaltest"
	"github.com/anime-shed/plategate-go/pkg/models"
)

func init() {
	logger.SetOutput(io.Discard)
}

func newTestSession(t *testing.T, fake *portaltest.Server) *Session {
	t.Helper()
	s, err := NewSession(models.CantonZurich, Options{BaseURL: fake.BaseURL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	return s
}

func login(t *testing.T, s *Session, solution string) *Page {
	t.Helper()
	ctx := context.Background()
	page, err := s.LoginPage(ctx)
	require.NoError(t, err)
	src, err := page.CaptchaSource()
	require.NoError(t, err)
	img, status, err := s.CaptchaImage(ctx, src)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, img)

	next, err := s.Login(ctx, page, solution)
	require.NoError(t, err)
	return next
}

func TestNewSession_InvalidBaseURL(t *testing.T) {
	_, err := NewSession(models.CantonZurich, Options{BaseURL: "not a url"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestSession_LoginAndSearch(t *testing.T) {
	owner := models.Owner{Type: "Halter", Name: "Muster Hans", Street: "Bahnhofstrasse 1", City: "8001 Zürich"}
	fake := portaltest.New(portaltest.Config{Solution: "K7P2Q", Quota: 5, Owners: map[int][]models.Owner{42: {owner}}})
	defer fake.Close()

	s := newTestSession(t, fake)
	assert.Equal(t, models.CantonZurich, s.Canton())
	_, ok := s.AuthToken()
	assert.False(t, ok)

	submit := login(t, s, "K7P2Q")
	token, ok := s.AuthToken()
	require.True(t, ok)
	assert.NotEmpty(t, token)

	remaining, err := submit.RemainingTries()
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	ctx := context.Background()
	require.NoError(t, s.Search(ctx, submit, 42))
	result, err := s.Result(ctx)
	require.NoError(t, err)
	owners, err := result.Owners()
	require.NoError(t, err)
	assert.Equal(t, []models.Owner{owner}, owners)
	_, err = result.RemainingTries()
	assert.Error(t, err, "only search forms carry the query counter")

	next, err := s.NewSearch(ctx, result)
	require.NoError(t, err)
	remaining, err = next.RemainingTries()
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)

	stats := fake.Stats()
	assert.Equal(t, 1, stats.Logins)
	assert.Equal(t, 1, stats.Searches)
	assert.Equal(t, 1, stats.NewSearches)
}

func TestSession_WrongSolution(t *testing.T) {
	fake := portaltest.New(portaltest.Config{Solution: "K7P2Q"})
	defer fake.Close()

	s := newTestSession(t, fake)
	page := login(t, s, "WRONG")
	_, ok := s.AuthToken()
	assert.False(t, ok)

	_, err := page.CaptchaSource()
	assert.NoError(t, err, "a rejected login shows the form again")
}

func TestSession_CaptchaStatusPassedThrough(t *testing.T) {
	fake := portaltest.New(portaltest.Config{Solution: "K7P2Q", CaptchaFailures: 1})
	defer fake.Close()

	s := newTestSession(t, fake)
	ctx := context.Background()
	page, err := s.LoginPage(ctx)
	require.NoError(t, err)
	src, err := page.CaptchaSource()
	require.NoError(t, err)

	_, status, err := s.CaptchaImage(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)

	_, status, err = s.CaptchaImage(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestSession_CookiesAndReset(t *testing.T) {
	fake := portaltest.New(portaltest.Config{Solution: "K7P2Q", Quota: 3})
	defer fake.Close()

	s := newTestSession(t, fake)
	login(t, s, "K7P2Q")
	token, ok := s.AuthToken()
	require.True(t, ok)

	ctx := context.Background()
	s.SetCookie("ViaIndZH", "Anzahl=0&Date=14.10.2026&de-CH=de-CH")
	_, err := s.LoginPage(ctx)
	require.NoError(t, err)
	_, ok = s.AuthToken()
	assert.False(t, ok, "the login page logs the browser out")

	s.SetCookie(AuthCookie, token)
	restored, ok := s.AuthToken()
	require.True(t, ok)
	assert.Equal(t, token, restored)
	assert.Equal(t, 1, fake.Stats().QuotaResets)

	s.ClearCookies()
	_, ok = s.AuthToken()
	assert.False(t, ok)
}

func TestSession_ExpiredTokenDropsCookie(t *testing.T) {
	fake := portaltest.New(portaltest.Config{Solution: "K7P2Q"})
	defer fake.Close()

	s := newTestSession(t, fake)
	submit := login(t, s, "K7P2Q")
	fake.ExpireAll()

	require.NoError(t, s.Search(context.Background(), submit, 1))
	_, ok := s.AuthToken()
	assert.False(t, ok)
}

func TestSession_Cancelled(t *testing.T) {
	fake := portaltest.New(portaltest.Config{})
	defer fake.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestSession(t, fake).LoginPage(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_RateLimited(t *testing.T) {
	fake := portaltest.New(portaltest.Config{})
	defer fake.Close()

	s, err := NewSession(models.CantonZurich, Options{BaseURL: fake.BaseURL(), Timeout: 5 * time.Second, RequestRate: 20})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := s.LoginPage(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
