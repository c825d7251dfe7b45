// Package resolver drives one portal session through login, quota upkeep and
// plate lookups, recovering from expiry by starting over.
package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/plategate-go/internal/captcha"
	apperrors "github.com/anime-shed/plategate-go/internal/errors"
	"github.com/anime-shed/plategate-go/internal/logger"
	"github.com/anime-shed/plategate-go/internal/observer"
	"github.com/anime-shed/plategate-go/internal/ocr"
	"github.com/anime-shed/plategate-go/internal/oracle"
	"github.com/anime-shed/plategate-go/internal/portal"
	"github.com/anime-shed/plategate-go/pkg/models"
)

// ErrSessionExpired signals that the auth token disappeared during a lookup
var ErrSessionExpired = errors.New("session expired")

// Portal is the browser session the resolver steers; *portal.Session implements it
type Portal interface {
	Canton() models.Canton
	LoginPage(ctx context.Context) (*portal.Page, error)
	CaptchaImage(ctx context.Context, src string) ([]byte, int, error)
	Login(ctx context.Context, loginPage *portal.Page, solution string) (*portal.Page, error)
	Search(ctx context.Context, submitPage *portal.Page, plate int) error
	Result(ctx context.Context) (*portal.Page, error)
	NewSearch(ctx context.Context, resultPage *portal.Page) (*portal.Page, error)
	AuthToken() (string, bool)
	SetCookie(name, value string)
	ClearCookies()
}

// State is the position in the session lifecycle
type State string

const (
	StateNoSession   State = "no_session"
	StateLoggingIn   State = "logging_in"
	StateHasSession  State = "has_session"
	StateSubmitted   State = "submitted"
	StateResultReady State = "result_ready"
)

// Options tune timing and side channels of a resolver
type Options struct {
	Worker         int
	LoginPacing    time.Duration
	ResetPacing    time.Duration
	CaptchaWindow  time.Duration
	CaptchaDumpDir string
	Events         observer.Subject

	// Now and Sleep default to the wall clock
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions match the pacing the portal tolerates
func DefaultOptions() Options {
	return Options{
		LoginPacing:   3 * time.Second,
		ResetPacing:   3 * time.Second,
		CaptchaWindow: 60 * time.Second,
	}
}

// Resolver owns one Portal session. It is not safe for concurrent use.
type Resolver struct {
	portal   Portal
	engine   ocr.Engine
	denoiser *captcha.Denoiser
	opts     Options
	log      *logrus.Entry

	state      State
	submitPage *portal.Page
	resultPage *portal.Page
	dumped     int
}

// New creates a resolver without a session
func New(p Portal, engine ocr.Engine, opts Options) *Resolver {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.CaptchaWindow <= 0 {
		opts.CaptchaWindow = DefaultOptions().CaptchaWindow
	}
	return &Resolver{
		portal:   p,
		engine:   engine,
		denoiser: captcha.NewDenoiser(),
		opts:     opts,
		log: logger.Component("resolver").WithFields(logrus.Fields{
			"worker": opts.Worker,
			"canton": string(p.Canton()),
		}),
		state: StateNoSession,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns where the session currently is
func (r *Resolver) State() State { return r.state }

// VehicleOwners looks up the registration holders of plate, logging in and
// starting over as often as the portal requires. An empty result is a valid answer.
func (r *Resolver) VehicleOwners(ctx context.Context, plate int) ([]models.Owner, error) {
	if !models.ValidPlate(plate) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("plate must be in range [%d,%d], got %d", models.MinPlate, models.MaxPlate, plate), nil)
	}

	for restart := 0; ; restart++ {
		owners, err := r.lookup(ctx, plate)
		if err == nil {
			return owners, nil
		}
		if !errors.Is(err, ErrSessionExpired) || ctx.Err() != nil {
			return nil, err
		}
		r.log.WithFields(logrus.Fields{"plate": plate, "restart": restart + 1}).Warn("Session expired, clearing cookies")
		r.expire(ctx, plate, restart+1)
	}
}

func (r *Resolver) lookup(ctx context.Context, plate int) ([]models.Owner, error) {
	if err := r.prepareSubmit(ctx); err != nil {
		return nil, err
	}
	for retry := 0; ; retry++ {
		if err := r.submit(ctx, plate); err != nil {
			return nil, err
		}
		owners, final, err := r.interpret(plate)
		if err != nil {
			return nil, err
		}
		if final {
			return owners, nil
		}
		r.log.WithFields(logrus.Fields{"plate": plate, "retry": retry + 1}).Info("Stale search form, submitting again")
	}
}

func (r *Resolver) expire(ctx context.Context, plate, restart int) {
	r.portal.ClearCookies()
	r.submitPage, r.resultPage = nil, nil
	r.state = StateNoSession
	r.emit(ctx, observer.Event{Type: observer.SessionExpired, Plate: plate, Attempt: restart})
}

func (r *Resolver) prepareSubmit(ctx context.Context) error {
	if _, ok := r.portal.AuthToken(); !ok {
		return r.login(ctx)
	}
	return r.requestSubmitPage(ctx)
}

func (r *Resolver) login(ctx context.Context) error {
	r.state = StateLoggingIn
	for attempt := 1; ; attempt++ {
		loginPage, solution, first, err := r.solveCaptcha(ctx)
		if err != nil {
			return err
		}
		if err := r.opts.Sleep(ctx, r.opts.LoginPacing); err != nil {
			return err
		}
		next, err := r.portal.Login(ctx, loginPage, solution)
		if err != nil {
			return err
		}

		if _, ok := r.portal.AuthToken(); ok {
			outcome := models.LoginSucceededLaterGuess
			if first {
				outcome = models.LoginSucceededFirstGuess
			}
			r.submitPage, r.resultPage = next, nil
			r.state = StateHasSession
			r.emit(ctx, observer.Event{Type: observer.LoginAttempted, Outcome: outcome, Attempt: attempt})
			return nil
		}
		r.log.WithFields(logrus.Fields{"attempt": attempt, "solution": solution}).Info("Login rejected, solving a new captcha")
		r.emit(ctx, observer.Event{Type: observer.LoginAttempted, Outcome: models.LoginFailed, Attempt: attempt})
	}
}

// solveCaptcha collects readings of fresh captchas until the oracle agrees on
// one. Each login page gets its own oracle and time window.
func (r *Resolver) solveCaptcha(ctx context.Context) (*portal.Page, string, bool, error) {
	for round := 1; ; round++ {
		loginPage, err := r.portal.LoginPage(ctx)
		if err != nil {
			return nil, "", false, err
		}
		src, err := loginPage.CaptchaSource()
		if err != nil {
			return nil, "", false, apperrors.NewTransientError("login page without captcha", err)
		}

		votes := oracle.New()
		deadline := r.opts.Now().Add(r.opts.CaptchaWindow)
		for r.opts.Now().Before(deadline) {
			if err := ctx.Err(); err != nil {
				return nil, "", false, err
			}
			data, status, err := r.portal.CaptchaImage(ctx, src)
			if err != nil {
				return nil, "", false, err
			}
			if status != http.StatusOK {
				continue
			}
			if !votes.Add(r.read(ctx, data)) {
				continue
			}
			if solution, first, ok := votes.Guess(); ok {
				return loginPage, solution, first, nil
			}
		}
		r.log.WithFields(logrus.Fields{"round": round, "candidates": votes.Candidates()}).
			Debug("No captcha consensus in time, fetching a new login page")
	}
}

// read denoises and recognises one captcha; failures count as an empty reading
func (r *Resolver) read(ctx context.Context, data []byte) string {
	raw, err := captcha.Decode(bytes.NewReader(data))
	if err != nil {
		r.log.WithError(err).Debug("Unreadable captcha image")
		return ""
	}
	img := r.denoiser.Denoise(raw)
	r.dump(img)

	text, err := r.engine.Recognize(ctx, img.Gray())
	if err != nil {
		r.log.WithError(err).WithField("engine", r.engine.Name()).Debug("OCR failed")
		return ""
	}
	return text
}

func (r *Resolver) dump(img *captcha.Image) {
	if r.opts.CaptchaDumpDir == "" {
		return
	}
	r.dumped++
	name := fmt.Sprintf("captcha-w%d-%06d.png", r.opts.Worker, r.dumped)
	err := os.MkdirAll(r.opts.CaptchaDumpDir, 0o755)
	if err == nil {
		err = img.Save(filepath.Join(r.opts.CaptchaDumpDir, name))
	}
	if err != nil {
		r.log.WithError(err).Warn("Failed to dump captcha")
	}
}

// requestSubmitPage turns the last result page into a new search form,
// resetting the quota first when the previous search form shows it nearly
// used up. Result pages carry no counter.
func (r *Resolver) requestSubmitPage(ctx context.Context) error {
	if r.submitPage == nil || r.resultPage == nil {
		return apperrors.NewTransientError("session has no result page to continue from", ErrSessionExpired)
	}
	remaining, err := r.submitPage.RemainingTries()
	if err != nil {
		r.log.WithError(err).Debug("Unreadable query counter, treating quota as exhausted")
		remaining = 0
	}
	if remaining <= 1 {
		if err := r.resetQuota(ctx, remaining); err != nil {
			return err
		}
	}

	page, err := r.portal.NewSearch(ctx, r.resultPage)
	if err != nil {
		return err
	}
	if err := r.checkToken(); err != nil {
		return err
	}
	r.submitPage = page
	r.state = StateHasSession
	return nil
}

// resetQuota rewrites the portal's daily counter cookie while keeping the auth token
func (r *Resolver) resetQuota(ctx context.Context, remaining int) error {
	token, ok := r.portal.AuthToken()
	if !ok {
		return apperrors.NewTransientError("auth token missing before quota reset", ErrSessionExpired)
	}
	canton := r.portal.Canton()
	value := fmt.Sprintf("Anzahl=0&Date=%s&de-CH=de-CH", r.opts.Now().Format("02.01.2006"))
	r.portal.SetCookie("ViaInd"+string(canton), value)
	if _, err := r.portal.LoginPage(ctx); err != nil {
		return err
	}
	r.portal.SetCookie(portal.AuthCookie, token)

	r.log.WithField("remaining", remaining).Info("Query quota reset")
	r.emit(ctx, observer.Event{Type: observer.QuotaReset})
	return r.opts.Sleep(ctx, r.opts.ResetPacing)
}

func (r *Resolver) submit(ctx context.Context, plate int) error {
	r.state = StateSubmitted
	if err := r.portal.Search(ctx, r.submitPage, plate); err != nil {
		return err
	}
	if err := r.checkToken(); err != nil {
		return err
	}
	page, err := r.portal.Result(ctx)
	if err != nil {
		return err
	}
	if err := r.checkToken(); err != nil {
		return err
	}
	r.resultPage = page
	r.state = StateResultReady
	return nil
}

// interpret reports final=false when the portal wants the search posted again
func (r *Resolver) interpret(plate int) (owners []models.Owner, final bool, err error) {
	if r.resultPage.MissingKey() {
		r.submitPage = r.resultPage
		return nil, false, nil
	}
	owners, err = r.resultPage.Owners()
	if err != nil {
		return nil, false, apperrors.NewProcessingError("unparseable result page", err).WithDetails("%s-%d", r.portal.Canton(), plate)
	}
	r.state = StateHasSession
	return owners, true, nil
}

func (r *Resolver) checkToken() error {
	if _, ok := r.portal.AuthToken(); !ok {
		return apperrors.NewTransientError("auth token missing", ErrSessionExpired)
	}
	return nil
}

func (r *Resolver) emit(ctx context.Context, event observer.Event) {
	if r.opts.Events == nil {
		return
	}
	event.Worker = r.opts.Worker
	event.Canton = r.portal.Canton()
	r.opts.Events.NotifyObservers(ctx, event)
}
