// Package portal is the HTTP client for the cantonal vehicle registration
// portal: one Session per worker, carrying its own cookie jar.
package portal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	apperrors "github.com/anime-shed/plategate-go/internal/errors"
	"github.com/anime-shed/plategate-go/internal/logger"
	"github.com/anime-shed/plategate-go/pkg/models"
)

const (
	// AuthCookie is present exactly while the session is logged in
	AuthCookie = ".AUTOINDEXAUTH"
	// UserAgent is the browser the portal expects
	UserAgent = "Mozilla/5.0 (Windows NT 6.3; Win64, x64; Trident/7.0; rv:11.0) like Gecko"

	maxBodyBytes = 5 << 20
)

// Options configure the transport of a session
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	RetryMax    int
	RequestRate float64
}

// Session is a logged-in (or not yet logged-in) browser identity for one canton.
// It is not safe for concurrent use.
type Session struct {
	canton  models.Canton
	base    *url.URL
	client  *retryablehttp.Client
	limiter *rate.Limiter
}

// NewSession creates a session with an empty cookie jar
func NewSession(canton models.Canton, opts Options) (*Session, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" {
		return nil, apperrors.NewValidationError("invalid portal base URL", err)
	}
	jar, err := newJar()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create cookie jar", err)
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: newTransport(),
		Timeout:   opts.Timeout,
		Jar:       jar,
	}
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = leveledLogger{entry: logger.Component("portal").WithField("canton", string(canton))}

	s := &Session{canton: canton, base: base, client: client}
	if opts.RequestRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestRate), 1)
	}
	return s, nil
}

func newJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// newTransport sizes the connection pool for a single portal host
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func (s *Session) Canton() models.Canton { return s.canton }

func (s *Session) loginURL() string {
	u := s.base.ResolveReference(&url.URL{Path: "Login.aspx"})
	u.RawQuery = url.Values{"Kanton": {string(s.canton)}}.Encode()
	return u.String()
}

func (s *Session) pageURL(name string) string {
	return s.base.ResolveReference(&url.URL{Path: name}).String()
}

// LoginPage fetches the login form with a fresh captcha reference
func (s *Session) LoginPage(ctx context.Context) (*Page, error) {
	return s.page(ctx, http.MethodGet, s.loginURL(), nil)
}

// CaptchaImage downloads the captcha referenced by src. The status is returned
// so callers can skip images the portal failed to render.
func (s *Session) CaptchaImage(ctx context.Context, src string) ([]byte, int, error) {
	u, err := s.base.Parse(src)
	if err != nil {
		return nil, 0, apperrors.NewProcessingError("invalid captcha source", err)
	}
	resp, err := s.do(ctx, http.MethodGet, u.String(), nil, http.Header{"Referer": {s.loginURL()}})
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, apperrors.NewNetworkError("failed to read captcha", err)
	}
	return body, resp.StatusCode, nil
}

// Login posts solution into the captcha field of loginPage. Whether it
// worked is visible through AuthToken afterwards.
func (s *Session) Login(ctx context.Context, loginPage *Page, solution string) (*Page, error) {
	form, err := loginPage.HiddenFields()
	if err != nil {
		return nil, apperrors.NewTransientError("incomplete login page", err)
	}
	field, err := loginPage.CaptchaFieldID()
	if err != nil {
		return nil, apperrors.NewTransientError("incomplete login page", err)
	}
	form.Set(field, solution)
	return s.page(ctx, http.MethodPost, s.loginURL(), form)
}

// Search posts a plate number with the form state of submitPage
func (s *Session) Search(ctx context.Context, submitPage *Page, plate int) error {
	form, err := submitPage.HiddenFields()
	if err != nil {
		return apperrors.NewTransientError("incomplete search page", err)
	}
	form.Set("TextBoxKontrollschild", strconv.Itoa(plate))
	_, err = s.page(ctx, http.MethodPost, s.pageURL("Search.aspx"), form)
	return err
}

// Result fetches the result page of the last search
func (s *Session) Result(ctx context.Context) (*Page, error) {
	return s.page(ctx, http.MethodGet, s.pageURL("Result.aspx"), nil)
}

// NewSearch posts back a result page to obtain a fresh search form
func (s *Session) NewSearch(ctx context.Context, resultPage *Page) (*Page, error) {
	form, err := resultPage.HiddenFields()
	if err != nil {
		return nil, apperrors.NewTransientError("incomplete result page", err)
	}
	return s.page(ctx, http.MethodPost, s.pageURL("Result.aspx"), form)
}

// AuthToken returns the authentication cookie, if any
func (s *Session) AuthToken() (string, bool) {
	for _, c := range s.client.HTTPClient.Jar.Cookies(s.base) {
		if c.Name == AuthCookie && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// SetCookie stores a host cookie valid for the whole portal
func (s *Session) SetCookie(name, value string) {
	root := &url.URL{Scheme: s.base.Scheme, Host: s.base.Host, Path: "/"}
	s.client.HTTPClient.Jar.SetCookies(root, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

// ClearCookies drops every cookie, logging the session out
func (s *Session) ClearCookies() {
	jar, err := newJar()
	if err != nil {
		// cookiejar.New only fails on invalid options
		panic(err)
	}
	s.client.HTTPClient.Jar = jar
}

func (s *Session) page(ctx context.Context, method, target string, form url.Values) (*Page, error) {
	var body []byte
	header := http.Header{}
	if form != nil {
		body = []byte(form.Encode())
		header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := s.do(ctx, method, target, body, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("%s %s returned %d", method, target, resp.StatusCode), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to read page", err)
	}
	return ParsePage(bytes.NewReader(data))
}

func (s *Session) do(ctx context.Context, method, target string, body []byte, header http.Header) (*http.Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	var raw interface{}
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, raw)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build request", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewNetworkError(fmt.Sprintf("%s %s failed", method, target), err)
	}
	return resp, nil
}
