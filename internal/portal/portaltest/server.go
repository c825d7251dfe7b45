// Package portaltest runs an in-memory imitation of the registration portal
// for tests: login with captcha, quota counter, search and result pages.
package portaltest

import (
	"bytes"
	"fmt"
	"html/template"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/anime-shed/plategate-go/pkg/models"
)

const (
	authCookie    = ".AUTOINDEXAUTH"
	captchaField  = "TextBoxCode"
	missingKeyMsg = "The given key was not present in the dictionary."
)

// Config shapes the behaviour of the fake portal
type Config struct {
	Canton   models.Canton
	Solution string
	// Quota is the number of searches allowed per session before a reset
	Quota int
	// Owners maps plate numbers to their registration holders
	Owners map[int][]models.Owner
	// MissingKey lists plates whose first search returns the dictionary error
	MissingKey map[int]bool
	// CaptchaFailures is the number of captcha requests answered with 404 first
	CaptchaFailures int
	// ExpireAfter drops the session after that many searches, 0 disables
	ExpireAfter int
}

// Stats counts what clients did against the fake
type Stats struct {
	LoginPages      int
	Captchas        int
	LoginAttempts   int
	Logins          int
	Searches        int
	Results         int
	NewSearches     int
	QuotaResets     int
	QuotaViolations int
	Expirations     int
}

type session struct {
	used      int
	searches  int
	plate     int
	missing   map[int]bool
	canton    models.Canton
	submitted bool
}

// Server is a running fake portal
type Server struct {
	*httptest.Server

	cfg      Config
	mu       sync.Mutex
	sessions map[string]*session
	stats    Stats
	captchas int
}

// New starts a fake portal. Close it when done.
func New(cfg Config) *Server {
	if cfg.Canton == "" {
		cfg.Canton = models.CantonZurich
	}
	if cfg.Quota <= 0 {
		cfg.Quota = 100
	}
	s := &Server{cfg: cfg, sessions: make(map[string]*session)}

	mux := http.NewServeMux()
	mux.HandleFunc("/eindex/Login.aspx", s.handleLogin)
	mux.HandleFunc("/eindex/Captcha.aspx", s.handleCaptcha)
	mux.HandleFunc("/eindex/Search.aspx", s.handleSearch)
	mux.HandleFunc("/eindex/Result.aspx", s.handleResult)
	s.Server = httptest.NewServer(mux)
	return s
}

// BaseURL is the portal root to configure clients with
func (s *Server) BaseURL() string {
	return s.URL + "/eindex/"
}

// Stats returns a snapshot of the counters
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ExpireAll invalidates every session server side
func (s *Server) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*session)
}

func (s *Server) current(r *http.Request) (string, *session) {
	c, err := r.Cookie(authCookie)
	if err != nil {
		return "", nil
	}
	return c.Value, s.sessions[c.Value]
}

func dropAuth(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: authCookie, Value: "", Path: "/", MaxAge: -1})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		s.stats.LoginPages++
		if _, sess := s.current(r); sess != nil {
			if c, err := r.Cookie("ViaInd" + string(sess.canton)); err == nil && strings.HasPrefix(c.Value, "Anzahl=0&Date=") {
				sess.used = 0
				s.stats.QuotaResets++
			}
		}
		// visiting the login page logs the browser out, the token stays valid
		dropAuth(w)
		s.render(w, loginTemplate, pageData{Canton: string(s.cfg.Canton), Captcha: s.captchas})
	case http.MethodPost:
		s.stats.LoginAttempts++
		if err := r.ParseForm(); err != nil || !hasHiddenFields(r) {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get(captchaField) != s.cfg.Solution {
			s.render(w, loginTemplate, pageData{Canton: string(s.cfg.Canton), Captcha: s.captchas, Failed: true})
			return
		}
		token := uuid.NewString()
		s.sessions[token] = &session{missing: make(map[int]bool), canton: s.cfg.Canton}
		s.stats.Logins++
		http.SetCookie(w, &http.Cookie{Name: authCookie, Value: token, Path: "/"})
		s.render(w, searchTemplate, pageData{Used: 0, Quota: s.cfg.Quota})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.stats.Captchas++
	s.captchas++
	fail := s.stats.Captchas <= s.cfg.CaptchaFailures
	s.mu.Unlock()

	if r.Header.Get("Referer") == "" {
		http.Error(w, "missing referer", http.StatusForbidden)
		return
	}
	if fail {
		http.NotFound(w, r)
		return
	}
	img := image.NewGray(image.Rect(0, 0, 60, 20))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for y := 4; y < 16; y++ {
		for x := 4; x < 12; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	w.Header().Set("Content-Type", "image/png")
	_ = png.Encode(w, img)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, sess := s.current(r)
	if sess == nil || r.Method != http.MethodPost {
		dropAuth(w)
		s.render(w, loginTemplate, pageData{Canton: string(s.cfg.Canton)})
		return
	}
	if err := r.ParseForm(); err != nil || !hasHiddenFields(r) {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	plate, err := strconv.Atoi(r.PostForm.Get("TextBoxKontrollschild"))
	if err != nil {
		http.Error(w, "bad plate", http.StatusBadRequest)
		return
	}

	s.stats.Searches++
	if sess.used >= s.cfg.Quota {
		s.stats.QuotaViolations++
	}
	sess.used++
	sess.searches++
	sess.plate = plate
	sess.submitted = true

	if s.cfg.ExpireAfter > 0 && sess.searches > s.cfg.ExpireAfter {
		delete(s.sessions, token)
		s.stats.Expirations++
		dropAuth(w)
		s.render(w, loginTemplate, pageData{Canton: string(s.cfg.Canton)})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, sess := s.current(r)
	if sess == nil {
		dropAuth(w)
		s.render(w, loginTemplate, pageData{Canton: string(s.cfg.Canton)})
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.stats.Results++
		var data pageData
		if sess.submitted {
			if s.cfg.MissingKey[sess.plate] && !sess.missing[sess.plate] {
				sess.missing[sess.plate] = true
				data.MissingKey = missingKeyMsg
			} else {
				data.Owners = s.cfg.Owners[sess.plate]
			}
		}
		s.render(w, resultTemplate, data)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil || !hasHiddenFields(r) {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		s.stats.NewSearches++
		sess.submitted = false
		s.render(w, searchTemplate, pageData{Used: sess.used, Quota: s.cfg.Quota})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func hasHiddenFields(r *http.Request) bool {
	for _, k := range []string{"__VIEWSTATE", "__VIEWSTATEGENERATOR", "__EVENTVALIDATION"} {
		if r.PostForm.Get(k) == "" {
			return false
		}
	}
	return true
}

type pageData struct {
	Canton     string
	Captcha    int
	Failed     bool
	Used       int
	Quota      int
	Owners     []models.Owner
	MissingKey string
}

func (s *Server) render(w http.ResponseWriter, t *template.Template, data pageData) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		http.Error(w, fmt.Sprintf("render: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
