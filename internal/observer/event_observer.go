package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/plategate-go/pkg/models"
)

// Event is something a worker's session did worth counting or logging
type Event struct {
	Type      EventType           `json:"event_type"`
	Timestamp time.Time           `json:"timestamp"`
	Worker    int                 `json:"worker"`
	Canton    models.Canton       `json:"canton"`
	Plate     int                 `json:"plate,omitempty"`
	Outcome   models.LoginOutcome `json:"outcome"`
	Owners    int                 `json:"owners,omitempty"`
	Attempt   int                 `json:"attempt,omitempty"`
	Err       error               `json:"-"`
}

// EventType represents the type of session event
type EventType string

const (
	// LoginAttempted carries the outcome of one login form submission
	LoginAttempted EventType = "login_attempted"
	// QuotaReset when the daily query counter was rewritten
	QuotaReset EventType = "quota_reset"
	// SessionExpired when the auth token vanished mid-lookup
	SessionExpired EventType = "session_expired"
	// LookupFailed when a lookup attempt errored and will be retried
	LookupFailed EventType = "lookup_failed"
	// LookupCompleted when a plate was resolved
	LookupCompleted EventType = "lookup_completed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event Event)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event Event)
}

// LoggingObserver logs session events
type LoggingObserver struct {
	logger *logrus.Entry
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Entry) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event Event) {
	fields := logrus.Fields{
		"event_type": event.Type,
		"worker":     event.Worker,
		"canton":     event.Canton,
	}
	if event.Plate != 0 {
		fields["plate"] = event.Plate
	}
	if event.Attempt != 0 {
		fields["attempt"] = event.Attempt
	}
	entry := o.logger.WithFields(fields)
	if event.Err != nil {
		entry = entry.WithError(event.Err)
	}

	switch event.Type {
	case LoginAttempted:
		entry.WithField("outcome", event.Outcome.String()).Info("Login attempted")
	case QuotaReset:
		entry.Info("Query quota reset")
	case SessionExpired:
		entry.Warn("Session expired, starting over")
	case LookupFailed:
		entry.Warn("Exception while solving task")
	case LookupCompleted:
		entry.WithField("owners", event.Owners).Infof("found %d vehicle owners for %s-%d", event.Owners, event.Canton, event.Plate)
	default:
		entry.Info("Session event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// StatsObserver collects login statistics shared by all workers
type StatsObserver struct {
	mu          sync.Mutex
	outcomes    []models.LoginOutcome
	quotaResets int
	expirations int
	failures    int
}

// NewStatsObserver creates a new stats observer
func NewStatsObserver() *StatsObserver {
	return &StatsObserver{}
}

// OnEvent handles events by collecting counters
func (o *StatsObserver) OnEvent(ctx context.Context, event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Type {
	case LoginAttempted:
		o.outcomes = append(o.outcomes, event.Outcome)
	case QuotaReset:
		o.quotaResets++
	case SessionExpired:
		o.expirations++
	case LookupFailed:
		o.failures++
	}
}

// GetObserverName returns the observer name
func (o *StatsObserver) GetObserverName() string {
	return "stats_observer"
}

// Snapshot summarises everything recorded so far
type Snapshot struct {
	// Outcomes is the raw login outcome sequence in arrival order
	Outcomes    []models.LoginOutcome       `json:"outcomes"`
	Logins      map[models.LoginOutcome]int `json:"logins"`
	QuotaResets int                         `json:"quota_resets"`
	Expirations int                         `json:"expirations"`
	Failures    int                         `json:"failures"`
}

// Snapshot returns a copy of the current counters
func (o *StatsObserver) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Snapshot{
		Outcomes:    make([]models.LoginOutcome, len(o.outcomes)),
		Logins:      make(map[models.LoginOutcome]int),
		QuotaResets: o.quotaResets,
		Expirations: o.expirations,
		Failures:    o.failures,
	}
	copy(s.Outcomes, o.outcomes)
	for _, outcome := range o.outcomes {
		s.Logins[outcome]++
	}
	return s
}

// LoginStats converts the grouped counts into their wire form
func (s Snapshot) LoginStats() models.LoginStats {
	return models.LoginStats{
		Failed:     s.Logins[models.LoginFailed],
		FirstGuess: s.Logins[models.LoginSucceededFirstGuess],
		LaterGuess: s.Logins[models.LoginSucceededLaterGuess],
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(observers ...Observer) *EventPublisher {
	return &EventPublisher{
		observers: append(make([]Observer, 0, len(observers)), observers...),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer before returning, so a
// finished run has been fully counted
func (p *EventPublisher) NotifyObservers(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the worker
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
