package observer

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/anime-shed/plategate-go/pkg/models"
)

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, Event) { panic("boom") }
func (panickingObserver) GetObserverName() string        { return "panicking" }

func TestStatsObserver_ConcurrentLogins(t *testing.T) {
	stats := NewStatsObserver()
	publisher := NewEventPublisher(stats)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			publisher.NotifyObservers(ctx, Event{Type: LoginAttempted, Worker: worker, Outcome: models.LoginFailed})
			publisher.NotifyObservers(ctx, Event{Type: LoginAttempted, Worker: worker, Outcome: models.LoginSucceededLaterGuess})
			publisher.NotifyObservers(ctx, Event{Type: LookupCompleted, Worker: worker, Plate: worker + 1})
		}(w)
	}
	wg.Wait()

	snapshot := stats.Snapshot()
	assert.Len(t, snapshot.Outcomes, 16)
	assert.Equal(t, models.LoginStats{Failed: 8, LaterGuess: 8}, snapshot.LoginStats())
}

func TestStatsObserver_Counters(t *testing.T) {
	stats := NewStatsObserver()
	ctx := context.Background()
	stats.OnEvent(ctx, Event{Type: LoginAttempted, Outcome: models.LoginSucceededFirstGuess})
	stats.OnEvent(ctx, Event{Type: QuotaReset})
	stats.OnEvent(ctx, Event{Type: QuotaReset})
	stats.OnEvent(ctx, Event{Type: SessionExpired})
	stats.OnEvent(ctx, Event{Type: LookupFailed, Err: errors.New("x")})

	snapshot := stats.Snapshot()
	assert.Equal(t, []models.LoginOutcome{models.LoginSucceededFirstGuess}, snapshot.Outcomes)
	assert.Equal(t, 2, snapshot.QuotaResets)
	assert.Equal(t, 1, snapshot.Expirations)
	assert.Equal(t, 1, snapshot.Failures)

	// snapshots are copies
	snapshot.Outcomes[0] = models.LoginFailed
	assert.Equal(t, models.LoginSucceededFirstGuess, stats.Snapshot().Outcomes[0])
}

func TestEventPublisher_PanicIsContained(t *testing.T) {
	stats := NewStatsObserver()
	publisher := NewEventPublisher(panickingObserver{}, stats)

	assert.NotPanics(t, func() {
		publisher.NotifyObservers(context.Background(), Event{Type: LoginAttempted, Outcome: models.LoginFailed})
	})
	assert.Len(t, stats.Snapshot().Outcomes, 1)

	publisher.Unsubscribe(panickingObserver{})
	publisher.NotifyObservers(context.Background(), Event{Type: QuotaReset})
	assert.Equal(t, 1, stats.Snapshot().QuotaResets)
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(logrus.NewEntry(log))
	obs.OnEvent(context.Background(), Event{Type: LookupCompleted, Canton: models.CantonZug, Plate: 77, Owners: 2})
	obs.OnEvent(context.Background(), Event{Type: LoginAttempted, Outcome: models.LoginSucceededFirstGuess})

	out := buf.String()
	assert.Contains(t, out, "found 2 vehicle owners for ZG-77")
	assert.Contains(t, out, `"outcome":"first_guess"`)
	assert.Equal(t, "logging_observer", obs.GetObserverName())
}
