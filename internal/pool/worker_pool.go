// Package pool fans plate lookups out over independent portal sessions.
package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/anime-shed/plategate-go/internal/errors"
	"github.com/anime-shed/plategate-go/internal/logger"
	"github.com/anime-shed/plategate-go/internal/observer"
	"github.com/anime-shed/plategate-go/pkg/models"
)

// Lookup resolves one plate end to end; *resolver.Resolver implements it
type Lookup interface {
	VehicleOwners(ctx context.Context, plate int) ([]models.Owner, error)
}

// Factory builds the lookup owned by worker, reporting to events
type Factory func(worker int, events observer.Subject) (Lookup, error)

// Report is the outcome of one run
type Report struct {
	RunID    string
	Canton   models.Canton
	Plates   []int
	Owners   map[int][]models.Owner
	Stats    observer.Snapshot
	Duration time.Duration
}

// OwnerCount sums the owners over all plates
func (r *Report) OwnerCount() int {
	n := 0
	for _, owners := range r.Owners {
		n += len(owners)
	}
	return n
}

// Results lists the plates in the order they were requested
func (r *Report) Results() []models.LookupResult {
	results := make([]models.LookupResult, 0, len(r.Plates))
	for _, plate := range r.Plates {
		results = append(results, models.LookupResult{Plate: plate, Owners: r.Owners[plate]})
	}
	return results
}

// WorkerPool runs one session per worker against a shared task queue
type WorkerPool struct {
	canton    models.Canton
	workers   int
	factory   Factory
	backoff   func() retry.Backoff
	observers []observer.Observer
}

// Option customises a WorkerPool
type Option func(*WorkerPool)

// WithRetryDelay sets the constant pause between attempts on one plate
func WithRetryDelay(d time.Duration) Option {
	return func(p *WorkerPool) {
		if d > 0 {
			p.backoff = func() retry.Backoff { return retry.NewConstant(d) }
		}
	}
}

// WithObserver adds an observer receiving every event of every run
func WithObserver(o observer.Observer) Option {
	return func(p *WorkerPool) {
		p.observers = append(p.observers, o)
	}
}

// NewWorkerPool creates a pool of at most workers sessions for canton
func NewWorkerPool(canton models.Canton, workers int, factory Factory, opts ...Option) *WorkerPool {
	p := &WorkerPool{
		canton:  canton,
		workers: workers,
		factory: factory,
		backoff: func() retry.Backoff { return retry.NewConstant(time.Second) },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run resolves every plate, retrying each one until it succeeds. It returns
// early only on invalid input, a factory failure or cancellation of ctx.
func (p *WorkerPool) Run(ctx context.Context, plates []int) (*Report, error) {
	if p.workers < 1 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("number of workers must be > 0, got %d", p.workers), nil)
	}
	for _, plate := range plates {
		if !models.ValidPlate(plate) {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("plate must be in range [%d,%d], got %d", models.MinPlate, models.MaxPlate, plate), nil)
		}
	}

	start := time.Now()
	report := &Report{
		RunID:  uuid.NewString(),
		Canton: p.canton,
		Plates: append([]int(nil), plates...),
		Owners: make(map[int][]models.Owner, len(plates)),
	}
	log := logger.Component("pool").WithFields(logrus.Fields{"run_id": report.RunID, "canton": string(p.canton)})

	stats := observer.NewStatsObserver()
	events := observer.NewEventPublisher(append([]observer.Observer{stats, observer.NewLoggingObserver(log)}, p.observers...)...)

	workers := min(p.workers, len(plates))
	lookups := make([]Lookup, workers)
	for w := range lookups {
		lookup, err := p.factory(w, events)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("failed to create worker %d", w), err)
		}
		lookups[w] = lookup
	}
	log.WithFields(logrus.Fields{"plates": len(plates), "workers": workers}).Info("Starting lookups")

	tasks := make(chan int, len(plates))
	for _, plate := range plates {
		tasks <- plate
	}
	close(tasks)
	results := make(chan models.LookupResult, len(plates))

	g, gctx := errgroup.WithContext(ctx)
	for w, lookup := range lookups {
		g.Go(func() error {
			return p.work(gctx, w, lookup, tasks, results, events)
		})
	}
	err := g.Wait()
	close(results)
	if err != nil {
		return nil, err
	}

	for result := range results {
		report.Owners[result.Plate] = result.Owners
	}
	report.Stats = stats.Snapshot()
	report.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"owners":   report.OwnerCount(),
		"duration": report.Duration.String(),
		"logins":   report.Stats.LoginStats(),
	}).Info("Lookups finished")
	return report, nil
}

func (p *WorkerPool) work(ctx context.Context, worker int, lookup Lookup, tasks <-chan int, results chan<- models.LookupResult, events observer.Subject) error {
	for plate := range tasks {
		owners, err := p.resolve(ctx, worker, lookup, plate, events)
		if err != nil {
			return err
		}
		results <- models.LookupResult{Plate: plate, Owners: owners}
		events.NotifyObservers(ctx, observer.Event{
			Type:   observer.LookupCompleted,
			Worker: worker,
			Canton: p.canton,
			Plate:  plate,
			Owners: len(owners),
		})
	}
	return nil
}

func (p *WorkerPool) resolve(ctx context.Context, worker int, lookup Lookup, plate int, events observer.Subject) ([]models.Owner, error) {
	var owners []models.Owner
	attempt := 0
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		found, err := lookup.VehicleOwners(ctx, plate)
		if err != nil {
			if ctx.Err() != nil || !apperrors.Retryable(err) {
				return err
			}
			events.NotifyObservers(ctx, observer.Event{
				Type:    observer.LookupFailed,
				Worker:  worker,
				Canton:  p.canton,
				Plate:   plate,
				Attempt: attempt,
				Err:     err,
			})
			return retry.RetryableError(err)
		}
		owners = found
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if owners == nil {
		owners = []models.Owner{}
	}
	return owners, nil
}
