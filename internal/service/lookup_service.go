package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/plategate-go/internal/errors"
	"github.com/anime-shed/plategate-go/internal/factory"
	"github.com/anime-shed/plategate-go/internal/logger"
	"github.com/anime-shed/plategate-go/internal/ocr"
	"github.com/anime-shed/plategate-go/internal/output"
	"github.com/anime-shed/plategate-go/internal/pool"
	"github.com/anime-shed/plategate-go/internal/repository"
	"github.com/anime-shed/plategate-go/internal/storage"
	"github.com/anime-shed/plategate-go/pkg/models"
	"github.com/anime-shed/plategate-go/pkg/validation"
)

// LookupService defines the operations offered over plate ranges
type LookupService interface {
	// Run resolves a validated range and returns the raw report
	Run(ctx context.Context, req models.LookupRequest) (*pool.Report, error)

	// Lookup runs a request, stores it and returns the API view
	Lookup(ctx context.Context, req models.LookupRequest) (*models.LookupResponse, error)

	// GetRun returns a previously stored run
	GetRun(ctx context.Context, id string) (*models.LookupResponse, error)

	// ListRuns returns stored runs, most recent first
	ListRuns(ctx context.Context) ([]*models.LookupResponse, error)
}

// Settings hold the pool defaults of the service
type Settings struct {
	Workers    int
	RetryDelay time.Duration
}

type lookupService struct {
	validator *validation.RangeValidator
	resolvers factory.ResolverFactory
	engine    ocr.Engine
	runs      repository.RunRepository
	sink      storage.Sink
	settings  Settings
}

// NewLookupService creates a lookup service. sink may be nil, then results
// are only kept in the repository.
func NewLookupService(
	validator *validation.RangeValidator,
	resolvers factory.ResolverFactory,
	engine ocr.Engine,
	runs repository.RunRepository,
	sink storage.Sink,
	settings Settings,
) LookupService {
	return &lookupService{
		validator: validator,
		resolvers: resolvers,
		engine:    engine,
		runs:      runs,
		sink:      sink,
		settings:  settings,
	}
}

func (s *lookupService) Run(ctx context.Context, req models.LookupRequest) (*pool.Report, error) {
	workers := req.Workers
	if workers == 0 {
		workers = s.settings.Workers
	}
	canton, plates, err := s.validator.Validate(req.Canton, req.Start, req.End, workers)
	if err != nil {
		return nil, err
	}

	p := pool.NewWorkerPool(canton, workers, s.resolvers.CreateFactory(canton, s.engine),
		pool.WithRetryDelay(s.settings.RetryDelay))

	report, err := p.Run(ctx, plates)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("lookup timed out", err)
		}
		return nil, err
	}
	return report, nil
}

func (s *lookupService) Lookup(ctx context.Context, req models.LookupRequest) (*models.LookupResponse, error) {
	report, err := s.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	response := convertToResponse(report)
	if err := s.runs.Save(ctx, response); err != nil {
		return nil, apperrors.NewInternalError("failed to store run", err)
	}
	if s.sink != nil {
		name := report.RunID + ".txt"
		if err := s.sink.Put(ctx, name, output.Render(report)); err != nil {
			// the run is still retrievable from the repository
			logger.WithError(err).WithFields(logrus.Fields{
				"run_id": report.RunID,
				"sink":   s.sink.Name(),
			}).Warn("Failed to store result file")
		}
	}
	return response, nil
}

func (s *lookupService) GetRun(ctx context.Context, id string) (*models.LookupResponse, error) {
	run, err := s.runs.Get(ctx, id)
	if errors.Is(err, repository.ErrRunNotFound) {
		return nil, apperrors.NewNotFoundError("no such run", err).WithDetails("run_id %s", id)
	}
	return run, err
}

func (s *lookupService) ListRuns(ctx context.Context) ([]*models.LookupResponse, error) {
	return s.runs.List(ctx)
}

func convertToResponse(report *pool.Report) *models.LookupResponse {
	return &models.LookupResponse{
		RunID:       report.RunID,
		Canton:      string(report.Canton),
		Results:     report.Results(),
		OwnersFound: report.OwnerCount(),
		Logins:      report.Stats.LoginStats(),
		DurationSec: report.Duration.Seconds(),
	}
}
