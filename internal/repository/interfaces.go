package repository

import (
	"context"

	"github.com/anime-shed/plategate-go/pkg/models"
)

// RunRepository defines the interface for finished lookup runs
type RunRepository interface {
	// Save stores a run, replacing any run with the same id
	Save(ctx context.Context, run *models.LookupResponse) error

	// Get retrieves a stored run
	Get(ctx context.Context, id string) (*models.LookupResponse, error)

	// List returns the stored runs, most recent first
	List(ctx context.Context) ([]*models.LookupResponse, error)
}
