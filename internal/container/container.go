package container

import (
	"fmt"
	"net/http"

	"github.com/anime-shed/plategate-go/internal/config"
	"github.com/anime-shed/plategate-go/internal/factory"
	"github.com/anime-shed/plategate-go/internal/repository"
	"github.com/anime-shed/plategate-go/internal/service"
	"github.com/anime-shed/plategate-go/internal/storage"
	"github.com/anime-shed/plategate-go/internal/transport"
	"github.com/anime-shed/plategate-go/pkg/validation"
)

// runHistory bounds the runs kept for GET /lookup/:id
const runHistory = 256

// Container holds all application dependencies
type Container struct {
	config        *config.Config
	components    *factory.ComponentFactory
	lookupService service.LookupService
	handler       http.Handler
}

// NewContainer builds the dependency graph. resultDir is where result files
// of API runs are written, empty disables them.
func NewContainer(cfg *config.Config, resultDir string) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	engine, err := components.EngineFactory.CreateEngine()
	if err != nil {
		return nil, err
	}

	var sink storage.Sink
	if resultDir != "" {
		sink, err = components.StorageFactory.CreateSink(resultDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create result storage: %w", err)
		}
	}

	runRepository := repository.NewMemoryRunRepository(runHistory)
	lookupService := service.NewLookupService(
		validation.NewRangeValidator(cfg.MaxPlates),
		components.ResolverFactory,
		engine,
		runRepository,
		sink,
		service.Settings{Workers: cfg.Workers, RetryDelay: cfg.TaskRetryDelay},
	)

	return &Container{
		config:        cfg,
		components:    components,
		lookupService: lookupService,
		handler:       transport.NewHandler(lookupService, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// LookupService returns the service shared by the CLI and the API
func (c *Container) LookupService() service.LookupService {
	return c.lookupService
}

// StorageFactory creates additional result sinks
func (c *Container) StorageFactory() factory.StorageFactory {
	return c.components.StorageFactory
}
