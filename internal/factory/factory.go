package factory

import (
	"fmt"

	"github.com/anime-shed/plategate-go/internal/config"
	"github.com/anime-shed/plategate-go/internal/observer"
	"github.com/anime-shed/plategate-go/internal/ocr"
	"github.com/anime-shed/plategate-go/internal/pool"
	"github.com/anime-shed/plategate-go/internal/portal"
	"github.com/anime-shed/plategate-go/internal/resolver"
	"github.com/anime-shed/plategate-go/internal/storage"
	"github.com/anime-shed/plategate-go/pkg/models"
)

// EngineFactory creates OCR engines
type EngineFactory interface {
	CreateEngine() (ocr.Engine, error)
}

// ResolverFactory creates the per-worker lookups of a pool
type ResolverFactory interface {
	CreateFactory(canton models.Canton, engine ocr.Engine) pool.Factory
}

// StorageFactory creates the sink result files are written to
type StorageFactory interface {
	CreateSink(dir string) (storage.Sink, error)
}

// engineFactory implements EngineFactory
type engineFactory struct {
	cfg *config.Config
}

// NewEngineFactory creates engines from the configured registry name
func NewEngineFactory(cfg *config.Config) EngineFactory {
	return &engineFactory{cfg: cfg}
}

// CreateEngine builds the engine named by OCR_ENGINE
func (f *engineFactory) CreateEngine() (ocr.Engine, error) {
	engine, err := ocr.New(f.cfg.OCREngine, ocr.Settings{
		Language:   f.cfg.OCRLanguage,
		ConfigFile: f.cfg.OCRConfigFile,
	})
	if err != nil {
		return nil, fmt.Errorf("create OCR engine: %w", err)
	}
	return engine, nil
}

// resolverFactory implements ResolverFactory
type resolverFactory struct {
	cfg *config.Config
}

// NewResolverFactory creates factories giving every worker its own session
func NewResolverFactory(cfg *config.Config) ResolverFactory {
	return &resolverFactory{cfg: cfg}
}

// CreateFactory returns a pool.Factory. The engine is shared by all workers.
func (f *resolverFactory) CreateFactory(canton models.Canton, engine ocr.Engine) pool.Factory {
	return func(worker int, events observer.Subject) (pool.Lookup, error) {
		session, err := portal.NewSession(canton, portal.Options{
			BaseURL:     f.cfg.BaseURL,
			Timeout:     f.cfg.HTTPTimeout,
			RetryMax:    f.cfg.HTTPRetryMax,
			RequestRate: f.cfg.RequestRate,
		})
		if err != nil {
			return nil, err
		}
		return resolver.New(session, engine, resolver.Options{
			Worker:         worker,
			LoginPacing:    f.cfg.LoginPacing,
			ResetPacing:    f.cfg.ResetPacing,
			CaptchaWindow:  f.cfg.CaptchaWindow,
			CaptchaDumpDir: f.cfg.CaptchaDumpDir,
			Events:         events,
		}), nil
	}
}

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateSink writes below dir and, when configured, mirrors into blob storage
func (f *storageFactory) CreateSink(dir string) (storage.Sink, error) {
	files := storage.NewFileSink(dir)
	if !f.cfg.AzureEnabled() {
		return files, nil
	}
	blobs, err := storage.NewAzureBlobSink(f.cfg.AzureAccount, f.cfg.AzureKey, f.cfg.AzureContainer, f.cfg.AzureServiceURL)
	if err != nil {
		return nil, err
	}
	return storage.MultiSink{files, blobs}, nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	EngineFactory   EngineFactory
	ResolverFactory ResolverFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		EngineFactory:   NewEngineFactory(cfg),
		ResolverFactory: NewResolverFactory(cfg),
		StorageFactory:  NewStorageFactory(cfg),
	}
}
