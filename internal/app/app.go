package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/riskibarqy/challenge-ladder/external/ladderapi"
	"github.com/riskibarqy/challenge-ladder/internal/config"
	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
	"github.com/riskibarqy/challenge-ladder/internal/infrastructure/repository/local"
	"github.com/riskibarqy/challenge-ladder/internal/platform/kvstore"
	"github.com/riskibarqy/challenge-ladder/internal/platform/logging"
	"github.com/riskibarqy/challenge-ladder/internal/platform/resilience"
	"github.com/riskibarqy/challenge-ladder/internal/usecase"
)

// App holds the wired ladder service and the resources it owns.
type App struct {
	Config  config.Config
	Service *usecase.LadderService

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	gateway, err := ladderapi.NewClient(ladderapi.ClientConfig{
		BaseURL:    cfg.LadderAPIURL,
		Timeout:    cfg.LadderAPITimeout,
		MaxRetries: cfg.LadderAPIMaxRetries,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.LadderCircuitEnabled,
			FailureThreshold: cfg.LadderCircuitFailureCount,
			OpenTimeout:      cfg.LadderCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.LadderCircuitHalfOpenMaxReq,
		},
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build ladder api client: %w", err)
	}

	credentials := local.NewCredentialStore(store)
	if cfg.LadderPIN != "" {
		if err := credentials.SetPIN(ctx, cfg.LadderPIN); err != nil {
			logger.WarnContext(ctx, "seed league pin failed", "error", err)
		}
	}

	a.Service = usecase.NewLadderService(usecase.LadderServiceDeps{
		Gateway:     gateway,
		Cache:       local.NewSnapshotCache(store),
		Queue:       local.NewPendingQueue(store),
		Baseline:    local.NewBaselineTracker(store, cfg.BaselineStrategy),
		Credentials: credentials,
	}, usecase.LadderServiceConfig{
		Rules:               ladder.DefaultRules(),
		RejectedPolicy:      cfg.RejectedPolicy,
		DefaultSyncAttempts: cfg.SyncMaxAttempts,
	}, logger)

	return a, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openStore(cfg config.Config) (kvstore.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return kvstore.NewMemory(), nil, nil
	case config.StoreDriverSQLite:
		store, err := kvstore.OpenSQLite(cfg.StorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store path=%s: %w", cfg.StorePath, err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
