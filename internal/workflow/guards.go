package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"songreel/internal/config"
	"songreel/internal/queue"
	"songreel/internal/resilience"
)

// guardSet holds one guard per external collaborator. Script, video, and
// upload guards carry circuit breakers; the store guard is retry-only because
// SQLite recovers per call rather than per dependency.
type guardSet struct {
	scriptgen *resilience.Guard
	videogen  *resilience.Guard
	upload    *resilience.Guard
	store     *resilience.Guard

	cfg    config.Resilience
	logger *slog.Logger
}

func buildGuards(cfg config.Resilience, logger *slog.Logger, opts ...resilience.GuardOption) guardSet {
	registry := resilience.NewRegistry()
	opts = append(opts, resilience.WithLogger(logger))

	build := func(name string, settings config.RetrySettings) *resilience.Guard {
		var breaker *resilience.Breaker
		if settings.FailureThreshold > 0 {
			breaker = registry.Get(name, resilience.BreakerPolicy{
				FailureThreshold: settings.FailureThreshold,
				ResetTimeout:     time.Duration(settings.ResetTimeout) * time.Second,
			})
		}
		return resilience.NewGuard(name, retryPolicy(settings), breaker, opts...)
	}

	storePolicy := retryPolicy(cfg.Store)
	storePolicy.Retryable = storeRetryable

	return guardSet{
		scriptgen: build("scriptgen", cfg.ScriptGen),
		videogen:  build("videogen", cfg.VideoGen),
		upload:    build("upload", cfg.Upload),
		store:     resilience.NewGuard("store", storePolicy, nil, opts...),
		cfg:       cfg,
		logger:    logger,
	}
}

func (g guardSet) withSleeper(sleep func(context.Context, time.Duration) error) guardSet {
	if sleep == nil {
		return g
	}
	return buildGuards(g.cfg, g.logger, resilience.WithSleeper(sleep))
}

// storeRetryable keeps the store guard from burning attempts on semantic
// failures that will never succeed on a repeat call.
func storeRetryable(err error) bool {
	switch {
	case errors.Is(err, queue.ErrRecordNotFound),
		errors.Is(err, queue.ErrSongNotFound),
		errors.Is(err, queue.ErrDuplicateActiveRecord):
		return false
	}
	return true
}

func retryPolicy(settings config.RetrySettings) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:   settings.MaxAttempts,
		InitialDelay:  time.Duration(settings.InitialDelay) * time.Second,
		BackoffFactor: settings.BackoffFactor,
	}
}
