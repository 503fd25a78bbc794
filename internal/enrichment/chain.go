package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Model is one generative candidate in the reflection chain.
type Model interface {
	Name() string
	// Generate sends instruction and text to the model and returns its raw output.
	// A non-nil error is a provider failure (network, auth, quota, timeout).
	Generate(ctx context.Context, instruction, text string) (string, error)
}

type ChainOptions struct {
	// Backoff is the pause after a provider failure before the next candidate.
	Backoff time.Duration
	// AttemptTimeout bounds each candidate call.
	AttemptTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *Metrics
}

// Chain tries models in priority order and returns the first parseable reflection.
type Chain struct {
	models         []Model
	instruction    string
	backoff        time.Duration
	attemptTimeout time.Duration
	logger         *zap.Logger
	metrics        *Metrics
	sleep          func(context.Context, time.Duration) error
}

func NewChain(models []Model, opts ChainOptions) *Chain {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attemptTimeout := opts.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = 20 * time.Second
	}
	backoff := opts.Backoff
	if backoff < 0 {
		backoff = 0
	}
	return &Chain{
		models:         append([]Model(nil), models...),
		instruction:    reflectionInstruction,
		backoff:        backoff,
		attemptTimeout: attemptTimeout,
		logger:         logger.Named("reflection"),
		metrics:        opts.Metrics,
		sleep:          sleepContext,
	}
}

func (c *Chain) Models() []string {
	names := make([]string, 0, len(c.models))
	for _, m := range c.models {
		names = append(names, m.Name())
	}
	return names
}

func (c *Chain) Reflect(ctx context.Context, text string) Reflection {
	var lastErr error
	for i, model := range c.models {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		reflection, err := c.attempt(ctx, model, text)
		if err == nil {
			c.metrics.attempt(model.Name(), "ok")
			return reflection
		}
		lastErr = err

		var providerErr *providerError
		if errors.As(err, &providerErr) {
			c.metrics.attempt(model.Name(), "provider_error")
			c.logger.Info("reflection model failed", zap.String("model", model.Name()), zap.Error(providerErr.err))
			if i < len(c.models)-1 && c.backoff > 0 {
				if err := c.sleep(ctx, c.backoff); err != nil {
					lastErr = err
					break
				}
			}
			continue
		}
		c.metrics.attempt(model.Name(), "parse_error")
		c.logger.Info("reflection output unparseable, trying next model", zap.String("model", model.Name()), zap.Error(err))
	}

	fields := []zap.Field{zap.Int("candidates", len(c.models))}
	if lastErr != nil {
		fields = append(fields, zap.NamedError("last_error", lastErr))
	}
	c.logger.Warn("all reflection models failed, using fallback", fields...)
	c.metrics.fallback("reflection")
	return FallbackReflection()
}

type providerError struct {
	model string
	err   error
}

func (e *providerError) Error() string {
	return fmt.Sprintf("model %s: %v", e.model, e.err)
}

func (e *providerError) Unwrap() error { return e.err }

func (c *Chain) attempt(ctx context.Context, model Model, text string) (Reflection, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	raw, err := model.Generate(attemptCtx, c.instruction, text)
	if err != nil {
		return Reflection{}, &providerError{model: model.Name(), err: err}
	}
	return parseReflection(raw)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
