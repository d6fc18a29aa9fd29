package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/metrics"
)

// Dispatcher sends completion requests down an ordered provider chain,
// returning the first success.
type Dispatcher struct {
	providers []driven.ChatProvider
	metrics   *metrics.Metrics
}

// NewDispatcher creates a dispatcher over providers, tried in order.
// m may be nil.
func NewDispatcher(providers []driven.ChatProvider, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{providers: providers, metrics: m}
}

// Providers returns the chain names in order.
func (d *Dispatcher) Providers() []string {
	names := make([]string, len(d.providers))
	for i, p := range d.providers {
		names[i] = p.Name()
	}
	return names
}

// Chat returns the first successful completion. When every provider fails
// the error wraps domain.ErrNoProviderAvailable and carries only the
// number of providers tried; individual failures are logged.
func (d *Dispatcher) Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (domain.ChatReply, error) {
	var lastErr error
	for i, p := range d.providers {
		if err := ctx.Err(); err != nil {
			return domain.ChatReply{}, err
		}

		start := time.Now()
		content, err := p.Chat(ctx, messages, opts)
		d.metrics.ObserveProvider(p.Name(), err, time.Since(start))
		if err == nil {
			if i > 0 {
				logger.Info("provider %s answered after %d failed attempt(s)", p.Name(), i)
			}
			return domain.ChatReply{Content: content, Provider: p.Name()}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ChatReply{}, ctxErr
		}

		logger.Warn("provider %s failed: %v", p.Name(), err)
		lastErr = err
	}
	return domain.ChatReply{}, d.exhausted(lastErr)
}

// Stream opens a token stream on the first provider that accepts it.
// Failover covers opening only; a stream that breaks later is not retried.
func (d *Dispatcher) Stream(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (driven.TokenStream, string, error) {
	var lastErr error
	for _, p := range d.providers {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		start := time.Now()
		stream, err := p.ChatStream(ctx, messages, opts)
		d.metrics.ObserveProvider(p.Name(), err, time.Since(start))
		if err == nil {
			return stream, p.Name(), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}

		logger.Warn("provider %s failed to open stream: %v", p.Name(), err)
		lastErr = err
	}
	return nil, "", d.exhausted(lastErr)
}

// Close closes every provider.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, p := range d.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) exhausted(lastErr error) error {
	if lastErr != nil {
		logger.Error("all %d chat providers failed; last error: %v", len(d.providers), lastErr)
	} else {
		logger.Error("no chat providers configured")
	}
	return fmt.Errorf("%w: %d providers tried", domain.ErrNoProviderAvailable, len(d.providers))
}
