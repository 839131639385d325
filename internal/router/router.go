// Package router decides which provider serves a recognition request and
// runs the serial fallback chain or hybrid fan-out across them. Every
// provider call goes through the resilience wrapper (timeout race, retry
// with backoff) and a per-provider circuit breaker.
package router

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/provider"
	"github.com/pocketledger/expense-cli/internal/resilience"
)

// Config controls provider selection.
type Config struct {
	// Primary names the preferred provider; it is moved to the head of the
	// fallback chain when it supports the input method.
	Primary string
	// Hybrid enables concurrent fan-out for receipt and text input.
	Hybrid bool
	// InitialBackoff overrides the first retry delay when non-zero.
	InitialBackoff time.Duration
}

// Router is created once at startup and is safe for concurrent use. It holds
// no per-request mutable state; the circuit breakers carry their own locks.
type Router struct {
	registry *provider.Registry
	cfg      Config
	breakers map[string]*resilience.CircuitBreaker
}

// New builds a router over the registered providers, with one circuit
// breaker per provider.
func New(registry *provider.Registry, cfg Config) *Router {
	breakers := make(map[string]*resilience.CircuitBreaker)
	for _, p := range registry.List() {
		breakers[p.Name()] = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	return &Router{
		registry: registry,
		cfg:      cfg,
		breakers: breakers,
	}
}

// Route dispatches the request. Voice goes to the single transcription-capable
// provider with no fallback; screenshot walks the serial priority chain;
// receipt and text use hybrid fan-out when enabled, the serial chain
// otherwise. The returned error is always a *provider.Error.
func (r *Router) Route(ctx context.Context, req provider.Request) (*model.StandardizedResult, error) {
	if !req.Method.Valid() {
		return nil, provider.NewError(provider.KindUnavailable, "",
			eris.Errorf("unknown input method %q", req.Method))
	}

	chain := r.chain(req.Method)
	if len(chain) == 0 {
		return nil, provider.NewError(provider.KindUnavailable, "",
			eris.Errorf("no provider supports input method %q", req.Method))
	}

	switch {
	case req.Method == model.InputVoice:
		return r.callOne(ctx, chain[0], req)
	case r.cfg.Hybrid && (req.Method == model.InputReceipt || req.Method == model.InputText):
		return r.hybrid(ctx, chain, req)
	default:
		return r.serial(ctx, chain, req)
	}
}

// Recommended returns the descriptor of the provider that would be tried
// first for the given input method, or false when none supports it.
func (r *Router) Recommended(method model.InputMethod) (model.ProviderDescriptor, bool) {
	chain := r.chain(method)
	if len(chain) == 0 {
		return model.ProviderDescriptor{}, false
	}
	return chain[0].Descriptor(), true
}

// BreakerStates reports each provider's circuit state, for status output.
func (r *Router) BreakerStates() map[string]resilience.CircuitState {
	out := make(map[string]resilience.CircuitState, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.State()
	}
	return out
}

// chain returns the capable providers in priority order, with the configured
// primary moved to the front when present.
func (r *Router) chain(method model.InputMethod) []provider.Provider {
	capable := r.registry.Capable(method)
	if r.cfg.Primary == "" {
		return capable
	}
	for i, p := range capable {
		if p.Name() == r.cfg.Primary && i > 0 {
			reordered := make([]provider.Provider, 0, len(capable))
			reordered = append(reordered, p)
			reordered = append(reordered, capable[:i]...)
			reordered = append(reordered, capable[i+1:]...)
			return reordered
		}
	}
	return capable
}

// serial walks the chain in order and returns the first success, or the last
// error once every provider is exhausted.
func (r *Router) serial(ctx context.Context, chain []provider.Provider, req provider.Request) (*model.StandardizedResult, error) {
	var lastErr error
	for _, p := range chain {
		result, err := r.callOne(ctx, p, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		zap.L().Warn("provider failed, falling back",
			zap.String("provider", p.Name()),
			zap.String("method", string(req.Method)),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// hybrid fans out to every provider in the chain concurrently, waits for all
// of them to settle, and picks the highest-confidence success. Confidence
// ties go to the earlier provider in priority order. When nothing succeeds
// in parallel the same chain is retried serially.
func (r *Router) hybrid(ctx context.Context, chain []provider.Provider, req provider.Request) (*model.StandardizedResult, error) {
	results := make([]*model.StandardizedResult, len(chain))
	errs := make([]error, len(chain))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range chain {
		g.Go(func() error {
			results[i], errs[i] = r.callOne(gctx, p, req)
			// Failures stay local so the group never cancels siblings.
			return nil
		})
	}
	_ = g.Wait()

	var best *model.StandardizedResult
	for i, res := range results {
		if res == nil {
			zap.L().Debug("hybrid provider failed",
				zap.String("provider", chain[i].Name()),
				zap.Error(errs[i]))
			continue
		}
		if best == nil || res.Confidence > best.Confidence {
			best = res
		}
	}
	if best != nil {
		return best, nil
	}

	zap.L().Warn("hybrid fan-out produced no result, retrying serially",
		zap.String("method", string(req.Method)),
		zap.Int("providers", len(chain)))

	result, err := r.serial(ctx, chain, req)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// callOne runs a single provider through its circuit breaker and the
// resilience wrapper. Each attempt races the provider's configured timeout;
// retries follow the provider's retry budget and skip error kinds that
// retrying cannot fix.
func (r *Router) callOne(ctx context.Context, p provider.Provider, req provider.Request) (*model.StandardizedResult, error) {
	name := p.Name()
	desc := p.Descriptor()
	cb := r.breakers[name]

	if cb != nil {
		if err := cb.Allow(); err != nil {
			return nil, provider.NewError(provider.KindUnavailable, name, err)
		}
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxRetries = desc.MaxRetries
	if r.cfg.InitialBackoff > 0 {
		retryCfg.InitialBackoff = r.cfg.InitialBackoff
	}
	retryCfg.ShouldRetry = provider.Retryable
	retryCfg.OnRetry = resilience.RetryLogger(name, string(req.Method))

	result, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*model.StandardizedResult, error) {
		res, callErr := resilience.CallWithTimeout(ctx, desc.Timeout, func(ctx context.Context) (*model.StandardizedResult, error) {
			return p.Handle(ctx, req)
		})
		if callErr != nil && eris.Is(callErr, resilience.ErrTimeout) {
			callErr = provider.NewError(provider.KindTimeout, name, callErr)
		}
		if cb != nil {
			cb.Record(callErr)
		}
		return res, callErr
	})
	if err != nil {
		var provErr *provider.Error
		if !eris.As(err, &provErr) {
			err = provider.NewError(provider.KindRejected, name, err)
		}
		return nil, err
	}
	return result, nil
}
