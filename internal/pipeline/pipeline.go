// Package pipeline ties routing, normalization, and persistence into the
// process boundary: one call in, one canonical transaction record (or one
// terminal error) out.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/normalize"
	"github.com/pocketledger/expense-cli/internal/provider"
	"github.com/pocketledger/expense-cli/internal/router"
	"github.com/pocketledger/expense-cli/internal/store"
)

// DefaultMaxConcurrent bounds batch fan-out when no limit is configured.
const DefaultMaxConcurrent = 3

// Error is the single terminal error shape the process boundary emits.
// Provider-level failures never cross this boundary raw.
type Error struct {
	Method model.InputMethod
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("expense recognition failed for %s input: %v", e.Method, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Processor runs recognition requests end to end. It is safe for concurrent
// use; all dependencies are fixed at construction.
type Processor struct {
	router        *router.Router
	normalizer    *normalize.Normalizer
	store         store.Store
	maxConcurrent int
}

// Option configures a Processor.
type Option func(*Processor)

// WithStore enables persistence of every successful record.
func WithStore(s store.Store) Option {
	return func(p *Processor) { p.store = s }
}

// WithMaxConcurrent bounds how many batch items run at once.
func WithMaxConcurrent(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxConcurrent = n
		}
	}
}

// New creates a Processor. The store is optional; without one, records are
// returned to the caller but not persisted.
func New(r *router.Router, n *normalize.Normalizer, opts ...Option) *Processor {
	p := &Processor{
		router:        r,
		normalizer:    n,
		maxConcurrent: DefaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs a single capture through routing and normalization, persists
// the record when a store is configured, and returns it. Any failure comes
// back as a *Error.
func (p *Processor) Process(ctx context.Context, method model.InputMethod, payload []byte) (*model.TransactionRecord, error) {
	result, err := p.router.Route(ctx, provider.Request{Method: method, Payload: payload})
	if err != nil {
		zap.L().Error("recognition failed",
			zap.String("method", string(method)),
			zap.Error(err))
		return nil, &Error{Method: method, Err: err}
	}

	record := p.normalizer.Normalize(result)

	if p.store != nil {
		if err := p.store.SaveRecord(ctx, record); err != nil {
			return nil, &Error{Method: method, Err: eris.Wrap(err, "pipeline: save record")}
		}
	}

	zap.L().Info("expense recorded",
		zap.String("id", record.ID),
		zap.String("provider", result.Provider),
		zap.String("category", record.Category),
		zap.Float64("amount", record.Amount),
		zap.Bool("verified", record.Verified))

	return record, nil
}

// BatchItem is one capture in a batch request.
type BatchItem struct {
	Method  model.InputMethod `json:"method"`
	Payload []byte            `json:"payload"`
}

// Batch processes items concurrently, bounded by the configured limit.
// Failed items are logged and dropped; successful records come back in input
// order. The slice is empty, not nil, when everything fails.
func (p *Processor) Batch(ctx context.Context, items []BatchItem) []*model.TransactionRecord {
	results := make([]*model.TransactionRecord, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)
	for i, item := range items {
		g.Go(func() error {
			record, err := p.Process(gctx, item.Method, item.Payload)
			if err != nil {
				zap.L().Warn("batch item failed",
					zap.Int("index", i),
					zap.String("method", string(item.Method)),
					zap.Error(err))
				// One bad capture never sinks the rest of the batch.
				return nil
			}
			results[i] = record
			return nil
		})
	}
	_ = g.Wait()

	records := make([]*model.TransactionRecord, 0, len(items))
	for _, r := range results {
		if r != nil {
			records = append(records, r)
		}
	}
	return records
}
