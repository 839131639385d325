package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pocketledger/expense-cli/internal/normalize"
	"github.com/pocketledger/expense-cli/internal/pipeline"
	"github.com/pocketledger/expense-cli/internal/provider"
	claudeadapter "github.com/pocketledger/expense-cli/internal/provider/claude"
	deepseekadapter "github.com/pocketledger/expense-cli/internal/provider/deepseek"
	geminiadapter "github.com/pocketledger/expense-cli/internal/provider/gemini"
	openaiadapter "github.com/pocketledger/expense-cli/internal/provider/openai"
	tencentadapter "github.com/pocketledger/expense-cli/internal/provider/tencent"
	"github.com/pocketledger/expense-cli/internal/router"
	"github.com/pocketledger/expense-cli/internal/store"
	claudeapi "github.com/pocketledger/expense-cli/pkg/claude"
	deepseekapi "github.com/pocketledger/expense-cli/pkg/deepseek"
	geminiapi "github.com/pocketledger/expense-cli/pkg/gemini"
	openaiapi "github.com/pocketledger/expense-cli/pkg/openai"
	"github.com/pocketledger/expense-cli/pkg/tencentocr"
)

// appEnv holds the initialized store, provider registry, and processor shared
// by the process/batch/serve/records commands.
type appEnv struct {
	Store     store.Store // nil when store.driver is "none"
	Registry  *provider.Registry
	Router    *router.Router
	Processor *pipeline.Processor
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	case "", "none":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// buildRegistry registers an adapter for every backend with credentials.
// Registration order is priority order for routing.
func buildRegistry(ctx context.Context) *provider.Registry {
	registry := provider.NewRegistry()

	if cfg.DeepSeek.Key != "" {
		client := deepseekapi.NewClient(cfg.DeepSeek.Key,
			deepseekapi.WithBaseURL(cfg.DeepSeek.BaseURL),
			deepseekapi.WithModel(cfg.DeepSeek.Model))
		registry.Register(deepseekadapter.New(client, cfg.DeepSeek.Timeout(), cfg.DeepSeek.MaxRetries))
	}

	if cfg.OpenAI.Key != "" {
		client := openaiapi.NewClient(cfg.OpenAI.Key,
			openaiapi.WithBaseURL(cfg.OpenAI.BaseURL),
			openaiapi.WithModel(cfg.OpenAI.Model),
			openaiapi.WithWhisperModel(cfg.OpenAI.WhisperModel))
		registry.Register(openaiadapter.New(client, cfg.OpenAI.Timeout(), cfg.OpenAI.MaxRetries))
	}

	if cfg.Tencent.SecretID != "" && cfg.Tencent.SecretKey != "" {
		client := tencentocr.NewClient(cfg.Tencent.SecretID, cfg.Tencent.SecretKey,
			tencentocr.WithRegion(cfg.Tencent.Region))
		registry.Register(tencentadapter.New(client, cfg.Tencent.Timeout(), cfg.Tencent.MaxRetries))
	}

	if cfg.Claude.Key != "" {
		client := claudeapi.NewClient(cfg.Claude.Key, claudeapi.WithModel(cfg.Claude.Model))
		registry.Register(claudeadapter.New(client, cfg.Claude.Timeout(), cfg.Claude.MaxRetries))
	}

	if cfg.Gemini.Key != "" {
		client, err := geminiapi.NewClient(ctx, cfg.Gemini.Key, geminiapi.WithModel(cfg.Gemini.Model))
		if err != nil {
			zap.L().Warn("gemini client init failed, skipping provider", zap.Error(err))
		} else {
			registry.Register(geminiadapter.New(client, cfg.Gemini.Timeout(), cfg.Gemini.MaxRetries))
		}
	}

	for _, p := range registry.List() {
		zap.L().Info("provider registered",
			zap.String("provider", p.Name()),
			zap.Int("capabilities", len(p.Descriptor().Capabilities)))
	}

	return registry
}

// initEnv validates config for the given mode and wires the store, registry,
// router, normalizer, and processor. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
	}

	registry := buildRegistry(ctx)
	if len(registry.List()) == 0 {
		if st != nil {
			_ = st.Close()
		}
		return nil, eris.New("no recognition provider configured")
	}

	r := router.New(registry, router.Config{
		Primary: cfg.Routing.Primary,
		Hybrid:  cfg.Routing.Hybrid,
	})

	tables := normalize.DefaultTables()
	if cfg.Record.TablesPath != "" {
		tables, err = normalize.LoadTables(cfg.Record.TablesPath)
		if err != nil {
			if st != nil {
				_ = st.Close()
			}
			return nil, eris.Wrap(err, "load normalization tables")
		}
	}
	normalizer := normalize.New(
		normalize.WithTables(tables),
		normalize.WithCurrency(cfg.Record.Currency),
	)

	opts := []pipeline.Option{pipeline.WithMaxConcurrent(cfg.Batch.MaxConcurrent)}
	if st != nil {
		opts = append(opts, pipeline.WithStore(st))
	}

	return &appEnv{
		Store:     st,
		Registry:  registry,
		Router:    r,
		Processor: pipeline.New(r, normalizer, opts...),
	}, nil
}
