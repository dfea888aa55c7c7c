// Package app wires configuration into the storage, generation and HTTP components.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/tubedigest/internal/config"
	"github.com/jonathan/tubedigest/internal/controller"
	"github.com/jonathan/tubedigest/internal/db"
	"github.com/jonathan/tubedigest/internal/fetch"
	"github.com/jonathan/tubedigest/internal/gateway"
	"github.com/jonathan/tubedigest/internal/history"
	"github.com/jonathan/tubedigest/internal/llm"
	"github.com/jonathan/tubedigest/internal/logging"
	"github.com/jonathan/tubedigest/internal/server"
	"github.com/jonathan/tubedigest/internal/server/ratelimit"
	"github.com/jonathan/tubedigest/internal/storage"
	"github.com/jonathan/tubedigest/internal/transcript"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config  *config.Config
	Log     logging.Logger
	Store   storage.KV
	LLM     llm.Client
	Gateway *gateway.Gateway
}

// Build opens storage and constructs the summarization gateway.
func Build(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if log == nil {
		log = logging.NewNop()
	}

	store, err := OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	client, err := NewLLMClient(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	gen, err := gateway.NewLLMGenerator(client)
	if err != nil {
		_ = client.Close()
		_ = store.Close()
		return nil, err
	}

	cacheSize := cfg.CacheSize
	if cacheSize < 0 {
		cacheSize = 0
	}
	gw, err := gateway.New(gen,
		gateway.WithRetriever(NewRetriever(cfg, log)),
		gateway.WithTimeout(cfg.Timeout()),
		gateway.WithCacheSize(cacheSize),
		gateway.WithLogger(log.With(logging.String("component", "gateway"))),
	)
	if err != nil {
		_ = client.Close()
		_ = store.Close()
		return nil, err
	}

	log.Info("application ready",
		logging.String("provider", cfg.Provider),
		logging.String("model", client.GetModel(llm.TierStandard)),
		logging.String("retriever", cfg.Retriever),
		logging.String("storage", cfg.Storage.Driver))

	return &App{
		Config:  cfg,
		Log:     log,
		Store:   store,
		LLM:     client,
		Gateway: gw,
	}, nil
}

// OpenStorage opens the history backend named by cfg.Driver.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.KV, error) {
	switch cfg.Driver {
	case "", storage.DriverMemory:
		return storage.NewMemory(), nil
	case storage.DriverSQLite:
		s, err := storage.OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case storage.DriverRedis:
		r, err := storage.OpenRedis(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return r, nil
	case storage.DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("postgres storage needs a dsn")
		}
		d, err := db.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewLLMClient creates the provider client, applying a model override to the standard tier.
func NewLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	llmCfg, err := llm.ConfigFor(llm.Provider(cfg.Provider))
	if err != nil {
		return nil, err
	}
	if cfg.Model != "" {
		llmCfg = llmCfg.WithModel(llm.TierStandard, cfg.Model)
	}
	client, err := llm.NewClient(ctx, llmCfg, cfg.APIKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}
	return client, nil
}

// NewRetriever returns the transcript source named by cfg.Retriever.
func NewRetriever(cfg *config.Config, log logging.Logger) gateway.Retriever {
	if cfg.Retriever != config.RetrieverWatchPage {
		return transcript.Placeholder{Log: log}
	}
	fetchOpts := fetch.DefaultOptions()
	if cfg.FetchTimeout > 0 {
		fetchOpts.Timeout = time.Duration(cfg.FetchTimeout)
	}
	opts := []transcript.Option{transcript.WithLogger(log), transcript.WithFetchOptions(fetchOpts)}
	if len(cfg.Languages) > 0 {
		fetchOpts.Headers["Accept-Language"] = strings.Join(cfg.Languages, ",")
		opts = append(opts, transcript.WithLanguages(cfg.Languages...))
	}
	if cfg.UseBrowser {
		opts = append(opts, transcript.WithRenderer(fetch.BrowserRenderer(fetch.DefaultBrowserTimeout, log)))
	}
	return transcript.NewWatchPage(opts...)
}

// NewServer builds the HTTP server. Without SESSION_SECRET sessions use a
// random key and do not survive a restart.
func (a *App) NewServer() (*server.Server, error) {
	sessionCfg, err := config.NewSessionConfig(a.Config)
	if errors.Is(err, config.ErrMissingSessionSecret) {
		a.Log.Warn("SESSION_SECRET not set; using an ephemeral key")
		ephemeral := *a.Config
		ephemeral.SessionSecret = uuid.NewString() + uuid.NewString()
		sessionCfg, err = config.NewSessionConfig(&ephemeral)
	}
	if err != nil {
		return nil, err
	}

	return server.New(server.Config{
		Port:      a.Config.Port,
		Session:   sessionCfg,
		RateLimit: ratelimit.LoadConfig(a.Config.RateLimited()),
	}, a.Gateway, a.Store, a.Log.With(logging.String("component", "server")))
}

// History returns the history store for a session; empty means the default key.
func (a *App) History(session string) *history.Store {
	return history.NewStore(a.Store, history.KeyFor(session))
}

// Controller returns a loaded page controller for a session.
func (a *App) Controller(ctx context.Context, session string) (*controller.Controller, error) {
	c := controller.New(a.Gateway, a.History(session), controller.WithLogger(a.Log))
	if err := c.Init(ctx); err != nil && !errors.Is(err, history.ErrHistoryReset) {
		return c, err
	}
	return c, nil
}

// Close releases the client and storage.
func (a *App) Close() error {
	return errors.Join(a.LLM.Close(), a.Store.Close())
}
