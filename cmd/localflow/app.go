package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aaileenssyed/LocalFlow/config"
	"github.com/aaileenssyed/LocalFlow/enrich"
	"github.com/aaileenssyed/LocalFlow/events"
	"github.com/aaileenssyed/LocalFlow/llm"
	"github.com/aaileenssyed/LocalFlow/llm/providers"
	"github.com/aaileenssyed/LocalFlow/metrics"
	"github.com/aaileenssyed/LocalFlow/planner"
	"github.com/aaileenssyed/LocalFlow/resolver"
	"github.com/aaileenssyed/LocalFlow/session"
	"github.com/aaileenssyed/LocalFlow/storage"
	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// App wires the planning session to its providers, store and event sink.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics  *metrics.Collector
	client   *llm.Client
	resolver *resolver.Resolver
	engine   *session.Engine
	store    storage.Store

	natsConn    *nats.Conn
	redisClient *redis.Client
}

// appOptions adjust NewApp for tests.
type appOptions struct {
	providers []llm.Provider
	now       func() time.Time
}

type appOption func(*appOptions)

func withProviders(p ...llm.Provider) appOption {
	return func(o *appOptions) {
		o.providers = append(o.providers, p...)
	}
}

func withNow(now func() time.Time) appOption {
	return func(o *appOptions) {
		o.now = now
	}
}

// NewApp builds every component from cfg and restores the saved session.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...appOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(""),
	}

	provs := o.providers
	if len(provs) == 0 {
		var err error
		provs, err = a.buildProviders(ctx)
		if err != nil {
			return nil, err
		}
	}

	clientOpts := []llm.ClientOption{
		llm.WithLogger(logger),
		llm.WithObserver(a.metrics.ObserveLLMCall),
		llm.WithBreakerConfig(llm.BreakerConfig{
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
		}),
	}
	for _, p := range provs {
		clientOpts = append(clientOpts, llm.WithProvider(p))
	}
	a.client = llm.NewClient(cfg.Registry(), clientOpts...)

	a.resolver = resolver.New(a.client,
		resolver.WithCacheTTL(cfg.Resolver.CacheTTL),
		resolver.WithRateLimit(cfg.Resolver.RatePerSecond, cfg.Resolver.Burst),
		resolver.WithLogger(logger),
		resolver.WithObserver(a.metrics.ObserveResolve),
	)
	pipeline := enrich.New(a.resolver,
		enrich.WithMaxConcurrency(cfg.Resolver.MaxConcurrency),
		enrich.WithLogger(logger),
	)
	svc := planner.New(planner.NewClient(a.client, planner.WithClientLogger(logger)), planner.WithLogger(logger))

	if err := a.connectNATS(); err != nil {
		return nil, err
	}
	store, err := a.buildStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	var publisher events.Publisher = events.Noop{}
	if a.natsConn != nil {
		publisher = events.NewNATSPublisher(a.natsConn,
			events.WithSubjectPrefix(cfg.Events.SubjectPrefix),
			events.WithLogger(logger),
		)
	}

	sessionOpts := []session.Option{
		session.WithID(cfg.Session.ID),
		session.WithResolver(a.resolver),
		session.WithStore(store),
		session.WithPublisher(publisher),
		session.WithMetrics(a.metrics),
		session.WithLogger(logger),
		session.WithDefaultContext(cfg.Session.DefaultContext),
	}
	if o.now != nil {
		sessionOpts = append(sessionOpts, session.WithClock(o.now))
	}
	a.engine = session.New(svc, pipeline, sessionOpts...)

	if err := a.engine.Restore(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("restore session %q: %w", cfg.Session.ID, err)
	}
	return a, nil
}

func (a *App) buildProviders(ctx context.Context) ([]llm.Provider, error) {
	var provs []llm.Provider
	if key := a.cfg.Providers.Gemini.APIKey; key != "" {
		gemini, err := providers.NewGeminiProvider(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("create gemini provider: %w", err)
		}
		provs = append(provs, gemini)
	} else {
		a.logger.Warn("No Gemini API key configured, gemini endpoints are unavailable",
			"env", "GEMINI_API_KEY")
	}

	// The OpenAI-compatible provider needs no key for local servers.
	provs = append(provs, providers.NewOpenAIProvider(providers.OpenAIConfig{
		BaseURL: a.cfg.Providers.OpenAI.BaseURL,
		APIKey:  a.cfg.Providers.OpenAI.APIKey,
	}, nil))
	return provs, nil
}

func (a *App) connectNATS() error {
	url := a.cfg.Events.NATSURL
	if url == "" {
		if a.cfg.Session.Store == config.StoreNATS {
			return fmt.Errorf("session store %q needs events.nats_url", config.StoreNATS)
		}
		return nil
	}

	a.logger.Info("Connecting to NATS", "url", url)
	conn, err := nats.Connect(url,
		nats.Name("localflow"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return wrapNATSError(err, url)
	}
	a.natsConn = conn
	return nil
}

// wrapNATSError adds guidance for the common not-running case.
func wrapNATSError(err error, url string) error {
	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no servers available") ||
		strings.Contains(msg, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker run -p 4222:4222 nats -js

Or unset events.nats_url to run without events.`, err, url)
	}
	return fmt.Errorf("NATS connection failed: %w", err)
}

func (a *App) buildStore(ctx context.Context) (storage.Store, error) {
	sc := a.cfg.Session
	switch sc.Store {
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	case config.StoreFile:
		return storage.NewFileStore(sc.Dir)
	case config.StoreRedis:
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redisClient.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", sc.Redis.Addr, err)
		}
		return storage.NewRedisStore(a.redisClient, sc.Redis.TTL), nil
	case config.StoreNATS:
		js, err := jetstream.New(a.natsConn)
		if err != nil {
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}
		return storage.NewKVStore(ctx, js)
	default:
		return nil, fmt.Errorf("unknown session store %q", sc.Store)
	}
}

// Close releases connections. It is safe to call more than once.
func (a *App) Close() {
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn = nil
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
		a.redisClient = nil
	}
}
