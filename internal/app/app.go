// Package app wires all Kanade subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the feed loop, and Shutdown tears everything
// down in order.
//
// For testing, inject mock implementations via the Providers struct; any
// slot left nil is created from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/hikaline/kanade/internal/command"
	"github.com/hikaline/kanade/internal/config"
	"github.com/hikaline/kanade/internal/health"
	"github.com/hikaline/kanade/internal/observe"
	"github.com/hikaline/kanade/internal/pipeline"
	"github.com/hikaline/kanade/internal/reader"
	"github.com/hikaline/kanade/internal/resilience"
	"github.com/hikaline/kanade/internal/settings"
	"github.com/hikaline/kanade/internal/sound"
	"github.com/hikaline/kanade/internal/transform"
	"github.com/hikaline/kanade/internal/transport"
	"github.com/hikaline/kanade/internal/userinfo"
	"github.com/hikaline/kanade/pkg/provider/playback"
	"github.com/hikaline/kanade/pkg/provider/playback/oto"
	"github.com/hikaline/kanade/pkg/provider/tts"
	"github.com/hikaline/kanade/pkg/provider/tts/voicevox"
)

// Providers holds the external service implementations. Nil slots are
// created from the config by New; tests inject mocks here.
type Providers struct {
	TTS      tts.Provider
	Playback playback.Player
	Store    settings.Store
}

// App owns all subsystem lifetimes and orchestrates the comment reader.
type App struct {
	cfg       *config.Config
	providers *Providers

	store  settings.Store
	pipe   *pipeline.Pipeline
	feed   *transport.Client
	reader *reader.Reader
	admin  *http.Server

	// pinger backs the store readiness probe when a database is in use.
	pinger health.Pinger

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// New creates an App by wiring all subsystems together. Providers may be
// nil or partially populated; missing slots are built from cfg.
func New(ctx context.Context, cfg *config.Config, providers *Providers) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initProviders(); err != nil {
		return nil, fmt.Errorf("app: init providers: %w", err)
	}
	a.initPipeline()
	a.initReader()
	a.initAdmin()

	return a, nil
}

// initStore connects the settings store: injected, PostgreSQL from config,
// or in-memory as the last resort.
func (a *App) initStore(ctx context.Context) error {
	if a.providers.Store != nil {
		a.store = a.providers.Store
		return nil
	}

	dsn := a.cfg.Providers.Store.PostgresDSN
	if dsn == "" {
		slog.Warn("no postgres_dsn configured, user settings are in-memory only")
		a.store = settings.NewMemStore()
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	store := settings.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("migrate profiles schema: %w", err)
	}

	a.store = store
	a.pinger = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return nil
}

// initProviders fills the TTS and playback slots from config, wrapping the
// synthesis engine in a fallback group when backup engines are listed.
func (a *App) initProviders() error {
	if a.providers.TTS == nil {
		ttsCfg := a.cfg.Providers.TTS
		var opts []voicevox.Option
		if ttsCfg.QueryTimeout > 0 {
			opts = append(opts, voicevox.WithQueryTimeout(ttsCfg.QueryTimeout))
		}
		if ttsCfg.SynthesisTimeout > 0 {
			opts = append(opts, voicevox.WithSynthesisTimeout(ttsCfg.SynthesisTimeout))
		}

		primary := voicevox.New(ttsCfg.ServerURL, opts...)
		if len(ttsCfg.FallbackURLs) == 0 {
			a.providers.TTS = primary
		} else {
			fb := resilience.NewTTSFallback(primary, "voicevox", resilience.FallbackConfig{})
			for i, u := range ttsCfg.FallbackURLs {
				fb.AddFallback(fmt.Sprintf("voicevox-fallback-%d", i+1), voicevox.New(u, opts...))
			}
			a.providers.TTS = fb
		}
	}
	if a.providers.Playback == nil {
		pc := a.cfg.Providers.Playback
		var opts []oto.Option
		if pc.SampleRate > 0 {
			opts = append(opts, oto.WithSampleRate(pc.SampleRate))
		}
		if pc.BufferSize > 0 {
			opts = append(opts, oto.WithBufferSize(pc.BufferSize))
		}
		player, err := oto.New(opts...)
		if err != nil {
			return fmt.Errorf("open audio device: %w", err)
		}
		a.providers.Playback = player
	}
	return nil
}

// initPipeline builds the synthesis pipeline from the reader config.
func (a *App) initPipeline() {
	rc := a.cfg.Reader
	var opts []pipeline.Option
	if rc.SynthesisWorkers > 0 {
		opts = append(opts, pipeline.WithSynthesisWorkers(rc.SynthesisWorkers))
	}
	if rc.QueueSize > 0 {
		opts = append(opts, pipeline.WithQueueSize(rc.QueueSize))
	}
	if rc.ShutdownGrace > 0 {
		opts = append(opts, pipeline.WithShutdownGrace(rc.ShutdownGrace))
	}
	a.pipe = pipeline.New(a.providers.TTS, a.providers.Playback, opts...)
}

// initReader builds the transform pipeline, formatter, sound bank, and
// orchestrator.
func (a *App) initReader() {
	tc := a.cfg.Transform
	if tc.SlangRules == nil {
		tc.SlangRules = transform.DefaultSlangRules()
	}
	if tc.SlangRegexRules == nil {
		tc.SlangRegexRules = transform.DefaultSlangRegexRules()
	}

	var resolverOpts []settings.Option
	if a.cfg.Reader.DefaultVoice > 0 {
		resolverOpts = append(resolverOpts, settings.WithDefaultVoice(a.cfg.Reader.DefaultVoice))
	}

	a.reader = reader.New(reader.Config{
		Pipeline:      a.pipe,
		Resolver:      settings.NewResolver(a.store, resolverOpts...),
		Store:         a.store,
		Transform:     transform.New(tc),
		Formatter:     command.New(a.cfg.Commands.Templates),
		Sounds:        sound.NewBank(a.cfg.Commands.Sound),
		Fetcher:       userinfo.NewFetcher(),
		OperatorVoice: a.cfg.Reader.OperatorVoice,
		SkipWords:     a.cfg.Reader.SkipWords,
		SoundEnabled:  a.cfg.Commands.SoundOn(),
	})

	a.feed = transport.New(a.cfg.Feed.URL, transport.WithEventBuffer(a.cfg.Feed.EventBuffer))
}

// initAdmin assembles the admin listener. An empty admin_addr disables it.
func (a *App) initAdmin() {
	if a.cfg.Server.AdminAddr == "" {
		return
	}

	checkers := []health.Checker{health.TTSChecker(a.providers.TTS)}
	if a.pinger != nil {
		checkers = append(checkers, health.StoreChecker(a.pinger))
	}
	h := health.New(checkers...).WithStatus(func() any { return a.pipe.Status() })

	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.admin = &http.Server{
		Addr:    a.cfg.Server.AdminAddr,
		Handler: observe.Middleware(observe.DefaultMetrics())(mux),
	}
}

// Run starts the pipeline workers, the feed connection, and the reader
// loop, blocking until ctx is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	a.pipe.Start(ctx)

	g.Go(func() error { return a.feed.Run(ctx) })
	g.Go(func() error { return a.reader.Run(ctx, a.feed.Events()) })

	if a.admin != nil {
		g.Go(func() error {
			slog.Info("admin listener up", "addr", a.admin.Addr)
			if err := a.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("app: admin listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.admin.Shutdown(shutdownCtx)
		})
	}

	slog.Info("kanade running", "feed", a.cfg.Feed.URL)
	return g.Wait()
}

// Pipeline exposes the synthesis pipeline, mainly for status inspection.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipe }

// Shutdown drains the pipeline and tears down all subsystems in order. It
// respects the context deadline: if ctx expires, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.pipe.Shutdown(ctx); err != nil {
			slog.Warn("pipeline drain incomplete", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
