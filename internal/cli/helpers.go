package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/mudozzal/internal/config"
	"github.com/timmy/mudozzal/internal/logger"
	"github.com/timmy/mudozzal/internal/store"
)

// runEnv is the per-invocation state shared by every subcommand.
type runEnv struct {
	ctx    context.Context
	cfg    *config.Config
	log    *logger.Logger
	store  *store.ContentStore
	cancel context.CancelFunc
	sigs   chan os.Signal
	start  time.Time
}

// setup loads configuration, configures logging and installs the shutdown
// handler. Callers must defer close.
func setup(globals *GlobalFlags, command string) (*runEnv, error) {
	cfg, err := config.Load(globals.Config)
	if err != nil {
		return nil, err
	}

	logCfg := logger.FromEnv().Override(
		[2]string{cfg.Log.Level, cfg.Log.Format},
		[2]string{globals.LogLevel, globals.LogFormat},
	)
	appLogger := logger.New(logCfg)
	logger.SetDefaultLogger(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	ctx = appLogger.WithContext(ctx)
	ctx = logger.SetRunID(ctx, uuid.NewString())
	ctx = logger.WithFields(ctx, logger.Fields{"command": command})

	env := &runEnv{
		ctx:    ctx,
		cfg:    cfg,
		log:    logger.FromContext(ctx),
		store:  newStore(cfg),
		cancel: cancel,
		sigs:   make(chan os.Signal, 1),
		start:  time.Now(),
	}

	signal.Notify(env.sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-env.sigs:
			env.log.Info("Received shutdown signal, canceling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return env, nil
}

// finish logs the run summary line with its duration. A canceled run is
// reported as such.
func (e *runEnv) finish(count int) {
	entry := logger.With(nil).WithDuration(e.start).WithCount(count)
	if e.ctx.Err() != nil {
		entry.WithStatus("canceled").Warn(e.ctx, "Run canceled")
		return
	}
	entry.WithStatus("completed").Info(e.ctx, "Run completed")
}

func (e *runEnv) close() {
	signal.Stop(e.sigs)
	e.cancel()
	_ = logger.Sync()
}

func newStore(cfg *config.Config) *store.ContentStore {
	return store.New(store.Paths{
		ImagesDir:     cfg.Paths.ImagesDir,
		Manifest:      cfg.Paths.Manifest,
		Analysis:      cfg.Paths.Analysis,
		Published:     cfg.Paths.Published,
		PublishedMeta: cfg.Paths.PublishedMeta,
		PublicAssets:  cfg.Paths.PublicAssets,
	})
}
