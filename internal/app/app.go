// Package app wires configuration, the state backend, the ledgers and the
// engine together for the three binaries: the one-shot monitor cycle, the
// manual cleanup and the status API.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/MrSnakeDoc/uptimer/internal/config"
	"github.com/MrSnakeDoc/uptimer/internal/httpserver"
	"github.com/MrSnakeDoc/uptimer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/uptimer/internal/ledger"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
	"github.com/MrSnakeDoc/uptimer/internal/logsink"
	"github.com/MrSnakeDoc/uptimer/internal/mailer"
	"github.com/MrSnakeDoc/uptimer/internal/monitor"
	"github.com/MrSnakeDoc/uptimer/internal/notify"
	"github.com/MrSnakeDoc/uptimer/internal/probe"
	"github.com/MrSnakeDoc/uptimer/internal/redis"
	"github.com/MrSnakeDoc/uptimer/internal/retention"
	"github.com/MrSnakeDoc/uptimer/internal/scheduler"
	"github.com/MrSnakeDoc/uptimer/internal/sources/targets"
	"github.com/MrSnakeDoc/uptimer/internal/state"
	"github.com/MrSnakeDoc/uptimer/internal/state/file"
	redisstate "github.com/MrSnakeDoc/uptimer/internal/state/redis"
	"github.com/MrSnakeDoc/uptimer/internal/state/sqlite"
	"github.com/MrSnakeDoc/uptimer/internal/utils"
	"github.com/MrSnakeDoc/uptimer/internal/version"
)

// fallbackSender is used by the log transport when no sender is configured.
const fallbackSender = "monitor@localhost"

type App struct {
	cfg    *config.Config
	logger logger.Logger
	loc    *time.Location

	sink  *logsink.File
	store state.Store

	status    *ledger.StatusLedger
	alerts    *ledger.AlertLedger
	markers   *ledger.Markers
	targets   *targets.Loader
	retention *retention.Manager
	engine    *monitor.Engine
}

// New builds every component from cfg. Any error here is fatal for the
// calling binary.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	a := &App{cfg: cfg, loc: loc}

	var sinks []zapcore.WriteSyncer
	if cfg.LogFile != "" {
		sink, err := logsink.Open(cfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.sink = sink
		sinks = append(sinks, sink)
	}
	a.logger = logger.New(cfg.LogLevel, cfg.PrettyLog, sinks...)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	ledgerOpts := []ledger.Option{ledger.WithLogger(a.logger)}
	a.status = ledger.NewStatusLedger(a.store, ledgerOpts...)
	a.alerts = ledger.NewAlertLedger(a.store, ledgerOpts...)
	a.markers = ledger.NewMarkers(a.store, ledgerOpts...)
	a.targets = targets.NewLoader(cfg.TargetsFile, a.logger)

	transport, err := a.newTransport(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	composer, err := notify.NewComposer("", cfg.Timezone)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build mail composer: %w", err)
	}

	a.retention = retention.New(retention.Config{
		TempDir:        a.tempDir(),
		LogMaxSize:     cfg.LogMaxSize,
		LogRetention:   cfg.LogRetention,
		AlertRetention: cfg.AlertRetention,
		TempMaxAge:     cfg.TempMaxAge,
	}, a.logArtifacts(), a.alerts, a.status, ledger.NewQuarantine(a.store), a.markers, a.targets.URLs, a.logger)

	a.engine = monitor.New(monitor.Deps{
		Targets: a.targets,
		Prober: probe.New(probe.Options{
			Timeout:      cfg.ProbeTimeout,
			MaxRedirects: cfg.MaxRedirects,
			UserAgent:    cfg.UserAgent,
		}),
		Status:    a.status,
		Notifier:  notify.New(a.alerts, transport, composer, a.logger),
		Retention: a.retention,
		Markers:   a.markers,
		Alerts:    a.alerts,
	}, monitor.Options{Workers: cfg.Workers, Location: loc}, a.logger)

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.cfg.Store {
	case config.StoreRedis:
		client, err := redis.Connect(ctx, redis.Options{
			Addr:           a.cfg.RedisAddr,
			User:           a.cfg.RedisUser,
			Password:       a.cfg.RedisPassword,
			DB:             a.cfg.RedisDB,
			DialTimeout:    a.cfg.RedisDT,
			ReadTimeout:    a.cfg.RedisRT,
			WriteTimeout:   a.cfg.RedisWT,
			PoolSize:       a.cfg.RedisPoolSize,
			ConnectTimeout: a.cfg.RedisConnectTimeout,
			RetryInterval:  a.cfg.RedisRetryInterval,
			MaxWait:        a.cfg.RedisMaxWait,
			PingTimeout:    a.cfg.RedisPingTimeout,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.store = redisstate.NewStore(client, a.cfg.RedisPrefix)
	case config.StoreSQLite:
		s, err := sqlite.New(ctx, a.cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.store = s
	default:
		s, err := file.New(a.cfg.DataDir, a.cfg.FileLockTimeout)
		if err != nil {
			return fmt.Errorf("failed to open data directory: %w", err)
		}
		a.store = s
	}
	a.logger.Info("state store ready", logger.String("backend", a.cfg.Store))
	return nil
}

func (a *App) newTransport(ctx context.Context) (mailer.Transport, error) {
	from := mailer.Sender{Email: a.cfg.FromEmail, Name: a.cfg.FromName}

	switch a.cfg.MailTransport {
	case config.MailMailgun:
		if err := from.Validate(); err != nil {
			return nil, fmt.Errorf("invalid sender: %w", err)
		}
		t, err := mailer.NewMailgunTransport(mailer.MailgunConfig{
			Domain:  a.cfg.MailgunDomain,
			APIKey:  a.cfg.MailgunAPIKey,
			APIBase: a.cfg.MailgunAPIBase,
			Timeout: a.cfg.MailTimeout,
		}, from)
		if err != nil {
			return nil, fmt.Errorf("failed to build mailgun transport: %w", err)
		}
		return t, nil
	case config.MailSES:
		if err := from.Validate(); err != nil {
			return nil, fmt.Errorf("invalid sender: %w", err)
		}
		t, err := mailer.NewSESTransport(ctx, a.cfg.SESRegion, from)
		if err != nil {
			return nil, fmt.Errorf("failed to build ses transport: %w", err)
		}
		return t, nil
	default:
		if from.Email == "" {
			from.Email = fallbackSender
		}
		a.logger.Info("mail transport is simulated, messages are only logged")
		return mailer.NewLogTransport(from, a.logger), nil
	}
}

// tempDir is scanned for orphaned temp files. Only the file store writes any.
func (a *App) tempDir() string {
	if a.cfg.Store == config.StoreFile {
		return a.cfg.DataDir
	}
	return ""
}

func (a *App) logArtifacts() []logsink.Artifact {
	var logs []logsink.Artifact
	if a.sink != nil {
		logs = append(logs, a.sink)
	}
	for _, path := range a.cfg.ExtraLogs {
		logs = append(logs, logsink.NewStatic(path))
	}
	return logs
}

// RunCycle runs one monitoring cycle and returns the process exit code.
func (a *App) RunCycle(ctx context.Context) int {
	a.logger.Info("uptimer cycle",
		logger.String("version", version.Version),
		logger.String("targets", a.cfg.TargetsFile))
	return a.engine.Run(ctx)
}

// Loop runs a cycle every interval until ctx is cancelled.
func (a *App) Loop(ctx context.Context, interval time.Duration) {
	a.logger.Info("uptimer loop started",
		logger.String("version", version.Version),
		logger.Duration("interval", interval))
	sched := scheduler.NewCycleScheduler(a.engine.RunCycle, a.logger, interval, nil)
	sched.Start(ctx)
	<-sched.Done()
	a.logger.Info("uptimer loop stopped")
}

// Cleanup runs retention outside the daily schedule. With dryRun nothing is
// changed; with force the daily marker is ignored.
func (a *App) Cleanup(ctx context.Context, force, dryRun bool) (retention.Report, error) {
	now := time.Now().In(a.loc)

	if dryRun {
		return a.retention.DryRun(ctx, now), nil
	}
	if force {
		report := a.retention.RunNow(ctx, now)
		if err := a.markers.Mark(ctx, ledger.LastCleanup, now); err != nil {
			return report, fmt.Errorf("failed to update cleanup marker: %w", err)
		}
		return report, nil
	}

	report, ran, err := a.retention.RunIfDue(ctx, now)
	if err != nil {
		return report, err
	}
	if !ran {
		a.logger.Info("cleanup already ran today, use -force to run again")
	}
	return report, nil
}

// Serve runs the status API until SIGINT/SIGTERM.
func (a *App) Serve() error {
	a.logger.Infof("🚀 Starting uptimer API v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("uptimer %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := a.Deps()
	var sched *scheduler.CycleScheduler
	if a.cfg.CheckInterval > 0 {
		d.CheckTrigger = make(chan struct{}, 1)
		sched = scheduler.NewCycleScheduler(a.engine.RunCycle, a.logger, a.cfg.CheckInterval, d.CheckTrigger)
		sched.Start(ctx)
		a.logger.Info("in-process checks enabled", logger.Duration("interval", a.cfg.CheckInterval))
	}

	server := httpserver.New(a.cfg.ListenPort, d)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	if sched != nil {
		sched.Stop()
	}

	a.logger.Info("✅ uptimer API stopped cleanly")
	return nil
}

// Deps returns the dependencies of the status API.
func (a *App) Deps() deps.Deps {
	d := deps.Deps{
		Logger:       a.logger,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedCIDRS: a.cfg.AllowedCIDRS,
		TrustProxy:   a.cfg.TrustProxy,
		Store:        a.cfg.Store,
		Status:       a.status,
		Alerts:       a.alerts,
		Targets:      a.targets,
	}
	if p, ok := a.store.(state.Pinger); ok {
		d.Ping = p.Ping
	}
	return d
}

// Close releases the store (and with it the redis client) and the log file.
func (a *App) Close() {
	if a.store != nil {
		closeQuietly(a.store, "state store", a.logger)
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.sink != nil {
		utils.Close(a.sink)
	}
}

func closeQuietly(c io.Closer, name string, log logger.Logger) {
	if log == nil {
		utils.Close(c)
		return
	}
	utils.CloseLogged(c, name, log)
}
