package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tycoon.ai/internal/clock"
	"tycoon.ai/internal/config"
	"tycoon.ai/internal/logging"
	"tycoon.ai/internal/metrics"
	"tycoon.ai/internal/persistence/journal"
	"tycoon.ai/internal/persistence/kv"
	"tycoon.ai/internal/persistence/savegame"
	"tycoon.ai/internal/sim/catalogs"
	"tycoon.ai/internal/sim/game"
	"tycoon.ai/internal/sim/tuning"
	"tycoon.ai/internal/transport/ws"
)

type serverOptions struct {
	Addr        string
	DataDir     string
	ConfigsDir  string
	TuningPath  string
	EnableAdmin bool
}

func main() {
	env, err := config.LoadServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var (
		addr        = flag.String("addr", env.Addr, "http listen address")
		dataDir     = flag.String("data", env.DataDir, "runtime data directory (sqlite save + ledger)")
		configsDir  = flag.String("configs", env.ConfigsDir, "directory with businesses.json and managers.json (empty: built-in)")
		tuningPath  = flag.String("tuning", env.TuningPath, "path to tuning.yaml (empty: defaults)")
		logLevel    = flag.String("log_level", env.LogLevel, "debug|info|warn|error")
		logFormat   = flag.String("log_format", env.LogFormat, "json|console")
		enableAdmin = flag.Bool("admin_http", env.EnableAdminHTTP, "serve loopback-only /admin/v1 endpoints")
	)
	flag.Parse()

	logger, err := logging.New(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	err = run(ctx, serverOptions{
		Addr:        *addr,
		DataDir:     *dataDir,
		ConfigsDir:  *configsDir,
		TuningPath:  *tuningPath,
		EnableAdmin: *enableAdmin,
	}, logger)
	if err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}

func run(ctx context.Context, opts serverOptions, logger *zap.Logger) error {
	cats, err := catalogs.Load(opts.ConfigsDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	tune := tuning.Defaults()
	if p := strings.TrimSpace(opts.TuningPath); p != "" {
		if tune, err = tuning.Load(p); err != nil {
			return fmt.Errorf("load tuning: %w", err)
		}
	}

	store, err := kv.OpenSQLite(config.DBPath(opts.DataDir))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	eng := game.New(game.ConfigFromTuning(tune), cats, clock.Real{}, logger.Named("engine"))

	ledger := journal.NewLedger(opts.DataDir, logger.Named("ledger"))
	defer ledger.Close()
	eng.SetJournal(ledger)

	bootCtx, bootCancel := context.WithTimeout(ctx, 10*time.Second)
	boot, err := eng.Boot(bootCtx, store, tune.StateKey)
	bootCancel()
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	logger.Info("game loaded",
		zap.Bool("first_run", boot.FirstRun),
		zap.Float64("offline_earned", boot.OfflineEarned),
		zap.Float64("offline_pending", boot.PendingOffline),
		zap.String("businesses_digest", cats.Businesses.Digest),
		zap.String("managers_digest", cats.Managers.Digest),
	)

	writer := savegame.NewWriter(store, tune.StateKey, logger.Named("save"))
	eng.SetSaveSink(writer)

	reg := metrics.New(metrics.Sources{Engine: eng, Save: writer, Ledger: ledger})
	wsSrv := ws.NewServer(eng, ws.Options{
		TickMs:           tune.TickMs,
		RefreshMs:        tune.RefreshMs,
		ActionsPerSecond: tune.RateLimits.ActionsPerSecond,
		Burst:            tune.RateLimits.Burst,
		Hooks:            reg,
	}, logger.Named("ws"))

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	engDone := make(chan error, 1)
	go func() { engDone <- eng.Run(runCtx) }()

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           newMux(eng, wsSrv, reg, opts.EnableAdmin, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-runCtx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", zap.String("addr", opts.Addr))
	serveErr := srv.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	stopRun()
	if err := <-engDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("engine stopped", zap.Error(err))
	}

	// The loop has exited; this goroutine owns the engine again.
	writer.Close()
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer saveCancel()
	if err := savegame.Save(saveCtx, store, tune.StateKey, eng.Snapshot()); err != nil {
		logger.Error("final save failed", zap.Error(err))
	} else {
		logger.Info("game saved", zap.Float64("money", eng.Money()))
	}
	return serveErr
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
