package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/dronedash/internal/api"
	"codeberg.org/mutker/dronedash/internal/arena"
	"codeberg.org/mutker/dronedash/internal/config"
	"codeberg.org/mutker/dronedash/internal/detections"
	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/geofence"
	"codeberg.org/mutker/dronedash/internal/history"
	"codeberg.org/mutker/dronedash/internal/logger"
	"codeberg.org/mutker/dronedash/internal/metrics"
	"codeberg.org/mutker/dronedash/internal/mission"
	"codeberg.org/mutker/dronedash/internal/pid"
	"codeberg.org/mutker/dronedash/internal/telemetry"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

type app struct {
	cfg      *config.Config
	arenaCfg arena.Config
	history  *history.Service
	poller   *arena.Poller
	tracker  *mission.Tracker
	detLog   detections.Log
	server   *api.Server
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Level(), logger.IsService())
	logger.Debug().Str("config_file", cfg.ConfigFile).Msg("Config loaded")

	if err := pid.Write(cfg.PIDFile); err != nil {
		if appErr, ok := err.(errors.Error); ok {
			logger.FatalWithCode(appErr).Msg("Failed to write PID file")
		}
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(cancel)

	a, err := newApp(ctx, cfg)
	if err != nil {
		logError(err, "Failed to initialize")
		cancel()
		cleanup(cfg, nil)
		os.Exit(1)
	}

	exitCode := 0
	if err := a.run(ctx); err != nil {
		logError(errors.New().Wrap(errors.ErrMainLoop, err), "Error in main loop")
		exitCode = 1
	}

	cancel()
	cleanup(cfg, a)
	os.Exit(exitCode)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	errFactory := errors.New()

	metrics.Init()

	source, err := telemetry.NewFileSource(cfg.TelemetryConfig())
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}
	assembler := telemetry.NewAssembler(source, telemetry.WithLogger(logger.New("telemetry")))

	histCfg, err := cfg.HistoryConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.NewStore(histCfg, history.WithStoreLogger(logger.New("history")))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}
	historySvc := history.NewService(store, assembler, logger.New("history"))

	arenaCfg := cfg.ArenaConfig()
	provider, err := arena.NewProvider(arenaCfg)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}
	pollerOpts := []arena.PollerOption{arena.WithPollerLogger(logger.New("arena"))}
	if arenaCfg.MockFirst {
		pollerOpts = append(pollerOpts, arena.WithMockFirst(arena.NewMockProvider()))
	}
	poller := arena.NewPoller(provider, pollerOpts...)

	detLog, err := detections.NewService(cfg.DetectionsConfig(), logger.New("detections"))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	engine := geofence.NewEngine(cfg.GeofenceConfig())
	tracker := mission.NewTracker(engine, source, poller,
		mission.WithLogger(logger.New("mission")),
		mission.WithDetectionLog(detLog),
	)
	if err := tracker.Start(ctx); err != nil {
		_ = detLog.Close()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	server := api.NewServer(historySvc, tracker, poller, api.WithLogger(logger.New("api")))

	logger.Info().
		Str("listen", cfg.Listen).
		Str("params_dir", source.Dir()).
		Str("history_dir", histCfg.Dir).
		Str("arena_source", string(arenaCfg.Source)).
		Bool("detection_log", detLog.Enabled()).
		Str("mission", tracker.MissionID()).
		Msg("Dronedash started")

	return &app{
		cfg:      cfg,
		arenaCfg: arenaCfg,
		history:  historySvc,
		poller:   poller,
		tracker:  tracker,
		detLog:   detLog,
		server:   server,
	}, nil
}

// run drives every loop until ctx is cancelled or one of them fails
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.history.Run(ctx, a.cfg.Telemetry.CollectInterval)
	})
	g.Go(func() error {
		return a.poller.Run(ctx, a.arenaCfg.Interval)
	})
	g.Go(func() error {
		return a.tracker.Run(ctx, a.cfg.MissionConfig().PositionInterval)
	})
	g.Go(func() error {
		return a.server.ListenAndServe(ctx, a.cfg.Listen)
	})

	return g.Wait()
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup(cfg *config.Config, a *app) {
	if a != nil && a.detLog != nil {
		if err := a.detLog.Close(); err != nil {
			logError(err, "Failed to close detection log")
		}
	}
	if err := pid.Remove(cfg.PIDFile); err != nil {
		logError(err, "Failed to remove PID file")
	}
	logger.Info().Msg("Exiting...")
}

func logError(err error, msg string) {
	if appErr, ok := err.(errors.Error); ok {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
