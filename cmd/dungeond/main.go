package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pibolib/cs375-multi-dungeon/internal/config"
	coresys "github.com/pibolib/cs375-multi-dungeon/internal/core/system"
	"github.com/pibolib/cs375-multi-dungeon/internal/data"
	"github.com/pibolib/cs375-multi-dungeon/internal/handler"
	gonet "github.com/pibolib/cs375-multi-dungeon/internal/net"
	"github.com/pibolib/cs375-multi-dungeon/internal/persist"
	"github.com/pibolib/cs375-multi-dungeon/internal/protocol"
	"github.com/pibolib/cs375-multi-dungeon/internal/scripting"
	"github.com/pibolib/cs375-multi-dungeon/internal/system"
	"github.com/pibolib/cs375-multi-dungeon/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "path to server config (empty = built-in defaults)")
	flag.Parse()
	if *cfgPath == "" {
		if p := os.Getenv("DUNGEON_CONFIG"); p != "" {
			*cfgPath = p
		}
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting server",
		zap.String("name", cfg.Server.Name),
		zap.String("bind", cfg.Network.BindAddress),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Token resolver: Postgres sessions table when a database is
	// configured, in-memory map otherwise (development and guest play).
	var resolver gonet.Resolver
	if cfg.Database.Enabled {
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		resolver = persist.NewSessionRepo(db, log)
		log.Info("session resolver: postgres")
	} else {
		resolver = persist.NewMemoryResolver()
		log.Info("session resolver: in-memory", zap.Bool("allow_guests", cfg.Server.AllowGuests))
	}

	topo, err := data.LoadTopology(cfg.World.TopologyPath)
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}
	log.Info("topology loaded", zap.Int("rooms", topo.Count()))

	luaEngine, err := scripting.NewEngine(cfg.World.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()

	worldState := world.NewState(topo, cfg.Game.ChatLogLimit)
	sessions := gonet.NewSessionStore()

	netServer := gonet.NewServer(gonet.ServerConfig{
		BindAddress:      cfg.Network.BindAddress,
		HandshakeTimeout: cfg.Network.HandshakeTimeout,
		AllowGuests:      cfg.Server.AllowGuests,
		Session: gonet.SessionConfig{
			InQueueSize:     cfg.Network.InQueueSize,
			OutQueueSize:    cfg.Network.OutQueueSize,
			FramesPerSecond: cfg.Network.FramesPerSecond,
			MaxFrameBytes:   cfg.Network.MaxFrameBytes,
			WriteTimeout:    cfg.Network.WriteTimeout,
			PongTimeout:     cfg.Network.PongTimeout,
		},
	}, resolver, log)

	deps := &handler.Deps{
		Config:    cfg,
		Log:       log,
		World:     worldState,
		Topology:  topo,
		Scripting: luaEngine,
		Sessions:  sessions,
	}
	registry := protocol.NewRegistry(log)
	handler.RegisterAll(registry, deps)

	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(netServer, registry, sessions, deps, cfg.Network.MaxFramesPerTick, log))
	runner.Register(system.NewResolveSystem(sessions, deps, log))
	runner.Register(system.NewBroadcastSystem(sessions, worldState, log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- netServer.ListenAndServe()
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickInterval)
	defer ticker.Stop()

	log.Info("game loop started", zap.Duration("tick", cfg.Network.TickInterval))

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickInterval)
		case err := <-errCh:
			return fmt.Errorf("listener: %w", err)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := netServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("listener shutdown", zap.Error(err))
			}
			sessions.ForEach(func(sess *gonet.Session) {
				sess.Close()
			})
			log.Info("server stopped")
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	log, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	if cfg.File == "" {
		return log, nil
	}

	// Tee a JSON core into a rotating file alongside the console output.
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}),
		level,
	)
	return log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), nil
}
