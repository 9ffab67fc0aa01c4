// Package main provides the presence server binary that exposes the
// location-scoped presence gateway over WebSocket.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jcarrell/galaxia/internal/config"
	"github.com/jcarrell/galaxia/internal/game/world"
	"github.com/jcarrell/galaxia/internal/observability"
	"github.com/jcarrell/galaxia/internal/presence"
	"github.com/jcarrell/galaxia/internal/server"
	"github.com/jcarrell/galaxia/internal/storage/postgres"
	"github.com/jcarrell/galaxia/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	catalogDir := flag.String("catalog", "", "path to planet YAML files; overrides world.catalog_dir")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting presence server",
		zap.String("addr", cfg.Server.Addr()),
	)

	// Load the planet catalog. The catalog is advisory: joins for
	// unknown maps are logged, not rejected, so a missing catalog only
	// degrades the logging.
	var worldMgr *world.Manager
	dir := cfg.World.CatalogDir
	if *catalogDir != "" {
		dir = *catalogDir
	}
	if dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			catalogStart := time.Now()
			planets, err := world.LoadPlanetsFromDir(dir)
			if err != nil {
				logger.Fatal("loading planet catalog", zap.Error(err))
			}
			worldMgr, err = world.NewManager(planets)
			if err != nil {
				logger.Fatal("creating world manager", zap.Error(err))
			}
			logger.Info("planet catalog loaded",
				zap.Int("planets", worldMgr.PlanetCount()),
				zap.Int("maps", worldMgr.MapCount()),
				zap.Duration("elapsed", time.Since(catalogStart)),
			)
		} else {
			logger.Warn("planet catalog directory not found, joins will not be checked",
				zap.String("dir", dir))
		}
	}

	// Connect to PostgreSQL for character status persistence.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	charRepo := postgres.NewCharacterRepository(pool.DB())

	// Wire the presence core.
	registry := presence.NewRegistry()
	gateway := presence.NewGateway(registry, charRepo, worldMgr, logger, cfg.Presence.StoreTimeout)
	publisher := presence.NewPublisher(registry, charRepo, gateway, logger, cfg.Presence.StoreTimeout)
	gateway.SetPublisher(publisher)

	sweeper := presence.NewSweeper(charRepo, logger,
		cfg.Presence.InactivityThreshold, cfg.Presence.SweepInterval)

	wsServer := ws.NewServer(cfg, gateway, pool, logger)

	// Wire lifecycle.
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("websocket", wsServer)

	lifecycle.Add("sweeper", &server.FuncService{
		StartFn: sweeper.Run,
	})

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("presence server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
