package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nerrad567/itemkeeper/internal/api"
	"github.com/nerrad567/itemkeeper/internal/audit"
	"github.com/nerrad567/itemkeeper/internal/auth"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/config"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/database"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/logging"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/mqtt"
	"github.com/nerrad567/itemkeeper/internal/item"
	"github.com/nerrad567/itemkeeper/internal/metrics"
	"github.com/nerrad567/itemkeeper/migrations"
)

// run initialises every component and blocks until ctx is cancelled.
//
// Any error before the listener starts (bad config, missing JWT secret,
// unreachable database) is returned so main exits non-zero.
func run(ctx context.Context, configPath string) error {
	// Default logger until the configured one exists
	log := logging.Default()
	log.Info("starting itemkeeper", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, cfg.Service.Name, version)
	log.Info("configuration loaded",
		"config_path", configPath,
		"environment", cfg.Service.Environment,
	)

	ttl, err := cfg.TokenTTL()
	if err != nil {
		return fmt.Errorf("token ttl: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	users := auth.NewUserDirectory(db.DB)
	created, err := auth.SeedDirectory(ctx, users, seedsFrom(cfg.Security.SeedUsers), log.Logger)
	if err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}
	userCount, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	log.Info("user directory ready", "users", userCount, "seeded", created)

	credentials, err := auth.NewCredentialValidator(users)
	if err != nil {
		return fmt.Errorf("creating credential validator: %w", err)
	}

	var (
		m              *metrics.Metrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		registry, mm := metrics.NewRegistry(db.DB)
		m, metricsHandler = mm, metrics.Handler(registry)
	}

	auditLogs := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditLogs, log)
	recorder.OnDrop = m.RecordAuditDropped
	auditCtx, stopAudit := context.WithCancel(context.WithoutCancel(ctx))
	go recorder.Run(auditCtx)
	defer func() {
		stopAudit()
		recorder.Wait()
	}()

	var (
		events item.Publisher
		client *mqtt.Client
	)
	if cfg.MQTT.Enabled {
		client, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		client.SetLogger(log)
		client.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		client.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)
		events = &mqttPublisher{client: client}
	}

	server, err := api.New(api.Deps{
		Config:         cfg.API,
		Logger:         log,
		Tokens:         tokens,
		Credentials:    credentials,
		Users:          users,
		Items:          item.NewSQLiteRepository(db.DB),
		Audit:          recorder,
		AuditLogs:      auditLogs,
		Events:         events,
		Metrics:        m,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		Registration:   cfg.Security.Registration.Enabled,
		DevMode:        cfg.IsDevelopment(),
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, server, client); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, MQTT, audit recorder, database.
	return nil
}

// seedsFrom converts configured seed users to directory seeds.
func seedsFrom(users []config.SeedUser) []auth.Seed {
	seeds := make([]auth.Seed, 0, len(users))
	for _, u := range users {
		seeds = append(seeds, auth.Seed{
			ID:           u.ID,
			Email:        u.Email,
			Password:     u.Password,
			PasswordHash: u.PasswordHash,
			Role:         auth.Role(u.Role),
		})
	}
	return seeds
}

// healthCheck verifies the components started by run are usable.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - server: API server to check
//   - mqttClient: MQTT client to check (nil when events are disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	return nil
}
