// Area Core serves the area authorisation and lifecycle API.
//
// Configuration is read from configs/config.yaml, or the file named by
// AREACORE_CONFIG. When neither exists the built-in defaults are used and
// AREACORE_JWT_SECRET must be set.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/area-core/migrations"

	"github.com/nerrad567/area-core/internal/api"
	"github.com/nerrad567/area-core/internal/area"
	"github.com/nerrad567/area-core/internal/audit"
	"github.com/nerrad567/area-core/internal/auth"
	"github.com/nerrad567/area-core/internal/device"
	"github.com/nerrad567/area-core/internal/infrastructure/blobstore"
	"github.com/nerrad567/area-core/internal/infrastructure/config"
	"github.com/nerrad567/area-core/internal/infrastructure/database"
	"github.com/nerrad567/area-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/area-core/internal/infrastructure/logging"
	"github.com/nerrad567/area-core/internal/infrastructure/metrics"
	"github.com/nerrad567/area-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/area-core/internal/infrastructure/redis"
	"github.com/nerrad567/area-core/internal/project"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath     = "configs/config.yaml"
	activationRedisPrefix = "areacore:activation"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Area Core", "version", version, "commit", commit, "build_date", date)

	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}
	log = logging.New(cfg.Logging, version)

	db, err := database.Open(database.Config{
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
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	health := map[string]api.HealthChecker{"database": db}
	m := metrics.New()

	users := auth.NewUserRepository(db.DB)
	roleRepo := auth.NewRoleRepository(db.DB)
	if _, err := auth.SeedRegisteredUserRole(ctx, roleRepo, log.Logger); err != nil {
		return err
	}
	if _, err := auth.SeedAdmin(ctx, users, auth.AdminSeed{
		Username: cfg.Security.Admin.Username,
		Email:    cfg.Security.Admin.Email,
		Password: cfg.Security.Admin.Password,
	}, log.Logger); err != nil {
		return err
	}

	guard := auth.NewGuard(roleRepo, auth.GuardConfig{
		CacheSize: cfg.Cache.PermissionEntries,
		CacheTTL:  cfg.Cache.PermissionTTL,
	}, log.Logger)
	guard.AddObserver(m)

	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		guard.AddObserver(influxClient)
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	codes, redisClient, err := activationStore(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		health["redis"] = redisClient
	}

	images, err := blobstore.New(ctx, cfg.Images)
	if err != nil {
		return fmt.Errorf("opening image store: %w", err)
	}
	if hc, ok := images.(api.HealthChecker); ok {
		health["images"] = hc
	}
	log.Info("image store ready", "backend", cfg.Images.Backend)

	recorder := audit.NewRecorder(audit.NewSQLiteRepository(db.DB), log.Logger)
	projects := project.NewService(project.NewSQLiteRepository(db.DB), guard, recorder, log.Logger)
	devices := device.NewService(device.NewSQLiteRepository(db.DB), projects, guard, recorder, log.Logger)
	areas := area.NewService(area.Deps{
		Repo:        area.NewSQLiteRepository(db.DB),
		Projects:    projects,
		Devices:     devices,
		Images:      images,
		Guard:       guard,
		Audit:       recorder,
		Listeners:   []area.Listener{metricsListener(m)},
		Logger:      log.Logger,
		MaxFileSize: cfg.Images.MaxFileSize,
	})
	projects.AddRemovalHook(areas)
	if influxClient != nil {
		areas.AddListener(area.ListenerFunc(func(_ context.Context, e area.Event) {
			influxClient.WriteAreaEvent(e.ProjectID, e.AreaID, e.Name)
		}))
	}

	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		health["mqtt"] = mqttClient
		pub := mqtt.NewEventPublisher(mqttClient, cfg.MQTT.TopicPrefix, byte(cfg.MQTT.QoS), log) //nolint:gosec // qos validated 0-2
		areas.AddListener(area.ListenerFunc(func(ctx context.Context, e area.Event) {
			_ = pub.PublishAreaEvent(ctx, e.ProjectID, e.AreaID, e.Name, e.Data) //nolint:errcheck // logged by the publisher
		}))
		log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))
	}

	srv, err := api.New(api.Deps{
		Config:    cfg.API,
		Security:  cfg.Security,
		Logger:    log,
		Users:     users,
		RoleRepo:  roleRepo,
		Roles:     auth.NewRoleService(roleRepo, guard),
		Registrar: auth.NewRegistrar(users, roleRepo, codes, cfg.ActivationTTL(), log.Logger),
		Guard:     guard,
		Projects:  projects,
		Devices:   devices,
		Areas:     areas,
		AuditRepo: audit.NewSQLiteRepository(db.DB),
		Audit:     recorder,
		Metrics:   m,
		Health:    health,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recorder.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return srv.Close()
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Area Core stopped")
	return nil
}

// getConfigPath returns AREACORE_CONFIG when set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("AREACORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads path. A missing default file falls back to the built-in
// configuration; a missing explicit file is an error.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating default config: %w", err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// activationStore picks Redis when enabled, otherwise the SQLite table. The
// returned client is nil unless Redis is in use.
func activationStore(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (auth.ActivationStore, *redis.Client, error) {
	client, err := redis.Connect(ctx, cfg.Redis)
	if errors.Is(err, redis.ErrDisabled) {
		return auth.NewSQLiteActivationStore(db.DB), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	log.Info("activation codes stored in Redis", "addr", cfg.Redis.Addr)
	return auth.NewRedisActivationStore(client.Redis(), activationRedisPrefix), client, nil
}

func metricsListener(m *metrics.Metrics) area.Listener {
	return area.ListenerFunc(func(_ context.Context, e area.Event) {
		m.AreaEvent(e.Name)
		if e.Name == area.EventImageSet {
			m.ImageStored(e.Bytes)
		}
	})
}
