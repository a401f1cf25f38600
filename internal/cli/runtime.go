// Package cli holds the caseflow commands: the HTTP server and the operator
// tools that run against the same database.
package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/aldoetobex/caseflow/internal/auth"
	"github.com/aldoetobex/caseflow/internal/cases"
	"github.com/aldoetobex/caseflow/internal/config"
	"github.com/aldoetobex/caseflow/internal/events"
	"github.com/aldoetobex/caseflow/internal/locks"
	"github.com/aldoetobex/caseflow/internal/logger"
	"github.com/aldoetobex/caseflow/internal/metrics"
	"github.com/aldoetobex/caseflow/internal/repository"
	"github.com/aldoetobex/caseflow/internal/storage"
	"github.com/aldoetobex/caseflow/internal/workflow"
	"github.com/aldoetobex/caseflow/pkg/database"
)

// redisLockTTL bounds how long a crashed instance can hold a case.
const redisLockTTL = 30 * time.Second

// Runtime is the wired service graph shared by the commands.
type Runtime struct {
	Config  config.Config
	Log     logger.AppLogger
	DB      *gorm.DB
	Redis   *redis.Client
	Kafka   *events.KafkaPublisher
	Blobs   cases.BlobStore
	Service *workflow.Service
}

// Bootstrap opens the database (migrating it), connects the optional Redis
// and blob store, and builds the workflow service.
func Bootstrap(ctx context.Context, cfg config.Config, log logger.AppLogger) (*Runtime, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	rt := &Runtime{Config: cfg, Log: log, DB: db}

	var (
		locker    locks.Locker     = locks.NewLocal()
		publisher events.Publisher = events.NewLogPublisher(log)
	)
	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Redis = client
		locker = locks.NewRedis(client, redisLockTTL)
		publisher = events.Fanout{
			publisher,
			events.NewRetrying(events.NewRedisPublisher(client, events.DefaultChannel), log),
		}
		log.Info("redis enabled", slog.String("channel", events.DefaultChannel))
	} else {
		log.Warn("REDIS_URL not set; case locks are local to this process")
	}

	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Kafka = kp
		publisher = events.Fanout{publisher, events.NewRetrying(kp, log)}
	}

	if cfg.SupabaseURL != "" {
		sb, err := storage.NewSupabase(storage.SupabaseConfig{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
			Bucket:     cfg.SupabaseBucket,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Blobs = sb
	} else {
		log.Warn("SUPABASE_URL not set; documents are kept in memory")
		rt.Blobs = storage.NewMemory()
	}

	rt.Service = workflow.NewService(workflow.Dependencies{
		Config:    workflow.Config{LockTimeout: cfg.LockTimeout},
		Store:     repository.NewCaseStore(db),
		Locker:    locker,
		Publisher: publisher,
		Policy:    cfg.Policy,
		Logger:    log,
	})
	return rt, nil
}

func (r *Runtime) Close() {
	if r.Kafka != nil {
		_ = r.Kafka.Close()
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// NewApp builds the HTTP surface on top of rt.
func NewApp(rt *Runtime) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler(rt.Log),
		BodyLimit:    110 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := rt.DB.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(c.UserContext()); err != nil {
			return errors.Wrap(err, "database unreachable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api", auth.RequireAuth(rt.Config.JWTSecret, rt.Config.SystemKeyHash))
	api.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(auth.MustActor(c))
	})
	cases.NewHandler(rt.Service, rt.Blobs, rt.Log).Register(api)
	return app
}
