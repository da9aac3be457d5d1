package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/lock"
)

// Container holds the wired services shared by the API server and the CLI.
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB

	Metrics   *service.MetricsService
	Cache     *service.CacheService
	Generator *service.TimetableGeneratorService
	Query     *service.TimetableQueryService
	Slots     *service.ScheduleSlotService
	Tokens    *service.TokenService

	redis         *redis.Client
	invalidations *jobs.Queue[service.CacheInvalidation]
}

// New connects to Postgres (and Redis when enabled) and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load SCHEDULER_TIMEZONE: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	// Keep the interface nil when Redis is off; a typed nil pointer would look configured.
	var universal redis.UniversalClient
	if redisClient != nil {
		universal = redisClient
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(universal),
		metrics,
		cfg.Scheduler.CacheTTL,
		logger,
		cfg.Scheduler.CacheEnabled && universal != nil,
	)
	invalidations := jobs.NewQueue("cache-invalidation", cacheSvc.RetryInvalidation, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 5,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})
	invalidations.OnGiveUp(cacheSvc.AbandonInvalidation)
	cacheSvc.UseRetryQueue(invalidations)
	invalidations.Start(ctx)

	locker, err := newLocker(cfg.Scheduler, universal, logger)
	if err != nil {
		invalidations.Stop()
		_ = db.Close()
		return nil, err
	}

	subjects := repository.NewSubjectRepository(db)
	teachers := repository.NewTeacherRepository(db)
	slots := repository.NewScheduleSlotRepository(db)

	grid := service.TimetableConfig{
		Days:               cfg.Scheduler.Days,
		Hours:              cfg.Scheduler.Hours,
		LowSupplyThreshold: cfg.Scheduler.LowSupplyThreshold,
		DefaultRoom:        cfg.Scheduler.DefaultRoom,
	}

	return &Container{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Metrics:   metrics,
		Cache:     cacheSvc,
		Generator: service.NewTimetableGeneratorService(subjects, slots, locker, cacheSvc, metrics, nil, logger, grid),
		Query: service.NewTimetableQueryService(slots, subjects, cacheSvc, nil, logger, service.TimetableQueryConfig{
			TimetableConfig: grid,
			HourWindows:     cfg.Scheduler.HourWindows,
			Location:        loc,
			CacheTTL:        cfg.Scheduler.CacheTTL,
		}),
		Slots:         service.NewScheduleSlotService(slots, subjects, teachers, cacheSvc, nil, logger, grid),
		Tokens:        service.NewTokenService(cfg.JWT.Secret),
		redis:         redisClient,
		invalidations: invalidations,
	}, nil
}

func newLocker(cfg config.SchedulerConfig, client redis.UniversalClient, logger *zap.Logger) (lock.Locker, error) {
	switch cfg.LockBackend {
	case "", config.LockBackendLocal:
		return lock.NewLocal(), nil
	case config.LockBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("SCHEDULER_LOCK_BACKEND=redis requires ENABLE_REDIS=true")
		}
		return lock.NewRedis(client, cfg.LockTTL, cfg.LockRetry, logger), nil
	default:
		return nil, fmt.Errorf("unknown SCHEDULER_LOCK_BACKEND %q", cfg.LockBackend)
	}
}

// Close releases background workers and connections.
func (c *Container) Close() {
	if c.invalidations != nil {
		c.invalidations.Stop()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("close postgres", zap.Error(err))
		}
	}
}
