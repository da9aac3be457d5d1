package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Scheduler SchedulerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify tokens minted by the auth service.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// HourWindow maps a wall-clock window to an hour index of the timetable.
type HourWindow struct {
	Hour  string
	Start time.Duration
	End   time.Duration
}

// SchedulerConfig governs the timetable grid and the regeneration guard rails.
type SchedulerConfig struct {
	Days               []string
	Hours              []string
	HourWindows        []HourWindow
	Timezone           string
	LowSupplyThreshold int
	DefaultRoom        string
	LockBackend        string
	LockTTL            time.Duration
	LockRetry          time.Duration
	CacheEnabled       bool
	CacheTTL           time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	windows, err := ParseHourWindows(v.GetString("SCHEDULER_HOUR_WINDOWS"))
	if err != nil {
		return nil, fmt.Errorf("parse SCHEDULER_HOUR_WINDOWS: %w", err)
	}

	threshold := v.GetInt("SCHEDULER_LOW_SUPPLY_THRESHOLD")
	if threshold <= 0 {
		threshold = 3
	}

	cfg.Scheduler = SchedulerConfig{
		Days:               upperAll(splitAndTrim(v.GetString("SCHEDULER_DAYS"))),
		Hours:              splitAndTrim(v.GetString("SCHEDULER_HOURS")),
		HourWindows:        windows,
		Timezone:           v.GetString("SCHEDULER_TIMEZONE"),
		LowSupplyThreshold: threshold,
		DefaultRoom:        v.GetString("SCHEDULER_DEFAULT_ROOM"),
		LockBackend:        strings.ToLower(v.GetString("SCHEDULER_LOCK_BACKEND")),
		LockTTL:            parseDuration(v.GetString("SCHEDULER_LOCK_TTL"), 2*time.Minute),
		LockRetry:          parseDuration(v.GetString("SCHEDULER_LOCK_RETRY"), 200*time.Millisecond),
		CacheEnabled:       v.GetBool("ENABLE_TEACHER_SCHEDULE_CACHE"),
		CacheTTL:           parseDuration(v.GetString("TEACHER_SCHEDULE_CACHE_TTL"), 30*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "department_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("SCHEDULER_DAYS", "MONDAY,TUESDAY,WEDNESDAY,THURSDAY,FRIDAY,SATURDAY")
	v.SetDefault("SCHEDULER_HOURS", "1,2,3,4")
	v.SetDefault("SCHEDULER_HOUR_WINDOWS", "1=09:00-10:00,2=10:00-11:00,3=12:00-13:00,4=13:00-14:00")
	v.SetDefault("SCHEDULER_TIMEZONE", "Local")
	v.SetDefault("SCHEDULER_LOW_SUPPLY_THRESHOLD", 3)
	v.SetDefault("SCHEDULER_DEFAULT_ROOM", "unassigned")
	v.SetDefault("SCHEDULER_LOCK_BACKEND", LockBackendLocal)
	v.SetDefault("SCHEDULER_LOCK_TTL", "2m")
	v.SetDefault("SCHEDULER_LOCK_RETRY", "200ms")
	v.SetDefault("ENABLE_TEACHER_SCHEDULE_CACHE", false)
	v.SetDefault("TEACHER_SCHEDULE_CACHE_TTL", "30s")
}

// ParseHourWindows parses "1=09:00-10:00,2=10:00-11:00" into ordered windows.
func ParseHourWindows(raw string) ([]HourWindow, error) {
	var windows []HourWindow
	for _, entry := range splitAndTrim(raw) {
		hour, span, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("window %q missing '='", entry)
		}
		from, to, ok := strings.Cut(span, "-")
		if !ok {
			return nil, fmt.Errorf("window %q missing '-'", entry)
		}
		start, err := parseClock(from)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(to)
		if err != nil {
			return nil, err
		}
		if end <= start {
			return nil, fmt.Errorf("window %q ends before it starts", entry)
		}
		windows = append(windows, HourWindow{Hour: strings.TrimSpace(hour), Start: start, End: end})
	}
	return windows, nil
}

func parseClock(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", raw, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func upperAll(values []string) []string {
	for i := range values {
		values[i] = strings.ToUpper(values[i])
	}
	return values
}
