package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
	Cache     CacheConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig holds token validation settings; tokens are minted by the
// surrounding practice-management application.
type AuthConfig struct {
	Secret  string
	Enabled bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs the run-result cache layered over Redis.
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// SchedulerConfig tunes the auto-scheduling engine.
type SchedulerConfig struct {
	GridResolutionMinutes  int
	SessionMinutes         int
	ScoreTTL               time.Duration
	ProposalTTL            time.Duration
	SweepInterval          time.Duration
	MinBreakMinutes        int
	MaxConsecutiveSessions int
	MaxDailyHours          float64
	MaxWeeklyHours         float64
	Workers                int
	QueueBuffer            int
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
		if !errors.As(err, &notFound) {
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		Secret:  v.GetString("AUTH_JWT_SECRET"),
		Enabled: v.GetBool("AUTH_ENABLED"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("ENABLE_RESULT_CACHE"),
		DefaultTTL: parseDuration(v.GetString("RESULT_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Scheduler = SchedulerConfig{
		GridResolutionMinutes:  v.GetInt("SCHEDULER_GRID_RESOLUTION_MINUTES"),
		SessionMinutes:         v.GetInt("SCHEDULER_SESSION_MINUTES"),
		ScoreTTL:               parseDuration(v.GetString("SCHEDULER_SCORE_TTL"), 5*time.Minute),
		ProposalTTL:            parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
		SweepInterval:          parseDuration(v.GetString("SCHEDULER_SWEEP_INTERVAL"), time.Minute),
		MinBreakMinutes:        v.GetInt("SCHEDULER_MIN_BREAK_MINUTES"),
		MaxConsecutiveSessions: v.GetInt("SCHEDULER_MAX_CONSECUTIVE_SESSIONS"),
		MaxDailyHours:          v.GetFloat64("SCHEDULER_MAX_DAILY_HOURS"),
		MaxWeeklyHours:         v.GetFloat64("SCHEDULER_MAX_WEEKLY_HOURS"),
		Workers:                v.GetInt("SCHEDULER_WORKERS"),
		QueueBuffer:            v.GetInt("SCHEDULER_QUEUE_BUFFER"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "aba_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_ENABLED", false)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_RESULT_CACHE", true)
	v.SetDefault("RESULT_CACHE_TTL", "10m")

	v.SetDefault("SCHEDULER_GRID_RESOLUTION_MINUTES", 15)
	v.SetDefault("SCHEDULER_SESSION_MINUTES", 60)
	v.SetDefault("SCHEDULER_SCORE_TTL", "5m")
	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")
	v.SetDefault("SCHEDULER_SWEEP_INTERVAL", "1m")
	v.SetDefault("SCHEDULER_MIN_BREAK_MINUTES", 15)
	v.SetDefault("SCHEDULER_MAX_CONSECUTIVE_SESSIONS", 4)
	v.SetDefault("SCHEDULER_MAX_DAILY_HOURS", 8)
	v.SetDefault("SCHEDULER_MAX_WEEKLY_HOURS", 40)
	v.SetDefault("SCHEDULER_WORKERS", 4)
	v.SetDefault("SCHEDULER_QUEUE_BUFFER", 16)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
