package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "fashionjiok-dev-secret-change-me"

type Config struct {
	App   AppConfig
	Log   LogConfig
	DB    DBConfig
	Redis RedisConfig
	GRPC  GRPCConfig
	HTTP  HTTPConfig
	Match MatchConfig
	Geo   GeoConfig
	Auth  AuthConfig
	AI    AIConfig
}

type AppConfig struct {
	ENV string
}

type LogConfig struct {
	Level     string
	Format    string
	Component string
	Source    bool
}

type DBConfig struct {
	Driver          string
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GRPCConfig struct {
	Host string
	Port string
}

type HTTPConfig struct {
	Host           string
	Port           string
	AllowedOrigins string
}

// MatchConfig bounds the list-shaped responses of the match endpoints.
type MatchConfig struct {
	DeckSize     int
	ExploreSize  int
	ListPageSize int
}

type GeoConfig struct {
	RadiusKM    float64
	DefaultLat  float64
	DefaultLon  float64
	ResultLimit int
}

type AuthConfig struct {
	JWTSecret      string
	JWTTTL         time.Duration
	CodeTTL        time.Duration
	FixedCode      string
	CodeRateLimit  int
	CodeRateWindow time.Duration
}

type AIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// New reads configuration from the environment (and an optional .env file).
func New() *Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}

	cfg.App.ENV = v.GetString("APP_ENV")

	// Logger
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")
	cfg.Log.Component = v.GetString("LOG_COMPONENT")
	cfg.Log.Source = isTruthy(v.GetString("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(v.GetString("DB_DRIVER"))
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	cfg.DB.MaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	cfg.DB.ConnMaxLifetime = v.GetDuration("DB_CONN_MAX_LIFETIME")
	cfg.DB.DSN = firstNonEmpty(v.GetString("DB_DSN"), v.GetString("MYSQL_DSN"))
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = buildDSN(cfg.DB)
	}

	// Redis
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	// gRPC
	cfg.GRPC.Host = v.GetString("GRPC_HOST")
	cfg.GRPC.Port = v.GetString("GRPC_PORT")

	// HTTP
	cfg.HTTP.Host = v.GetString("HTTP_HOST")
	cfg.HTTP.Port = v.GetString("HTTP_PORT")
	cfg.HTTP.AllowedOrigins = v.GetString("ALLOWED_ORIGINS")

	// Matching
	cfg.Match.DeckSize = v.GetInt("MATCH_DECK_SIZE")
	cfg.Match.ExploreSize = v.GetInt("EXPLORE_SIZE")
	cfg.Match.ListPageSize = v.GetInt("MATCH_LIST_PAGE_SIZE")

	// Geo
	cfg.Geo.RadiusKM = v.GetFloat64("GEO_RADIUS_KM")
	cfg.Geo.DefaultLat = v.GetFloat64("GEO_DEFAULT_LAT")
	cfg.Geo.DefaultLon = v.GetFloat64("GEO_DEFAULT_LON")
	cfg.Geo.ResultLimit = v.GetInt("GEO_RESULT_LIMIT")

	// Auth
	cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	cfg.Auth.JWTTTL = v.GetDuration("JWT_TTL")
	cfg.Auth.CodeTTL = v.GetDuration("VERIFY_CODE_TTL")
	cfg.Auth.FixedCode = v.GetString("VERIFY_FIXED_CODE")
	if cfg.Auth.FixedCode == "" && cfg.App.ENV == "development" {
		cfg.Auth.FixedCode = "123456"
	}
	cfg.Auth.CodeRateLimit = v.GetInt("VERIFY_RATE_LIMIT")
	cfg.Auth.CodeRateWindow = v.GetDuration("VERIFY_RATE_WINDOW")

	// AI
	cfg.AI.APIKey = v.GetString("GEMINI_API_KEY")
	cfg.AI.Model = v.GetString("GEMINI_MODEL")
	cfg.AI.BaseURL = v.GetString("GEMINI_BASE_URL")
	cfg.AI.Timeout = v.GetDuration("AI_TIMEOUT")

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_COMPONENT", "fashionjiok")

	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "root")
	v.SetDefault("DB_NAME", "fashionjiok")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("GRPC_HOST", "127.0.0.1")
	v.SetDefault("GRPC_PORT", "50051")

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("ALLOWED_ORIGINS", "*")

	v.SetDefault("MATCH_DECK_SIZE", 20)
	v.SetDefault("EXPLORE_SIZE", 20)
	v.SetDefault("MATCH_LIST_PAGE_SIZE", 50)

	v.SetDefault("GEO_RADIUS_KM", 5.0)
	v.SetDefault("GEO_DEFAULT_LAT", 37.5663)
	v.SetDefault("GEO_DEFAULT_LON", 126.9015)
	v.SetDefault("GEO_RESULT_LIMIT", 20)

	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("VERIFY_CODE_TTL", 5*time.Minute)
	v.SetDefault("VERIFY_RATE_LIMIT", 3)
	v.SetDefault("VERIFY_RATE_WINDOW", 10*time.Minute)

	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash-exp")
	v.SetDefault("GEMINI_BASE_URL", "") // empty: SDK default endpoint
	v.SetDefault("AI_TIMEOUT", 15*time.Second)
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.Match.DeckSize <= 0 {
		return errors.New("MATCH_DECK_SIZE must be positive")
	}
	if c.IsProduction() {
		if c.Auth.JWTSecret == defaultJWTSecret || len(c.Auth.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be changed and at least 32 characters in production")
		}
		if c.Auth.FixedCode != "" {
			return errors.New("VERIFY_FIXED_CODE must not be set in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.ENV == "production" || c.App.ENV == "prod"
}

func buildDSN(db DBConfig) string {
	switch db.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			db.Host, db.Port, db.User, db.Password, db.Name,
		)
	case "sqlite":
		return db.Name + ".db"
	default:
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			db.User, db.Password, db.Host, db.Port, db.Name,
		)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
