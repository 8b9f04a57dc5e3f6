package config

import (
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Stock    StockConfig
	Upload   UploadConfig
	Locale   LocaleConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
	MaxConns int32
}

// DSN builds a postgres connection URL from the configured fields.
func (c DatabaseConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: fmt.Sprintf("sslmode=%s&search_path=%s", c.SSLMode, c.Schema),
	}
	return u.String()
}

type RedisConfig struct {
	Host              string
	Port              string
	Password          string
	DB                int
	RequestsPerWindow int
	Window            time.Duration

	// AuthRequestsPerWindow budgets the public login, register and refresh routes per remote host.
	AuthRequestsPerWindow int
}

// Enabled reports whether a Redis host was configured; rate limiting is skipped otherwise.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret     string
	AccessExpiry  int // in minutes
	SessionExpiry int // in days
}

type StockConfig struct {
	LockTimeout   time.Duration
	HistoryLimit  int
	LowStockLimit int
}

type UploadConfig struct {
	Dir      string
	URLPath  string
	MaxBytes int64
	MaxWidth int
}

type LocaleConfig struct {
	Default string
}

func Load() *Config {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{})
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 120)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")
	viper.SetDefault("AUTH_RATE_LIMIT_REQUESTS", 10)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 15)
	viper.SetDefault("SESSION_EXPIRY_DAYS", 30)
	viper.SetDefault("STOCK_LOCK_TIMEOUT", "5s")
	viper.SetDefault("STOCK_HISTORY_LIMIT", 50)
	viper.SetDefault("STOCK_LOW_STOCK_LIMIT", 50)
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("UPLOAD_URL_PATH", "/uploads")
	viper.SetDefault("UPLOAD_MAX_BYTES", 5<<20)
	viper.SetDefault("UPLOAD_MAX_WIDTH", 800)
	viper.SetDefault("LOCALE_DEFAULT", "th")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Host:              viper.GetString("REDIS_HOST"),
			Port:              viper.GetString("REDIS_PORT"),
			Password:          viper.GetString("REDIS_PASSWORD"),
			DB:                viper.GetInt("REDIS_DB"),
			RequestsPerWindow: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:            viper.GetDuration("RATE_LIMIT_WINDOW"),

			AuthRequestsPerWindow: viper.GetInt("AUTH_RATE_LIMIT_REQUESTS"),
		},
		Auth: AuthConfig{
			JWTSecret:     viper.GetString("JWT_SECRET"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			SessionExpiry: viper.GetInt("SESSION_EXPIRY_DAYS"),
		},
		Stock: StockConfig{
			LockTimeout:   viper.GetDuration("STOCK_LOCK_TIMEOUT"),
			HistoryLimit:  viper.GetInt("STOCK_HISTORY_LIMIT"),
			LowStockLimit: viper.GetInt("STOCK_LOW_STOCK_LIMIT"),
		},
		Upload: UploadConfig{
			Dir:      viper.GetString("UPLOAD_DIR"),
			URLPath:  viper.GetString("UPLOAD_URL_PATH"),
			MaxBytes: viper.GetInt64("UPLOAD_MAX_BYTES"),
			MaxWidth: viper.GetInt("UPLOAD_MAX_WIDTH"),
		},
		Locale: LocaleConfig{
			Default: viper.GetString("LOCALE_DEFAULT"),
		},
	}
}
