package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DBDriver    string
	DBDSN       string
	LogFile     string
	AppEnv      string
	TemplateDir string
	JWTSecret   string
	JWTTTL      time.Duration

	// client side
	BaseURL     string
	SessionPath string
}

const devSecret = "bookfair-dev-secret"

var ErrMissingSecret = errors.New("JWT_SECRET must be set in production")

// Load reads the environment (and a .env file when present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:        getenv("PORT", "8080"),
		DBDriver:    getenv("DB_DRIVER", "sqlite"),
		DBDSN:       getenv("DB_DSN", "bookfair.db"), // sqlite file in project root
		LogFile:     os.Getenv("LOG_FILE"),
		AppEnv:      getenv("APP_ENV", "development"),
		TemplateDir: getenv("TEMPLATE_DIR", "./web/templates"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTTTL:      24 * time.Hour,
		BaseURL:     getenv("BOOKFAIR_URL", "http://127.0.0.1:8080"),
		SessionPath: getenv("BOOKFAIR_SESSION", defaultSessionPath()),
	}
	if v := os.Getenv("JWT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.JWTTTL = d
		}
	}
	if cfg.JWTSecret == "" {
		if cfg.Production() {
			return cfg, ErrMissingSecret
		}
		cfg.JWTSecret = devSecret
	}
	return cfg, nil
}

func (c Config) Production() bool { return c.AppEnv == "production" }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "bookfair-session.db"
	}
	return dir + string(os.PathSeparator) + "bookfair" + string(os.PathSeparator) + "session.db"
}
