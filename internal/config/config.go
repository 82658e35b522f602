package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/udenfc/super11/internal/platform/logging"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	StorageFile  = "file"
	StorageRedis = "redis"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv         string `validate:"oneof=dev prod"`
	ServiceName    string `validate:"required"`
	ServiceVersion string
	HTTPAddr       string `validate:"required"`
	LogLevel       logging.Level

	CORSAllowedOrigins []string
	ReadTimeout        time.Duration `validate:"gt=0"`
	WriteTimeout       time.Duration `validate:"gt=0"`

	// Fixtures feed.
	FixturesBaseURL        string        `validate:"required,url"`
	FixturesTimeout        time.Duration `validate:"gt=0"`
	FixturesSourceTimezone string        `validate:"required"`
	FixturesHomeTimezone   string        `validate:"required"`
	SeasonName             string
	SeasonCountry          string

	// Game login handshake.
	LoginHost               string `validate:"required,hostname"`
	LoginPort               int    `validate:"gt=0"`
	LoginPath               string `validate:"required,startswith=/"`
	LoginEmail              string `validate:"required,email"`
	LoginPasswordEncoded    string `validate:"required,base64"`
	LoginPersist            bool
	ConsentHost             string `validate:"required,hostname"`
	ConsentPort             int    `validate:"gt=0"`
	DestinationPath         string `validate:"required,startswith=/"`
	FormMarkerClass         string
	ClientID                string `validate:"required"`
	RedirectURI             string `validate:"required,url"`
	ResponseType            string `validate:"required"`
	Af                      string
	GoogleRecaptchaResponse string
	UserType                int

	// Game API.
	GameAPIHost          string        `validate:"required,hostname"`
	GameAPIPort          int           `validate:"gt=0"`
	GameAPIBootstrapPath string        `validate:"required,startswith=/"`
	GameAPIStandsPath    string        `validate:"required,startswith=/"`
	XClientGame          string        `validate:"required"`
	XGameGroup           string        `validate:"required"`
	AuthTimeout          time.Duration `validate:"gt=0"`
	StandingsTimeout     time.Duration `validate:"gt=0"`

	// Polling cadence.
	CheckInterval         time.Duration `validate:"gt=0"`
	FastInterval          time.Duration `validate:"gt=0"`
	SlowInterval          time.Duration `validate:"gt=0"`
	SeasonRefreshInterval time.Duration `validate:"gt=0"`
	SchedulerPoolSize     int           `validate:"gt=0"`

	// Blob storage for the season and token caches.
	StorageBackend string `validate:"oneof=file redis"`
	StorageDir     string
	RedisURL       string
	SeasonKey      string `validate:"required"`
	TokenKey       string `validate:"required"`

	// Optional Redis stream mirror of standings updates.
	StreamPublishEnabled bool
	StreamName           string

	CircuitEnabled          bool
	CircuitFailureThreshold int           `validate:"gt=0"`
	CircuitOpenTimeout      time.Duration `validate:"gt=0"`
	CircuitHalfOpenMaxReq   int           `validate:"gt=0"`
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("SERVICE_NAME", "super11"),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		FixturesBaseURL:        getEnv("FIXTURES_BASE_URL", "https://eredivisie.nl"),
		FixturesSourceTimezone: getEnv("FIXTURES_SOURCE_TZ", "Europe/Amsterdam"),
		FixturesHomeTimezone:   getEnv("FIXTURES_HOME_TZ", "Europe/Amsterdam"),
		SeasonName:             getEnv("SEASON_NAME", ""),
		SeasonCountry:          getEnv("SEASON_COUNTRY", "NL"),

		LoginHost:               getEnv("LOGIN_HOST", ""),
		LoginPath:               getEnv("LOGIN_PATH", "/api/accounts/login"),
		LoginEmail:              getEnv("LOGIN_EMAIL", ""),
		LoginPasswordEncoded:    getEnv("LOGIN_PASSWORD_B64", ""),
		ConsentHost:             getEnv("CONSENT_HOST", ""),
		DestinationPath:         getEnv("DESTINATION_PATH", "/connect/authorize"),
		FormMarkerClass:         getEnv("CONSENT_FORM_CLASS", "pure-form"),
		ClientID:                getEnv("OAUTH_CLIENT_ID", ""),
		RedirectURI:             getEnv("OAUTH_REDIRECT_URI", ""),
		ResponseType:            getEnv("OAUTH_RESPONSE_TYPE", "token"),
		Af:                      getEnv("LOGIN_AF", ""),
		GoogleRecaptchaResponse: getEnv("LOGIN_RECAPTCHA_RESPONSE", ""),

		GameAPIHost:          getEnv("GAME_API_HOST", ""),
		GameAPIBootstrapPath: getEnv("GAME_API_BOOTSTRAP_PATH", "/api/v2/game"),
		GameAPIStandsPath:    getEnv("GAME_API_STANDS_PATH", ""),
		XClientGame:          getEnv("X_CLIENT_GAME", ""),
		XGameGroup:           getEnv("X_GAME_GROUP", ""),

		StorageBackend: getEnv("STORAGE_BACKEND", StorageFile),
		StorageDir:     getEnv("STORAGE_DIR", "./data"),
		RedisURL:       getEnv("REDIS_URL", ""),
		SeasonKey:      getEnv("SEASON_KEY", "season.json"),
		TokenKey:       getEnv("TOKEN_KEY", "access-key"),

		StreamName: getEnv("STREAM_NAME", "standings-updates"),
	}

	if cfg.LoginPersist, err = getEnvAsBool("LOGIN_PERSIST", true); err != nil {
		return Config{}, err
	}
	if cfg.UserType, err = getEnvAsInt("LOGIN_USER_TYPE", 0); err != nil {
		return Config{}, err
	}
	if cfg.LoginPort, err = getEnvAsInt("LOGIN_PORT", 443); err != nil {
		return Config{}, err
	}
	if cfg.ConsentPort, err = getEnvAsInt("CONSENT_PORT", 443); err != nil {
		return Config{}, err
	}
	if cfg.GameAPIPort, err = getEnvAsInt("GAME_API_PORT", 443); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerPoolSize, err = getEnvAsInt("SCHEDULER_POOL_SIZE", 4); err != nil {
		return Config{}, err
	}
	if cfg.CircuitFailureThreshold, err = getEnvAsInt("CIRCUIT_FAILURE_THRESHOLD", 5); err != nil {
		return Config{}, err
	}
	if cfg.CircuitHalfOpenMaxReq, err = getEnvAsInt("CIRCUIT_HALF_OPEN_MAX_REQ", 1); err != nil {
		return Config{}, err
	}
	if cfg.CircuitEnabled, err = getEnvAsBool("CIRCUIT_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.StreamPublishEnabled, err = getEnvAsBool("STREAM_PUBLISH_ENABLED", false); err != nil {
		return Config{}, err
	}

	for _, d := range []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"READ_TIMEOUT", "10s", &cfg.ReadTimeout},
		{"WRITE_TIMEOUT", "30s", &cfg.WriteTimeout},
		{"FIXTURES_TIMEOUT", "20s", &cfg.FixturesTimeout},
		{"AUTH_TIMEOUT", "30s", &cfg.AuthTimeout},
		{"STANDINGS_TIMEOUT", "20s", &cfg.StandingsTimeout},
		{"CHECK_INTERVAL", "15m", &cfg.CheckInterval},
		{"FAST_INTERVAL", "3m", &cfg.FastInterval},
		{"SLOW_INTERVAL", "2h", &cfg.SlowInterval},
		{"SEASON_REFRESH_INTERVAL", "24h", &cfg.SeasonRefreshInterval},
		{"CIRCUIT_OPEN_TIMEOUT", "30s", &cfg.CircuitOpenTimeout},
	} {
		v, err := time.ParseDuration(getEnv(d.key, d.fallback))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if cfg.StorageBackend == StorageRedis && strings.TrimSpace(cfg.RedisURL) == "" {
		return Config{}, fmt.Errorf("REDIS_URL is required when STORAGE_BACKEND=redis")
	}
	if cfg.StreamPublishEnabled && strings.TrimSpace(cfg.RedisURL) == "" {
		return Config{}, fmt.Errorf("REDIS_URL is required when STREAM_PUBLISH_ENABLED=true")
	}
	if cfg.StorageBackend == StorageFile && strings.TrimSpace(cfg.StorageDir) == "" {
		return Config{}, fmt.Errorf("STORAGE_DIR is required when STORAGE_BACKEND=file")
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate configuration: %w", err)
	}
	return cfg, nil
}

func parseAppEnv(v string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(v))
	switch normalized {
	case EnvDev, EnvProd:
		return normalized, nil
	default:
		return "", fmt.Errorf("unsupported APP_ENV %q", v)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
