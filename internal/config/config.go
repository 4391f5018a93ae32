package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/pkg/geo"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/validator"
	"github.com/joho/godotenv"
)

type Config struct {
	Database    DatabaseConfig
	JWT         JWTConfig
	App         AppConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	SiteSession SiteSessionConfig
	Device      DeviceConfig
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	AutoMigrate bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// SiteSessionConfig holds the backend's session housekeeping settings
type SiteSessionConfig struct {
	StaleAfter time.Duration
}

// DeviceConfig is what the sitevisit command needs on the employee's device.
type DeviceConfig struct {
	APIBaseURL string
	APITimeout time.Duration
	APIToken   string

	UserID    string
	UserName  string
	UserEmail string

	Office geo.Coordinate
	// Client is the default client site; nil when CLIENT_LAT/CLIENT_LON are unset.
	Client *geo.Coordinate

	// OfficeGateMeters enables the office radius check on office login. 0 disables it.
	OfficeGateMeters float64
	PunchGateMeters  float64
	// Wall clock offsets from local midnight.
	PunchInCutoff    time.Duration
	PunchOutEarliest time.Duration

	Store     string
	StorePath string
}

// Load reads the environment, after applying the first of envFiles that exists
// (".env" when none are given).
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("No env file found, using process environment", "files", envFiles)
		} else {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	config := &Config{}
	var err error

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        dbPort,
		User:        getEnv("DB_USER", "postgres"),
		Password:    getEnv("DB_PASSWORD", ""),
		Name:        getEnv("DB_NAME", "site_visit"),
		SSLMode:     getEnv("DB_SSL_MODE", "disable"),
		AutoMigrate: getEnv("DB_AUTO_MIGRATE", "false") == "true",
	}

	// Redis configuration
	redisPort, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     redisPort,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	rateRequests, err := strconv.Atoi(getEnv("RATE_LIMIT_REQUESTS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS: %w", err)
	}
	rateWindow, err := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}
	config.RateLimit = RateLimitConfig{Requests: rateRequests, Window: rateWindow}

	staleAfter, err := time.ParseDuration(getEnv("SITE_SESSION_STALE_AFTER", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SITE_SESSION_STALE_AFTER: %w", err)
	}
	config.SiteSession = SiteSessionConfig{StaleAfter: staleAfter}

	if config.Device, err = loadDevice(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadDevice() (DeviceConfig, error) {
	d := DeviceConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		APIToken:   getEnv("API_TOKEN", ""),
		UserID:     getEnv("USER_ID", ""),
		UserName:   getEnv("USER_NAME", ""),
		UserEmail:  getEnv("USER_EMAIL", ""),
		Store:      getEnv("DEVICE_STORE", "file"),
		StorePath:  getEnv("DEVICE_STORE_PATH", "sitevisit-device.json"),
	}

	var err error
	if d.APITimeout, err = time.ParseDuration(getEnv("API_TIMEOUT", "10s")); err != nil {
		return d, fmt.Errorf("invalid API_TIMEOUT: %w", err)
	}

	// Default office of the original deployment
	if d.Office.Latitude, err = getEnvFloat("OFFICE_LAT", 8.7901247); err != nil {
		return d, err
	}
	if d.Office.Longitude, err = getEnvFloat("OFFICE_LON", 78.1150205); err != nil {
		return d, err
	}

	if os.Getenv("CLIENT_LAT") != "" || os.Getenv("CLIENT_LON") != "" {
		var client geo.Coordinate
		if client.Latitude, err = getEnvFloat("CLIENT_LAT", 0); err != nil {
			return d, err
		}
		if client.Longitude, err = getEnvFloat("CLIENT_LON", 0); err != nil {
			return d, err
		}
		d.Client = &client
	}

	if d.OfficeGateMeters, err = getEnvFloat("OFFICE_GATE_METERS", 0); err != nil {
		return d, err
	}
	if d.PunchGateMeters, err = getEnvFloat("PUNCH_GATE_METERS", 100); err != nil {
		return d, err
	}
	if d.PunchInCutoff, err = getEnvClock("PUNCH_IN_CUTOFF", "13:00"); err != nil {
		return d, err
	}
	if d.PunchOutEarliest, err = getEnvClock("PUNCH_OUT_EARLIEST", "19:00"); err != nil {
		return d, err
	}

	return d, nil
}

// ValidateServer checks what cmd/api needs
func (c *Config) ValidateServer() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if c.SiteSession.StaleAfter <= 0 {
		return fmt.Errorf("SITE_SESSION_STALE_AFTER must be positive")
	}
	return nil
}

// ValidateDevice checks what cmd/sitevisit needs
func (c *Config) ValidateDevice() error {
	d := c.Device
	if d.UserID == "" {
		return fmt.Errorf("USER_ID is required")
	}
	if d.UserEmail != "" && !validator.IsValidEmail(d.UserEmail) {
		return fmt.Errorf("USER_EMAIL is not a valid email address")
	}
	if d.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if d.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	if !d.Office.Valid() {
		return fmt.Errorf("OFFICE_LAT/OFFICE_LON are out of range")
	}
	if d.Client != nil && !d.Client.Valid() {
		return fmt.Errorf("CLIENT_LAT/CLIENT_LON are out of range")
	}
	if d.OfficeGateMeters < 0 || d.PunchGateMeters < 0 {
		return fmt.Errorf("gate radius must not be negative")
	}
	if !validator.IsInSlice(d.Store, []string{"file", "redis", "memory"}) {
		return fmt.Errorf("DEVICE_STORE must be one of file, redis, memory")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// RedisAddr returns host:port for go-redis
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvClock(key, fallback string) (time.Duration, error) {
	t, ok := validator.IsValidClock(getEnv(key, fallback))
	if !ok {
		return 0, fmt.Errorf("invalid %s: expected HH:MM", key)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
