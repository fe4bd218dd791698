package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or an env-file loaded at startup).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	Store     StoreConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Telephony TelephonyConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// StoreConfig selects the session/destination persistence backend.
// "memory" is intended for local development and tests only.
type StoreConfig struct {
	Driver string // memory | postgres
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	// AdminKey is the shared secret exchanged for an admin access token.
	AdminKey string
}

type TelephonyConfig struct {
	// Mode selects the provider implementation: twilio | simulated.
	Mode string

	AccountSID string
	AuthToken  string
	FromNumber string

	// WebhookBaseURL is the externally reachable base for provider callbacks,
	// e.g. https://agent.example.com/webhooks/voice
	WebhookBaseURL string

	// MaxConcurrentCalls caps in-flight outbound calls. 0 disables the cap
	// (and the Redis dependency that enforces it).
	MaxConcurrentCalls int
}

const (
	TelephonyModeTwilio    = "twilio"
	TelephonyModeSimulated = "simulated"

	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Store.Driver = strings.TrimSpace(os.Getenv("STORE_DRIVER"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optionalInt("DB_PORT", 5432)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optionalInt("REDIS_PORT", 6379)

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.AdminKey = os.Getenv("ADMIN_API_KEY")

	c.Telephony.Mode = strings.TrimSpace(os.Getenv("TELEPHONY_MODE"))
	c.Telephony.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Telephony.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Telephony.FromNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))
	c.Telephony.WebhookBaseURL = strings.TrimSpace(os.Getenv("WEBHOOK_BASE_URL"))
	c.Telephony.MaxConcurrentCalls = optionalInt("MAX_CONCURRENT_CALLS", 0)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Store.Driver == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_DRIVER is required in production"))
		} else {
			c.Store.Driver = StoreDriverMemory
		}
	}
	switch c.Store.Driver {
	case "", StoreDriverMemory:
	case StoreDriverPostgres:
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required when STORE_DRIVER=postgres"))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when STORE_DRIVER=postgres"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when STORE_DRIVER=postgres"))
		}
		if strings.TrimSpace(c.DB.SSLMode) == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				// Local-friendly default; production must be explicit.
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be one of memory, postgres, got %q", c.Store.Driver))
	}

	if c.Telephony.Mode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("TELEPHONY_MODE is required in production"))
		} else {
			c.Telephony.Mode = TelephonyModeSimulated
		}
	}
	switch c.Telephony.Mode {
	case "", TelephonyModeSimulated:
	case TelephonyModeTwilio:
		if c.Telephony.AccountSID == "" || !strings.HasPrefix(c.Telephony.AccountSID, "AC") {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required and must start with AC"))
		}
		if c.Telephony.AuthToken == "" {
			errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required when TELEPHONY_MODE=twilio"))
		}
		if c.Telephony.FromNumber == "" {
			errs = append(errs, errors.New("TWILIO_PHONE_NUMBER is required when TELEPHONY_MODE=twilio"))
		}
		if c.Telephony.WebhookBaseURL == "" {
			errs = append(errs, errors.New("WEBHOOK_BASE_URL is required when TELEPHONY_MODE=twilio"))
		}
	default:
		errs = append(errs, fmt.Errorf("TELEPHONY_MODE must be one of twilio, simulated, got %q", c.Telephony.Mode))
	}

	if c.Telephony.MaxConcurrentCalls < 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_CALLS must be >= 0, got %d", c.Telephony.MaxConcurrentCalls))
	}
	if c.Telephony.MaxConcurrentCalls > 0 && c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required when MAX_CONCURRENT_CALLS > 0"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.AdminKey == "" && c.IsProduction() {
		errs = append(errs, errors.New("ADMIN_API_KEY is required in production"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		// Default: short-lived access tokens.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
