package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-here/auth"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "HERE_"

type Config struct {
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Auth       AuthConfig       `yaml:"auth" envPrefix:"AUTH_"`
	Redis      RedisConfig      `yaml:"redis" envPrefix:"REDIS_"`
	Database   DatabaseConfig   `yaml:"database" envPrefix:"DATABASE_"`
	Broker     BrokerConfig     `yaml:"broker" envPrefix:"BROKER_"`
	Attendance AttendanceConfig `yaml:"attendance" envPrefix:"ATTENDANCE_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	MetricsAddr     string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// AuthConfig satisfies auth.Config
type AuthConfig struct {
	SigningKey           string        `yaml:"signing_key" env:"SIGNING_KEY"`
	Issuer               string        `yaml:"issuer" env:"ISSUER"`
	Audience             string        `yaml:"audience" env:"AUDIENCE"`
	SessionTTL           time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
	VerificationTokenTTL time.Duration `yaml:"verification_token_ttl" env:"VERIFICATION_TOKEN_TTL"`
	OTPTTL               time.Duration `yaml:"otp_ttl" env:"OTP_TTL"`
	BlacklistPrefix      string        `yaml:"blacklist_prefix" env:"BLACKLIST_PREFIX"`
	OTPPrefix            string        `yaml:"otp_prefix" env:"OTP_PREFIX"`
}

// RedisConfig selects the credential store. An empty URL keeps state in
// process memory.
type RedisConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type DatabaseConfig struct {
	DSN     string `yaml:"dsn" env:"DSN"`
	Migrate bool   `yaml:"migrate" env:"MIGRATE"`
}

// BrokerConfig selects the mailer. An empty URL logs mail jobs instead of
// publishing them.
type BrokerConfig struct {
	URL   string `yaml:"url" env:"URL"`
	Queue string `yaml:"queue" env:"QUEUE"`
}

type AttendanceConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	SweepTimeout  time.Duration `yaml:"sweep_timeout" env:"SWEEP_TIMEOUT"`
	CloseGrace    time.Duration `yaml:"close_grace" env:"CLOSE_GRACE"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL"`
}

var _ auth.Config = AuthConfig{}

// Defaults returns the configuration used when nothing overrides it
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:               "go-here",
			SessionTTL:           auth.DefaultSessionTTL,
			VerificationTokenTTL: auth.DefaultVerificationTokenTTL,
			OTPTTL:               auth.DefaultOTPTTL,
			BlacklistPrefix:      auth.DefaultBlacklistPrefix,
			OTPPrefix:            auth.DefaultOTPPrefix,
		},
		Database: DatabaseConfig{
			DSN:     "file:here.db?cache=shared",
			Migrate: true,
		},
		Broker: BrokerConfig{
			Queue: "here.mail",
		},
		Attendance: AttendanceConfig{
			SweepInterval: time.Minute,
			SweepTimeout:  30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "go-here",
			LogLevel:    "info",
		},
	}
}

// Load builds the configuration from defaults, then the optional YAML file
// at path, then a .env file, then HERE_ prefixed environment variables.
// The result is validated.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file")
	}

	if err := yaml.Unmarshal(raw, c); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, fmt.Sprintf("invalid config file %s", path))
	}
	return nil
}

// loadDotEnv never overrides variables already present in the process
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return goerrors.Wrap(err, goerrors.CategoryBadInput, fmt.Sprintf("invalid env file %s", file))
		}
	}
	return nil
}

func (c *Config) Validate() error {
	return validation.Errors{
		"server":     c.Server.Validate(),
		"auth":       c.Auth.Validate(),
		"redis":      c.Redis.Validate(),
		"database":   c.Database.Validate(),
		"attendance": c.Attendance.Validate(),
	}.Filter()
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required, validation.By(listenAddr)),
		validation.Field(&s.MetricsAddr, validation.By(listenAddr)),
		validation.Field(&s.ShutdownTimeout, validation.By(positiveDuration)),
	)
}

func (a AuthConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&a.SessionTTL, validation.By(positiveDuration)),
		validation.Field(&a.VerificationTokenTTL, validation.By(positiveDuration)),
		validation.Field(&a.OTPTTL, validation.By(positiveDuration)),
		validation.Field(&a.BlacklistPrefix, validation.Required),
		validation.Field(&a.OTPPrefix, validation.Required),
	)
}

func (r RedisConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.By(redisURL)),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.DSN, validation.Required),
	)
}

func (a AttendanceConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SweepInterval, validation.By(positiveDuration)),
		validation.Field(&a.SweepTimeout, validation.By(positiveDuration)),
		validation.Field(&a.CloseGrace, validation.By(nonNegativeDuration)),
	)
}

func (a AuthConfig) GetSigningKey() string {
	return a.SigningKey
}

func (a AuthConfig) GetIssuer() string {
	return a.Issuer
}

func (a AuthConfig) GetAudience() string {
	return a.Audience
}

func (a AuthConfig) GetSessionTTL() time.Duration {
	return a.SessionTTL
}

func (a AuthConfig) GetVerificationTokenTTL() time.Duration {
	return a.VerificationTokenTTL
}

func (a AuthConfig) GetOTPTTL() time.Duration {
	return a.OTPTTL
}

func (a AuthConfig) GetBlacklistPrefix() string {
	return a.BlacklistPrefix
}

func (a AuthConfig) GetOTPPrefix() string {
	return a.OTPPrefix
}

func positiveDuration(value interface{}) error {
	d, _ := value.(time.Duration)
	if d <= 0 {
		return errors.New("must be a positive duration")
	}
	return nil
}

func nonNegativeDuration(value interface{}) error {
	d, _ := value.(time.Duration)
	if d < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

func redisURL(value interface{}) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	if _, err := redis.ParseURL(raw); err != nil {
		return errors.New("must be a redis:// or rediss:// URL")
	}
	return nil
}

// listenAddr accepts "host:port" and ":port", empty values are left to Required
func listenAddr(value interface{}) error {
	addr, _ := value.(string)
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.New("must be a host:port address")
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return errors.New("must use a valid port")
	}
	return nil
}
