package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "CHIDORI_"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ServerURL string `validate:"required"`
	FileID    string
	Branch    uint64

	LogLevel        string `validate:"oneof=debug info warn error"`
	LogFormat       string `validate:"oneof=text json"`
	HealthcheckPort int    `validate:"min=0,max=65535"`

	StartupInterval    time.Duration `validate:"min=0"`
	StartupMaxAttempts int           `validate:"min=0"`
	StartupTimeout     time.Duration `validate:"min=0"`
	LaunchCommand      string
	Compression        string `validate:"omitempty,oneof=zstd"`

	PollInterval      time.Duration `validate:"min=0"`
	WorkerConcurrency int           `validate:"min=1"`
	Attribution       string        `validate:"oneof=event none"`

	Output string `validate:"oneof=json yaml"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		ServerURL:         "http://localhost:9800",
		LogLevel:          "info",
		LogFormat:         "text",
		StartupInterval:   time.Second,
		PollInterval:      time.Second,
		WorkerConcurrency: 4,
		Attribution:       "event",
		Output:            "json",
	}
}

var validate = validator.New()

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.Output = strings.ToLower(cfg.Output)

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: invalid value %v (%s)", fe.Field(), fe.Value(), fe.Tag()))
			}
			return nil, fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Env resolves a configuration variable by name.
type Env func(key string) (string, bool)

// OSEnv reads the process environment, falling back to the variables of
// the dotenv file at path. A missing file is not an error.
func OSEnv(path string) (Env, error) {
	file, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}, nil
}

// MapEnv resolves variables from a fixed map.
func MapEnv(vars map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// ApplyEnv overwrites every field whose CHIDORI_* variable is set.
func (c *Config) ApplyEnv(env Env) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := env(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := env(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := env(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("SERVER_URL", &c.ServerURL)
	str("FILE_ID", &c.FileID)
	if v, ok := env(EnvPrefix + "BRANCH"); ok {
		b, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sBRANCH: %w", EnvPrefix, err))
		} else {
			c.Branch = b
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	num("HEALTHCHECK_PORT", &c.HealthcheckPort)
	dur("STARTUP_INTERVAL", &c.StartupInterval)
	num("STARTUP_MAX_ATTEMPTS", &c.StartupMaxAttempts)
	dur("STARTUP_TIMEOUT", &c.StartupTimeout)
	str("LAUNCH_COMMAND", &c.LaunchCommand)
	str("COMPRESSION", &c.Compression)
	dur("POLL_INTERVAL", &c.PollInterval)
	num("WORKER_CONCURRENCY", &c.WorkerConcurrency)
	str("ATTRIBUTION", &c.Attribution)
	str("OUTPUT", &c.Output)

	return errors.Join(errs...)
}
