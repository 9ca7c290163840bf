// Package config loads Astrid's process-wide configuration from the
// environment and exposes it through a lazily-initialized singleton, the
// same busy-wait-on-atomics pattern the rest of this codebase's ancestry
// uses for config and logging singletons.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// LogLevel controls the verbosity of the slog handler installed at startup.
type LogLevel string

const (
	// LogLevelDebug logs every dispatch/tick-level event. Noisy; not for production audio threads.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs lifecycle events: startup, shutdown, queue creation.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs recoverable faults: dropped messages, lock timeouts.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs only faults that end a process.
	LogLevelError LogLevel = "error"
)

const (
	defaultRoot           = "/tmp"
	defaultNamePrefix     = "astrid"
	defaultChannels       = 2
	defaultSampleRate     = 48000
	defaultDispatchPoll   = 500 * time.Microsecond
	defaultRedisHost      = "localhost"
	defaultRedisPort      = 6379
	defaultSessionDSN     = "astrid.sqlite3"
	defaultLogLevel       = LogLevelInfo
	defaultMetricsAddr    = ":9123"
	defaultMaxName        = 64
	defaultMaxMsg         = 256
	defaultPlayqCapacity  = 128
	defaultBrokerCapacity = 1024
)

// Redis holds connection settings for the Redis-backed IPC and transport
// implementations. Enabled selects between this and the file/flock- and
// named-pipe-backed implementations at process start.
type Redis struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
}

// Config is Astrid's process-wide configuration, assembled once from the
// environment by Load and shared by every subsystem via Get.
type Config struct {
	// Root is the filesystem directory under which id-registry files,
	// named pipes and notemaps live. Defaults to /tmp, giving paths like
	// /tmp/astrid-<purpose>. The ADC ring buffer has no backing file: it
	// lives in the memory of the process that creates it and is not
	// shared with other processes.
	Root string
	// NamePrefix is prepended to every well-known path ("astrid" by default,
	// producing e.g. <Root>/astrid-msgq).
	NamePrefix string

	Channels   int
	SampleRate int
	MaxName    int
	MaxMsg     int

	DispatchPollInterval time.Duration

	BrokerCapacity int
	PlayqCapacity  int

	Redis Redis

	// SessionDSN is the sqlite DSN for the optional voice session log. Empty
	// disables session logging entirely.
	SessionDSN string

	LogLevel LogLevel

	MetricsAddr string
}

var (
	current atomic.Pointer[Config]
	isInit  atomic.Bool
	loaded  atomic.Bool
)

// Load reads the environment once and stores the result for Get to return.
// Calling Load more than once is safe; only the first call takes effect,
// matching the rest of this codebase's singleton config pattern.
func Load() *Config {
	wasInit := isInit.Swap(true)
	if !wasInit {
		cfg := fromEnv()
		current.Store(cfg)
		loaded.Store(true)
	}
	for !loaded.Load() {
		time.Sleep(100 * time.Nanosecond)
	}
	return current.Load()
}

// Get returns the process config, loading it from the environment on first
// call.
func Get() *Config {
	if !loaded.Load() {
		return Load()
	}
	return current.Load()
}

func fromEnv() *Config {
	cfg := &Config{
		Root:                 envOr("ASTRID_ROOT", defaultRoot),
		NamePrefix:           envOr("ASTRID_NAME_PREFIX", defaultNamePrefix),
		Channels:             envIntOr("ASTRID_CHANNELS", defaultChannels),
		SampleRate:           envIntOr("ASTRID_SAMPLERATE", defaultSampleRate),
		MaxName:              envIntOr("ASTRID_MAX_NAME", defaultMaxName),
		MaxMsg:               envIntOr("ASTRID_MAX_MSG", defaultMaxMsg),
		DispatchPollInterval: envDurationOr("ASTRID_DISPATCH_POLL", defaultDispatchPoll),
		BrokerCapacity:       envIntOr("ASTRID_BROKER_CAPACITY", defaultBrokerCapacity),
		PlayqCapacity:        envIntOr("ASTRID_PLAYQ_CAPACITY", defaultPlayqCapacity),
		Redis: Redis{
			Enabled:  envBoolOr("ASTRID_REDIS_ENABLED", false),
			Host:     envOr("ASTRID_REDIS_HOST", defaultRedisHost),
			Port:     envIntOr("ASTRID_REDIS_PORT", defaultRedisPort),
			Password: os.Getenv("ASTRID_REDIS_PASSWORD"),
		},
		SessionDSN:  envOr("ASTRID_SESSION_DSN", defaultSessionDSN),
		LogLevel:    LogLevel(envOr("ASTRID_LOG_LEVEL", string(defaultLogLevel))),
		MetricsAddr: envOr("ASTRID_METRICS_ADDR", defaultMetricsAddr),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Validate returns an error describing the first configuration problem
// found, or nil.
func (c *Config) Validate() error {
	if c.Channels < 1 {
		return fmt.Errorf("config: channels must be >= 1, got %d", c.Channels)
	}
	if c.SampleRate < 1 {
		return fmt.Errorf("config: samplerate must be >= 1, got %d", c.SampleRate)
	}
	if c.MaxName < 1 || c.MaxMsg < 1 {
		return fmt.Errorf("config: max_name and max_msg must be >= 1")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("config: redis enabled but host is empty")
	}
	return nil
}
