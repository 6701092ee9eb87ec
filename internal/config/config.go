package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alanyang/notify-relay/internal/domain/notification"
)

// Flush strategies.
const (
	StrategyTimer = "timer"
	StrategyIdle  = "idle"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is loaded from defaults, then an optional YAML file named by
// NOTIFY_CONFIG, then environment variables.
type Config struct {
	API          APIConfig          `yaml:"api"`
	HTTP         HTTPConfig         `yaml:"http"`
	Flush        FlushConfig        `yaml:"flush"`
	Dedup        DedupConfig        `yaml:"dedup"`
	Notification NotificationConfig `yaml:"notification"`
	Location     LocationConfig     `yaml:"location"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Forward      ForwardConfig      `yaml:"forward"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// APIConfig points at the backend. The stream URL is derived from BaseURL.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
}

type HTTPConfig struct {
	Port string `yaml:"port"`
}

// FlushConfig selects how queued frames are drained.
type FlushConfig struct {
	Strategy   string `yaml:"strategy"`
	FallbackMS int    `yaml:"fallback_ms"`
	IdleMS     int    `yaml:"idle_ms"`
	// SinkBuffer sizes the deferred sink queue.
	SinkBuffer int `yaml:"sink_buffer"`
}

// DedupConfig controls the dedup ledger. TTLSeconds of 0 keeps keys for the
// lifetime of the process.
type DedupConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

type NotificationConfig struct {
	DurationMS  int    `yaml:"duration_ms"`
	Dismissible bool   `yaml:"dismissible"`
	Position    string `yaml:"position"`
}

type LocationConfig struct {
	Initial string `yaml:"initial"`
}

// MetricsConfig enables publishing snapshots to Redis when RedisAddr is set.
type MetricsConfig struct {
	RedisAddr       string `yaml:"redis_addr"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

// ForwardConfig enables republishing surfaced notifications to brokers. Each
// target is off while its address is empty.
type ForwardConfig struct {
	KafkaBrokers string `yaml:"kafka_brokers"`
	KafkaTopic   string `yaml:"kafka_topic"`
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		API:  APIConfig{BaseURL: "http://localhost:8000"},
		HTTP: HTTPConfig{Port: "8080"},
		Flush: FlushConfig{
			Strategy:   StrategyIdle,
			FallbackMS: 500,
			IdleMS:     50,
			SinkBuffer: 256,
		},
		Notification: NotificationConfig{
			DurationMS:  5000,
			Dismissible: true,
			Position:    string(notification.PositionTopRight),
		},
		Location: LocationConfig{Initial: "/"},
		Metrics:  MetricsConfig{IntervalSeconds: 30},
		Forward: ForwardConfig{
			KafkaTopic: "notifications",
			MQTTTopic:  "notify-relay/notifications",
		},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration and validates it.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("NOTIFY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	envString("API_BASE_URL", &c.API.BaseURL)
	envString("PORT", &c.HTTP.Port)
	envString("FLUSH_STRATEGY", &c.Flush.Strategy)
	envInt("FLUSH_FALLBACK_MS", &c.Flush.FallbackMS)
	envInt("FLUSH_IDLE_MS", &c.Flush.IdleMS)
	envInt("SINK_BUFFER", &c.Flush.SinkBuffer)
	envInt("DEDUP_TTL_SECONDS", &c.Dedup.TTLSeconds)
	envInt("NOTIFY_DURATION_MS", &c.Notification.DurationMS)
	envBool("NOTIFY_DISMISSIBLE", &c.Notification.Dismissible)
	envString("NOTIFY_POSITION", &c.Notification.Position)
	envString("INITIAL_LOCATION", &c.Location.Initial)
	envString("REDIS_ADDR", &c.Metrics.RedisAddr)
	envInt("METRICS_INTERVAL_SECONDS", &c.Metrics.IntervalSeconds)
	envString("KAFKA_BROKERS", &c.Forward.KafkaBrokers)
	envString("KAFKA_TOPIC", &c.Forward.KafkaTopic)
	envString("MQTT_BROKER", &c.Forward.MQTTBroker)
	envString("MQTT_TOPIC", &c.Forward.MQTTTopic)
	envString("LOG_LEVEL", &c.Logging.Level)
	envString("LOG_FORMAT", &c.Logging.Format)
}

// Validate rejects values the relay cannot run with.
func (c Config) Validate() error {
	var problems []string

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" {
		problems = append(problems, fmt.Sprintf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		problems = append(problems, fmt.Sprintf("api.base_url scheme %q must be http or https", u.Scheme))
	}
	if c.HTTP.Port == "" {
		problems = append(problems, "http.port is required")
	}
	switch c.Flush.Strategy {
	case StrategyTimer, StrategyIdle:
	default:
		problems = append(problems, fmt.Sprintf("flush.strategy %q must be %q or %q", c.Flush.Strategy, StrategyTimer, StrategyIdle))
	}
	if c.Flush.FallbackMS <= 0 {
		problems = append(problems, "flush.fallback_ms must be positive")
	}
	if c.Flush.Strategy == StrategyIdle && c.Flush.IdleMS <= 0 {
		problems = append(problems, "flush.idle_ms must be positive")
	}
	if c.Dedup.TTLSeconds < 0 {
		problems = append(problems, "dedup.ttl_seconds must not be negative")
	}
	if c.Notification.DurationMS <= 0 {
		problems = append(problems, "notification.duration_ms must be positive")
	}
	if !notification.Position(c.Notification.Position).Valid() {
		problems = append(problems, fmt.Sprintf("notification.position %q is not recognised", c.Notification.Position))
	}
	if c.Forward.KafkaBrokers != "" && c.Forward.KafkaTopic == "" {
		problems = append(problems, "forward.kafka_topic is required with forward.kafka_brokers")
	}
	if c.Forward.MQTTBroker != "" && c.Forward.MQTTTopic == "" {
		problems = append(problems, "forward.mqtt_topic is required with forward.mqtt_broker")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) FlushFallback() time.Duration {
	return time.Duration(c.Flush.FallbackMS) * time.Millisecond
}

func (c Config) FlushIdle() time.Duration {
	return time.Duration(c.Flush.IdleMS) * time.Millisecond
}

func (c Config) DedupTTL() time.Duration {
	return time.Duration(c.Dedup.TTLSeconds) * time.Second
}

func (c Config) MetricsInterval() time.Duration {
	return time.Duration(c.Metrics.IntervalSeconds) * time.Second
}

// Presentation returns the display defaults for notifications.
func (c Config) Presentation() notification.Presentation {
	return notification.Presentation{
		Duration:    time.Duration(c.Notification.DurationMS) * time.Millisecond,
		Dismissible: c.Notification.Dismissible,
		Position:    notification.Position(c.Notification.Position),
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt ignores values that do not parse.
func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
