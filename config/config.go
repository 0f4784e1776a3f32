package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Redis         RedisConfig         `yaml:"redis"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Carrier       CarrierConfig       `yaml:"carrier"`
	Reconciler    ReconcilerConfig    `yaml:"reconciler"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Log           LogConfig           `yaml:"log"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN builds a postgres:// connection string. An empty SSLMode means "disable".
func (d DatabaseConfig) DSN() string {
	ssl := d.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	return u.String()
}

type KafkaConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	OrderEventsTopicName string `yaml:"order_events_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	SummaryTTLHours int `yaml:"summary_ttl_hours"`
}

// Addr is empty when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Notification drivers.
const (
	NotifyKafka  = "kafka"
	NotifyPubSub = "pubsub"
	NotifyNone   = "none"
)

type NotificationsConfig struct {
	Driver          string `yaml:"driver"`    // "kafka" | "pubsub" | "none"
	TopicURL        string `yaml:"topic_url"` // pubsub only, e.g. "awssqs://..." or "mem://order-events"
	PublishAttempts int    `yaml:"publish_attempts"`
}

// Carrier client modes.
const (
	CarrierProcessor = "processor"
	CarrierFake      = "fake"
)

type CarrierConfig struct {
	Mode           string `yaml:"mode"` // "processor" | "fake"
	ProcessorURL   string `yaml:"processor_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	RateLimitPerMinute int            `yaml:"rate_limit_per_minute"`
	CarrierRateLimits  map[string]int `yaml:"carrier_rate_limits"` // keyed by 17track carrier code
}

type ReconcilerConfig struct {
	QuiescenceMinutes   int `yaml:"quiescence_minutes"`
	MaxCandidates       int `yaml:"max_candidates"`
	BatchSize           int `yaml:"batch_size"`
	BatchPauseMillis    int `yaml:"batch_pause_millis"` // negative disables the pause
	MaxErrors           int `yaml:"max_errors"`
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`

	// Schedule is a cron expression for serve mode, e.g. "@every 1h" or "0 */2 * * *".
	Schedule string `yaml:"schedule"`
	HTTPAddr string `yaml:"http_addr"`

	// RunTimeoutSeconds bounds a single run, like the execution budget of a scheduled job.
	RunTimeoutSeconds int `yaml:"run_timeout_seconds"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// LoadConfig reads the YAML file, then lets the environment (and a .env file found from the
// working directory upwards) override secrets and the log level.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	loadDotEnv()
	config.applyEnv()

	return &config, nil
}

func (c *Config) applyEnv() {
	c.Database.Password = env.GetString("TRACKRECON_DATABASE_PASSWORD", c.Database.Password)
	c.Redis.Password = env.GetString("TRACKRECON_REDIS_PASSWORD", c.Redis.Password)
	c.Carrier.APIKey = env.GetString("TRACKRECON_CARRIER_API_KEY", c.Carrier.APIKey)
	c.Log.Level = env.GetString("TRACKRECON_LOG_LEVEL", c.Log.Level)
}

func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
