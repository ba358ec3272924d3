package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config holds all configuration for the login service
type Config struct {
	Browser  BrowserConfig
	Login    LoginConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Kafka    KafkaConfig
	Notifier NotifierConfig
	Flows    FlowsConfig
	Logging  LoggingConfig
	Service  ServiceConfig
}

// BrowserConfig holds browser launch and login page settings
type BrowserConfig struct {
	Headless          bool
	ExecPath          string // empty uses the chromedp default lookup
	UserAgent         string
	LoginURL          string
	QRWrapperSelector string
	QRImageSelector   string
	ModalTimeout      time.Duration
}

// LoginConfig holds completion detection settings
type LoginConfig struct {
	PollInterval      time.Duration
	Timeout           time.Duration
	SettleDelay       time.Duration
	CheckTimeout      time.Duration
	ProfileURLPattern string
	AvatarSelector    string
	SessionCookie     string
	StatusEndpoint    string
	QRCreateEndpoint  string
	TrustStatusPush   bool
}

// StorageConfig selects the credential store driver
type StorageConfig struct {
	Driver string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// MongoConfig holds MongoDB configuration
type MongoConfig struct {
	URI          string
	Database     string
	Collection   string
	Transactions bool
}

// KafkaConfig holds Kafka configuration. No brokers disables the event sink.
type KafkaConfig struct {
	Brokers          []string
	TopicLoginEvents string
}

// Enabled reports whether any broker is configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// NotifierConfig holds Telegram notification settings. An empty token
// disables notifications.
type NotifierConfig struct {
	TelegramBotToken string
	TelegramChatID   int64
}

// Enabled reports whether Telegram notifications are configured
func (n NotifierConfig) Enabled() bool {
	return n.TelegramBotToken != ""
}

// FlowsConfig holds limits for login flows started over HTTP
type FlowsConfig struct {
	MaxFlows        int
	TTL             time.Duration
	CleanupInterval time.Duration
	QRReadyTimeout  time.Duration
	StartRate       float64 // flow starts per second
	StartBurst      int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name            string
	Port            string
	ShutdownTimeout time.Duration
}

// Result provides config parts for fx dependency injection using fx.Out pattern
type Result struct {
	fx.Out

	Config   *Config
	Browser  *BrowserConfig
	Login    *LoginConfig
	Storage  *StorageConfig
	Database *DatabaseConfig
	Mongo    *MongoConfig
	Kafka    *KafkaConfig
	Notifier *NotifierConfig
	Flows    *FlowsConfig
	Logging  *LoggingConfig
	Service  *ServiceConfig
}

// Out loads configuration and returns Result for fx injection
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}
	return cfg.Out(), nil
}

// Out splits an already loaded configuration into fx results
func (c *Config) Out() Result {
	return Result{
		Config:   c,
		Browser:  &c.Browser,
		Login:    &c.Login,
		Storage:  &c.Storage,
		Database: &c.Database,
		Mongo:    &c.Mongo,
		Kafka:    &c.Kafka,
		Notifier: &c.Notifier,
		Flows:    &c.Flows,
		Logging:  &c.Logging,
		Service:  &c.Service,
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	var errs envErrors

	cfg := &Config{
		Browser: BrowserConfig{
			Headless:          errs.bool("BROWSER_HEADLESS", false),
			ExecPath:          getEnv("BROWSER_EXEC_PATH", ""),
			UserAgent:         getEnv("BROWSER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
			LoginURL:          getEnv("LOGIN_URL", "https://www.xiaohongshu.com/explore"),
			QRWrapperSelector: getEnv("LOGIN_QR_WRAPPER_SELECTOR", ".login-container .qrcode"),
			QRImageSelector:   getEnv("LOGIN_QR_IMAGE_SELECTOR", ".qrcode-img"),
			ModalTimeout:      errs.duration("LOGIN_MODAL_TIMEOUT", "10s"),
		},
		Login: LoginConfig{
			PollInterval:      errs.duration("LOGIN_POLL_INTERVAL", "2s"),
			Timeout:           errs.duration("LOGIN_TIMEOUT", "180s"),
			SettleDelay:       errs.duration("LOGIN_SETTLE_DELAY", "2s"),
			CheckTimeout:      errs.duration("LOGIN_CHECK_TIMEOUT", "1500ms"),
			ProfileURLPattern: getEnv("LOGIN_PROFILE_URL_PATTERN", "/user/profile/"),
			AvatarSelector:    getEnv("LOGIN_AVATAR_SELECTOR", ".user-side-bar .avatar-item, .side-bar .avatar-item"),
			SessionCookie:     getEnv("LOGIN_SESSION_COOKIE", "web_session"),
			StatusEndpoint:    getEnv("LOGIN_STATUS_ENDPOINT", "/api/sns/web/v1/login/qrcode/status"),
			QRCreateEndpoint:  getEnv("LOGIN_QR_CREATE_ENDPOINT", "/api/sns/web/v1/login/qrcode/create"),
			TrustStatusPush:   errs.bool("LOGIN_TRUST_STATUS_PUSH", false),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverPostgres)),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "xhs"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Mongo: MongoConfig{
			URI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:     getEnv("MONGO_DATABASE", "xhs"),
			Collection:   getEnv("MONGO_COLLECTION", "credentials"),
			Transactions: errs.bool("MONGO_TRANSACTIONS", false),
		},
		Kafka: KafkaConfig{
			Brokers:          splitList(getEnv("KAFKA_BROKERS", "")),
			TopicLoginEvents: getEnv("KAFKA_TOPIC_LOGIN_EVENTS", "xhs.login.events"),
		},
		Notifier: NotifierConfig{
			TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:   errs.int64("TELEGRAM_CHAT_ID", 0),
		},
		Flows: FlowsConfig{
			MaxFlows:        int(errs.int64("FLOWS_MAX", 4)),
			TTL:             errs.duration("FLOWS_TTL", "5m"),
			CleanupInterval: errs.duration("FLOWS_CLEANUP_INTERVAL", "1m"),
			QRReadyTimeout:  errs.duration("FLOWS_QR_READY_TIMEOUT", "45s"),
			StartRate:       errs.float("FLOWS_START_RATE", 0.2),
			StartBurst:      int(errs.int64("FLOWS_START_BURST", 2)),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Service: ServiceConfig{
			Name:            getEnv("SERVICE_NAME", "xhs-login"),
			Port:            getEnv("SERVICE_PORT", "8090"),
			ShutdownTimeout: errs.duration("SERVICE_SHUTDOWN_TIMEOUT", "15s"),
		},
	}

	if err := errs.err(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for the postgres driver")
		}
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" || c.Mongo.Collection == "" {
			return fmt.Errorf("MONGO_URI, MONGO_DATABASE and MONGO_COLLECTION are required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Login.PollInterval <= 0 {
		return fmt.Errorf("LOGIN_POLL_INTERVAL must be positive")
	}

	if c.Login.Timeout <= 0 {
		return fmt.Errorf("LOGIN_TIMEOUT must be positive")
	}

	if c.Login.SessionCookie == "" {
		return fmt.Errorf("LOGIN_SESSION_COOKIE is required")
	}

	if c.Notifier.Enabled() && c.Notifier.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	if c.Kafka.Enabled() && c.Kafka.TopicLoginEvents == "" {
		return fmt.Errorf("KAFKA_TOPIC_LOGIN_EVENTS is required when KAFKA_BROKERS is set")
	}

	if c.Flows.MaxFlows <= 0 {
		return fmt.Errorf("FLOWS_MAX must be positive")
	}

	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envErrors collects parse errors so Load can report the first one
type envErrors []error

func (e *envErrors) duration(key, def string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, def))
	if err != nil {
		*e = append(*e, fmt.Errorf("invalid %s: %w", key, err))
	}
	return d
}

func (e *envErrors) bool(key string, def bool) bool {
	b, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(def)))
	if err != nil {
		*e = append(*e, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func (e *envErrors) int64(key string, def int64) int64 {
	n, err := strconv.ParseInt(getEnv(key, strconv.FormatInt(def, 10)), 10, 64)
	if err != nil {
		*e = append(*e, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (e *envErrors) float(key string, def float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(def, 'f', -1, 64)), 64)
	if err != nil {
		*e = append(*e, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func (e envErrors) err() error {
	if len(e) == 0 {
		return nil
	}
	return e[0]
}
