package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Automation AutomationConfig `mapstructure:"automation"`
	Lock       LockConfig       `mapstructure:"lock"`
	Polling    PollingConfig    `mapstructure:"polling"`
	Channels   []ChannelSeed    `mapstructure:"channels"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the gorm driver and its connection settings.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	URL             string        `mapstructure:"url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		if c.URL != "" {
			return c.URL
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
	}
	return c.Path
}

// StorageConfig points the storage browser at an S3-compatible bucket.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // r2, s3, s3compatible; empty auto-detects
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// AutomationConfig describes the external automation backend and trigger policy.
type AutomationConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	CallbackURL         string        `mapstructure:"callback_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Queue               string        `mapstructure:"queue"` // http, amqp, none
	AMQPURL             string        `mapstructure:"amqp_url"`
	AMQPQueue           string        `mapstructure:"amqp_queue"`
	Timezone            string        `mapstructure:"timezone"`
	DailyTime           string        `mapstructure:"daily_time"`
	UploadCheckInterval time.Duration `mapstructure:"upload_check_interval"`
	AllowOverlap        bool          `mapstructure:"allow_overlap"`
	SchedulerEnabled    bool          `mapstructure:"scheduler_enabled"`
}

// Location resolves the automation timezone, falling back to UTC.
func (c *AutomationConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LockConfig selects how concurrent triggers are serialized.
type LockConfig struct {
	Driver        string        `mapstructure:"driver"` // local or redis
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// PollingConfig is advertised to clients through the status endpoint.
type PollingConfig struct {
	SummaryInterval time.Duration `mapstructure:"summary_interval"`
	DetailInterval  time.Duration `mapstructure:"detail_interval"`
}

// ChannelSeed is a channel definition upserted into the store at startup.
type ChannelSeed struct {
	ID                 string `mapstructure:"id"`
	Name               string `mapstructure:"name"`
	LongFormUploadTime string `mapstructure:"long_form_upload_time"`
	ShortUploadTime    string `mapstructure:"short_upload_time"`
	Timezone           string `mapstructure:"timezone"`
	IsActive           bool   `mapstructure:"is_active"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("automation.base_url", "AUTOMATION_BASE_URL")
	v.BindEnv("automation.api_key", "AUTOMATION_API_KEY")
	v.BindEnv("automation.callback_url", "PUBLIC_BASE_URL")
	v.BindEnv("automation.amqp_url", "RABBITMQ_URL")
	v.BindEnv("lock.redis_addr", "REDIS_ADDR")
	v.BindEnv("lock.redis_password", "REDIS_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/reelforge.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "reelforge")
	v.SetDefault("automation.base_url", "http://localhost:5678")
	v.SetDefault("automation.timeout", 30*time.Second)
	v.SetDefault("automation.queue", "http")
	v.SetDefault("automation.amqp_queue", "content_jobs")
	v.SetDefault("automation.timezone", "UTC")
	v.SetDefault("automation.daily_time", "06:00")
	v.SetDefault("automation.upload_check_interval", 5*time.Minute)
	v.SetDefault("automation.allow_overlap", false)
	v.SetDefault("automation.scheduler_enabled", true)
	v.SetDefault("lock.driver", "local")
	v.SetDefault("lock.redis_addr", "localhost:6379")
	v.SetDefault("lock.ttl", 2*time.Minute)
	v.SetDefault("polling.summary_interval", time.Second)
	v.SetDefault("polling.detail_interval", 5*time.Second)
}

// Validate checks option values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	switch c.Automation.Queue {
	case "http", "amqp", "none":
	default:
		return fmt.Errorf("automation: unknown queue %q", c.Automation.Queue)
	}
	if c.Automation.Queue == "amqp" && c.Automation.AMQPURL == "" {
		return fmt.Errorf("automation: amqp_url is required when queue is amqp")
	}
	if _, err := time.LoadLocation(c.Automation.Timezone); err != nil {
		return fmt.Errorf("automation: invalid timezone %q: %w", c.Automation.Timezone, err)
	}
	switch c.Lock.Driver {
	case "local", "redis":
	default:
		return fmt.Errorf("lock: unknown driver %q", c.Lock.Driver)
	}
	if c.Automation.UploadCheckInterval <= 0 {
		return fmt.Errorf("automation: upload_check_interval must be positive")
	}
	for i, ch := range c.Channels {
		if ch.ID == "" || ch.Name == "" {
			return fmt.Errorf("channels[%d]: id and name are required", i)
		}
		if ch.Timezone != "" {
			if _, err := time.LoadLocation(ch.Timezone); err != nil {
				return fmt.Errorf("channels[%d]: invalid timezone %q: %w", i, ch.Timezone, err)
			}
		}
		for _, clock := range []string{ch.LongFormUploadTime, ch.ShortUploadTime} {
			if clock == "" {
				continue
			}
			if _, err := time.Parse("15:04", clock); err != nil {
				return fmt.Errorf("channels[%d]: upload time %q is not HH:MM", i, clock)
			}
		}
	}
	return nil
}
