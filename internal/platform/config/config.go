package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	WooCommerce WooCommerceConfig `mapstructure:"woocommerce"`
	Webhooks    WebhooksConfig    `mapstructure:"webhooks"`
	Redis       RedisConfig       `mapstructure:"redis"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// Inbound deliveries allowed per routing id per minute
	IngestPerMinute int `mapstructure:"ingest_per_minute"`
	IngestBurst     int `mapstructure:"ingest_burst"`
}

type DatabaseConfig struct {
	Global GlobalDBConfig `mapstructure:"global"`
	Tenant TenantDBConfig `mapstructure:"tenant"`
}

type GlobalDBConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type TenantDBConfig struct {
	BasePath             string `mapstructure:"base_path"`
	MaxConnectionsPerOrg int    `mapstructure:"max_connections_per_org"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// WooCommerceConfig controls outbound calls to store REST APIs and the
// delivery URLs handed to them.
type WooCommerceConfig struct {
	PublicBaseURL     string        `mapstructure:"public_base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

type WebhooksConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	AllowUnsigned     bool          `mapstructure:"allow_unsigned"`
	BulkBatchSize     int           `mapstructure:"bulk_batch_size"`
	BulkPause         time.Duration `mapstructure:"bulk_pause"`
	RetryInterval     time.Duration `mapstructure:"retry_interval"`
	RetryBatchSize    int           `mapstructure:"retry_batch_size"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	DedupTTL          time.Duration `mapstructure:"dedup_ttl"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.ingest_per_minute", 600)
	v.SetDefault("server.ingest_burst", 60)

	v.SetDefault("database.global.url", "file:./data/global.db")
	v.SetDefault("database.global.max_connections", 10)
	v.SetDefault("database.tenant.base_path", "./data/tenants")
	v.SetDefault("database.tenant.max_connections_per_org", 5)

	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("woocommerce.timeout", 15*time.Second)
	v.SetDefault("woocommerce.requests_per_second", 2.0)
	v.SetDefault("woocommerce.burst", 5)

	v.SetDefault("webhooks.max_retries", 3)
	v.SetDefault("webhooks.failure_threshold", 5)
	v.SetDefault("webhooks.allow_unsigned", false)
	v.SetDefault("webhooks.bulk_batch_size", 5)
	v.SetDefault("webhooks.bulk_pause", time.Second)
	v.SetDefault("webhooks.retry_interval", 5*time.Second)
	v.SetDefault("webhooks.retry_batch_size", 50)
	v.SetDefault("webhooks.reconcile_interval", time.Hour)
	v.SetDefault("webhooks.dedup_ttl", 24*time.Hour)
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
