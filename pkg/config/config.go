package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the appointment service
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Hyperledger Fabric configuration for the audit topic
	Fabric FabricConfig `mapstructure:"fabric"`

	// WebSocket push channel configuration
	WebSocket WebSocketConfig `mapstructure:"websocket"`

	// JWT configuration for the push channel upgrade
	JWT JWTConfig `mapstructure:"jwt"`

	// Audit writer configuration
	Audit AuditConfig `mapstructure:"audit"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// FabricConfig holds Hyperledger Fabric configuration
type FabricConfig struct {
	ChannelName     string            `mapstructure:"channel_name"`
	CAEndpoint      string            `mapstructure:"ca_endpoint"`
	PeerEndpoints   []string          `mapstructure:"peer_endpoints"`
	OrdererEndpoint string            `mapstructure:"orderer_endpoint"`
	TLSEnabled      bool              `mapstructure:"tls_enabled"`
	Chaincodes      map[string]string `mapstructure:"chaincodes"`
}

// WebSocketConfig holds push channel configuration
type WebSocketConfig struct {
	Path           string `mapstructure:"path"`
	ReconnectDelay int    `mapstructure:"reconnect_delay"`
	ConnectTimeout int    `mapstructure:"connect_timeout"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	Issuer    string `mapstructure:"issuer"`
}

// AuditConfig holds audit writer configuration
type AuditConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/healthspace")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideWithEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8084)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "healthspace")
	viper.SetDefault("database.user", "healthspace")
	// Registering the key lets AutomaticEnv bind DATABASE_PASSWORD
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Fabric defaults
	viper.SetDefault("fabric.channel_name", "healthcare")
	viper.SetDefault("fabric.tls_enabled", true)
	viper.SetDefault("fabric.chaincodes", map[string]string{
		"rdv_audit": "rdv-audit",
	})

	// WebSocket defaults: fixed reconnect delay, matching the web client
	viper.SetDefault("websocket.path", "/ws")
	viper.SetDefault("websocket.reconnect_delay", 3)
	viper.SetDefault("websocket.connect_timeout", 10)

	// Audit defaults
	viper.SetDefault("audit.queue_size", 256)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.health_path", "/health")

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if jwtSecret := os.Getenv("JWT_SECRET_KEY"); jwtSecret != "" {
		config.JWT.SecretKey = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Database.Password == "" {
		return fmt.Errorf("database password is required")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.WebSocket.ReconnectDelay <= 0 {
		return fmt.Errorf("invalid websocket reconnect delay: %d", config.WebSocket.ReconnectDelay)
	}

	return nil
}
