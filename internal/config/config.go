// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"escpos-service/pkg/escpos"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// CaptureConfig represents job capture configuration
type CaptureConfig struct {
	TCP    TCPCaptureConfig    `mapstructure:"tcp"`
	Serial SerialCaptureConfig `mapstructure:"serial"`
}

// TCPCaptureConfig represents the raw printer port listener
type TCPCaptureConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Address            string        `mapstructure:"address"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	AcceptPollInterval time.Duration `mapstructure:"accept_poll_interval"`
	ReadBufferSize     int           `mapstructure:"read_buffer_size"`
	QueueSize          int           `mapstructure:"queue_size"`
}

// SerialCaptureConfig represents serial line capture
type SerialCaptureConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// DecoderConfig represents ESC/POS decoding options
type DecoderConfig struct {
	CodePage          string `mapstructure:"codepage"`
	BarcodeNULMaxMode int    `mapstructure:"barcode_nul_max_mode"`
}

// JobsConfig represents job history limits
type JobsConfig struct {
	MaxJobs       int           `mapstructure:"max_jobs"`
	PruneByAge    bool          `mapstructure:"prune_by_age"`
	PruneAfter    time.Duration `mapstructure:"prune_after"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
	IgnoreNoise   bool          `mapstructure:"ignore_noise"`
	NoiseMaxBytes int           `mapstructure:"noise_max_bytes"`
}

// StorageConfig represents job storage configuration
type StorageConfig struct {
	Driver           string         `mapstructure:"driver"`
	CompressPayloads bool           `mapstructure:"compress_payloads"`
	RunMigrations    bool           `mapstructure:"run_migrations"`
	Database         DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxImportBytes int64    `mapstructure:"max_import_bytes"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables. A missing
// config file is not an error; defaults and environment apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/escpos-service")
	return load(v)
}

// LoadFile loads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// Environment variable support
	v.SetEnvPrefix("ESCPOS_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	// Capture defaults
	v.SetDefault("capture.tcp.enabled", true)
	v.SetDefault("capture.tcp.address", "0.0.0.0:9100")
	v.SetDefault("capture.tcp.read_timeout", "5s")
	v.SetDefault("capture.tcp.accept_poll_interval", "25ms")
	v.SetDefault("capture.tcp.read_buffer_size", 8192)
	v.SetDefault("capture.tcp.queue_size", 64)

	v.SetDefault("capture.serial.enabled", false)
	v.SetDefault("capture.serial.baud_rate", 9600)
	v.SetDefault("capture.serial.data_bits", 8)
	v.SetDefault("capture.serial.stop_bits", 1)
	v.SetDefault("capture.serial.parity", "none")
	v.SetDefault("capture.serial.idle_timeout", "5s")

	// Decoder defaults
	v.SetDefault("decoder.codepage", "utf8")
	v.SetDefault("decoder.barcode_nul_max_mode", int(escpos.DefaultBarcodeNULMaxMode))

	// Job history defaults
	v.SetDefault("jobs.max_jobs", 25)
	v.SetDefault("jobs.prune_by_age", false)
	v.SetDefault("jobs.prune_after", "2h")
	v.SetDefault("jobs.prune_interval", "1m")
	v.SetDefault("jobs.ignore_noise", true)
	v.SetDefault("jobs.noise_max_bytes", 32)

	// Storage defaults
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.compress_payloads", true)
	v.SetDefault("storage.run_migrations", true)
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.user", "postgres")
	v.SetDefault("storage.database.password", "postgres")
	v.SetDefault("storage.database.dbname", "escpos_service")
	v.SetDefault("storage.database.sslmode", "disable")
	v.SetDefault("storage.database.max_open_conns", 10)
	v.SetDefault("storage.database.max_idle_conns", 2)
	v.SetDefault("storage.database.max_lifetime", "5m")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.max_import_bytes", 8<<20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// App defaults
	v.SetDefault("app.name", "escpos-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if config.Capture.TCP.Enabled && config.Capture.TCP.Address == "" {
		return fmt.Errorf("capture.tcp.address is required when tcp capture is enabled")
	}
	if config.Capture.Serial.Enabled && config.Capture.Serial.Port == "" {
		return fmt.Errorf("capture.serial.port is required when serial capture is enabled")
	}

	if _, err := escpos.ParseCodePage(config.Decoder.CodePage); err != nil {
		return fmt.Errorf("decoder.codepage: %w", err)
	}
	if config.Decoder.BarcodeNULMaxMode < 0 || config.Decoder.BarcodeNULMaxMode > 255 {
		return fmt.Errorf("decoder.barcode_nul_max_mode must be between 0 and 255")
	}

	if config.Jobs.MaxJobs < 1 {
		return fmt.Errorf("jobs.max_jobs must be at least 1")
	}
	if config.Jobs.PruneByAge && config.Jobs.PruneAfter <= 0 {
		return fmt.Errorf("jobs.prune_after must be positive when prune_by_age is set")
	}

	validDrivers := []string{"memory", "postgres"}
	if !slices.Contains(validDrivers, config.Storage.Driver) {
		return fmt.Errorf("storage.driver must be one of: %v", validDrivers)
	}
	if config.Storage.Driver == "postgres" && config.Storage.Database.Host == "" {
		return fmt.Errorf("storage.database.host is required")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !slices.Contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	db := c.Storage.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.User, db.Password, db.DBName, db.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// CodePage returns the configured decoder code page.
func (c *Config) CodePage() escpos.CodePage {
	cp, _ := escpos.ParseCodePage(c.Decoder.CodePage)
	return cp
}

// DecoderOptions returns escpos options for the configured decoder.
func (c *Config) DecoderOptions() escpos.Options {
	threshold := byte(c.Decoder.BarcodeNULMaxMode)
	return escpos.Options{
		CodePage:          c.CodePage(),
		BarcodeNULMaxMode: &threshold,
	}
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
