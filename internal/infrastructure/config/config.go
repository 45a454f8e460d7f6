package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the area core.
// Values come from defaults, then YAML, then AREACORE_* environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
	Images   ImagesConfig   `yaml:"images"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Cache    CacheConfig    `yaml:"cache"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains token and bootstrap-account settings.
type SecurityConfig struct {
	JWT        JWTConfig        `yaml:"jwt"`
	Admin      AdminSeedConfig  `yaml:"admin"`
	Activation ActivationConfig `yaml:"activation"`
}

// JWTConfig contains JWT token settings. AccessTokenTTL is in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// AdminSeedConfig names the administrator account created on first boot.
// An empty password means one is generated and logged once.
type AdminSeedConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// ActivationConfig controls registration activation codes. TTL is in minutes.
type ActivationConfig struct {
	TTL int `yaml:"ttl"`
}

// ImagesConfig selects where area images are stored.
type ImagesConfig struct {
	// Backend is "filesystem", "s3" or "minio".
	Backend     string        `yaml:"backend"`
	Dir         string        `yaml:"dir"`
	MaxFileSize int64         `yaml:"max_file_size"`
	S3          S3Config      `yaml:"s3"`
	MinIO       MinIOConfig   `yaml:"minio"`
	Timeout     time.Duration `yaml:"timeout"`
}

// S3Config contains settings for the AWS S3 (or compatible) image backend.
type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// MinIOConfig contains settings for the MinIO image backend.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// RedisConfig configures the optional Redis activation-code store.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQTTConfig contains MQTT broker settings for area lifecycle events.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig holds reconnect delays in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB settings for authorisation and operation points.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// CacheConfig sizes the per-user permission snapshot cache.
type CacheConfig struct {
	PermissionEntries int           `yaml:"permission_entries"`
	PermissionTTL     time.Duration `yaml:"permission_ttl"`
}

// Image backends.
const (
	ImageBackendFilesystem = "filesystem"
	ImageBackendS3         = "s3"
	ImageBackendMinIO      = "minio"
)

// DefaultMaxFileSize is the upload limit for area images in bytes.
const DefaultMaxFileSize = 1_000_000

// Load reads the YAML file at path, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used when no config file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/areacore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
			Admin: AdminSeedConfig{
				Username: "hadmin",
				Email:    "hadmin@localhost",
			},
			Activation: ActivationConfig{
				TTL: 1440,
			},
		},
		Images: ImagesConfig{
			Backend:     ImageBackendFilesystem,
			Dir:         "./data/area-images",
			MaxFileSize: DefaultMaxFileSize,
			Timeout:     30 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "areacore",
			},
			QoS:         1,
			TopicPrefix: "areacore",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Cache: CacheConfig{
			PermissionEntries: 1024,
			PermissionTTL:     time.Minute,
		},
	}
}

// applyEnvOverrides reads AREACORE_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AREACORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("AREACORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("AREACORE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("AREACORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AREACORE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("AREACORE_ADMIN_PASSWORD"); v != "" {
		cfg.Security.Admin.Password = v
	}
	if v := os.Getenv("AREACORE_IMAGES_BACKEND"); v != "" {
		cfg.Images.Backend = v
	}
	if v := os.Getenv("AREACORE_IMAGES_DIR"); v != "" {
		cfg.Images.Dir = v
	}
	if v := os.Getenv("AREACORE_S3_ACCESS_KEY_ID"); v != "" {
		cfg.Images.S3.AccessKeyID = v
	}
	if v := os.Getenv("AREACORE_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.Images.S3.SecretAccessKey = v
	}
	if v := os.Getenv("AREACORE_MINIO_ACCESS_KEY"); v != "" {
		cfg.Images.MinIO.AccessKey = v
	}
	if v := os.Getenv("AREACORE_MINIO_SECRET_KEY"); v != "" {
		cfg.Images.MinIO.SecretKey = v
	}
	if v := os.Getenv("AREACORE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("AREACORE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AREACORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("AREACORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AREACORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("AREACORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set AREACORE_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.Security.Admin.Username == "" {
		errs = append(errs, "security.admin.username is required")
	}

	if c.Images.MaxFileSize <= 0 {
		errs = append(errs, "images.max_file_size must be positive")
	}
	switch c.Images.Backend {
	case ImageBackendFilesystem:
		if c.Images.Dir == "" {
			errs = append(errs, "images.dir is required for the filesystem backend")
		}
	case ImageBackendS3:
		if c.Images.S3.Bucket == "" || c.Images.S3.Region == "" {
			errs = append(errs, "images.s3.bucket and images.s3.region are required for the s3 backend")
		}
	case ImageBackendMinIO:
		if c.Images.MinIO.Bucket == "" || c.Images.MinIO.Endpoint == "" {
			errs = append(errs, "images.minio.endpoint and images.minio.bucket are required for the minio backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("images.backend %q is not one of filesystem, s3, minio", c.Images.Backend))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when redis is enabled")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// ActivationTTL returns the activation code lifetime.
func (c *Config) ActivationTTL() time.Duration {
	return time.Duration(c.Security.Activation.TTL) * time.Minute
}
