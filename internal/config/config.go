package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Vision   VisionConfig   `yaml:"vision"`
	Digest   DigestConfig   `yaml:"digest"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// NATSConfig is optional: an empty URL disables the job event stream and
// progress events are delivered in-process only.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// MinIOConfig is optional: without an endpoint only local directory
// sources can be digested.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir string `yaml:"models_dir"`
	// DetectionThreshold is the model-level score gate. The per-job
	// confidence filter applies on top of it.
	DetectionThreshold float64 `yaml:"detection_threshold"`
}

type DigestConfig struct {
	DefaultCollection string  `yaml:"default_collection"`
	Threads           int     `yaml:"threads"`
	Confidence        float64 `yaml:"confidence"`
	MaxRetries        int     `yaml:"max_retries"`
	ThumbnailMaxPx    int     `yaml:"thumbnail_max_px"`
}

type ClusterConfig struct {
	Confidence float64 `yaml:"confidence"`
	PageSize   int     `yaml:"page_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.3
	}
	if cfg.Digest.DefaultCollection == "" {
		cfg.Digest.DefaultCollection = "face_embeddings"
	}
	if cfg.Digest.Threads == 0 {
		cfg.Digest.Threads = 4
	}
	if cfg.Digest.Confidence == 0 {
		cfg.Digest.Confidence = 0.5
	}
	if cfg.Digest.MaxRetries == 0 {
		cfg.Digest.MaxRetries = 2
	}
	if cfg.Digest.ThumbnailMaxPx == 0 {
		cfg.Digest.ThumbnailMaxPx = 1000
	}
	if cfg.Cluster.Confidence == 0 {
		cfg.Cluster.Confidence = 0.8
	}
	if cfg.Cluster.PageSize == 0 {
		cfg.Cluster.PageSize = 100
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FW_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FW_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FW_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FW_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FW_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FW_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FW_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FW_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FW_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FW_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("FW_DEFAULT_COLLECTION"); v != "" {
		cfg.Digest.DefaultCollection = v
	}
	if v := os.Getenv("FW_DIGEST_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Digest.Threads = n
		}
	}
}
