package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // players often ship without a zoneinfo database

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Storage  StorageConfig  `yaml:"storage"`
	Detector DetectorConfig `yaml:"detector"`
	Tracking TrackingConfig `yaml:"tracking"`
	Counter  CounterConfig  `yaml:"counter"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	APIKey      string   `yaml:"api_key"`
	CORSOrigins []string `yaml:"cors_origins"`
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

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// StorageConfig selects where the gallery and history snapshots live.
type StorageConfig struct {
	// Backend is one of sqlite, postgres, minio or memory.
	Backend    string `yaml:"backend"`
	GalleryKey string `yaml:"gallery_key"`
	HistoryKey string `yaml:"history_key"`
	// IndexEmbeddings mirrors the gallery into pgvector for identity search.
	IndexEmbeddings bool `yaml:"index_embeddings"`
}

// DetectorConfig selects and tunes the source of face observations.
type DetectorConfig struct {
	// Source is one of nats, onnx or none.
	Source             string        `yaml:"source"`
	CameraID           string        `yaml:"camera_id"`
	ModelsDir          string        `yaml:"models_dir"`
	DetectionThreshold float64       `yaml:"detection_threshold"`
	EmbeddingDim       int           `yaml:"embedding_dim"`
	FramePrefix        string        `yaml:"frame_prefix"`
	Interval           time.Duration `yaml:"interval"`
}

type TrackingConfig struct {
	// Matcher is greedy (default) or hungarian.
	Matcher                string        `yaml:"matcher"`
	TrackMatchThreshold    float64       `yaml:"track_match_threshold"`
	IdentityMatchThreshold float64       `yaml:"identity_match_threshold"`
	TrackTimeout           time.Duration `yaml:"track_timeout"`
	DetectInterval         time.Duration `yaml:"detect_interval"`
	SweepInterval          time.Duration `yaml:"sweep_interval"`
	MinAttention           time.Duration `yaml:"min_attention"`
	PresenceCooldown       time.Duration `yaml:"presence_cooldown"`
	MaxRecords             int           `yaml:"max_records"`
	// Timezone is the IANA zone that decides calendar days.
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone.
func (t TrackingConfig) Location() (*time.Location, error) {
	if t.Timezone == "" || t.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", t.Timezone, err)
	}
	return loc, nil
}

type CounterConfig struct {
	DedupWindow       time.Duration `yaml:"dedup_window"`
	Retention         time.Duration `yaml:"retention"`
	HousekeepInterval time.Duration `yaml:"housekeep_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable
// overrides. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "attention.db"
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "attention"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.GalleryKey == "" {
		cfg.Storage.GalleryKey = "people_registry"
	}
	if cfg.Storage.HistoryKey == "" {
		cfg.Storage.HistoryKey = "attention_history"
	}
	if cfg.Detector.Source == "" {
		cfg.Detector.Source = "nats"
	}
	if cfg.Detector.CameraID == "" {
		cfg.Detector.CameraID = "default"
	}
	if cfg.Detector.ModelsDir == "" {
		cfg.Detector.ModelsDir = "models"
	}
	if cfg.Detector.DetectionThreshold == 0 {
		cfg.Detector.DetectionThreshold = 0.5
	}
	if cfg.Detector.EmbeddingDim == 0 {
		cfg.Detector.EmbeddingDim = 128
	}
	if cfg.Detector.FramePrefix == "" {
		cfg.Detector.FramePrefix = "frames/"
	}
	if cfg.Detector.Interval == 0 {
		cfg.Detector.Interval = time.Second
	}
	if cfg.Tracking.Matcher == "" {
		cfg.Tracking.Matcher = "greedy"
	}
	if cfg.Tracking.TrackMatchThreshold == 0 {
		cfg.Tracking.TrackMatchThreshold = 0.5
	}
	if cfg.Tracking.IdentityMatchThreshold == 0 {
		cfg.Tracking.IdentityMatchThreshold = 0.6
	}
	if cfg.Tracking.TrackTimeout == 0 {
		cfg.Tracking.TrackTimeout = 3 * time.Second
	}
	if cfg.Tracking.DetectInterval == 0 {
		cfg.Tracking.DetectInterval = time.Second
	}
	if cfg.Tracking.SweepInterval == 0 {
		cfg.Tracking.SweepInterval = time.Second
	}
	if cfg.Tracking.MinAttention == 0 {
		cfg.Tracking.MinAttention = time.Second
	}
	if cfg.Tracking.PresenceCooldown == 0 {
		cfg.Tracking.PresenceCooldown = 5 * time.Second
	}
	if cfg.Tracking.MaxRecords == 0 {
		cfg.Tracking.MaxRecords = 500
	}
	if cfg.Counter.DedupWindow == 0 {
		cfg.Counter.DedupWindow = 10 * time.Second
	}
	if cfg.Counter.Retention == 0 {
		cfg.Counter.Retention = time.Minute
	}
	if cfg.Counter.HousekeepInterval == 0 {
		cfg.Counter.HousekeepInterval = time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATTN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ATTN_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("ATTN_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("ATTN_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ATTN_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("ATTN_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ATTN_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ATTN_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ATTN_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("ATTN_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("ATTN_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("ATTN_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("ATTN_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("ATTN_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("ATTN_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("ATTN_DETECTOR_SOURCE"); v != "" {
		cfg.Detector.Source = v
	}
	if v := os.Getenv("ATTN_CAMERA_ID"); v != "" {
		cfg.Detector.CameraID = v
	}
	if v := os.Getenv("ATTN_MODELS_DIR"); v != "" {
		cfg.Detector.ModelsDir = v
	}
	if v := os.Getenv("ATTN_TRACKING_MATCHER"); v != "" {
		cfg.Tracking.Matcher = v
	}
	if v := os.Getenv("ATTN_TIMEZONE"); v != "" {
		cfg.Tracking.Timezone = v
	}
	if v := os.Getenv("ATTN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "sqlite", "postgres", "minio", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	switch cfg.Detector.Source {
	case "nats", "onnx", "none":
	default:
		return fmt.Errorf("unknown detector source %q", cfg.Detector.Source)
	}
	switch cfg.Tracking.Matcher {
	case "greedy", "hungarian":
	default:
		return fmt.Errorf("unknown tracking matcher %q", cfg.Tracking.Matcher)
	}
	if _, err := cfg.Tracking.Location(); err != nil {
		return err
	}
	return nil
}
