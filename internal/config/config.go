package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Vision      VisionConfig      `yaml:"vision"`
	Identity    IdentityConfig    `yaml:"identity"`
	Jobs        JobsConfig        `yaml:"jobs"`
	Cache       CacheConfig       `yaml:"cache"`
	Sentry      SentryConfig      `yaml:"sentry"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	APIKey   string `yaml:"api_key"`
	AdminKey string `yaml:"admin_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
	// URL overrides the individual fields when set.
	URL string `yaml:"url"`
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// VectorIndexConfig selects where face vectors live. "pgvector" keeps them in
// a Postgres table next to the relational rows, "memory" uses an in-process
// HNSW graph (single process only).
type VectorIndexConfig struct {
	Backend   string `yaml:"backend"`
	Table     string `yaml:"table"`
	Dimension int    `yaml:"dimension"`
	// DSN of the vector database; empty means the relational database.
	DSN string `yaml:"dsn"`
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

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	// DetSize is the square detector input edge; 640 for ingestion, 320 is
	// enough for search uploads where the face is usually large.
	DetSize       int `yaml:"det_size"`
	SearchDetSize int `yaml:"search_det_size"`
	// RuntimeLib is the ONNX Runtime shared library; empty uses the OS default name.
	RuntimeLib string `yaml:"runtime_lib"`
}

// minOrphanGrace matches the photo consumer's ack wait; a recording
// transaction never lives longer.
const minOrphanGrace = 2 * time.Minute

const defaultReviewFloor = 0.60

type IdentityConfig struct {
	AutoLinkThreshold float64 `yaml:"auto_link_threshold"`
	// ReviewFloor is the lower edge of the band that gets a review queue
	// entry. An explicit 0 queues every non-linked face.
	ReviewFloor float64 `yaml:"review_floor"`
	// ReconcileInterval enables the periodic reconciliation sweep in the
	// worker. Zero disables it.
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	// OrphanGrace is the minimum age of an orphaned vector point before the
	// reconciler deletes it.
	OrphanGrace time.Duration `yaml:"orphan_grace"`
}

type JobsConfig struct {
	WorkerCount int           `yaml:"worker_count"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	MetricsPort int           `yaml:"metrics_port"`
}

type CacheConfig struct {
	MessageTTL time.Duration `yaml:"message_ttl"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// A .env file in the working directory is loaded first when it exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// absent keys keep these values; an explicit zero overrides them
	cfg := &Config{Identity: IdentityConfig{ReviewFloor: defaultReviewFloor}}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && os.Getenv("FW_CONFIG_OPTIONAL") != "":
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects threshold combinations that cannot be right.
func (c *Config) Validate() error {
	id := c.Identity
	if id.AutoLinkThreshold <= 0 || id.AutoLinkThreshold > 1 {
		return fmt.Errorf("identity.auto_link_threshold must be in (0,1], got %v", id.AutoLinkThreshold)
	}
	if id.ReviewFloor < 0 || id.ReviewFloor > 1 {
		return fmt.Errorf("identity.review_floor must be in [0,1], got %v", id.ReviewFloor)
	}
	if id.ReconcileInterval < 0 || (id.ReconcileInterval > 0 && id.ReconcileInterval < minOrphanGrace) {
		return fmt.Errorf("identity.reconcile_interval must be 0 or at least %s, got %s", minOrphanGrace, id.ReconcileInterval)
	}
	if id.OrphanGrace < minOrphanGrace {
		return fmt.Errorf("identity.orphan_grace must be at least %s, got %s", minOrphanGrace, id.OrphanGrace)
	}
	switch c.VectorIndex.Backend {
	case "pgvector", "memory":
	default:
		return fmt.Errorf("vector_index.backend %q is not supported", c.VectorIndex.Backend)
	}
	if c.Jobs.MaxAttempts < 1 {
		return fmt.Errorf("jobs.max_attempts must be at least 1")
	}
	return nil
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
	if cfg.VectorIndex.Backend == "" {
		cfg.VectorIndex.Backend = "pgvector"
	}
	if cfg.VectorIndex.Table == "" {
		cfg.VectorIndex.Table = "face_vectors"
	}
	if cfg.VectorIndex.Dimension == 0 {
		cfg.VectorIndex.Dimension = 512
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "facewatch"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.DetSize == 0 {
		cfg.Vision.DetSize = 640
	}
	if cfg.Vision.SearchDetSize == 0 {
		cfg.Vision.SearchDetSize = 320
	}
	if cfg.Identity.AutoLinkThreshold == 0 {
		cfg.Identity.AutoLinkThreshold = 0.75
	}
	if cfg.Identity.OrphanGrace == 0 {
		cfg.Identity.OrphanGrace = minOrphanGrace
	}
	if cfg.Jobs.WorkerCount == 0 {
		cfg.Jobs.WorkerCount = 4
	}
	if cfg.Jobs.MaxAttempts == 0 {
		cfg.Jobs.MaxAttempts = 5
	}
	if cfg.Jobs.RetryDelay == 0 {
		cfg.Jobs.RetryDelay = 15 * time.Second
	}
	if cfg.Jobs.MetricsPort == 0 {
		cfg.Jobs.MetricsPort = 8082
	}
	if cfg.Cache.MessageTTL == 0 {
		cfg.Cache.MessageTTL = 5 * time.Minute
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
	if v := os.Getenv("FW_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FW_ADMIN_KEY"); v != "" {
		cfg.Server.AdminKey = v
	}
	if v := os.Getenv("FW_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
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
	if v := os.Getenv("FW_VECTOR_BACKEND"); v != "" {
		cfg.VectorIndex.Backend = v
	}
	if v := os.Getenv("FW_VECTOR_DSN"); v != "" {
		cfg.VectorIndex.DSN = v
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
	if v := os.Getenv("FW_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FW_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("FW_ONNX_LIB"); v != "" {
		cfg.Vision.RuntimeLib = v
	}
	if v := os.Getenv("FW_AUTO_LINK_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Identity.AutoLinkThreshold = f
		}
	}
	if v := os.Getenv("FW_REVIEW_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Identity.ReviewFloor = f
		}
	}
	if v := os.Getenv("FW_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Jobs.WorkerCount = n
		}
	}
	if v := os.Getenv("FW_SENTRY_DSN"); v != "" {
		cfg.Sentry.DSN = v
	}
	if v := os.Getenv("FW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
