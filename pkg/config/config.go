package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const envPrefix = "RELEASEPIPE_"

type Config struct {
	DBPath          string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
	PlanHistory     int
	ObjectStore     ObjectStore
}

// ObjectStore configures where exported descriptors are published. An empty
// Endpoint disables publishing.
type ObjectStore struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

func (o ObjectStore) Enabled() bool {
	return strings.TrimSpace(o.Endpoint) != ""
}

func (o ObjectStore) Validate() error {
	if !o.Enabled() {
		return nil
	}
	if strings.Contains(o.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", o.Endpoint)
	}
	if strings.TrimSpace(o.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(o.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(o.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

func FromEnv() (Config, error) {
	shutdown, err := Duration(envPrefix+"SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	history, err := Int(envPrefix+"PLAN_HISTORY", 20)
	if err != nil {
		return Config{}, err
	}
	useSSL, err := Bool(envPrefix+"S3_USE_SSL", true)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		DBPath:          String(envPrefix+"DB_PATH", "releasepipe.db"),
		HTTPAddr:        String(envPrefix+"HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdown,
		LogLevel:        String(envPrefix+"LOG_LEVEL", "info"),
		LogFormat:       String(envPrefix+"LOG_FORMAT", "text"),
		PlanHistory:     history,
		ObjectStore: ObjectStore{
			Endpoint:  String(envPrefix+"S3_ENDPOINT", ""),
			AccessKey: String(envPrefix+"S3_ACCESS_KEY", ""),
			SecretKey: String(envPrefix+"S3_SECRET_KEY", ""),
			Region:    String(envPrefix+"S3_REGION", "us-east-1"),
			Bucket:    String(envPrefix+"S3_BUCKET", "release-configs"),
			Prefix:    String(envPrefix+"S3_PREFIX", ""),
			UseSSL:    useSSL,
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db path is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.PlanHistory < 0 {
		return errors.New("plan history must not be negative")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if err := c.ObjectStore.Validate(); err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	return nil
}
