package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

const (
	StorageMemory    = "memory"
	StorageSQLite    = "sqlite"
	StoragePostgres  = "postgres"
	StorageFirestore = "firestore"

	TransportLocal = "local"
	TransportDapr  = "dapr"
)

type Config struct {
	Mode Mode `yaml:"mode"`

	Port string `yaml:"port"`

	GCPProjectID string `yaml:"gcp_project"`
	GCPLocation  string `yaml:"gcp_location"`
	ModelName    string `yaml:"model_name"`

	StorageBackend string `yaml:"storage_backend"` // memory, sqlite, postgres or firestore
	SQLitePath     string `yaml:"sqlite_path"`
	DatabaseURL    string `yaml:"database_url"`
	UseMockLLM     bool   `yaml:"use_mock_llm"` // true = use mock even on GCP

	EventTransport string `yaml:"event_transport"` // local or dapr
	DaprEndpoint   string `yaml:"dapr_endpoint"`
	PubsubName     string `yaml:"pubsub_name"`
	EventsTopic    string `yaml:"events_topic"`
	PublishRetries int    `yaml:"publish_retries"`

	HistoryLimit int      `yaml:"history_limit"`
	LogLevel     string   `yaml:"log_level"`
	CORSOrigins  []string `yaml:"cors_origins"`
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getListEnv(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaults() *Config {
	return &Config{
		Mode:           ModeLocal,
		Port:           "8080",
		GCPLocation:    "us-central1",
		ModelName:      "gemini-2.5-flash-lite",
		StorageBackend: StorageMemory,
		SQLitePath:     "todo.db",
		EventTransport: TransportLocal,
		PubsubName:     "pubsub",
		EventsTopic:    "task-events",
		PublishRetries: 3,
		HistoryLimit:   20,
		LogLevel:       "info",
		CORSOrigins:    []string{"*"},
	}
}

// Load builds the config from defaults, then the optional YAML file named by
// TODO_CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	mockSet := false
	if path := os.Getenv("TODO_CONFIG_FILE"); path != "" {
		set, err := cfg.loadFile(path)
		if err != nil {
			return nil, err
		}
		mockSet = set
	}

	var err error
	switch getEnv("TODO_MODE", string(cfg.Mode)) {
	case "gcp":
		cfg.Mode = ModeGCP
	default:
		cfg.Mode = ModeLocal
	}

	cfg.Port = getEnv("TODO_PORT", getEnv("PORT", cfg.Port))

	cfg.GCPProjectID = getEnv("TODO_GCP_PROJECT", cfg.GCPProjectID)
	cfg.GCPLocation = getEnv("TODO_GCP_LOCATION", cfg.GCPLocation)
	cfg.ModelName = getEnv("TODO_MODEL_NAME", cfg.ModelName)

	cfg.StorageBackend = strings.ToLower(getEnv("TODO_STORAGE_BACKEND", cfg.StorageBackend))
	cfg.SQLitePath = getEnv("TODO_SQLITE_PATH", cfg.SQLitePath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	if !mockSet {
		cfg.UseMockLLM = cfg.Mode == ModeLocal
	}
	cfg.UseMockLLM = getBoolEnv("TODO_USE_MOCK_LLM", cfg.UseMockLLM)

	cfg.EventTransport = strings.ToLower(getEnv("TODO_EVENT_TRANSPORT", cfg.EventTransport))
	if cfg.DaprEndpoint == "" {
		cfg.DaprEndpoint = "http://localhost:" + getEnv("DAPR_HTTP_PORT", "3500")
	}
	cfg.DaprEndpoint = getEnv("DAPR_HTTP_ENDPOINT", cfg.DaprEndpoint)
	cfg.PubsubName = getEnv("DAPR_PUBSUB_NAME", cfg.PubsubName)
	cfg.EventsTopic = getEnv("TODO_EVENTS_TOPIC", cfg.EventsTopic)
	if cfg.PublishRetries, err = getIntEnv("TODO_PUBLISH_RETRIES", cfg.PublishRetries); err != nil {
		return nil, err
	}

	if cfg.HistoryLimit, err = getIntEnv("TODO_HISTORY_LIMIT", cfg.HistoryLimit); err != nil {
		return nil, err
	}
	cfg.LogLevel = getEnv("TODO_LOG_LEVEL", cfg.LogLevel)
	cfg.CORSOrigins = getListEnv("TODO_CORS_ORIGINS", cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file on cfg. It reports whether the file set
// use_mock_llm, whose default depends on the final mode.
func (c *Config) loadFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return false, fmt.Errorf("parse config file %s: %w", path, err)
	}

	var probe struct {
		UseMockLLM *bool `yaml:"use_mock_llm"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return false, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return probe.UseMockLLM != nil, nil
}

// Validate checks the combinations the composition root relies on.
func (c *Config) Validate() error {
	var errs []error

	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		errs = append(errs, errors.New("TODO_GCP_PROJECT must be set in gcp mode"))
	}

	switch c.StorageBackend {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres storage backend"))
		}
	case StorageFirestore:
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("TODO_GCP_PROJECT is required for the firestore storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.StorageBackend))
	}

	switch c.EventTransport {
	case TransportLocal, TransportDapr:
	default:
		errs = append(errs, fmt.Errorf("unknown event transport %q", c.EventTransport))
	}

	if c.PublishRetries < 1 {
		errs = append(errs, errors.New("publish retries must be at least 1"))
	}
	if c.HistoryLimit < 1 {
		errs = append(errs, errors.New("history limit must be at least 1"))
	}
	if !c.UseMockLLM && c.GCPProjectID == "" {
		errs = append(errs, errors.New("TODO_GCP_PROJECT is required unless the mock LLM is used"))
	}

	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
