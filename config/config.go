package config

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"8089"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"http://localhost:5173"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"3"`

	// dbt project
	DbtProjectDir   string `env:"DBT_PROJECT_DIR" env-default:"."`
	DbtTargetDir    string `env:"DBT_TARGET_DIR" env-default:"target"`
	DbtManifestPath string `env:"DBT_MANIFEST_PATH" env-default:""`
	DbtCatalogPath  string `env:"DBT_CATALOG_PATH" env-default:""`

	// Data model files
	DataModelPath    string `env:"DATA_MODEL_PATH" env-default:"data_model.yml"`
	CanvasLayoutPath string `env:"CANVAS_LAYOUT_PATH" env-default:"canvas_layout.yml"`

	// Inference
	InferNamingHeuristics      bool `env:"INFER_NAMING_HEURISTICS" env-default:"false"`
	AutoBootstrapRelationships bool `env:"AUTO_BOOTSTRAP_RELATIONSHIPS" env-default:"true"`

	// Tracing
	TracingEnabled bool   `env:"TRACING_ENABLED" env-default:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" env-default:""`
	OTLPProtocol   string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure   bool   `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads an optional .env file and the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ManifestPath is the manifest location, relative paths resolved against the project dir
func (c *Config) ManifestPath() string {
	if c.DbtManifestPath != "" {
		return c.resolve(c.DbtManifestPath)
	}
	return c.resolve(filepath.Join(c.DbtTargetDir, "manifest.json"))
}

// CatalogPath is the catalog location, relative paths resolved against the project dir
func (c *Config) CatalogPath() string {
	if c.DbtCatalogPath != "" {
		return c.resolve(c.DbtCatalogPath)
	}
	return c.resolve(filepath.Join(c.DbtTargetDir, "catalog.json"))
}

func (c *Config) DataModelFile() string {
	return c.resolve(c.DataModelPath)
}

func (c *Config) CanvasLayoutFile() string {
	return c.resolve(c.CanvasLayoutPath)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DbtProjectDir, path)
}
