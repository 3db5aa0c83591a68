// config.go - Traversal tuning and file-based configuration

package report

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default traversal limits.
const (
	DefaultArrayPageSize   = 100
	DefaultCursorThreshold = 1000
	DefaultCursorPageSize  = 1000
)

// CursorAlways is the CursorThreshold that selects cursor mode for every
// result. A zero threshold means the default, so it cannot express this.
const CursorAlways int64 = -1

// Config holds the traversal limits of a Walker.
//
// ArrayPageSize caps the documents held in memory by one array-mode page.
// CursorThreshold is the estimated result count above which cursor mode is
// selected, or CursorAlways. CursorPageSize caps the documents served by
// one cursor before it is closed and re-opened from the watermark. The three
// limits are independent.
type Config struct {
	ArrayPageSize   int64 `yaml:"array_page_size"`
	CursorThreshold int64 `yaml:"cursor_threshold"`
	CursorPageSize  int64 `yaml:"cursor_page_size"`
}

// UnmarshalYAML decodes traversal limits, rejecting an explicit zero
// cursor_threshold that would otherwise silently become the default.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ArrayPageSize   int64  `yaml:"array_page_size"`
		CursorThreshold *int64 `yaml:"cursor_threshold"`
		CursorPageSize  int64  `yaml:"cursor_page_size"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.CursorThreshold != nil && *raw.CursorThreshold == 0 {
		return errZeroThreshold
	}

	*c = Config{ArrayPageSize: raw.ArrayPageSize, CursorPageSize: raw.CursorPageSize}
	if raw.CursorThreshold != nil {
		c.CursorThreshold = *raw.CursorThreshold
	}
	return nil
}

var errZeroThreshold = errors.Errorf("cursor_threshold must not be 0, use %d to always read through cursors", CursorAlways)

// DefaultConfig returns the default traversal limits
func DefaultConfig() Config {
	return Config{
		ArrayPageSize:   DefaultArrayPageSize,
		CursorThreshold: DefaultCursorThreshold,
		CursorPageSize:  DefaultCursorPageSize,
	}
}

// withDefaults fills zero values with defaults
func (c Config) withDefaults() Config {
	if c.ArrayPageSize == 0 {
		c.ArrayPageSize = DefaultArrayPageSize
	}
	if c.CursorThreshold == 0 {
		c.CursorThreshold = DefaultCursorThreshold
	}
	if c.CursorPageSize == 0 {
		c.CursorPageSize = DefaultCursorPageSize
	}
	return c
}

// Validate reports the first limit that cannot drive a traversal.
func (c Config) Validate() error {
	if c.ArrayPageSize <= 0 {
		return errors.Errorf("array_page_size must be positive, got %d", c.ArrayPageSize)
	}
	if c.CursorThreshold < CursorAlways {
		return errors.Errorf("cursor_threshold must be %d or more, got %d", CursorAlways, c.CursorThreshold)
	}
	if c.CursorPageSize <= 0 {
		return errors.Errorf("cursor_page_size must be positive, got %d", c.CursorPageSize)
	}
	return nil
}

// MongoConfig describes the MongoDB deployment exports read from.
type MongoConfig struct {
	URI              string        `yaml:"uri"`
	Database         string        `yaml:"database"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// MetricsConfig controls traversal metrics. Textfile, when set, receives the
// metrics in the prometheus text format once the process is done.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Textfile  string `yaml:"textfile"`
}

// LogConfig selects the level and handler of the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// FileConfig is the on-disk configuration of an export process.
type FileConfig struct {
	Mongo     MongoConfig   `yaml:"mongo"`
	Traversal Config        `yaml:"traversal"`
	Metrics   MetricsConfig `yaml:"metrics"`
	Log       LogConfig     `yaml:"log"`
}

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration file %q", path)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "configuration file %q", path)
	}
	return cfg, nil
}

// ParseConfig decodes YAML configuration, applies defaults and validates it.
func ParseConfig(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides named MGOEXPORT_SECTION_FIELD. Environment
// variables take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*FileConfig, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed after environment overrides")
	}
	return cfg, nil
}

// DefaultFileConfig returns a configuration with every default applied
func DefaultFileConfig() *FileConfig {
	cfg := &FileConfig{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields of cfg.
func ApplyDefaults(cfg *FileConfig) {
	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Mongo.ConnectTimeout == 0 {
		cfg.Mongo.ConnectTimeout = 10 * time.Second
	}
	if cfg.Mongo.OperationTimeout == 0 {
		cfg.Mongo.OperationTimeout = defaultOperationTimeout
	}
	cfg.Traversal = cfg.Traversal.withDefaults()
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "mgoexport"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate checks a fully defaulted configuration.
func Validate(cfg *FileConfig) error {
	if cfg.Mongo.ConnectTimeout < 0 {
		return errors.New("mongo.connect_timeout must not be negative")
	}
	if cfg.Mongo.OperationTimeout < 0 {
		return errors.New("mongo.operation_timeout must not be negative")
	}
	if err := cfg.Traversal.Validate(); err != nil {
		return errors.Wrap(err, "traversal")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("log.format must be \"text\" or \"json\", got %q", cfg.Log.Format)
	}
	return nil
}

// applyEnvOverrides applies MGOEXPORT_* variables to cfg.
func applyEnvOverrides(cfg *FileConfig) error {
	if val := os.Getenv("MGOEXPORT_MONGO_URI"); val != "" {
		cfg.Mongo.URI = val
	}
	if val := os.Getenv("MGOEXPORT_MONGO_DATABASE"); val != "" {
		cfg.Mongo.Database = val
	}
	if val := os.Getenv("MGOEXPORT_MONGO_OPERATION_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return errors.Wrap(err, "MGOEXPORT_MONGO_OPERATION_TIMEOUT")
		}
		cfg.Mongo.OperationTimeout = d
	}

	limits := []struct {
		name  string
		field *int64
	}{
		{"MGOEXPORT_TRAVERSAL_ARRAY_PAGE_SIZE", &cfg.Traversal.ArrayPageSize},
		{"MGOEXPORT_TRAVERSAL_CURSOR_THRESHOLD", &cfg.Traversal.CursorThreshold},
		{"MGOEXPORT_TRAVERSAL_CURSOR_PAGE_SIZE", &cfg.Traversal.CursorPageSize},
	}
	for _, limit := range limits {
		val := os.Getenv(limit.name)
		if val == "" {
			continue
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return errors.Wrap(err, limit.name)
		}
		if n == 0 && limit.field == &cfg.Traversal.CursorThreshold {
			return errors.Wrap(errZeroThreshold, limit.name)
		}
		*limit.field = n
	}

	if val := os.Getenv("MGOEXPORT_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	return nil
}
