package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/atomdom/internal/errors"
	"github.com/vango-dev/atomdom/pkg/atom"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "atomdom.json"

	// YAMLConfigFileName is the YAML alternative, read when there is no
	// atomdom.json.
	YAMLConfigFileName = "atomdom.yaml"

	// DefaultAddr is the default serve address.
	DefaultAddr = "localhost:3000"

	// DefaultStreamPath is the default patch stream endpoint.
	DefaultStreamPath = "/stream"

	// DefaultMetricsPath is the default Prometheus endpoint.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "atomdom"

	// DefaultWriteTimeout is the default stream write timeout.
	DefaultWriteTimeout = "10s"
)

// Config represents atomdom.json or atomdom.yaml.
type Config struct {
	// Runtime configures the reactive runtime.
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`

	// Log configures logging.
	Log LogConfig `json:"log" yaml:"log"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Server configures the serve command.
	Server ServerConfig `json:"server" yaml:"server"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// RuntimeConfig configures the runtime and the applier.
type RuntimeConfig struct {
	// MaxChainedFlushes bounds flushes caused only by writes made during
	// the previous flush. A negative value disables the bound.
	MaxChainedFlushes int `json:"maxChainedFlushes,omitempty" yaml:"maxChainedFlushes,omitempty"`

	// MicrotaskBudget caps microtasks per loop turn. Zero is unbounded.
	MicrotaskBudget int `json:"microtaskBudget,omitempty" yaml:"microtaskBudget,omitempty"`

	// Strict makes unbound patch targets panic.
	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// MetricsConfig configures metrics.
type MetricsConfig struct {
	// Enabled exposes the Prometheus endpoint.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the endpoint path.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// StreamPath is the websocket endpoint for patch frames.
	StreamPath string `json:"streamPath,omitempty" yaml:"streamPath,omitempty"`

	// Title is the page title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// WriteTimeout bounds each frame write (e.g., "10s").
	WriteTimeout string `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`

	// AllowedOrigins restricts websocket origins. Empty allows all.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			MaxChainedFlushes: atom.DefaultMaxChainedFlushes,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      DefaultMetricsPath,
			Namespace: DefaultNamespace,
		},
		Server: ServerConfig{
			Addr:         DefaultAddr,
			StreamPath:   DefaultStreamPath,
			Title:        "atomdom",
			WriteTimeout: DefaultWriteTimeout,
		},
	}
}

// Load reads atomdom.json from dir, falling back to atomdom.yaml.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if yamlPath := filepath.Join(dir, YAMLConfigFileName); fileExists(yamlPath) {
			path = yamlPath
		}
	}
	cfg, err := LoadFile(path)
	if err != nil && os.IsNotExist(stderrors.Unwrap(err)) {
		return nil, errors.New("E100").
			WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + dir)
	}
	return cfg, err
}

// LoadFile reads and validates the config at path. Files ending in .yaml
// or .yml are parsed as YAML, anything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				Wrap(err)
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			d := errors.New("E101").Wrap(err).
				WithSuggestion("Check that " + filepath.Base(path) + " is valid YAML")
			if line := yamlErrorLine(err); line > 0 {
				d = d.WithLocation(path, line, 0)
			}
			return nil, d
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithJSONError(path, data, err).
			WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config back to where it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the config to path, as YAML when path ends in .yaml or
// .yml.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E101").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E101").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

func (c *Config) applyDefaults() {
	if c.Runtime.MaxChainedFlushes == 0 {
		c.Runtime.MaxChainedFlushes = atom.DefaultMaxChainedFlushes
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.StreamPath == "" {
		c.Server.StreamPath = DefaultStreamPath
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, ok := parseLevel(c.Log.Level); !ok {
		return invalid("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format must be text or json; got %q", c.Log.Format)
	}
	if c.Runtime.MicrotaskBudget < 0 {
		return invalid("runtime.microtaskBudget must not be negative")
	}
	if !strings.HasPrefix(c.Server.StreamPath, "/") {
		return invalid("server.streamPath must start with /; got %q", c.Server.StreamPath)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path must start with /; got %q", c.Metrics.Path)
	}
	if c.Metrics.Enabled && c.Metrics.Path == c.Server.StreamPath {
		return invalid("metrics.path and server.streamPath must differ")
	}
	if d, err := time.ParseDuration(c.Server.WriteTimeout); err != nil || d <= 0 {
		return invalid("server.writeTimeout must be a positive duration; got %q", c.Server.WriteTimeout)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var yamlLineRE = regexp.MustCompile(`line (\d+)`)

// yamlErrorLine extracts the first line number from a yaml.v3 error.
func yamlErrorLine(err error) int {
	m := yamlLineRE.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func invalid(format string, args ...any) error {
	return errors.New("E102").WithDetail(fmt.Sprintf(format, args...))
}

// WriteTimeout returns the parsed stream write timeout.
func (c *Config) WriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.WriteTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultWriteTimeout)
	}
	return d
}

// Logger builds a logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
