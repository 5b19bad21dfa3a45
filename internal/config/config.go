package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/evanschultz/selftrack/internal/domain"
	"github.com/evanschultz/selftrack/internal/rules"
)

// ReportFormat names one report renderer.
type ReportFormat string

// ReportFormatMarkdown and related constants define the supported renderers.
const (
	ReportFormatMarkdown ReportFormat = "markdown"
	ReportFormatTerminal ReportFormat = "terminal"
	ReportFormatJSON     ReportFormat = "json"
	ReportFormatXLSX     ReportFormat = "xlsx"
)

// ReportFormats returns every supported renderer name.
func ReportFormats() []ReportFormat {
	return []ReportFormat{ReportFormatMarkdown, ReportFormatTerminal, ReportFormatJSON, ReportFormatXLSX}
}

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Report   ReportConfig   `toml:"report"`
	Tracking TrackingConfig `toml:"tracking"`
	Server   ServerConfig   `toml:"server"`
	Rules    []RuleConfig   `toml:"rules"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ReportConfig struct {
	OperatingSystem string       `toml:"operating_system"` // empty = current platform
	TimeZone        string       `toml:"time_zone"`        // IANA name, "Local" or "UTC"
	ExportDir       string       `toml:"export_dir"`
	DefaultFormat   ReportFormat `toml:"default_format"`
}

type TrackingConfig struct {
	PollInterval         string `toml:"poll_interval"`
	IdleThresholdSeconds int    `toml:"idle_threshold_seconds"`
	RawDir               string `toml:"raw_dir"`
	WriteRaw             bool   `toml:"write_raw"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
	Metrics     bool   `toml:"metrics"`
}

// RuleConfig declares one custom classification rule.
type RuleConfig struct {
	Family         string   `toml:"family"`
	OS             string   `toml:"os"`
	Executables    []string `toml:"executables"`
	Program        string   `toml:"program"`
	DetailsStrip   []string `toml:"details_strip"`
	ProjectPattern string   `toml:"project_pattern"`
	DetailsPattern string   `toml:"details_pattern"`
}

// Default returns the configuration used when no file overrides it.
func Default(dbPath, exportDir, rawDir string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".selftrack/log",
			},
		},
		Report: ReportConfig{
			TimeZone:      "Local",
			ExportDir:     exportDir,
			DefaultFormat: ReportFormatTerminal,
		},
		Tracking: TrackingConfig{
			PollInterval:         "1s",
			IdleThresholdSeconds: 20,
			RawDir:               rawDir,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
			Metrics:     true,
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if _, err := c.OperatingSystem(); err != nil {
		return fmt.Errorf("invalid report.operating_system: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid report.time_zone: %w", err)
	}
	if !slices.Contains(ReportFormats(), c.Report.DefaultFormat) {
		return fmt.Errorf("invalid report.default_format: %q", c.Report.DefaultFormat)
	}

	interval, err := c.PollInterval()
	if err != nil {
		return fmt.Errorf("invalid tracking.poll_interval: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("tracking.poll_interval must be > 0")
	}
	if c.Tracking.IdleThresholdSeconds <= 0 {
		return fmt.Errorf("tracking.idle_threshold_seconds must be > 0")
	}

	if strings.TrimSpace(c.Server.APIEndpoint) != "" && strings.TrimSpace(c.Server.APIEndpoint) == strings.TrimSpace(c.Server.MCPEndpoint) {
		return errors.New("server.api_endpoint and server.mcp_endpoint must differ")
	}

	if _, err := c.CustomRules(); err != nil {
		return err
	}
	return nil
}

// OperatingSystem resolves the platform tag used for rule resolution.
func (c Config) OperatingSystem() (domain.OperatingSystem, error) {
	if strings.TrimSpace(c.Report.OperatingSystem) == "" {
		return domain.CurrentOperatingSystem()
	}
	return domain.ParseOperatingSystem(c.Report.OperatingSystem)
}

// Location resolves the time zone used for report dates.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Report.TimeZone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// PollInterval parses the tracker poll interval.
func (c Config) PollInterval() (time.Duration, error) {
	raw := strings.TrimSpace(c.Tracking.PollInterval)
	if raw == "" {
		return time.Second, nil
	}
	return time.ParseDuration(raw)
}

// IdleThreshold returns the idle threshold as a duration.
func (c Config) IdleThreshold() time.Duration {
	return time.Duration(c.Tracking.IdleThresholdSeconds) * time.Second
}

// CustomRules compiles the configured rules in declaration order.
func (c Config) CustomRules() ([]domain.Rule, error) {
	defs := make([]rules.Definition, 0, len(c.Rules))
	for _, rc := range c.Rules {
		defs = append(defs, rules.Definition{
			Family:          rc.Family,
			OperatingSystem: rc.OS,
			Executables:     append([]string(nil), rc.Executables...),
			Program:         rc.Program,
			DetailsStrip:    append([]string(nil), rc.DetailsStrip...),
			ProjectPattern:  rc.ProjectPattern,
			DetailsPattern:  rc.DetailsPattern,
		})
	}
	return rules.FromDefinitions(defs)
}

// Catalog builds the rule catalog from the configured rules and the built-in families.
func (c Config) Catalog() (*rules.Catalog, error) {
	custom, err := c.CustomRules()
	if err != nil {
		return nil, err
	}
	return rules.WithCustom(custom)
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
