// Package config loads newsdesk settings from defaults, YAML files,
// NEWSDESK_ environment variables and --set overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/newsdesk/pkg/mcp"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "NEWSDESK_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Crew      CrewConfig      `koanf:"crew"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Tools     ToolsConfig     `koanf:"tools"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Audit     AuditConfig     `koanf:"audit"`
	Output    OutputConfig    `koanf:"output"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // ollama, gemini, openai, qwen, anthropic, mock, echo
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
}

// CrewConfig selects the crew to run: a builtin name, or a directory
// holding roles.yaml, steps.yaml and crew.yaml.
type CrewConfig struct {
	Name string `koanf:"name"`
	Dir  string `koanf:"dir"`
}

type PipelineConfig struct {
	MaxRounds     int           `koanf:"max_rounds"`
	StepTimeout   time.Duration `koanf:"step_timeout"`
	MaxAttempts   int           `koanf:"max_attempts"`
	MaxIterations int           `koanf:"max_iterations"`
}

type ToolsConfig struct {
	Serper     SerperConfig `koanf:"serper"`
	DuckDuckGo string       `koanf:"duckduckgo_url"`
	Fetch      FetchConfig  `koanf:"fetch"`
	MCP        MCPConfig    `koanf:"mcp"`
}

type SerperConfig struct {
	APIKey string `koanf:"api_key"`
	URL    string `koanf:"url"`
}

type FetchConfig struct {
	Timeout  time.Duration `koanf:"timeout"`
	MaxBytes int           `koanf:"max_bytes"`
}

// MCPConfig maps capability ids to the MCP servers that serve them.
type MCPConfig struct {
	Servers map[string]mcp.ServerConfig `koanf:"servers"`
}

type TelemetryConfig struct {
	Exporter           string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint       string `koanf:"otlp_endpoint"`
	OTLPInsecure       bool   `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int    `koanf:"otlp_timeout_seconds"`
}

type AuditConfig struct {
	// Path of the SQLite database. Empty keeps events in memory.
	Path string `koanf:"path"`
}

type OutputConfig struct {
	Dir  string `koanf:"dir"`
	Save bool   `koanf:"save"`
}

var defaults = map[string]any{
	"log.level":                      "info",
	"log.format":                     "text",
	"llm.provider":                   "ollama",
	"llm.temperature":                0.2,
	"crew.name":                      "news",
	"pipeline.max_rounds":            10,
	"pipeline.step_timeout":          "5m",
	"pipeline.max_attempts":          1,
	"pipeline.max_iterations":        8,
	"tools.fetch.timeout":            "30s",
	"tools.fetch.max_bytes":          20000,
	"telemetry.exporter":             "none",
	"telemetry.otlp_endpoint":        "localhost:4317",
	"telemetry.otlp_insecure":        true,
	"telemetry.otlp_timeout_seconds": 30,
	"output.dir":                     ".",
	"output.save":                    true,
}

// Load reads defaults, the file at path (if any) and the environment.
func Load(path string) (*Config, error) {
	return LoadWithProfile(path, "")
}

// LoadWithProfile is Load with a profile overlay: config.dev.yaml next to
// config.yaml for profile "dev". A missing overlay is ignored.
func LoadWithProfile(path, profile string) (*Config, error) {
	k, err := load(path, profile, nil)
	if err != nil {
		return nil, err
	}
	return unmarshal(k)
}

// LoadWithCLI loads configuration using --config, --profile (or --env) and
// repeated --set key=value flags found in args. Other args are ignored.
func LoadWithCLI(args []string) (*Config, error) {
	path, profile, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	k, err := load(path, profile, sets)
	if err != nil {
		return nil, err
	}
	return unmarshal(k)
}

func load(path, profile string, sets []override) (*koanf.Koanf, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if overlay := profileConfigPath(path, profile); overlay != "" {
			if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile config %s: %w", overlay, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for _, o := range sets {
		if err := k.Set(o.key, o.value); err != nil {
			return nil, fmt.Errorf("apply --set %s: %w", o.key, err)
		}
	}
	return k, nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyWellKnownEnv(&cfg)
	return &cfg, nil
}

// envKey maps NEWSDESK_LLM_API_KEY to llm.api_key: the first underscore
// ends the section name and a double underscore nests one level deeper
// (NEWSDESK_TOOLS_SERPER__API_KEY is tools.serper.api_key).
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(s, "_")
	if !ok {
		return section
	}
	return section + "." + strings.ReplaceAll(rest, "__", ".")
}

// applyWellKnownEnv fills API keys from the variables their services
// document when the config leaves them empty.
func applyWellKnownEnv(cfg *Config) {
	if cfg.Tools.Serper.APIKey == "" {
		cfg.Tools.Serper.APIKey = os.Getenv("SERPER_API_KEY")
	}
	if cfg.LLM.APIKey != "" {
		return
	}
	for _, name := range providerKeyEnv[strings.ToLower(cfg.LLM.Provider)] {
		if v := os.Getenv(name); v != "" {
			cfg.LLM.APIKey = v
			return
		}
	}
}

var providerKeyEnv = map[string][]string{
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"qwen":      {"DASHSCOPE_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
}

// profileConfigPath returns the overlay file for profile if it exists.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

type override struct {
	key   string
	value any
}

func parseCLIOverrides(args []string) (path, profile string, sets []override, err error) {
	value := func(i int, flag string) (string, int, error) {
		arg := args[i]
		if v, ok := strings.CutPrefix(arg, flag+"="); ok {
			return v, i, nil
		}
		if i+1 >= len(args) {
			return "", i, fmt.Errorf("%s requires a value", flag)
		}
		return args[i+1], i + 1, nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || strings.HasPrefix(arg, "--config="):
			if path, i, err = value(i, "--config"); err != nil {
				return "", "", nil, err
			}
		case arg == "--profile" || strings.HasPrefix(arg, "--profile="):
			if profile, i, err = value(i, "--profile"); err != nil {
				return "", "", nil, err
			}
		case arg == "--env" || strings.HasPrefix(arg, "--env="):
			if profile, i, err = value(i, "--env"); err != nil {
				return "", "", nil, err
			}
		case arg == "--set" || strings.HasPrefix(arg, "--set="):
			var raw string
			if raw, i, err = value(i, "--set"); err != nil {
				return "", "", nil, err
			}
			o, perr := parseSet(raw)
			if perr != nil {
				return "", "", nil, perr
			}
			sets = append(sets, o)
		}
	}
	return path, profile, sets, nil
}

// parseSet splits key=value. JSON objects and arrays are decoded; other
// values stay strings and are converted when the config is decoded.
func parseSet(raw string) (override, error) {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return override{}, fmt.Errorf("invalid --set %q: want key=value", raw)
	}
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "{") || strings.HasPrefix(value, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			return override{}, fmt.Errorf("invalid --set %q: %w", raw, err)
		}
		return override{key: key, value: decoded}, nil
	}
	return override{key: key, value: value}, nil
}
