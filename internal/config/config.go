package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for Regenie.
type Config struct {
	General       GeneralConfig       `json:"general"`
	Slack         SlackConfig         `json:"slack"`
	Model         ModelConfig         `json:"model"`
	Tools         ToolsConfig         `json:"tools"`
	Personalities PersonalitiesConfig `json:"personalities"`
	Store         StoreConfig         `json:"store"`
	Metrics       MetricsConfig       `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel"`  // debug | info | warn | error
	LogFormat string `json:"logFormat"` // text | json | pretty
}

type SlackConfig struct {
	BotToken      string `json:"botToken"`
	SigningSecret string `json:"signingSecret"`
	AppToken      string `json:"appToken,omitempty"` // required for Socket Mode
	Mode          string `json:"mode"`               // "http" | "socket"
	ListenAddr    string `json:"listenAddr"`
	EventsPath    string `json:"eventsPath"`
	// Async acknowledges the webhook before the event is processed. When
	// false, handlers run inline and failures surface as HTTP 500.
	Async                bool `json:"async"`
	ShutdownGraceSeconds int  `json:"shutdownGraceSeconds"`
}

type ModelConfig struct {
	APIBase        string  `json:"apiBase"`
	APIKey         string  `json:"apiKey"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"maxTokens"`
	MaxSteps       int     `json:"maxSteps"`
	MaxAttempts    int     `json:"maxAttempts"`
	RetryDelayMs   int     `json:"retryDelayMs"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
	RatePerMinute  float64 `json:"ratePerMinute"` // 0 = unlimited
}

type ToolsConfig struct {
	Weather    WeatherToolConfig    `json:"weather"`
	Exa        ExaConfig            `json:"exa"`
	Contents   ContentsToolConfig   `json:"contents"`
	Search     SearchToolConfig     `json:"search"`
	Transcript TranscriptToolConfig `json:"transcript"`
}

type WeatherToolConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

type ExaConfig struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
}

type ContentsToolConfig struct {
	Enabled       bool   `json:"enabled"`
	Fetcher       string `json:"fetcher"` // "exa" | "browser" | "http"
	MaxCharacters int    `json:"maxCharacters"`

	// BrowserProfileDir is the Chrome user data dir for the browser fetcher.
	BrowserProfileDir string `json:"browserProfileDir,omitempty"`
}

type SearchToolConfig struct {
	Enabled       bool `json:"enabled"`
	NumResults    int  `json:"numResults"`
	SnippetLength int  `json:"snippetLength"`
}

type TranscriptToolConfig struct {
	Enabled    bool   `json:"enabled"`
	ApifyToken string `json:"apifyToken"`
	ApifyBase  string `json:"apifyBase"`
	Actor      string `json:"actor"`
	Language   string `json:"language"`
}

type PersonalitiesConfig struct {
	// File overrides the built-in personality table (YAML). Empty = built-in.
	File string `json:"file,omitempty"`
}

type StoreConfig struct {
	Enabled        bool   `json:"enabled"`
	DBPath         string `json:"dbPath"`
	RetentionHours int    `json:"retentionHours"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DefaultConfigDir returns the default config directory (~/.regenie).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".regenie"
	}
	return filepath.Join(home, ".regenie")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads the config file at path, expands ${VAR} references and applies
// environment overrides. A missing file is not an error: defaults plus the
// environment are used instead, which is how the bot usually runs in
// containers.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	default:
		data = []byte(ExpandEnvVars(string(data)))
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	ApplyEnv(cfg)
	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.Personalities.File = ExpandPath(cfg.Personalities.File)
	cfg.Tools.Contents.BrowserProfileDir = ExpandPath(cfg.Tools.Contents.BrowserProfileDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and the log level from well-known environment
// variables. Empty variables are ignored.
func ApplyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	set(&cfg.Slack.SigningSecret, "SLACK_SIGNING_SECRET")
	set(&cfg.Slack.AppToken, "SLACK_APP_TOKEN")
	set(&cfg.Model.APIKey, "OPENAI_API_KEY")
	set(&cfg.Tools.Exa.APIKey, "EXA_API_KEY")
	set(&cfg.Tools.Transcript.ApifyToken, "APIFY_API_TOKEN")
	set(&cfg.General.LogLevel, "REGENIE_LOG_LEVEL")
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has usable values. Missing secrets are
// not reported here; `regenie doctor` and `serve` check those.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "text", "json", "pretty":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json, pretty")
	}

	switch cfg.Slack.Mode {
	case "http", "socket":
	default:
		errs = append(errs, "slack.mode must be one of: http, socket")
	}
	if !strings.HasPrefix(cfg.Slack.EventsPath, "/") {
		errs = append(errs, "slack.eventsPath must start with /")
	}

	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		errs = append(errs, "model.temperature must be between 0 and 2")
	}
	if cfg.Model.MaxTokens < 1 {
		errs = append(errs, "model.maxTokens must be >= 1")
	}
	if cfg.Model.MaxSteps < 1 || cfg.Model.MaxSteps > 50 {
		errs = append(errs, "model.maxSteps must be between 1 and 50")
	}
	if cfg.Model.MaxAttempts < 1 || cfg.Model.MaxAttempts > 10 {
		errs = append(errs, "model.maxAttempts must be between 1 and 10")
	}
	if cfg.Model.RetryDelayMs < 1 {
		errs = append(errs, "model.retryDelayMs must be >= 1")
	}
	if cfg.Model.RatePerMinute < 0 {
		errs = append(errs, "model.ratePerMinute must be >= 0")
	}

	switch cfg.Tools.Contents.Fetcher {
	case "exa", "browser", "http":
	default:
		errs = append(errs, "tools.contents.fetcher must be one of: exa, browser, http")
	}
	if cfg.Tools.Contents.MaxCharacters < 1 {
		errs = append(errs, "tools.contents.maxCharacters must be >= 1")
	}
	if cfg.Tools.Search.NumResults < 1 || cfg.Tools.Search.NumResults > 10 {
		errs = append(errs, "tools.search.numResults must be between 1 and 10")
	}
	if cfg.Tools.Search.SnippetLength < 1 {
		errs = append(errs, "tools.search.snippetLength must be >= 1")
	}

	if cfg.Store.Enabled && cfg.Store.DBPath == "" {
		errs = append(errs, "store.dbPath is required when the store is enabled")
	}
	if cfg.Store.RetentionHours < 0 {
		errs = append(errs, "store.retentionHours must not be negative")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
