// Package config provides process-wide access to the orchestrator's YAML
// configuration (spec C1): prompt paths, timeouts, include/exclude globs,
// and the hook settings file. Configuration is loaded from (highest to
// lowest priority): command-line flags, environment variables
// (ORCHESTRATOR_*), project config (.orchestrator/config.yaml in cwd), home
// config (~/.orchestrator/config.yaml), and compiled-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all orchestrator configuration (spec C1, §6.6, §6.7).
type Config struct {
	Output  string `yaml:"output" json:"output" validate:"oneof=table json yaml"`
	BaseDir string `yaml:"base_dir" json:"base_dir" validate:"required"`
	Verbose bool   `yaml:"verbose" json:"verbose"`

	PromptsDir string `yaml:"prompts_dir" json:"prompts_dir" validate:"required"`

	Providers ProvidersConfig `yaml:"providers" json:"providers"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts" json:"timeouts"`
	Moderator ModeratorConfig `yaml:"moderator" json:"moderator"`
	Audit     AuditConfig     `yaml:"audit" json:"audit"`
	Tasks     TasksConfig     `yaml:"tasks" json:"tasks"`
	Docs      DocsConfig      `yaml:"docs" json:"docs"`
	Hooks     HooksConfig     `yaml:"hooks" json:"hooks"`
	Executor  ExecutorConfig  `yaml:"executor" json:"executor"`
}

// ProvidersConfig maps a provider tag to the CLI command path configured
// for it (spec §6.5 "The command path itself comes from config under the
// provider's key").
type ProvidersConfig struct {
	Claude string `yaml:"claude" json:"claude"`
	Qwen   string `yaml:"qwen" json:"qwen"`
	Gemini string `yaml:"gemini" json:"gemini"`
}

// TimeoutsConfig holds the per-kind default timeouts (spec §5).
type TimeoutsConfig struct {
	TaskSeconds      int `yaml:"task_seconds" json:"task_seconds" validate:"gt=0"`
	DocSeconds       int `yaml:"doc_seconds" json:"doc_seconds" validate:"gt=0"`
	AuditSeconds     int `yaml:"audit_seconds" json:"audit_seconds" validate:"gt=0"`
	FrameworkSeconds int `yaml:"framework_seconds" json:"framework_seconds" validate:"gt=0"`
}

func (t TimeoutsConfig) Task() time.Duration      { return time.Duration(t.TaskSeconds) * time.Second }
func (t TimeoutsConfig) Doc() time.Duration        { return time.Duration(t.DocSeconds) * time.Second }
func (t TimeoutsConfig) Audit() time.Duration      { return time.Duration(t.AuditSeconds) * time.Second }
func (t TimeoutsConfig) Framework() time.Duration  { return time.Duration(t.FrameworkSeconds) * time.Second }

// ModeratorConfig holds C5/C8 tuning (spec §4.5, §4.10).
type ModeratorConfig struct {
	CompletionEnabled       bool    `yaml:"completion_enabled" json:"completion_enabled"`
	MaxAttempts             int     `yaml:"max_attempts" json:"max_attempts" validate:"gt=0"`
	FirstOutputTimeoutSecs  float64 `yaml:"first_output_timeout_secs" json:"first_output_timeout_secs" validate:"gt=0"`
	MaxContextMessages      int     `yaml:"max_context_messages" json:"max_context_messages" validate:"gt=0"`
	MaxContextTokens        int     `yaml:"max_context_tokens" json:"max_context_tokens" validate:"gt=0"`
}

func (m ModeratorConfig) FirstOutputTimeout() time.Duration {
	return time.Duration(m.FirstOutputTimeoutSecs * float64(time.Second))
}

// AuditConfig holds C7 audit-executor settings (spec §4.6).
type AuditConfig struct {
	IncludePatterns []string `yaml:"include_patterns" json:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns" json:"exclude_patterns"`
	MaxWorkers      int      `yaml:"max_workers" json:"max_workers" validate:"gt=0,lte=8"`
	ReportDir       string   `yaml:"report_dir" json:"report_dir"`
}

// TasksConfig holds C7 task-executor settings (spec §4.7).
type TasksConfig struct {
	IncludePatterns  []string `yaml:"include_patterns" json:"include_patterns"`
	ExcludePatterns  []string `yaml:"exclude_patterns" json:"exclude_patterns"`
	FileLocking      bool     `yaml:"file_locking" json:"file_locking"`
	ModeratorEnabled bool     `yaml:"moderator_enabled" json:"moderator_enabled"`
}

// DocsConfig holds C7 doc-executor settings.
type DocsConfig struct {
	IncludePatterns []string `yaml:"include_patterns" json:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns" json:"exclude_patterns"`
}

// HooksConfig points at the YAML-declared hook deny-pattern files and
// greeting/prohibited-phrase lists used by §4.8/§4.9.
type HooksConfig struct {
	SettingsFile          string `yaml:"settings_file" json:"settings_file"`
	CommandDenyPatterns   string `yaml:"command_deny_patterns" json:"command_deny_patterns"`
	GreetingPatterns      string `yaml:"greeting_patterns" json:"greeting_patterns"`
	ProhibitedPhrases     string `yaml:"prohibited_phrases" json:"prohibited_phrases"`
	APILimitPatterns      string `yaml:"api_limit_patterns" json:"api_limit_patterns"`
	ResearchLineThreshold int    `yaml:"research_line_threshold" json:"research_line_threshold" validate:"gt=0"`
}

// ExecutorConfig holds executor-wide concurrency defaults (spec §5).
type ExecutorConfig struct {
	DefaultMaxWorkers int `yaml:"default_max_workers" json:"default_max_workers" validate:"gt=0"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:     "table",
		BaseDir:    ".agents/orchestrator",
		PromptsDir: "prompts",
		Providers: ProvidersConfig{
			Claude: "claude",
			Qwen:   "qwen",
			Gemini: "gemini",
		},
		Timeouts: TimeoutsConfig{
			TaskSeconds:      3600,
			DocSeconds:       600,
			AuditSeconds:     900,
			FrameworkSeconds: 120,
		},
		Moderator: ModeratorConfig{
			CompletionEnabled:      true,
			MaxAttempts:            2,
			FirstOutputTimeoutSecs: 3.5,
			MaxContextMessages:     100,
			MaxContextTokens:       100_000,
		},
		Audit: AuditConfig{
			IncludePatterns: []string{"**/*.py"},
			ExcludePatterns: []string{"**/node_modules/**", "**/.venv/**", "**/venv/**", "**/__pycache__/**", "**/.git/**"},
			MaxWorkers:      4,
			ReportDir:       "docs/audit",
		},
		Tasks: TasksConfig{
			IncludePatterns: []string{"**/*.md"},
			ExcludePatterns: []string{
				"**/README.md", "**/CLAUDE.md", "**/AGENTS.md",
				"**/feedback-*.md", "**/progress-*.md",
				"**/node_modules/**", "**/.git/**", "**/.venv/**", "**/venv/**",
				"**/__pycache__/**", "**/dist/**", "**/build/**",
			},
			FileLocking:      true,
			ModeratorEnabled: true,
		},
		Docs: DocsConfig{
			IncludePatterns: []string{"**/*.md"},
			ExcludePatterns: []string{"**/node_modules/**", "**/.git/**"},
		},
		Hooks: HooksConfig{
			SettingsFile:          "",
			CommandDenyPatterns:   "config/command-deny.yaml",
			GreetingPatterns:      "config/greetings.yaml",
			ProhibitedPhrases:     "config/prohibited-phrases.yaml",
			APILimitPatterns:      "config/api-limit.yaml",
			ResearchLineThreshold: 5,
		},
		Executor: ExecutorConfig{DefaultMaxWorkers: 4},
	}
}

// Source represents where a config value came from (recorded by Load in
// FieldSources).
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.orchestrator/config.yaml"
	SourceProject Source = ".orchestrator/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// FieldSources tracks, for a handful of headline scalar fields, which layer
// supplied the final value (spec §9 "process-wide config" — diagnostic
// support for `--hook`-less introspection).
type FieldSources struct {
	Output  Source
	BaseDir Source
	Verbose Source
}

// Load loads configuration with precedence: flags > env > project > home >
// defaults (spec C1).
func Load(flagOverrides *Config) (*Config, FieldSources, error) {
	cfg := Default()
	sources := FieldSources{Output: SourceDefault, BaseDir: SourceDefault, Verbose: SourceDefault}

	if home, err := loadFromPath(homeConfigPath()); err == nil && home != nil {
		cfg, sources = merge(cfg, home, sources, SourceHome)
	}
	if project, err := loadFromPath(projectConfigPath()); err == nil && project != nil {
		cfg, sources = merge(cfg, project, sources, SourceProject)
	}

	cfg, sources = applyEnv(cfg, sources)

	if flagOverrides != nil {
		cfg, sources = merge(cfg, flagOverrides, sources, SourceFlag)
	}

	if err := Validate(cfg); err != nil {
		return nil, sources, err
	}
	return cfg, sources, nil
}

// Validate runs struct-tag validation over Config, returning a ConfigError
// (spec §7 "ConfigError ... Hard fail at orchestrator startup") on failure.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

// ConfigError wraps a validation failure at startup (spec §7).
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("invalid configuration: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".orchestrator", "config.yaml")
}

func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("ORCHESTRATOR_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".orchestrator", "config.yaml")
}

func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge overlays non-zero-valued fields of src onto dst, recording which
// headline fields changed source. Not every field is overlaid:
// Docs.IncludePatterns, Docs.ExcludePatterns, the four Hooks pattern-file
// paths (CommandDenyPatterns, GreetingPatterns, ProhibitedPhrases,
// APILimitPatterns), Moderator.CompletionEnabled, Tasks.FileLocking and
// Tasks.ModeratorEnabled keep dst's value whatever src holds.
func merge(dst, src *Config, sources FieldSources, tag Source) (*Config, FieldSources) {
	if src.Output != "" {
		dst.Output = src.Output
		sources.Output = tag
	}
	if src.BaseDir != "" {
		dst.BaseDir = src.BaseDir
		sources.BaseDir = tag
	}
	if src.Verbose {
		dst.Verbose = true
		sources.Verbose = tag
	}
	if src.PromptsDir != "" {
		dst.PromptsDir = src.PromptsDir
	}
	if src.Providers.Claude != "" {
		dst.Providers.Claude = src.Providers.Claude
	}
	if src.Providers.Qwen != "" {
		dst.Providers.Qwen = src.Providers.Qwen
	}
	if src.Providers.Gemini != "" {
		dst.Providers.Gemini = src.Providers.Gemini
	}
	if src.Timeouts.TaskSeconds != 0 {
		dst.Timeouts.TaskSeconds = src.Timeouts.TaskSeconds
	}
	if src.Timeouts.DocSeconds != 0 {
		dst.Timeouts.DocSeconds = src.Timeouts.DocSeconds
	}
	if src.Timeouts.AuditSeconds != 0 {
		dst.Timeouts.AuditSeconds = src.Timeouts.AuditSeconds
	}
	if src.Timeouts.FrameworkSeconds != 0 {
		dst.Timeouts.FrameworkSeconds = src.Timeouts.FrameworkSeconds
	}
	if src.Moderator.MaxAttempts != 0 {
		dst.Moderator.MaxAttempts = src.Moderator.MaxAttempts
	}
	if src.Moderator.FirstOutputTimeoutSecs != 0 {
		dst.Moderator.FirstOutputTimeoutSecs = src.Moderator.FirstOutputTimeoutSecs
	}
	if src.Moderator.MaxContextMessages != 0 {
		dst.Moderator.MaxContextMessages = src.Moderator.MaxContextMessages
	}
	if src.Moderator.MaxContextTokens != 0 {
		dst.Moderator.MaxContextTokens = src.Moderator.MaxContextTokens
	}
	if len(src.Audit.IncludePatterns) > 0 {
		dst.Audit.IncludePatterns = src.Audit.IncludePatterns
	}
	if len(src.Audit.ExcludePatterns) > 0 {
		dst.Audit.ExcludePatterns = src.Audit.ExcludePatterns
	}
	if src.Audit.MaxWorkers != 0 {
		dst.Audit.MaxWorkers = src.Audit.MaxWorkers
	}
	if src.Audit.ReportDir != "" {
		dst.Audit.ReportDir = src.Audit.ReportDir
	}
	if len(src.Tasks.IncludePatterns) > 0 {
		dst.Tasks.IncludePatterns = src.Tasks.IncludePatterns
	}
	if len(src.Tasks.ExcludePatterns) > 0 {
		dst.Tasks.ExcludePatterns = src.Tasks.ExcludePatterns
	}
	if src.Hooks.SettingsFile != "" {
		dst.Hooks.SettingsFile = src.Hooks.SettingsFile
	}
	if src.Hooks.ResearchLineThreshold != 0 {
		dst.Hooks.ResearchLineThreshold = src.Hooks.ResearchLineThreshold
	}
	if src.Executor.DefaultMaxWorkers != 0 {
		dst.Executor.DefaultMaxWorkers = src.Executor.DefaultMaxWorkers
	}
	return dst, sources
}

func applyEnv(cfg *Config, sources FieldSources) (*Config, FieldSources) {
	if v := os.Getenv("ORCHESTRATOR_OUTPUT"); v != "" {
		cfg.Output = v
		sources.Output = SourceEnv
	}
	if v := os.Getenv("ORCHESTRATOR_BASE_DIR"); v != "" {
		cfg.BaseDir = v
		sources.BaseDir = SourceEnv
	}
	if v := os.Getenv("ORCHESTRATOR_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
		sources.Verbose = SourceEnv
	}
	return cfg, sources
}
