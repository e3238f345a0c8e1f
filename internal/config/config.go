package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultStoryPointsField = "customfield_10014"
	DefaultPageSize         = 50
	DefaultMaxPages         = 1000
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultCodecovBaseURL   = "https://codecov.io"
	DefaultConcurrency      = 1
	DefaultXComPath         = "/airflow/xcom/return.json"
	DefaultSubject          = "Velocity Report"
	DefaultSenderEmail      = "noreply@example.com"
	DefaultSenderName       = "Sprint Pulse"
	DefaultSchedule         = "0 10 * * FRI"
	DefaultHTTPPort         = 8080
	DefaultReportTTL        = 8 * 24 * time.Hour
	DefaultBroadcast        = 5 * time.Second
)

// Config is the full job configuration. Fields map 1:1 to pulse.example.yaml.
// Credentials never live here; see LoadJiraCredentials and friends.
type Config struct {
	Jira    JiraConfig    `yaml:"jira"`
	Codecov CodecovConfig `yaml:"codecov"`
	Boards  []Board       `yaml:"boards"`
	Report  ReportConfig  `yaml:"report"`
	Digest  DigestConfig  `yaml:"digest"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Server  ServerConfig  `yaml:"server"`
}

// JiraConfig holds the non-secret issue tracker settings.
type JiraConfig struct {
	// Domain is the Atlassian cloud site name (<domain>.atlassian.net).
	// JIRA_DOMAIN overrides it.
	Domain string `yaml:"domain"`

	// BaseURL replaces the derived cloud URL, for self-hosted instances.
	BaseURL string `yaml:"base_url"`

	// StoryPointsField is the issue field summed for active sprints.
	StoryPointsField string `yaml:"story_points_field"`

	// PageSize is the requested maxResults; servers may answer with less.
	PageSize int `yaml:"page_size"`

	// MaxPages bounds every paginated walk.
	MaxPages int `yaml:"max_pages"`

	Timeout time.Duration `yaml:"timeout"`
}

// CodecovConfig holds the coverage service settings.
type CodecovConfig struct {
	BaseURL string           `yaml:"base_url"`
	Timeout time.Duration    `yaml:"timeout"`
	Targets []CoverageTarget `yaml:"targets"`
}

// CoverageTarget is one repository branch whose coverage is tracked.
type CoverageTarget struct {
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`
}

// Board describes one agile board included in the reports.
type Board struct {
	ID          int64  `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
}

// Title is the human-facing board label.
func (b Board) Title() string {
	if b.DisplayName != "" {
		return b.DisplayName
	}
	return b.Name
}

// ReportConfig controls how reports are built and exported.
type ReportConfig struct {
	// Concurrency is the number of boards computed at once. 1 is sequential.
	Concurrency int `yaml:"concurrency"`

	// XComPath is where the closed-sprint export is written when IS_DOCKER
	// is set.
	XComPath string `yaml:"xcom_path"`

	// TextfilePath, when set, receives a Prometheus textfile export.
	TextfilePath string `yaml:"textfile_path"`
}

// DigestConfig controls the HTML email digest.
type DigestConfig struct {
	Subject  string   `yaml:"subject"`
	From     Sender   `yaml:"from"`
	To       []string `yaml:"to"`
	Schedule string   `yaml:"schedule"`
	Timezone string   `yaml:"timezone"`
}

// Sender is the From address of the digest.
type Sender struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// AlertsConfig holds alerting rules and webhook targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines a threshold condition evaluated against each board report.
type AlertRule struct {
	// Name is the rule identifier, used with the board name as dedup key.
	Name string `yaml:"name"`

	// Condition is "field op value", e.g. "average_attainment < 80".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// ServerConfig holds the schedule-mode HTTP settings.
type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`

	// ReportTTL is how long a board report stays visible after its run.
	ReportTTL time.Duration `yaml:"report_ttl"`

	// BroadcastInterval paces the websocket feed.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Auth optionally protects the API and websocket feed.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls client authentication on the schedule mode server.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`

	// Header carries the key. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Jira: JiraConfig{
			StoryPointsField: DefaultStoryPointsField,
			PageSize:         DefaultPageSize,
			MaxPages:         DefaultMaxPages,
			Timeout:          DefaultHTTPTimeout,
		},
		Codecov: CodecovConfig{
			BaseURL: DefaultCodecovBaseURL,
			Timeout: DefaultHTTPTimeout,
		},
		Report: ReportConfig{
			Concurrency: DefaultConcurrency,
			XComPath:    DefaultXComPath,
		},
		Digest: DigestConfig{
			Subject:  DefaultSubject,
			From:     Sender{Email: DefaultSenderEmail, Name: DefaultSenderName},
			Schedule: DefaultSchedule,
			Timezone: "UTC",
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			ReportTTL:         DefaultReportTTL,
			BroadcastInterval: DefaultBroadcast,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Jira.StoryPointsField == "" {
		return fmt.Errorf("jira.story_points_field must not be empty")
	}
	if cfg.Jira.PageSize <= 0 {
		return fmt.Errorf("jira.page_size must be positive")
	}
	if cfg.Jira.MaxPages <= 0 {
		return fmt.Errorf("jira.max_pages must be positive")
	}
	if cfg.Report.Concurrency <= 0 {
		return fmt.Errorf("report.concurrency must be positive")
	}

	names := make(map[string]struct{}, len(cfg.Boards))
	for i, b := range cfg.Boards {
		if b.ID <= 0 {
			return fmt.Errorf("boards[%d]: id must be positive", i)
		}
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("boards[%d]: name is required", i)
		}
		if _, dup := names[b.Name]; dup {
			return fmt.Errorf("boards[%d]: duplicate name %q", i, b.Name)
		}
		names[b.Name] = struct{}{}
	}

	for i, t := range cfg.Codecov.Targets {
		if t.Repo == "" || t.Branch == "" {
			return fmt.Errorf("codecov.targets[%d]: repo and branch are required", i)
		}
	}

	if _, err := cron.ParseStandard(cfg.Digest.Schedule); err != nil {
		return fmt.Errorf("digest.schedule %q: %w", cfg.Digest.Schedule, err)
	}
	if _, err := time.LoadLocation(cfg.Digest.Timezone); err != nil {
		return fmt.Errorf("digest.timezone %q: %w", cfg.Digest.Timezone, err)
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.ReportTTL <= 0 {
		return fmt.Errorf("server.report_ttl must be positive")
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey":
		if cfg.Server.Auth.KeyEnv == "" {
			return fmt.Errorf("server.auth.key_env is required when mode is apikey")
		}
	case "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("alerts.rules[%d] %q: condition must be \"field op value\"", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "teams", "slack", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}

// Location returns the digest timezone. validate guarantees it loads.
func (d DigestConfig) Location() *time.Location {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FindBoard returns the configured board with the given id.
func (c *Config) FindBoard(id int64) (Board, bool) {
	for _, b := range c.Boards {
		if b.ID == id {
			return b, true
		}
	}
	return Board{}, false
}
