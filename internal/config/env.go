package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingCredentials marks a required secret absent from the environment.
var ErrMissingCredentials = errors.New("config: missing credentials")

// JiraCredentials authenticate against the issue tracker with basic auth.
type JiraCredentials struct {
	Domain   string `env:"JIRA_DOMAIN"`
	Username string `env:"JIRA_USERNAME,notEmpty"`
	APIKey   string `env:"JIRA_API_KEY,notEmpty"`
}

// CodecovCredentials authenticate against the coverage service.
type CodecovCredentials struct {
	Owner string `env:"CODECOV_OWNER,notEmpty"`
	Token string `env:"CODECOV_API_TOKEN,notEmpty"`
}

// SendGridCredentials authenticate the digest email delivery.
type SendGridCredentials struct {
	APIKey string `env:"SENDGRID_API_KEY,notEmpty"`
}

// Runtime holds environment switches that are not secrets.
type Runtime struct {
	// IsDocker selects the xcom export path for the closed-sprint JSON.
	IsDocker bool `env:"IS_DOCKER" envDefault:"false"`
}

// LoadDotEnv loads KEY=VALUE pairs from the given files without overriding
// variables already set. With no paths it reads ".env" if one exists; a
// path given explicitly must exist.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err == nil || (len(paths) == 0 && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("config: load dotenv: %w", err)
}

// LoadJiraCredentials reads the issue tracker secrets.
func LoadJiraCredentials() (JiraCredentials, error) {
	return parseEnv[JiraCredentials]()
}

// LoadCodecovCredentials reads the coverage service secrets.
func LoadCodecovCredentials() (CodecovCredentials, error) {
	return parseEnv[CodecovCredentials]()
}

// LoadSendGridCredentials reads the email delivery secret.
func LoadSendGridCredentials() (SendGridCredentials, error) {
	return parseEnv[SendGridCredentials]()
}

// LoadRuntime reads the non-secret environment switches.
func LoadRuntime() (Runtime, error) {
	rt, err := parseEnv[Runtime]()
	if err != nil {
		return Runtime{}, fmt.Errorf("config: parse env: %w", err)
	}
	return rt, nil
}

func parseEnv[T any]() (T, error) {
	var v T
	if err := env.Parse(&v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	}
	return v, nil
}

// ResolveBaseURL picks the issue tracker URL: an explicit base_url first,
// then the JIRA_DOMAIN credential, then jira.domain.
func (j JiraConfig) ResolveBaseURL(creds JiraCredentials) (string, error) {
	if j.BaseURL != "" {
		return strings.TrimRight(j.BaseURL, "/"), nil
	}
	domain := creds.Domain
	if domain == "" {
		domain = j.Domain
	}
	if domain == "" {
		return "", fmt.Errorf("%w: set JIRA_DOMAIN or jira.domain", ErrMissingCredentials)
	}
	return "https://" + domain + ".atlassian.net", nil
}
