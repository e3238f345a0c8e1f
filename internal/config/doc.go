// Package config loads the job configuration (pulse.yaml) and the
// credentials the connectors need.
//
// Top-level types:
//   - Config{Jira, Codecov, Boards, Report, Digest, Alerts, Server}
//   - Board: id, name, display_name; one entry per reported board
//   - AlertRule / WebhookConfig: threshold rules over board reports and the
//     teams|slack|http targets they are delivered to
//
// Load(path) reads the YAML file, applies defaults (story points field
// customfield_10014, page size 50, 1000 max pages, 30s timeouts, Friday 10:00
// digest), then validates ids, enums and the cron expression.
//
// Secrets never appear in the file. LoadJiraCredentials, LoadCodecovCredentials
// and LoadSendGridCredentials read them from the environment with
// caarlos0/env, after LoadDotEnv has merged an optional .env file.
//
// Watch(ctx, path, onChange) re-parses the file when it changes on disk and
// is used by the long-running schedule mode.
package config
