// Package alerts implements the rule evaluation engine and webhook delivery
// for velocity alerting. Rules are evaluated against board reports after
// every run; webhooks are delivered to Teams, Slack, or generic HTTP targets.
package alerts
