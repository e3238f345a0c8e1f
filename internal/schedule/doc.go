// Package schedule runs the digest on a cron schedule. Overlapping runs are
// skipped and a panicking job is recovered and logged.
package schedule
