// Package digest runs one weekly velocity digest end to end. The digest
// command runs it once and the schedule command runs it on a cron schedule.
package digest
