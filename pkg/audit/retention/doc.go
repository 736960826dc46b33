// Package retention enforces the audit trail retention policy by
// pruning records older than the configured retention period, either on
// demand or on a cron schedule.
package retention
