package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultAPIURL                       = "https://api.telegram.org"
	DefaultRequestTimeout               = 15 * time.Second
	DefaultPollTimeout    time.Duration = 0

	DefaultJoinLabel   = "✅ Join"
	DefaultLeaveLabel  = "❌ Leave"
	DefaultJoinPrefix  = "join_"
	DefaultLeavePrefix = "leave_"

	DefaultLocale     = "en"
	DefaultTimezone   = "UTC"
	DefaultDaysBefore = 2

	DefaultFanoutConcurrency = 4

	DefaultDBDriver = "sqlite"
	DefaultDBPath   = "surveybot.db"

	DefaultHTTPListen = ":8080"
)

// Task names understood by the scheduler.
const (
	TaskPollUpdates    = "poll_updates"
	TaskLifecycleSweep = "lifecycle_sweep"
	TaskEventReminder  = "event_reminder"
	TaskDigestSweep    = "digest_sweep"
	TaskReplicaCleanup = "replica_cleanup"
	TaskSQLMaintenance = "sql_maintenance"
)

// DefaultTasks is the schedule used when the config file does not override it.
var DefaultTasks = map[string]TaskConfig{
	TaskPollUpdates:    {Enabled: true, Interval: 2 * time.Second},
	TaskLifecycleSweep: {Enabled: true, Schedule: "* * * * *"},
	TaskEventReminder:  {Enabled: true, Schedule: "0 9 * * *"},
	TaskDigestSweep:    {Enabled: true, Schedule: "0 8 * * *"},
	TaskReplicaCleanup: {Enabled: true, Schedule: "*/30 * * * *"},
	TaskSQLMaintenance: {Enabled: true, Schedule: "0 4 * * 0"},
}
