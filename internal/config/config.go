// Package config provides configuration loading, validation, and management
// for the survey bot. Values come from an optional YAML file, a .env file and
// BOT_* environment variables, layered over defaults.
package config

import (
	"strings"
	"time"
)

// Config defines the application configuration parameters for all components.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Buttons   ButtonsConfig   `mapstructure:"buttons"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Fanout    FanoutConfig    `mapstructure:"fanout"`
	Database  DatabaseConfig  `mapstructure:"database"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`

	// Locale selects the message catalogue used for every rendered text.
	Locale string `mapstructure:"locale" validate:"required"`
	// Timezone is the reference timezone for event dates, reminder days and
	// digest periods.
	Timezone string `mapstructure:"timezone" validate:"required,timezone"`

	location *time.Location
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type TelegramConfig struct {
	Token          string        `mapstructure:"token"           validate:"required,contains=:"`
	APIURL         string        `mapstructure:"api_url"         validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=2m"`
	// PollTimeout is the getUpdates long-poll timeout. Zero keeps every poll
	// tick short.
	PollTimeout  time.Duration `mapstructure:"poll_timeout"  validate:"max=50s"`
	TrainingLink string        `mapstructure:"training_link" validate:"omitempty,url"`
}

// Scope returns the bot id part of the token. Subscribers and chat log
// entries are partitioned by it so the secret itself is never stored.
func (t TelegramConfig) Scope() string {
	scope, _, _ := strings.Cut(t.Token, ":")
	return scope
}

type ButtonsConfig struct {
	JoinLabel   string `mapstructure:"join_label"   validate:"required"`
	LeaveLabel  string `mapstructure:"leave_label"  validate:"required"`
	JoinPrefix  string `mapstructure:"join_prefix"  validate:"required,max=32"`
	LeavePrefix string `mapstructure:"leave_prefix" validate:"required,max=32,nefield=JoinPrefix"`
}

type ReminderConfig struct {
	DaysBefore int `mapstructure:"days_before" validate:"min=0,max=30"`
}

type FanoutConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"min=1,max=8"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite memory"`
	Path   string `mapstructure:"path"   validate:"required_if=Driver sqlite"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig schedules one task by cron expression or, when Schedule is
// empty, by fixed interval.
type TaskConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule" validate:"omitempty,cron"`
	Interval time.Duration `mapstructure:"interval" validate:"omitempty,min=1s"`
}

// Location returns the loaded reference timezone, UTC when unset.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
