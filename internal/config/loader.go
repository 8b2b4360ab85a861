package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/edgard/surveybot/internal/errors"
)

// Load loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional)
// 3. a .env file in the working directory (optional)
// 4. BOT_* environment variables
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewConfigError("failed to load .env file", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to read config file %q", path), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigError("invalid configuration", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to load timezone", err)
	}
	cfg.location = loc

	return cfg, nil
}

// setDefaults sets default values for optional configuration parameters.
// Keys without a meaningful default are still registered so that
// AutomaticEnv can bind them during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_url", DefaultAPIURL)
	v.SetDefault("telegram.request_timeout", DefaultRequestTimeout)
	v.SetDefault("telegram.poll_timeout", DefaultPollTimeout)
	v.SetDefault("telegram.training_link", "")

	v.SetDefault("buttons.join_label", DefaultJoinLabel)
	v.SetDefault("buttons.leave_label", DefaultLeaveLabel)
	v.SetDefault("buttons.join_prefix", DefaultJoinPrefix)
	v.SetDefault("buttons.leave_prefix", DefaultLeavePrefix)

	v.SetDefault("locale", DefaultLocale)
	v.SetDefault("timezone", DefaultTimezone)
	v.SetDefault("reminder.days_before", DefaultDaysBefore)
	v.SetDefault("fanout.concurrency", DefaultFanoutConcurrency)

	v.SetDefault("database.driver", DefaultDBDriver)
	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("http.enabled", false)
	v.SetDefault("http.listen", DefaultHTTPListen)

	for name, task := range DefaultTasks {
		prefix := "scheduler.tasks." + name + "."
		v.SetDefault(prefix+"enabled", task.Enabled)
		v.SetDefault(prefix+"schedule", task.Schedule)
		v.SetDefault(prefix+"interval", task.Interval)
	}
}
