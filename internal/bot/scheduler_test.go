package bot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/edgard/surveybot/internal/bot/tasks"
	"github.com/edgard/surveybot/internal/config"
)

func noop(context.Context) error { return nil }

func TestSchedulerRegistersEnabledTasks(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		config.TaskPollUpdates:    {Enabled: true, Interval: time.Hour},
		config.TaskEventReminder:  {Enabled: true, Schedule: "0 9 * * *"},
		config.TaskDigestSweep:    {Enabled: false, Schedule: "0 8 * * *"},
		"unknown":                 {Enabled: true, Schedule: "* * * * *"},
		config.TaskSQLMaintenance: {Enabled: true},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		config.TaskPollUpdates:    noop,
		config.TaskEventReminder:  noop,
		config.TaskDigestSweep:    noop,
		config.TaskSQLMaintenance: noop,
	}

	s, err := NewScheduler(logger, cfg, taskMap, time.UTC)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = s.Stop() }()

	want := []string{config.TaskEventReminder, config.TaskPollUpdates}
	if got := s.JobNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("JobNames() = %v, want %v", got, want)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded")
	}
}

func TestSchedulerRunLogsFailures(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	s, err := NewScheduler(logger, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	s.run(context.Background(), config.TaskEventReminder, func(context.Context) error {
		return errors.New("store down")
	})

	out := logs.String()
	if !strings.Contains(out, "Scheduled task failed") || !strings.Contains(out, "store down") {
		t.Errorf("failure not logged:\n%s", out)
	}
}
