package jobs

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
)

func TestNewCron_RejectsBadSchedule(t *testing.T) {
	cfg := config.Config{TZ: "UTC", SyncCron: "every 15 minutes"}
	_, err := NewCron(cfg, zerolog.Nop(), nil, nil)
	if err == nil {
		t.Fatalf("invalid schedule must fail construction")
	}
	if !strings.Contains(err.Error(), "every 15 minutes") {
		t.Fatalf("error must name the schedule: %v", err)
	}
}

func TestNewCron_AcceptsStandardSchedule(t *testing.T) {
	cfg := config.Config{TZ: "UTC", SyncCron: "*/15 * * * *"}
	cr, err := NewCron(cfg, zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("schedule rejected: %v", err)
	}
	cr.Stop()
}
