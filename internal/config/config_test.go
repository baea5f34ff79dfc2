package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCalendar_MissingFileFallsBack(t *testing.T) {
	cal, err := loadCalendar(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cal.StartHour != 9 || cal.EndHour != 17 {
		t.Fatalf("want default hours, got %+v", cal)
	}
}

func TestLoadCalendar_CorruptFileFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	if err := os.WriteFile(path, []byte("start_hour: [6"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cal, err := loadCalendar(path)
	if err == nil {
		t.Fatalf("unparsable calendar must error")
	}
	cfg := Config{Calendar: cal, calendarErr: err}
	if verr := cfg.Validate(); verr == nil {
		t.Fatalf("corrupt calendar must fail validation")
	}
}

func TestLoadCalendar_ValidFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	body := "start_hour: 8\nend_hour: 16\nweekdays: [Monday, Tuesday]\ntimezone: Europe/Warsaw\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cal, err := loadCalendar(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cal.StartHour != 8 || cal.EndHour != 16 || cal.Timezone != "Europe/Warsaw" {
		t.Fatalf("calendar not decoded: %+v", cal)
	}
	cfg := Config{Calendar: cal}
	if verr := cfg.Validate(); verr != nil {
		t.Fatalf("validate: %v", verr)
	}
}
