package diary_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"diarist/internal/config"
	"diarist/internal/diary"
)

type memoryState struct {
	date   string
	writes int
}

func (m *memoryState) DiaryDate(context.Context) (string, error) { return m.date, nil }

func (m *memoryState) SetDiaryDate(_ context.Context, date string) error {
	m.date = date
	m.writes++
	return nil
}

func newManager(t *testing.T, state *memoryState, autoUpdate bool) (*diary.Manager, afero.Fs) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DiaryDir = "/diary"
	cfg.Diary.AutoUpdateDate = autoUpdate
	fs := afero.NewMemMapFs()
	return diary.NewManager(&cfg, state, nil).WithFs(fs), fs
}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.Local)
}

func TestCheckRolloverInitialisesEmptyState(t *testing.T) {
	state := &memoryState{}
	m, fs := newManager(t, state, true)

	roll, err := m.CheckRollover(context.Background(), at(2026, 3, 14, 7, 5))
	if err != nil {
		t.Fatalf("CheckRollover: %v", err)
	}
	if !roll.Rolled || roll.NewDate != "260314" || roll.Previous != "" || !roll.Created {
		t.Fatalf("unexpected rollover %+v", roll)
	}
	if state.date != "260314" {
		t.Fatalf("expected date persisted, got %q", state.date)
	}
	data, err := afero.ReadFile(fs, "/diary/260314_ongoing_entries.txt")
	if err != nil {
		t.Fatalf("read partition: %v", err)
	}
	want := "# Diary Entries for 2026-03-14\n\n## System Note - 07:05\n\nNew day started. Previous entries are in the previous day's file.\n\n"
	if string(data) != want {
		t.Fatalf("unexpected partition header:\n%q", data)
	}
}

func TestCheckRolloverSameDayIsNoop(t *testing.T) {
	state := &memoryState{date: "260314"}
	m, fs := newManager(t, state, true)

	roll, err := m.CheckRollover(context.Background(), at(2026, 3, 14, 23, 59))
	if err != nil {
		t.Fatalf("CheckRollover: %v", err)
	}
	if roll.Rolled || state.writes != 0 {
		t.Fatalf("expected no rollover, got %+v (writes=%d)", roll, state.writes)
	}
	if ok, _ := afero.Exists(fs, roll.Partition); ok {
		t.Fatal("expected no partition to be created on a same-day check")
	}
}

func TestCheckRolloverJumpsOverGap(t *testing.T) {
	state := &memoryState{date: "260310"}
	m, fs := newManager(t, state, true)

	roll, err := m.CheckRollover(context.Background(), at(2026, 3, 14, 0, 1))
	if err != nil {
		t.Fatalf("CheckRollover: %v", err)
	}
	if !roll.Rolled || roll.Previous != "260310" || roll.NewDate != "260314" || roll.SkippedDays != 3 {
		t.Fatalf("unexpected rollover %+v", roll)
	}
	for _, day := range []string{"260311", "260312", "260313"} {
		if ok, _ := afero.Exists(fs, m.PartitionPath(day)); ok {
			t.Fatalf("expected skipped day %s not to be materialised", day)
		}
	}
}

func TestCheckRolloverNextDayReportsNoSkip(t *testing.T) {
	state := &memoryState{date: "261231"}
	m, _ := newManager(t, state, true)
	roll, err := m.CheckRollover(context.Background(), at(2027, 1, 1, 0, 0))
	if err != nil {
		t.Fatalf("CheckRollover: %v", err)
	}
	if !roll.Rolled || roll.NewDate != "270101" || roll.SkippedDays != 0 {
		t.Fatalf("unexpected rollover %+v", roll)
	}
}

func TestCheckRolloverLeavesExistingPartition(t *testing.T) {
	state := &memoryState{date: "260313"}
	m, fs := newManager(t, state, true)
	existing := "# Diary Entries for 2026-03-14\n\nalready here\n"
	if err := afero.WriteFile(fs, "/diary/260314_ongoing_entries.txt", []byte(existing), 0o644); err != nil {
		t.Fatalf("seed partition: %v", err)
	}

	roll, err := m.CheckRollover(context.Background(), at(2026, 3, 14, 8, 0))
	if err != nil {
		t.Fatalf("CheckRollover: %v", err)
	}
	if !roll.Rolled || roll.Created {
		t.Fatalf("expected roll without creating a partition, got %+v", roll)
	}
	data, _ := afero.ReadFile(fs, "/diary/260314_ongoing_entries.txt")
	if string(data) != existing {
		t.Fatalf("existing partition modified:\n%s", data)
	}
}

func TestCheckRolloverDisabled(t *testing.T) {
	state := &memoryState{date: "260310"}
	m, _ := newManager(t, state, false)
	roll, err := m.CheckRollover(context.Background(), at(2026, 3, 14, 8, 0))
	if err != nil {
		t.Fatalf("CheckRollover: %v", err)
	}
	if roll.Rolled || state.date != "260310" {
		t.Fatalf("expected date pinned, got %+v state=%q", roll, state.date)
	}
}

func TestSetDateValidates(t *testing.T) {
	state := &memoryState{}
	m, fs := newManager(t, state, true)

	for _, bad := range []string{"2026-03-14", "261399", "26031", ""} {
		if _, err := m.SetDate(context.Background(), bad, at(2026, 3, 14, 8, 0)); !errors.Is(err, diary.ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate for %q, got %v", bad, err)
		}
	}

	path, err := m.SetDate(context.Background(), "260101", at(2026, 3, 14, 8, 0))
	if err != nil {
		t.Fatalf("SetDate: %v", err)
	}
	if state.date != "260101" || !strings.HasSuffix(path, "260101_ongoing_entries.txt") {
		t.Fatalf("unexpected state %q path %q", state.date, path)
	}
	if ok, _ := afero.Exists(fs, path); !ok {
		t.Fatal("expected partition to be opened")
	}
}
