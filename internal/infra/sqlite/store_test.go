package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, DefaultDSN(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleState() domain.GamificationState {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := domain.DefaultState()
	s.Streak = domain.StreakData{CurrentStreak: 4, LongestStreak: 9, LastActivityDate: "2024-03-01", TotalActiveDays: 30}
	s.XP.TotalXP = 1400
	s.XP.CurrentLevel = 6
	s.TotalWorkoutsCompleted = 31
	s.EarlyWorkouts = 2
	s.WorkoutModalities = []string{"run", "yoga"}
	s.WeeklyTrainingDays = 4
	s.LastDietDate = "2024-02-29"
	s.Trophies = []domain.UserTrophy{{
		TrophyID:    "workout_warrior",
		CurrentTier: domain.TierBronze,
		Progress:    31,
		TierUnlocks: map[domain.TrophyTier]time.Time{domain.TierBronze: at},
	}}
	s.UniqueBadges = []domain.UniqueBadge{{BadgeID: "first_workout", UnlockedAt: at, Notified: true}}
	s.Activities = []domain.ActivityItem{{
		ID: "a1", Type: domain.ActivityWorkoutCompleted, Title: "Workout", XPEarned: 50, Timestamp: at,
	}}
	s.LastUpdated = at
	return s
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(DriverSQLite, DefaultDSN(dir), nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "fitquest.db")); os.IsNotExist(err) {
		t.Error("fitquest.db should exist")
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("oracle", "x", nil); err == nil {
		t.Fatal("Open() with unknown driver should fail")
	}
}

func TestSchemaVersion(t *testing.T) {
	db := newTestDB(t)
	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error: %v", err)
	}
	if v != 2 {
		t.Errorf("SchemaVersion() = %d, want 2", v)
	}
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)
	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown() error: %v", err)
	}
	v, _ := db.SchemaVersion()
	if v != 1 {
		t.Errorf("SchemaVersion() after rollback = %d, want 1", v)
	}
}

// ─── State Store ────────────────────────────────────────────────────────────

func TestLoad_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Load(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	want := sampleState()

	if err := db.Save(ctx, "u1", want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := db.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got.Streak != want.Streak {
		t.Errorf("Streak = %+v, want %+v", got.Streak, want.Streak)
	}
	if got.XP.TotalXP != 1400 || got.XP.CurrentLevel != 6 {
		t.Errorf("XP = %+v", got.XP)
	}
	if got.TotalWorkoutsCompleted != 31 || got.EarlyWorkouts != 2 || got.WeeklyTrainingDays != 4 {
		t.Errorf("counters not restored: %+v", got.Counters)
	}
	if len(got.WorkoutModalities) != 2 || got.WorkoutModalities[1] != "yoga" {
		t.Errorf("WorkoutModalities = %v", got.WorkoutModalities)
	}
	if got.LastDietDate != "2024-02-29" {
		t.Errorf("LastDietDate = %q", got.LastDietDate)
	}
	if len(got.Trophies) != 1 || got.Trophies[0].CurrentTier != domain.TierBronze {
		t.Fatalf("Trophies = %+v", got.Trophies)
	}
	if !got.Trophies[0].TierUnlocks[domain.TierBronze].Equal(want.Trophies[0].TierUnlocks[domain.TierBronze]) {
		t.Error("bronze unlock time not preserved")
	}
	if len(got.UniqueBadges) != 1 || !got.UniqueBadges[0].Notified {
		t.Errorf("UniqueBadges = %+v", got.UniqueBadges)
	}
	if len(got.Activities) != 1 || got.Activities[0].XPEarned != 50 {
		t.Errorf("Activities = %+v", got.Activities)
	}
	if !got.LastUpdated.Equal(want.LastUpdated) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, want.LastUpdated)
	}
}

func TestSave_Overwrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := sampleState()
	if err := db.Save(ctx, "u1", s); err != nil {
		t.Fatal(err)
	}
	s.XP.TotalXP = 2000
	s.Activities = []domain.ActivityItem{}
	if err := db.Save(ctx, "u1", s); err != nil {
		t.Fatal(err)
	}

	got, _ := db.Load(ctx, "u1")
	if got.XP.TotalXP != 2000 {
		t.Errorf("TotalXP = %d, want 2000", got.XP.TotalXP)
	}
	if got.Activities == nil || len(got.Activities) != 0 {
		t.Errorf("Activities = %#v, want empty non-nil", got.Activities)
	}
}

func TestSave_EmptyUserID(t *testing.T) {
	db := newTestDB(t)
	if err := db.Save(context.Background(), "", sampleState()); !errors.Is(err, domain.ErrInvalidUserID) {
		t.Fatalf("Save() error = %v, want ErrInvalidUserID", err)
	}
}

func TestLoad_NullBlobIsAbsent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := sampleState()
	s.Goals = nil
	if err := db.Save(ctx, "u1", s); err != nil {
		t.Fatal(err)
	}
	got, _ := db.Load(ctx, "u1")
	if got.Goals != nil {
		t.Errorf("Goals = %#v, want nil", got.Goals)
	}
}

func TestLoad_CorruptBlobYieldsEmpty(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.Save(ctx, "u1", sampleState()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.db.Exec(`UPDATE gamification_profiles SET trophies = '{not json' WHERE user_id = 'u1'`); err != nil {
		t.Fatal(err)
	}

	got, err := db.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Trophies == nil || len(got.Trophies) != 0 {
		t.Errorf("Trophies = %#v, want empty", got.Trophies)
	}
	if len(got.UniqueBadges) != 1 {
		t.Error("other fields should still load")
	}
}

func TestLoad_LegacyBareArray(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.Save(ctx, "u1", sampleState()); err != nil {
		t.Fatal(err)
	}
	legacy := `[{"badgeId":"streak_7","unlockedAt":"2024-01-05T08:00:00Z"}]`
	if _, err := db.db.Exec(`UPDATE gamification_profiles SET badges = ? WHERE user_id = 'u1'`, legacy); err != nil {
		t.Fatal(err)
	}

	got, _ := db.Load(ctx, "u1")
	if len(got.Badges) != 1 || got.Badges[0].BadgeID != "streak_7" {
		t.Errorf("Badges = %+v", got.Badges)
	}
}

func TestDeleteAndUserIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	older := sampleState()
	older.LastUpdated = older.LastUpdated.Add(-time.Hour)
	if err := db.Save(ctx, "old", older); err != nil {
		t.Fatal(err)
	}
	if err := db.Save(ctx, "new", sampleState()); err != nil {
		t.Fatal(err)
	}

	ids, err := db.UserIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "new" {
		t.Errorf("UserIDs() = %v, want [new old]", ids)
	}

	if err := db.Delete(ctx, "old"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := db.Delete(ctx, "old"); !errors.Is(err, domain.ErrStateNotFound) {
		t.Errorf("second Delete() error = %v, want ErrStateNotFound", err)
	}
}

// ─── Blob Envelope ──────────────────────────────────────────────────────────

func TestUnwrapBlob(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"envelope", `{"version":1,"items":["a","b"]}`, 2, false},
		{"bare array", `["a"]`, 1, false},
		{"null items", `{"version":1,"items":null}`, 0, false},
		{"empty", ``, 0, false},
		{"future version", `{"version":9,"items":[]}`, 0, true},
		{"wrong type", `{"version":1,"items":{"a":1}}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unwrapBlob[string]([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}
