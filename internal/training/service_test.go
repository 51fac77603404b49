package training

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-runtrainer/internal/achievement"
	"backend-runtrainer/internal/gps"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var errTraining = errors.New("training error")

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestSaveTraining(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	started := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`INSERT INTO trainings`).
		WithArgs("t-1", "user-1", "running", 5.2, int64(1800), 5.77, []byte(`[{"latitude":1,"longitude":2,"accuracy":5,"speed":null,"altitude":null,"heading":null,"timestamp":10}]`), started).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("t-1"))

	id, err := svc.SaveTraining(context.Background(), Record{
		ID:           "t-1",
		UserID:       "user-1",
		Type:         "running",
		DistanceKm:   5.2,
		DurationS:    1800,
		PaceMinPerKm: 5.77,
		Track:        []gps.Fix{{Latitude: 1, Longitude: 2, Accuracy: 5, Timestamp: 10}},
		StartedAt:    started,
	})
	if err != nil {
		t.Fatalf("save training: %v", err)
	}
	if id != "t-1" {
		t.Fatalf("unexpected id %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveTrainingGeneratesIDAndEmptyTrack(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	mock.ExpectQuery(`INSERT INTO trainings`).
		WithArgs(pgxmock.AnyArg(), "user-1", "running", 0.0, int64(0), 0.0, []byte(`[]`), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("generated"))

	id, err := svc.SaveTraining(context.Background(), Record{UserID: "user-1", Type: "running"})
	if err != nil || id != "generated" {
		t.Fatalf("save training: %v %q", err, id)
	}
}

func TestSaveTrainingError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO trainings`).WillReturnError(errTraining)

	_, err := NewService(mock).SaveTraining(context.Background(), Record{UserID: "user-1"})
	if !errors.Is(err, errTraining) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestLifetime(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(distance_km\),0\), COUNT\(\*\)`).
		WithArgs("user-1", 999.0).
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count", "best"}).AddRow(52.5, 7, 5.4))

	agg, err := NewService(mock).Lifetime(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("lifetime: %v", err)
	}
	if agg.TotalDistanceKm != 52.5 || agg.TotalTrainings != 7 || agg.BestPace != 5.4 {
		t.Fatalf("unexpected aggregates %+v", agg)
	}
}

func TestLifetimeError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM trainings WHERE user_id`).WillReturnError(errTraining)

	if _, err := NewService(mock).Lifetime(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestUnlockAchievementsReturnsOnlyNew(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO achievements`).
		WithArgs("user-1", "total_10km").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(`INSERT INTO achievements`).
		WithArgs("user-1", "total_50km").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	got, err := NewService(mock).UnlockAchievements(context.Background(), "user-1",
		[]achievement.ID{achievement.Total10km, achievement.Total50km})
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if len(got) != 1 || got[0] != achievement.Total50km {
		t.Fatalf("unexpected unlocked set %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUnlockAchievementsError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO achievements`).WillReturnError(errTraining)

	_, err := NewService(mock).UnlockAchievements(context.Background(), "user-1", []achievement.ID{achievement.Pace6min})
	if !errors.Is(err, errTraining) {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestUserStats(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(SUM\(distance_km\),0\), COALESCE\(SUM\(duration_s\),0\)`).
		WithArgs("user-1", 999.0).
		WillReturnRows(pgxmock.NewRows([]string{"count", "dist", "dur", "avg", "best"}).AddRow(3, 12.0, int64(4200), 5.9, 5.5))
	mock.ExpectQuery(`SELECT achievement_id FROM achievements`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"achievement_id"}).AddRow("total_10km").AddRow("pace_6min").AddRow("retired"))

	st, err := NewService(mock).UserStats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if st.TotalTrainings != 3 || st.TotalDurationS != 4200 || st.BestPace != 5.5 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if len(st.Achievements) != 2 || st.Achievements[0].ID != achievement.Total10km {
		t.Fatalf("unexpected achievements %+v", st.Achievements)
	}
}

func TestUserStatsAchievementQueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "dist", "dur", "avg", "best"}).AddRow(0, 0.0, int64(0), 0.0, 999.0))
	mock.ExpectQuery(`SELECT achievement_id FROM achievements`).WillReturnError(errTraining)

	if _, err := NewService(mock).UserStats(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestListTrainings(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT id, user_id, type, distance_km, duration_s, pace_min_per_km, started_at, created_at`).
		WithArgs("user-1", defaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "type", "distance_km", "duration_s", "pace", "started_at", "created_at"}).
			AddRow("t-2", "user-1", "running", 10.0, int64(3000), 5.0, now, now).
			AddRow("t-1", "user-1", "running", 5.0, int64(1800), 6.0, now.Add(-time.Hour), now.Add(-time.Hour)))

	records, err := NewService(mock).List(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].ID != "t-2" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestGetTrainingDecodesTrack(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT id, user_id, type, distance_km, duration_s, pace_min_per_km, track`).
		WithArgs("t-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "type", "distance_km", "duration_s", "pace", "track", "started_at", "created_at"}).
			AddRow("t-1", "user-1", "running", 0.11, int64(10), 1.5, []byte(`[{"latitude":0,"longitude":0,"accuracy":5,"timestamp":0},{"latitude":0.001,"longitude":0,"accuracy":5,"timestamp":10}]`), now, now))

	rec, err := NewService(mock).Get(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.Track) != 2 || rec.Track[1].Latitude != 0.001 {
		t.Fatalf("unexpected track %+v", rec.Track)
	}
}

func TestGetTrainingNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM trainings WHERE id`).WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := NewService(mock).Get(context.Background(), "missing")
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestServiceWithoutDatabase(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	if _, err := svc.SaveTraining(ctx, Record{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("save: expected ErrUnavailable")
	}
	if _, err := svc.Lifetime(ctx, "u"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("lifetime: expected ErrUnavailable")
	}
	if _, err := svc.UnlockAchievements(ctx, "u", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("unlock: expected ErrUnavailable")
	}
	if _, err := svc.UserStats(ctx, "u"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("stats: expected ErrUnavailable")
	}
	if _, err := svc.List(ctx, "u", 10); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("list: expected ErrUnavailable")
	}
	if _, err := svc.Get(ctx, "t"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("get: expected ErrUnavailable")
	}
}
