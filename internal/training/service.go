package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backend-runtrainer/internal/achievement"
	"backend-runtrainer/internal/db"
	"backend-runtrainer/internal/gps"

	"github.com/google/uuid"
)

// noPace is reported as best pace while a runner has no paced training.
const noPace = 999

const defaultListLimit = 50

var ErrUnavailable = errors.New("training store unavailable")

type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

func (s *Service) SaveTraining(ctx context.Context, rec Record) (string, error) {
	if s.db == nil {
		return "", ErrUnavailable
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	track := rec.Track
	if track == nil {
		track = []gps.Fix{}
	}
	trackJSON, err := json.Marshal(track)
	if err != nil {
		return "", fmt.Errorf("encode track: %w", err)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO trainings (id, user_id, type, distance_km, duration_s, pace_min_per_km, track, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, rec.ID, rec.UserID, rec.Type, rec.DistanceKm, rec.DurationS, rec.PaceMinPerKm, trackJSON, rec.StartedAt)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("insert training: %w", err)
	}
	return id, nil
}

// Lifetime sums every training of userID. Trainings without a pace do not
// count toward the best pace.
func (s *Service) Lifetime(ctx context.Context, userID string) (Aggregates, error) {
	if s.db == nil {
		return Aggregates{}, ErrUnavailable
	}

	var agg Aggregates
	row := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(distance_km),0), COUNT(*),
		       COALESCE(MIN(pace_min_per_km) FILTER (WHERE pace_min_per_km > 0), $2)
		FROM trainings WHERE user_id=$1
	`, userID, float64(noPace))
	if err := row.Scan(&agg.TotalDistanceKm, &agg.TotalTrainings, &agg.BestPace); err != nil {
		return Aggregates{}, fmt.Errorf("lifetime totals: %w", err)
	}
	return agg, nil
}

// UnlockAchievements records ids for userID and returns those that were not
// recorded before.
func (s *Service) UnlockAchievements(ctx context.Context, userID string, ids []achievement.ID) ([]achievement.ID, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	var unlocked []achievement.ID
	for _, id := range ids {
		tag, err := s.db.Exec(ctx, `
			INSERT INTO achievements (user_id, achievement_id)
			VALUES ($1,$2)
			ON CONFLICT (user_id, achievement_id) DO NOTHING
		`, userID, string(id))
		if err != nil {
			return unlocked, fmt.Errorf("unlock %s: %w", id, err)
		}
		if tag.RowsAffected() > 0 {
			unlocked = append(unlocked, id)
		}
	}
	return unlocked, nil
}

func (s *Service) UserStats(ctx context.Context, userID string) (UserStats, error) {
	if s.db == nil {
		return UserStats{}, ErrUnavailable
	}

	var st UserStats
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(distance_km),0), COALESCE(SUM(duration_s),0),
		       COALESCE(AVG(pace_min_per_km) FILTER (WHERE pace_min_per_km > 0), 0),
		       COALESCE(MIN(pace_min_per_km) FILTER (WHERE pace_min_per_km > 0), $2)
		FROM trainings WHERE user_id=$1
	`, userID, float64(noPace))
	if err := row.Scan(&st.TotalTrainings, &st.TotalDistanceKm, &st.TotalDurationS, &st.AvgPace, &st.BestPace); err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT achievement_id FROM achievements
		WHERE user_id=$1
		ORDER BY unlocked_at, achievement_id
	`, userID)
	if err != nil {
		return UserStats{}, fmt.Errorf("user achievements: %w", err)
	}
	defer rows.Close()

	st.Achievements = []achievement.Achievement{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return UserStats{}, err
		}
		if a, ok := achievement.Lookup(achievement.ID(id)); ok {
			st.Achievements = append(st.Achievements, a)
		}
	}
	return st, rows.Err()
}

// List returns the trainings of userID, newest first, without tracks.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Record, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, type, distance_km, duration_s, pace_min_per_km, started_at, created_at
		FROM trainings WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trainings: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.Type, &r.DistanceKm, &r.DurationS, &r.PaceMinPerKm, &r.StartedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Get returns one training with its track.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if s.db == nil {
		return Record{}, ErrUnavailable
	}

	var (
		r     Record
		track []byte
	)
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, type, distance_km, duration_s, pace_min_per_km, track, started_at, created_at
		FROM trainings WHERE id=$1
	`, id)
	if err := row.Scan(&r.ID, &r.UserID, &r.Type, &r.DistanceKm, &r.DurationS, &r.PaceMinPerKm, &track, &r.StartedAt, &r.CreatedAt); err != nil {
		return Record{}, fmt.Errorf("get training %s: %w", id, err)
	}
	if len(track) > 0 {
		if err := json.Unmarshal(track, &r.Track); err != nil {
			return Record{}, fmt.Errorf("decode track: %w", err)
		}
	}
	return r, nil
}
