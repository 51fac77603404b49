package training

import (
	"time"

	"backend-runtrainer/internal/achievement"
	"backend-runtrainer/internal/gps"
)

// Record is a persisted training session.
type Record struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Type         string    `json:"type"`
	DistanceKm   float64   `json:"distance_km"`
	DurationS    int64     `json:"duration_s"`
	PaceMinPerKm float64   `json:"pace_min_per_km"`
	Track        []gps.Fix `json:"track,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CreatedAt    time.Time `json:"created_at"`

	// SessionID links the record to the live session it came from. It is
	// not stored.
	SessionID string `json:"-"`
}

// Aggregates are the lifetime totals achievements are evaluated against.
type Aggregates struct {
	TotalDistanceKm float64
	TotalTrainings  int
	BestPace        float64
}

type UserStats struct {
	TotalTrainings  int                       `json:"total_trainings"`
	TotalDistanceKm float64                   `json:"total_distance_km"`
	TotalDurationS  int64                     `json:"total_duration_s"`
	AvgPace         float64                   `json:"avg_pace"`
	BestPace        float64                   `json:"best_pace"`
	Achievements    []achievement.Achievement `json:"achievements"`
}
