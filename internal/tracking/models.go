package tracking

import (
	"errors"
	"time"

	"backend-runtrainer/internal/gps"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrAlreadyActive   = errors.New("runner already has an active session")
	ErrInvalidFix      = errors.New("invalid fix")
	ErrNotOwner        = errors.New("session belongs to another runner")
)

// FixPayload is a fix as sent by a device. Latitude, longitude and accuracy
// are mandatory; a missing timestamp is taken from the receive time.
type FixPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
	Speed     *float64 `json:"speed,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

func (p FixPayload) ToFix(now time.Time) (gps.Fix, error) {
	if p.Latitude == nil || p.Longitude == nil || p.Accuracy == nil {
		return gps.Fix{}, ErrInvalidFix
	}

	fix := gps.Fix{
		Latitude:  *p.Latitude,
		Longitude: *p.Longitude,
		Accuracy:  *p.Accuracy,
		Speed:     p.Speed,
		Altitude:  p.Altitude,
		Heading:   p.Heading,
	}
	if p.Timestamp != nil {
		fix.Timestamp = *p.Timestamp
	} else {
		fix.Timestamp = float64(now.UnixMilli()) / 1000
	}
	return fix, nil
}

type StartRequest struct {
	ActivityType string `json:"activity_type"`
}

type CalibrateRequest struct {
	Accuracy *float64 `json:"accuracy"`
}

type CalibrateResponse struct {
	Accuracy       float64            `json:"accuracy"`
	SignalStrength gps.SignalStrength `json:"signal_strength"`
	Status         string             `json:"status"`
}

// SessionInfo is a point-in-time copy of a session.
type SessionInfo struct {
	ID            string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	ActivityType  string    `json:"type"`
	StartedAt     time.Time `json:"started_at"`
	DistanceKm    float64   `json:"distance_km"`
	AcceptedCount int       `json:"total_accepted_count"`
}

// LiveUpdate is pushed to spectators after each accepted fix.
type LiveUpdate struct {
	SessionID          string             `json:"session_id"`
	DistanceKm         float64            `json:"distance_km"`
	DurationS          float64            `json:"duration_s"`
	PaceMinPerKm       float64            `json:"pace_min_per_km"`
	CurrentSpeedKph    float64            `json:"current_speed_kph"`
	SignalStrength     gps.SignalStrength `json:"signal_strength"`
	Accuracy           float64            `json:"accuracy"`
	TotalAcceptedCount int                `json:"total_accepted_count"`
}

// IngestResult is the tracker outcome plus the live update when the fix was
// accepted.
type IngestResult struct {
	gps.Outcome
	Update *LiveUpdate `json:"update,omitempty"`
}

// FinalSummary describes a stopped session.
type FinalSummary struct {
	TrainingID   string    `json:"training_id,omitempty"`
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"type"`
	StartedAt    time.Time `json:"started_at"`
	DistanceKm   float64   `json:"distance_km"`
	DurationS    float64   `json:"duration_s"`
	PaceMinPerKm float64   `json:"pace_min_per_km"`
	Track        []gps.Fix `json:"track"`
	Stats        gps.Stats `json:"stats"`
}

// pace returns minutes per kilometre, or zero before any distance is covered.
func pace(durationS, distanceKm float64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return (durationS / 60) / distanceKm
}
