package gps

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Status is the top-level result of submitting a fix.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusFiltered Status = "filtered"
)

// Outcome is the result of Tracker.Submit. Fix, DistanceKm and Signal are only
// meaningful when Status is StatusAccepted.
type Outcome struct {
	Status     Status         `json:"status"`
	Reason     Reason         `json:"reason,omitempty"`
	Fix        Fix            `json:"position"`
	DistanceKm float64        `json:"total_distance_km"`
	Signal     SignalStrength `json:"signal_strength,omitempty"`
}

// Accepted reports whether the fix was appended to the track.
func (o Outcome) Accepted() bool {
	return o.Status == StatusAccepted
}

// Stats summarizes a track.
type Stats struct {
	TotalDistanceKm float64 `json:"total_distance_km"`
	AverageAccuracy float64 `json:"average_accuracy"`
	MaxSpeed        float64 `json:"max_speed"`
	ElevationGainM  float64 `json:"elevation_gain_m"`
	ValidCount      int     `json:"valid_positions"`
	FilteredCount   int     `json:"filtered_positions"`
}

// Tracker owns one track: every submitted fix, the accepted smoothed fixes and
// the running distance between consecutive accepted fixes.
type Tracker struct {
	gate      Gate
	smoother  *Smoother
	minMoveKm float64

	raw      []Fix
	smoothed []Fix
	totalKm  float64
	last     *Fix
}

// NewTracker returns an empty tracker using cfg; zero thresholds fall back to
// DefaultConfig.
func NewTracker(cfg Config) *Tracker {
	cfg = cfg.withDefaults()
	return &Tracker{
		gate:      NewGate(cfg),
		smoother:  NewSmoother(),
		minMoveKm: cfg.MinMovementMeters / 1000,
	}
}

// Submit runs fix through the gate, the smoother and the minimum movement
// check. Every fix is recorded as raw. A fix dropped for minimum movement has
// still advanced the smoother.
func (t *Tracker) Submit(fix Fix) Outcome {
	t.raw = append(t.raw, fix)

	if d := t.gate.Accept(fix, t.last); !d.Accepted {
		return Outcome{Status: StatusFiltered, Reason: d.Reason, DistanceKm: t.totalKm}
	}

	candidate := t.smoother.Filter(fix)

	var segmentKm float64
	if t.last != nil {
		segmentKm = distanceKm(*t.last, candidate)
		if segmentKm < t.minMoveKm {
			return Outcome{Status: StatusFiltered, Reason: ReasonMinimumMovement, DistanceKm: t.totalKm}
		}
	}

	t.smoothed = append(t.smoothed, candidate)
	if t.last != nil {
		t.totalKm += segmentKm
	}
	last := candidate
	t.last = &last

	return Outcome{
		Status:     StatusAccepted,
		Fix:        candidate,
		DistanceKm: t.totalKm,
		Signal:     ClassifySignal(fix.Accuracy),
	}
}

// Stats summarizes the accepted fixes. It is all zero until a fix is accepted.
func (t *Tracker) Stats() Stats {
	if len(t.smoothed) == 0 {
		return Stats{}
	}

	accuracies := make([]float64, 0, len(t.smoothed))
	var speeds []float64
	for _, f := range t.smoothed {
		accuracies = append(accuracies, f.Accuracy)
		if f.Speed != nil {
			speeds = append(speeds, *f.Speed)
		}
	}

	st := Stats{
		TotalDistanceKm: t.totalKm,
		AverageAccuracy: stat.Mean(accuracies, nil),
		ElevationGainM:  t.elevationGain(),
		ValidCount:      len(t.smoothed),
		FilteredCount:   len(t.raw) - len(t.smoothed),
	}
	if len(speeds) > 0 {
		st.MaxSpeed = floats.Max(speeds)
	}
	return st
}

func (t *Tracker) elevationGain() float64 {
	var gain float64
	for i := 1; i < len(t.smoothed); i++ {
		prev, curr := t.smoothed[i-1].Altitude, t.smoothed[i].Altitude
		if prev != nil && curr != nil && *curr > *prev {
			gain += *curr - *prev
		}
	}
	return gain
}

// DistanceKm returns the accumulated distance.
func (t *Tracker) DistanceKm() float64 {
	return t.totalKm
}

// AcceptedCount returns the number of fixes in the smoothed track.
func (t *Tracker) AcceptedCount() int {
	return len(t.smoothed)
}

// RawCount returns the number of fixes ever submitted.
func (t *Tracker) RawCount() int {
	return len(t.raw)
}

// Track returns a copy of the smoothed track in acceptance order.
func (t *Tracker) Track() []Fix {
	out := make([]Fix, len(t.smoothed))
	copy(out, t.smoothed)
	return out
}

// Reset clears the track, the distance and the smoother.
func (t *Tracker) Reset() {
	t.raw = nil
	t.smoothed = nil
	t.totalKm = 0
	t.last = nil
	t.smoother.Reset()
}
