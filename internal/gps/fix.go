// Package gps turns a stream of raw device fixes into a smoothed track with a
// running distance. It performs no I/O and holds no locks; a Tracker belongs to
// exactly one producer.
package gps

import "backend-runtrainer/internal/shared/geo"

// Fix is one GPS sample. Raw device samples and smoothed samples share the
// shape; smoothing only replaces Latitude and Longitude.
type Fix struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
	Speed     *float64 `json:"speed"`
	Altitude  *float64 `json:"altitude"`
	Heading   *float64 `json:"heading"`
	// Timestamp is in seconds. Callers keep it non-decreasing per track.
	Timestamp float64 `json:"timestamp"`
}

// Point returns the fix position for distance calculations.
func (f Fix) Point() geo.Point {
	return geo.Point{Lat: f.Latitude, Lon: f.Longitude}
}

func distanceKm(a, b Fix) float64 {
	return geo.DistanceKm(a.Point(), b.Point())
}

// SignalStrength is a coarse band of reported horizontal accuracy.
type SignalStrength string

const (
	SignalExcellent SignalStrength = "excellent"
	SignalGood      SignalStrength = "good"
	SignalFair      SignalStrength = "fair"
	SignalPoor      SignalStrength = "poor"
)

// ClassifySignal maps an accuracy in meters to a signal band.
func ClassifySignal(accuracy float64) SignalStrength {
	switch {
	case accuracy <= 5:
		return SignalExcellent
	case accuracy <= 10:
		return SignalGood
	case accuracy <= 20:
		return SignalFair
	default:
		return SignalPoor
	}
}
