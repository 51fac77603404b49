package gps

import "math"

const (
	processNoise      = 1e-5
	initialCovariance = 1.0
	// measurement noise is accuracy scaled by this factor, floored at minMeasurementNoise
	accuracyNoiseScale  = 1.0 / 100000
	minMeasurementNoise = 1e-5
)

// AxisState is the belief of a scalar Kalman filter for one coordinate axis.
type AxisState struct {
	Q float64 // process noise
	R float64 // measurement noise of the last update
	P float64 // error covariance
	X float64 // estimate
	K float64 // gain of the last update
}

func newAxisState() AxisState {
	return AxisState{Q: processNoise, R: 1e-3, P: initialCovariance}
}

// MeasurementNoise derives R from a reported accuracy in meters.
func MeasurementNoise(accuracy float64) float64 {
	return math.Max(minMeasurementNoise, accuracy*accuracyNoiseScale)
}

// Update runs one predict/update step with measurement z and returns the new
// state. The receiver is not modified.
func (s AxisState) Update(z, accuracy float64) AxisState {
	s.R = MeasurementNoise(accuracy)
	s.P += s.Q
	s.K = s.P / (s.P + s.R)
	s.X += s.K * (z - s.X)
	s.P *= 1 - s.K
	return s
}

// Smoother filters latitude and longitude independently. The first fix only
// seeds the estimate and is returned as is.
type Smoother struct {
	lat         AxisState
	lon         AxisState
	initialized bool
}

// NewSmoother returns an uninitialized smoother.
func NewSmoother() *Smoother {
	s := &Smoother{}
	s.Reset()
	return s
}

// Filter returns fix with its coordinates replaced by the updated estimates.
func (s *Smoother) Filter(fix Fix) Fix {
	if !s.initialized {
		s.lat.X = fix.Latitude
		s.lon.X = fix.Longitude
		s.initialized = true
		return fix
	}

	s.lat = s.lat.Update(fix.Latitude, fix.Accuracy)
	s.lon = s.lon.Update(fix.Longitude, fix.Accuracy)

	out := fix
	out.Latitude = s.lat.X
	out.Longitude = s.lon.X
	return out
}

// Initialized reports whether a fix has seeded the estimate.
func (s *Smoother) Initialized() bool {
	return s.initialized
}

// State returns copies of the latitude and longitude axis states.
func (s *Smoother) State() (lat, lon AxisState) {
	return s.lat, s.lon
}

// Reset discards both axis states.
func (s *Smoother) Reset() {
	s.lat = newAxisState()
	s.lon = newAxisState()
	s.initialized = false
}
