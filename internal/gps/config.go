package gps

// Config holds the admission and suppression thresholds of a Tracker.
type Config struct {
	MaxAccuracyM      float64 // reject fixes reporting worse accuracy
	MaxSpeedMps       float64 // reject fixes reporting a faster device speed
	MaxJumpSpeedMps   float64 // reject fixes implying a faster move from the last accepted fix
	MinMovementMeters float64 // drop smoothed fixes closer than this to the last accepted fix
}

// DefaultConfig returns the thresholds tuned for running.
func DefaultConfig() Config {
	return Config{
		MaxAccuracyM:      50,
		MaxSpeedMps:       20, // 72 km/h
		MaxJumpSpeedMps:   25, // 90 km/h
		MinMovementMeters: 3,
	}
}

// withDefaults fills zero thresholds from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAccuracyM <= 0 {
		c.MaxAccuracyM = d.MaxAccuracyM
	}
	if c.MaxSpeedMps <= 0 {
		c.MaxSpeedMps = d.MaxSpeedMps
	}
	if c.MaxJumpSpeedMps <= 0 {
		c.MaxJumpSpeedMps = d.MaxJumpSpeedMps
	}
	if c.MinMovementMeters <= 0 {
		c.MinMovementMeters = d.MinMovementMeters
	}
	return c
}
