package gps

import "math"

// Reason classifies why a fix did not make it into the track.
type Reason string

const (
	ReasonLowAccuracy       Reason = "low_accuracy"
	ReasonImplausibleSpeed  Reason = "implausible_speed"
	ReasonInvalidCoordinate Reason = "invalid_coordinate"
	ReasonPositionJump      Reason = "position_jump"
	ReasonMinimumMovement   Reason = "minimum_movement"
)

// Decision is the gate verdict for one fix. Reason is empty when Accepted.
type Decision struct {
	Accepted bool
	Reason   Reason
}

// Gate decides whether a raw fix is usable at all. It holds thresholds only.
type Gate struct {
	cfg Config
}

// NewGate builds a gate; zero thresholds fall back to DefaultConfig.
func NewGate(cfg Config) Gate {
	return Gate{cfg: cfg.withDefaults()}
}

// Accept checks fix against the thresholds and, when previous is set, against
// the speed implied by moving from previous. Checks run in a fixed order and
// the first failing one names the reason.
func (g Gate) Accept(fix Fix, previous *Fix) Decision {
	if fix.Accuracy > g.cfg.MaxAccuracyM {
		return reject(ReasonLowAccuracy)
	}
	if fix.Speed != nil && *fix.Speed > g.cfg.MaxSpeedMps {
		return reject(ReasonImplausibleSpeed)
	}
	if math.Abs(fix.Latitude) > 90 || math.Abs(fix.Longitude) > 180 {
		return reject(ReasonInvalidCoordinate)
	}
	if previous != nil {
		// zero or negative elapsed time skips the jump check
		dt := fix.Timestamp - previous.Timestamp
		if dt > 0 {
			implied := distanceKm(*previous, fix) * 1000 / dt
			if implied > g.cfg.MaxJumpSpeedMps {
				return reject(ReasonPositionJump)
			}
		}
	}
	return Decision{Accepted: true}
}

func reject(r Reason) Decision {
	return Decision{Reason: r}
}
