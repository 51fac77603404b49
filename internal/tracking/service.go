package tracking

import (
	"math"

	"backend-runtrainer/internal/gps"
	"backend-runtrainer/internal/monitoring"
	"backend-runtrainer/internal/stream"
	"backend-runtrainer/internal/training"

	"github.com/google/uuid"
)

// Archiver receives finished trainings. It must not block.
type Archiver interface {
	Enqueue(rec training.Record) bool
}

// Service binds the registry to its runners: it checks session ownership,
// publishes live updates and hands stopped sessions to the archiver.
type Service struct {
	registry      *Registry
	hub           *stream.Hub
	archiver      Archiver
	singleSession bool
}

func NewService(registry *Registry, hub *stream.Hub, archiver Archiver, singleSession bool) *Service {
	return &Service{
		registry:      registry,
		hub:           hub,
		archiver:      archiver,
		singleSession: singleSession,
	}
}

func (s *Service) StartSession(userID, activityType string) (SessionInfo, error) {
	var info SessionInfo
	if s.singleSession {
		var err error
		if info, err = s.registry.StartExclusive(userID, activityType); err != nil {
			return SessionInfo{}, err
		}
	} else {
		info = s.registry.Start(userID, activityType)
	}
	if s.hub != nil {
		s.hub.ClaimSession(info.ID, userID)
	}
	return info, nil
}

// Current returns the live session of userID.
func (s *Service) Current(userID string) (SessionInfo, error) {
	info, ok := s.registry.ActiveForUser(userID)
	if !ok {
		return SessionInfo{}, ErrNoActiveSession
	}
	return info, nil
}

// CanWatch reports whether userID may follow sessionID live. Only the runner
// of a session may watch it, wherever the session is running.
func (s *Service) CanWatch(userID, sessionID string) error {
	owner := ""
	if info, ok := s.registry.Lookup(sessionID); ok {
		owner = info.UserID
	} else if s.hub != nil {
		owner, _ = s.hub.SessionOwner(sessionID)
	}
	switch owner {
	case "":
		return ErrNoActiveSession
	case userID:
		return nil
	default:
		return ErrNotOwner
	}
}

// Ingest decodes p and feeds it to the runner's session. Publishing the live
// update is fire and forget.
func (s *Service) Ingest(userID, sessionID string, p FixPayload) (IngestResult, error) {
	if err := s.authorize(userID, sessionID); err != nil {
		return IngestResult{}, err
	}
	fix, err := p.ToFix(s.registry.Now())
	if err != nil {
		return IngestResult{}, err
	}

	res, err := s.registry.Ingest(sessionID, fix)
	if err != nil {
		return IngestResult{}, err
	}
	if res.Update != nil && s.hub != nil {
		if err := s.hub.Publish(sessionID, res.Update); err != nil {
			monitoring.Logf("publish live update for %s: %v", sessionID, err)
		}
	}
	return res, nil
}

func (s *Service) Stats(userID, sessionID string) (gps.Stats, error) {
	if err := s.authorize(userID, sessionID); err != nil {
		return gps.Stats{}, err
	}
	return s.registry.Stats(sessionID)
}

// Stop ends the session and queues it for archiving. The training id is
// assigned here so the caller can fetch the record once it is stored.
func (s *Service) Stop(userID, sessionID string) (FinalSummary, error) {
	if err := s.authorize(userID, sessionID); err != nil {
		return FinalSummary{}, err
	}
	summary, err := s.registry.Stop(sessionID)
	if err != nil {
		return FinalSummary{}, err
	}
	if s.hub != nil {
		s.hub.ReleaseSession(sessionID)
	}

	if s.archiver != nil {
		summary.TrainingID = uuid.NewString()
		if !s.archiver.Enqueue(recordFromSummary(summary)) {
			summary.TrainingID = ""
		}
	}
	return summary, nil
}

// Calibrate classifies a reported accuracy without touching any session.
func Calibrate(accuracy float64) CalibrateResponse {
	return CalibrateResponse{
		Accuracy:       accuracy,
		SignalStrength: gps.ClassifySignal(accuracy),
		Status:         "calibrating",
	}
}

func (s *Service) authorize(userID, sessionID string) error {
	info, ok := s.registry.Lookup(sessionID)
	if !ok {
		return ErrNoActiveSession
	}
	if info.UserID != userID {
		return ErrNotOwner
	}
	return nil
}

func recordFromSummary(sum FinalSummary) training.Record {
	return training.Record{
		ID:           sum.TrainingID,
		UserID:       sum.UserID,
		Type:         sum.ActivityType,
		DistanceKm:   sum.DistanceKm,
		DurationS:    int64(math.Round(sum.DurationS)),
		PaceMinPerKm: sum.PaceMinPerKm,
		Track:        sum.Track,
		StartedAt:    sum.StartedAt,
		SessionID:    sum.SessionID,
	}
}
