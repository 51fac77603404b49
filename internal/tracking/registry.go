package tracking

import (
	"sync"
	"time"

	"backend-runtrainer/internal/gps"

	"github.com/google/uuid"
)

const defaultActivityType = "running"

type session struct {
	mu sync.Mutex

	id           string
	userID       string
	activityType string
	startedAt    time.Time
	tracker      *gps.Tracker
	active       bool
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:            s.id,
		UserID:        s.userID,
		ActivityType:  s.activityType,
		StartedAt:     s.startedAt,
		DistanceKm:    s.tracker.DistanceKm(),
		AcceptedCount: s.tracker.AcceptedCount(),
	}
}

// Registry owns every live session. The registry lock guards the map only;
// work on a session happens under that session's own lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session

	cfg   gps.Config
	now   func() time.Time
	newID func() string
}

type RegistryOption func(*Registry)

// WithClock replaces time.Now for start times and durations.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator replaces the uuid session id generator.
func WithIDGenerator(newID func() string) RegistryOption {
	return func(r *Registry) { r.newID = newID }
}

func NewRegistry(cfg gps.Config, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: map[string]*session{},
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the registry clock.
func (r *Registry) Now() time.Time {
	return r.now()
}

// Start opens a session with a fresh tracker.
func (r *Registry) Start(userID, activityType string) SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(userID, activityType)
}

// StartExclusive is Start, refused with ErrAlreadyActive while userID still
// has a live session.
func (r *Registry) StartExclusive(userID, activityType string) (SessionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.userID == userID {
			return SessionInfo{}, ErrAlreadyActive
		}
	}
	return r.startLocked(userID, activityType), nil
}

func (r *Registry) startLocked(userID, activityType string) SessionInfo {
	if activityType == "" {
		activityType = defaultActivityType
	}
	s := &session{
		id:           r.newID(),
		userID:       userID,
		activityType: activityType,
		startedAt:    r.now(),
		tracker:      gps.NewTracker(r.cfg),
		active:       true,
	}
	r.sessions[s.id] = s
	return s.info()
}

func (r *Registry) get(sessionID string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// Ingest submits fix to the session tracker. The live update is only built
// for accepted fixes.
func (r *Registry) Ingest(sessionID string, fix gps.Fix) (IngestResult, error) {
	s, ok := r.get(sessionID)
	if !ok {
		return IngestResult{}, ErrNoActiveSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return IngestResult{}, ErrNoActiveSession
	}

	out := s.tracker.Submit(fix)
	res := IngestResult{Outcome: out}
	if !out.Accepted() {
		return res, nil
	}

	durationS := r.now().Sub(s.startedAt).Seconds()
	update := LiveUpdate{
		SessionID:          s.id,
		DistanceKm:         out.DistanceKm,
		DurationS:          durationS,
		PaceMinPerKm:       pace(durationS, out.DistanceKm),
		SignalStrength:     out.Signal,
		Accuracy:           fix.Accuracy,
		TotalAcceptedCount: s.tracker.AcceptedCount(),
	}
	if fix.Speed != nil {
		update.CurrentSpeedKph = *fix.Speed * 3.6
	}
	res.Update = &update
	return res, nil
}

// Stop removes the session and summarizes it. A second Stop, or an Ingest
// racing with Stop, sees ErrNoActiveSession.
func (r *Registry) Stop(sessionID string) (FinalSummary, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return FinalSummary{}, ErrNoActiveSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false

	durationS := r.now().Sub(s.startedAt).Seconds()
	distanceKm := s.tracker.DistanceKm()
	return FinalSummary{
		SessionID:    s.id,
		UserID:       s.userID,
		ActivityType: s.activityType,
		StartedAt:    s.startedAt,
		DistanceKm:   distanceKm,
		DurationS:    durationS,
		PaceMinPerKm: pace(durationS, distanceKm),
		Track:        s.tracker.Track(),
		Stats:        s.tracker.Stats(),
	}, nil
}

func (r *Registry) Lookup(sessionID string) (SessionInfo, bool) {
	s, ok := r.get(sessionID)
	if !ok {
		return SessionInfo{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info(), true
}

// Stats returns the tracker statistics of a live session.
func (r *Registry) Stats(sessionID string) (gps.Stats, error) {
	s, ok := r.get(sessionID)
	if !ok {
		return gps.Stats{}, ErrNoActiveSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Stats(), nil
}

// ActiveForUser returns the live session of userID, if any.
func (r *Registry) ActiveForUser(userID string) (SessionInfo, bool) {
	r.mu.Lock()
	var found *session
	for _, s := range r.sessions {
		if s.userID == userID {
			found = s
			break
		}
	}
	r.mu.Unlock()
	if found == nil {
		return SessionInfo{}, false
	}

	found.mu.Lock()
	defer found.mu.Unlock()
	return found.info(), true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
