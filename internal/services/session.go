package services

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/catalog"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/metrics"
)

// Session holds one device's process-lifetime state: the used-message set,
// the celebration state machine and the last reported tracking snapshot.
type Session struct {
	DeviceID   string
	Tracker    *UsedMessageTracker
	Gate       *AuthorizationGate
	Scheduler  *NotificationScheduler
	Reconciler *CelebrationReconciler
	Prefs      PreferenceStore

	mu          sync.Mutex
	tracking    *TrackingState
	audienceTag string
}

// ForegroundInput is what the app reports when it becomes active.
type ForegroundInput struct {
	TrackingState
	AudienceTag string `json:"audience_tag"`
	DisplayName string `json:"display_name"`
}

// ForegroundResult is the outcome of a foreground transition.
type ForegroundResult struct {
	Celebration *CelebrationView `json:"celebration,omitempty"`
	Quiz        ScheduleResult   `json:"quiz"`
	Streak      ScheduleResult   `json:"streak"`
}

// Foreground reconciles the celebration state, then reschedules both
// notification types. Scheduling is best effort and never fails the call.
// Quiz requests use the last audience the device reported when in carries none.
func (s *Session) Foreground(ctx context.Context, in ForegroundInput) ForegroundResult {
	audienceTag := s.remember(in.TrackingState, in.AudienceTag)

	var res ForegroundResult
	if view, ok := s.Reconciler.OnForeground(ctx, in.TrackingState); ok {
		res.Celebration = &view
	}
	res.Quiz = s.Scheduler.ScheduleQuizNotifications(ctx, audienceTag, in.DisplayName)
	res.Streak = s.Scheduler.ScheduleStreakNotification(ctx, in.CurrentStreak)
	return res
}

// Tracking returns the last reported tracking snapshot.
func (s *Session) Tracking() (TrackingState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracking == nil {
		return TrackingState{}, false
	}
	return *s.tracking, true
}

// AudienceTag is the audience last reported by the device.
func (s *Session) AudienceTag() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audienceTag
}

// remember stores the snapshot and returns the audience now in effect.
func (s *Session) remember(state TrackingState, audienceTag string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = &state
	if audienceTag != "" {
		s.audienceTag = audienceTag
	}
	return s.audienceTag
}

// SessionFactory builds the session for a device.
type SessionFactory func(deviceID string) *Session

// SessionDeps are the shared collaborators every session is built from.
type SessionDeps struct {
	Centers                func(deviceID string) NotificationCenter
	Preferences            func(deviceID string) PreferenceStore
	Catalog                *catalog.Catalog
	Scheduler              SchedulerConfig
	CelebrationSettleDelay time.Duration
	Location               *time.Location
	Metrics                *metrics.Metrics
	Logger                 *slog.Logger
}

// NewSessionFactory wires a tracker, gate, scheduler and reconciler per device.
func NewSessionFactory(deps SessionDeps) SessionFactory {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return func(deviceID string) *Session {
		center := deps.Centers(deviceID)
		prefs := deps.Preferences(deviceID)
		tracker := NewUsedMessageTracker(deps.Catalog, rand.New(rand.NewSource(time.Now().UnixNano())))
		gate := NewAuthorizationGate(center, deviceID, deps.Logger)

		return &Session{
			DeviceID: deviceID,
			Tracker:  tracker,
			Gate:     gate,
			Prefs:    prefs,
			Scheduler: NewNotificationScheduler(deviceID, center, gate, tracker, deps.Catalog, prefs,
				deps.Scheduler, deps.Metrics, deps.Logger,
				WithClock(func() time.Time { return time.Now().In(loc) })),
			Reconciler: NewCelebrationReconciler(deviceID, prefs, deps.Catalog, deps.Metrics, deps.Logger,
				deps.CelebrationSettleDelay),
		}
	}
}

// Sessions is the registry of live device sessions, built lazily and
// dropped once idle for longer than the configured TTL.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	build    SessionFactory
	now      func() time.Time
}

type sessionEntry struct {
	session *Session
	touched time.Time
}

func NewSessions(build SessionFactory) *Sessions {
	return &Sessions{
		sessions: make(map[string]*sessionEntry),
		build:    build,
		now:      time.Now,
	}
}

// Get returns the device's session, creating it on first use.
func (s *Sessions) Get(deviceID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[deviceID]; ok {
		e.touched = s.now()
		return e.session
	}
	sess := s.build(deviceID)
	s.sessions[deviceID] = &sessionEntry{session: sess, touched: s.now()}
	return sess
}

// Lookup returns the session only if it already exists.
func (s *Sessions) Lookup(deviceID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[deviceID]
	if !ok {
		return nil, false
	}
	e.touched = s.now()
	return e.session, true
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict drops sessions not used within idle and returns how many went.
func (s *Sessions) Evict(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	evicted := 0
	for id, e := range s.sessions {
		if e.touched.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is cancelled.
func (s *Sessions) Run(ctx context.Context, interval, idle time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if idle <= 0 {
		idle = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Evict(idle); n > 0 {
				logger.Info("evicted idle sessions", slog.Int("evicted", n), slog.Int("live", s.Len()))
			}
		}
	}
}
