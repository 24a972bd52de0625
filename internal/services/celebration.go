package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/catalog"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/metrics"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/settle"
)

// TrackingState is the streak snapshot reported by the tracking side of the app.
type TrackingState struct {
	CurrentStreak int  `json:"current_streak"`
	Onboarded     bool `json:"onboarded"`
}

// CelebrationView is what the device renders while a celebration is showing.
type CelebrationView struct {
	PreviousStreak int                `json:"previous_streak"`
	CurrentStreak  int                `json:"current_streak"`
	Forced         bool               `json:"forced"`
	Celebration    models.Celebration `json:"celebration"`
}

// CelebrationReconciler decides when a streak celebration is shown. It is
// either idle or showing; a celebration is shown at most once per streak value
// unless a force was requested, and the shown value is persisted on dismissal.
type CelebrationReconciler struct {
	deviceID    string
	prefs       PreferenceStore
	catalog     *catalog.Catalog
	metrics     *metrics.Metrics
	logger      *slog.Logger
	settleDelay time.Duration
	ready       <-chan struct{}

	mu             sync.Mutex
	showing        bool
	current        CelebrationView
	forceRequested bool
	// lastDismissed is the streak last dismissed in this process, whether or
	// not it reached the store.
	lastDismissed int
}

func NewCelebrationReconciler(
	deviceID string,
	prefs PreferenceStore,
	catalog *catalog.Catalog,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	settleDelay time.Duration,
) *CelebrationReconciler {
	return &CelebrationReconciler{
		deviceID:    deviceID,
		prefs:       prefs,
		catalog:     catalog,
		metrics:     metrics,
		logger:      logger.With(slog.String("device_id", deviceID)),
		settleDelay: settleDelay,
	}
}

// SetReady installs a readiness signal that replaces the fixed settle delay.
func (r *CelebrationReconciler) SetReady(ready <-chan struct{}) {
	r.mu.Lock()
	r.ready = ready
	r.mu.Unlock()
}

// RequestForce makes the next evaluation show a celebration even if the
// current streak was already celebrated.
func (r *CelebrationReconciler) RequestForce() {
	r.mu.Lock()
	r.forceRequested = true
	r.mu.Unlock()
}

// ForceRequested reports whether a force is queued.
func (r *CelebrationReconciler) ForceRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forceRequested
}

// OnForeground waits for navigation state to settle, then evaluates.
func (r *CelebrationReconciler) OnForeground(ctx context.Context, state TrackingState) (CelebrationView, bool) {
	r.mu.Lock()
	ready := r.ready
	r.mu.Unlock()

	if err := settle.Wait(ctx, ready, r.settleDelay); err != nil {
		r.logger.Debug("celebration evaluation abandoned", slog.Any("error", err))
		return CelebrationView{}, false
	}
	return r.Evaluate(ctx, state)
}

// Evaluate moves idle to showing when the streak progressed past the last
// celebrated value, or when a force is queued. A call while showing is a no-op.
func (r *CelebrationReconciler) Evaluate(ctx context.Context, state TrackingState) (CelebrationView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.showing {
		return CelebrationView{}, false
	}
	streak := state.CurrentStreak
	if streak <= 0 {
		// a force cannot apply to a zero streak
		r.forceRequested = false
		return CelebrationView{}, false
	}
	if !state.Onboarded {
		return CelebrationView{}, false
	}

	stored, err := r.prefs.LastShownStreakDay(ctx)
	if err != nil {
		r.logger.Error("failed to read last shown streak", slog.Any("error", err))
		return CelebrationView{}, false
	}
	lastShown := max(stored, r.lastDismissed)

	progressed := streak > lastShown
	forced := r.forceRequested
	if !progressed && !forced {
		return CelebrationView{}, false
	}

	previous := max(streak-1, 0)
	if progressed && lastShown > 0 {
		previous = lastShown
	}

	r.forceRequested = false
	r.showing = true
	r.current = CelebrationView{
		PreviousStreak: previous,
		CurrentStreak:  streak,
		Forced:         forced && !progressed,
		Celebration:    r.catalog.Celebration(streak),
	}
	r.metrics.Celebrations.Inc()
	r.logger.Info("showing streak celebration",
		slog.Int("streak", streak),
		slog.Int("previous", previous),
		slog.Bool("forced", r.current.Forced))
	return r.current, true
}

// Current returns the celebration being shown, if any.
func (r *CelebrationReconciler) Current() (CelebrationView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.showing
}

// Dismiss returns to idle and persists the shown streak as the last one
// celebrated. Dismissing while idle does nothing.
func (r *CelebrationReconciler) Dismiss(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.showing {
		return nil
	}
	streak := r.current.CurrentStreak
	r.showing = false
	r.current = CelebrationView{}
	r.lastDismissed = streak

	if err := r.prefs.SetLastShownStreakDay(ctx, streak); err != nil {
		r.logger.Error("failed to persist last shown streak", slog.Int("streak", streak), slog.Any("error", err))
		return fmt.Errorf("persist last shown streak: %w", err)
	}
	return nil
}

// Reset clears the celebrated streak after the streak restarts.
func (r *CelebrationReconciler) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.forceRequested = false
	r.lastDismissed = 0
	if err := r.prefs.SetLastShownStreakDay(ctx, 0); err != nil {
		return fmt.Errorf("reset last shown streak: %w", err)
	}
	return nil
}
