package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/catalog"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/metrics"
)

// Reasons a schedule call did nothing.
const (
	SkipNotAuthorized = "not_authorized"
	SkipDisabled      = "disabled"
	SkipCancelFailed  = "cancel_failed"
	SkipNoSlots       = "no_slots"
	SkipNoAudience    = "no_audience"
)

// SchedulerConfig tunes when notifications fire.
type SchedulerConfig struct {
	QuizCount         int
	QuizStartHour     int
	QuizEndHour       int
	QuizFallbackTitle string
	// StreakFireOffset keeps the streak notification clear of midnight itself.
	StreakFireOffset time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		QuizCount:         3,
		QuizStartHour:     18,
		QuizEndHour:       24,
		QuizFallbackTitle: "Daily Check-in",
		StreakFireOffset:  5 * time.Second,
	}
}

// ScheduleResult summarizes one schedule call.
type ScheduleResult struct {
	Type      models.NotificationType `json:"type"`
	Cancelled int                     `json:"cancelled"`
	Scheduled int                     `json:"scheduled"`
	Failed    int                     `json:"failed"`
	Skipped   string                  `json:"skipped,omitempty"`
}

// NotificationScheduler (re)schedules one device's notifications. Every
// schedule call first cancels the pending requests of its type, so repeated
// calls never pile up duplicates. Calls for the same type are serialized.
type NotificationScheduler struct {
	deviceID string
	center   NotificationCenter
	gate     *AuthorizationGate
	tracker  *UsedMessageTracker
	catalog  *catalog.Catalog
	prefs    PreferenceStore
	cfg      SchedulerConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger

	now    func() time.Time
	suffix func() string
	rnd    *rand.Rand

	quizMu   sync.Mutex
	streakMu sync.Mutex
}

// SchedulerOption customizes a NotificationScheduler.
type SchedulerOption func(*NotificationScheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *NotificationScheduler) { s.now = now }
}

// WithSlotRand replaces the random source used for quiz fire times.
func WithSlotRand(rnd *rand.Rand) SchedulerOption {
	return func(s *NotificationScheduler) { s.rnd = rnd }
}

// WithIDSuffix replaces the random identifier suffix generator.
func WithIDSuffix(fn func() string) SchedulerOption {
	return func(s *NotificationScheduler) { s.suffix = fn }
}

func NewNotificationScheduler(
	deviceID string,
	center NotificationCenter,
	gate *AuthorizationGate,
	tracker *UsedMessageTracker,
	catalog *catalog.Catalog,
	prefs PreferenceStore,
	cfg SchedulerConfig,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	opts ...SchedulerOption,
) *NotificationScheduler {
	s := &NotificationScheduler{
		deviceID: deviceID,
		center:   center,
		gate:     gate,
		tracker:  tracker,
		catalog:  catalog,
		prefs:    prefs,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With(slog.String("device_id", deviceID)),
		now:      time.Now,
		suffix:   uuid.NewString,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleQuizNotifications replaces tomorrow's quiz notifications with
// QuizCount fresh ones spread over the configured evening window.
func (s *NotificationScheduler) ScheduleQuizNotifications(ctx context.Context, audienceTag, displayName string) ScheduleResult {
	s.quizMu.Lock()
	defer s.quizMu.Unlock()

	res := ScheduleResult{Type: models.NotificationQuiz}
	if strings.TrimSpace(audienceTag) == "" {
		// pending quiz requests stay untouched until an audience is known
		s.skip(&res, SkipNoAudience)
		return res
	}
	if !s.ready(ctx, &res) {
		return res
	}

	slots := QuizTimeSlots(s.now(), s.cfg.QuizCount, s.cfg.QuizStartHour, s.cfg.QuizEndHour, s.rnd)
	if len(slots) == 0 {
		s.skip(&res, SkipNoSlots)
		s.logger.Warn("quiz window yields no slots",
			slog.Int("count", s.cfg.QuizCount),
			slog.Int("start_hour", s.cfg.QuizStartHour),
			slog.Int("end_hour", s.cfg.QuizEndHour))
		return res
	}

	title := strings.TrimSpace(displayName)
	if title == "" {
		title = s.cfg.QuizFallbackTitle
	}

	for i, fireAt := range slots {
		msg, ok := s.tracker.PickMessage(audienceTag)
		if !ok {
			s.logger.Warn("no quiz message for audience", slog.String("audience", audienceTag), slog.Int("slot", i))
			continue
		}
		req := models.NotificationRequest{
			ID:     fmt.Sprintf("%s%d_%s", models.NotificationQuiz.IDPrefix(), i, s.suffix()),
			FireAt: fireAt,
			Title:  title,
			Body:   msg.Text,
			Payload: map[string]string{
				models.PayloadType:      string(models.NotificationQuiz),
				models.PayloadMessageID: msg.ID,
			},
		}
		s.submit(ctx, req, &res)
	}

	s.logger.Info("quiz notifications scheduled",
		slog.Int("scheduled", res.Scheduled),
		slog.Int("failed", res.Failed),
		slog.Int("cancelled", res.Cancelled))
	return res
}

// ScheduleStreakNotification replaces the pending streak notification with
// one announcing currentStreak+1 shortly after the coming midnight.
func (s *NotificationScheduler) ScheduleStreakNotification(ctx context.Context, currentStreak int) ScheduleResult {
	s.streakMu.Lock()
	defer s.streakMu.Unlock()

	res := ScheduleResult{Type: models.NotificationStreakCelebration}
	if !s.ready(ctx, &res) {
		return res
	}

	next := max(currentStreak, 0) + 1
	celebration := s.catalog.Celebration(next)
	req := models.NotificationRequest{
		ID:     fmt.Sprintf("%s%d_%s", models.NotificationStreakCelebration.IDPrefix(), next, s.suffix()),
		FireAt: nextMidnight(s.now()).Add(s.cfg.StreakFireOffset),
		Title:  strings.TrimSpace(celebration.Emoji + " " + celebration.Title),
		Body:   celebration.NotificationBody,
		Payload: map[string]string{
			models.PayloadType:   string(models.NotificationStreakCelebration),
			models.PayloadStreak: strconv.Itoa(next),
		},
	}
	s.submit(ctx, req, &res)

	s.logger.Info("streak notification scheduled",
		slog.Int("streak", next),
		slog.Time("fire_at", req.FireAt),
		slog.Int("scheduled", res.Scheduled))
	return res
}

// CancelNotifications removes every pending request of typ and nothing else.
func (s *NotificationScheduler) CancelNotifications(ctx context.Context, typ models.NotificationType) (int, error) {
	mu := s.lockFor(typ)
	if mu == nil {
		return 0, fmt.Errorf("unknown notification type %q", typ)
	}
	mu.Lock()
	defer mu.Unlock()
	return s.cancel(ctx, typ)
}

// Pending lists the device's pending requests, soonest first.
func (s *NotificationScheduler) Pending(ctx context.Context) ([]models.NotificationRequest, error) {
	return s.center.ListPending(ctx)
}

// ready runs the shared guard: permission, feature toggle, then cancellation
// of the type's pending requests. The type's lock must be held.
func (s *NotificationScheduler) ready(ctx context.Context, res *ScheduleResult) bool {
	if !s.gate.Authorized(ctx) {
		s.skip(res, SkipNotAuthorized)
		s.logger.Debug("notifications not authorized, skipping", slog.String("type", string(res.Type)))
		return false
	}

	cancelled, err := s.cancel(ctx, res.Type)
	res.Cancelled = cancelled
	if err != nil {
		s.skip(res, SkipCancelFailed)
		s.logger.Error("failed to cancel pending notifications",
			slog.String("type", string(res.Type)), slog.Any("error", err))
		return false
	}

	if !s.enabled(ctx, res.Type) {
		s.skip(res, SkipDisabled)
		s.logger.Debug("notification feature disabled", slog.String("type", string(res.Type)))
		return false
	}
	return true
}

func (s *NotificationScheduler) enabled(ctx context.Context, typ models.NotificationType) bool {
	toggles, err := s.prefs.Toggles(ctx)
	if err != nil {
		s.logger.Warn("failed to read feature toggles, assuming defaults", slog.Any("error", err))
		toggles = models.DefaultToggles()
	}
	switch typ {
	case models.NotificationQuiz:
		return toggles.QuizEnabled
	case models.NotificationStreakCelebration:
		return toggles.StreakCelebrationEnabled
	default:
		return false
	}
}

func (s *NotificationScheduler) cancel(ctx context.Context, typ models.NotificationType) (int, error) {
	pending, err := s.center.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	var ids []string
	for _, req := range pending {
		if typ.Owns(req.ID) {
			ids = append(ids, req.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.center.Cancel(ctx, ids); err != nil {
		return 0, fmt.Errorf("cancel %d %s requests: %w", len(ids), typ, err)
	}
	s.metrics.Cancelled.WithLabelValues(string(typ)).Add(float64(len(ids)))
	return len(ids), nil
}

func (s *NotificationScheduler) submit(ctx context.Context, req models.NotificationRequest, res *ScheduleResult) {
	if err := s.center.Submit(ctx, req); err != nil {
		res.Failed++
		s.metrics.SubmitFailures.WithLabelValues(string(res.Type)).Inc()
		s.logger.Error("failed to submit notification",
			slog.String("request_id", req.ID), slog.Any("error", err))
		return
	}
	res.Scheduled++
	s.metrics.Scheduled.WithLabelValues(string(res.Type)).Inc()
}

func (s *NotificationScheduler) skip(res *ScheduleResult, reason string) {
	res.Skipped = reason
	s.metrics.Skipped.WithLabelValues(string(res.Type), reason).Inc()
}

func (s *NotificationScheduler) lockFor(typ models.NotificationType) *sync.Mutex {
	switch typ {
	case models.NotificationQuiz:
		return &s.quizMu
	case models.NotificationStreakCelebration:
		return &s.streakMu
	default:
		return nil
	}
}
