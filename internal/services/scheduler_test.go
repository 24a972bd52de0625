package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/metrics"
)

var schedulerNow = time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

type schedulerFixture struct {
	center  *fakeCenter
	prefs   *fakePrefs
	metrics *metrics.Metrics
	sched   *NotificationScheduler
}

func newSchedulerFixture(status models.AuthorizationStatus) *schedulerFixture {
	center := newFakeCenter(status)
	prefs := newFakePrefs()
	m := testMetrics()
	cat := testCatalog()
	gate := NewAuthorizationGate(center, "dev-1", discard)
	tracker := NewUsedMessageTracker(cat, rand.New(rand.NewSource(7)))

	var seq atomic.Int64
	sched := NewNotificationScheduler("dev-1", center, gate, tracker, cat, prefs,
		DefaultSchedulerConfig(), m, discard,
		WithClock(func() time.Time { return schedulerNow }),
		WithSlotRand(rand.New(rand.NewSource(3))),
		WithIDSuffix(func() string { return fmt.Sprintf("s%d", seq.Add(1)) }),
	)
	return &schedulerFixture{center: center, prefs: prefs, metrics: m, sched: sched}
}

func TestScheduleQuiz_SubmitsOnePerSlot(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)

	res := f.sched.ScheduleQuizNotifications(context.Background(), "male", "")
	assert.Equal(t, ScheduleResult{Type: models.NotificationQuiz, Scheduled: 3}, res)

	quiz := f.center.ofType(models.NotificationQuiz)
	require.Len(t, quiz, 3)

	windowStart := time.Date(2026, time.March, 11, 18, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i, req := range quiz {
		assert.True(t, strings.HasPrefix(req.ID, fmt.Sprintf("quiz_%d_", i)), req.ID)
		assert.False(t, req.FireAt.Before(windowStart))
		assert.True(t, req.FireAt.Before(windowEnd))
		if i > 0 {
			assert.True(t, req.FireAt.After(quiz[i-1].FireAt))
		}
		assert.Equal(t, "Daily Check-in", req.Title)
		assert.Equal(t, "quiz", req.Payload[models.PayloadType])

		id := req.Payload[models.PayloadMessageID]
		assert.False(t, seen[id], "message %s repeated", id)
		seen[id] = true
		assert.Contains(t, []string{"m1", "m2", "m3", "b1"}, id)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Scheduled.WithLabelValues("quiz")))
}

func TestScheduleQuiz_UsesDisplayNameAsTitle(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)

	f.sched.ScheduleQuizNotifications(context.Background(), "female", "  Sam  ")
	for _, req := range f.center.ofType(models.NotificationQuiz) {
		assert.Equal(t, "Sam", req.Title)
	}
}

func TestScheduleQuiz_RepeatedCallsReplacePending(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)
	ctx := context.Background()

	f.sched.ScheduleStreakNotification(ctx, 2)
	f.sched.ScheduleQuizNotifications(ctx, "male", "")
	res := f.sched.ScheduleQuizNotifications(ctx, "male", "")

	assert.Equal(t, 3, res.Cancelled)
	assert.Equal(t, 3, res.Scheduled)
	assert.Len(t, f.center.ofType(models.NotificationQuiz), 3)
	assert.Len(t, f.center.ofType(models.NotificationStreakCelebration), 1)
}

func TestScheduleQuiz_ConcurrentCallsLeaveOneSet(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.sched.ScheduleQuizNotifications(context.Background(), "male", "")
		}()
	}
	wg.Wait()

	assert.Len(t, f.center.ofType(models.NotificationQuiz), 3)
}

func TestSchedule_NotAuthorizedLeavesPendingAlone(t *testing.T) {
	for _, status := range []models.AuthorizationStatus{
		models.AuthorizationNotDetermined,
		models.AuthorizationDenied,
		models.AuthorizationRestricted,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newSchedulerFixture(status)
			f.center.add(models.NotificationRequest{ID: "quiz_0_old"})

			quiz := f.sched.ScheduleQuizNotifications(context.Background(), "male", "")
			streak := f.sched.ScheduleStreakNotification(context.Background(), 3)

			assert.Equal(t, SkipNotAuthorized, quiz.Skipped)
			assert.Equal(t, SkipNotAuthorized, streak.Skipped)
			assert.Empty(t, f.center.submitted)
			assert.Zero(t, f.center.cancelCall)
			assert.Len(t, f.center.ofType(models.NotificationQuiz), 1)
		})
	}
}

func TestSchedule_PermissionErrorReadsAsNotAuthorized(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)
	f.center.permErr = errBoom

	res := f.sched.ScheduleQuizNotifications(context.Background(), "male", "")
	assert.Equal(t, SkipNotAuthorized, res.Skipped)
	assert.Empty(t, f.center.submitted)
}

func TestSchedule_DisabledFeatureCancelsItsType(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)
	f.center.add(models.NotificationRequest{ID: "quiz_0_old"})
	f.center.add(models.NotificationRequest{ID: "streakCelebration_4_old"})
	f.prefs.toggles = models.FeatureToggles{QuizEnabled: false, StreakCelebrationEnabled: true}

	res := f.sched.ScheduleQuizNotifications(context.Background(), "male", "")

	assert.Equal(t, SkipDisabled, res.Skipped)
	assert.Equal(t, 1, res.Cancelled)
	assert.Empty(t, f.center.ofType(models.NotificationQuiz))
	assert.Len(t, f.center.ofType(models.NotificationStreakCelebration), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Skipped.WithLabelValues("quiz", SkipDisabled)))
}

func TestSchedule_CancelFailureSubmitsNothing(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)
	f.center.listErr = errBoom

	res := f.sched.ScheduleStreakNotification(context.Background(), 1)
	assert.Equal(t, SkipCancelFailed, res.Skipped)
	assert.Empty(t, f.center.submitted)
}

func TestScheduleQuiz_SubmitFailureDoesNotStopLaterSlots(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)
	f.center.submitErr = func(req models.NotificationRequest) error {
		if strings.HasPrefix(req.ID, "quiz_1_") {
			return errBoom
		}
		return nil
	}

	res := f.sched.ScheduleQuizNotifications(context.Background(), "male", "")

	assert.Equal(t, 2, res.Scheduled)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SubmitFailures.WithLabelValues("quiz")))
}

func TestScheduleQuiz_UnknownAudienceSubmitsNothing(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)

	res := f.sched.ScheduleQuizNotifications(context.Background(), "robot", "")
	assert.Zero(t, res.Scheduled)
	assert.Empty(t, f.center.submitted)
}

func TestScheduleQuiz_BlankAudienceKeepsPending(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)
	f.center.add(models.NotificationRequest{ID: "quiz_0_old"})

	res := f.sched.ScheduleQuizNotifications(context.Background(), "  ", "")

	assert.Equal(t, SkipNoAudience, res.Skipped)
	assert.Zero(t, f.center.cancelCall)
	assert.Len(t, f.center.ofType(models.NotificationQuiz), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Skipped.WithLabelValues("quiz", SkipNoAudience)))
}

func TestScheduleStreak_AnnouncesNextDayAfterMidnight(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)

	res := f.sched.ScheduleStreakNotification(context.Background(), 6)
	require.Equal(t, 1, res.Scheduled)

	pending := f.center.ofType(models.NotificationStreakCelebration)
	require.Len(t, pending, 1)
	req := pending[0]
	assert.True(t, strings.HasPrefix(req.ID, "streakCelebration_7_"), req.ID)
	assert.Equal(t, time.Date(2026, time.March, 11, 0, 0, 5, 0, time.UTC), req.FireAt)
	assert.Equal(t, "🏅 One Week", req.Title)
	assert.Equal(t, "A full week", req.Body)
	assert.Equal(t, map[string]string{
		models.PayloadType:   "streakCelebration",
		models.PayloadStreak: "7",
	}, req.Payload)
}

func TestScheduleStreak_GenericTemplateAndNegativeStreak(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)
	ctx := context.Background()

	f.sched.ScheduleStreakNotification(ctx, 11)
	req := f.center.ofType(models.NotificationStreakCelebration)[0]
	assert.Equal(t, "🔥 12 Days", req.Title)
	assert.Equal(t, "Day 12!", req.Body)

	f.sched.ScheduleStreakNotification(ctx, -4)
	pending := f.center.ofType(models.NotificationStreakCelebration)
	require.Len(t, pending, 1)
	assert.Equal(t, "1", pending[0].Payload[models.PayloadStreak])
}

func TestCancelNotifications_OnlyTouchesType(t *testing.T) {
	f := newSchedulerFixture(models.AuthorizationAuthorized)
	ctx := context.Background()
	f.sched.ScheduleQuizNotifications(ctx, "male", "")
	f.sched.ScheduleStreakNotification(ctx, 2)
	f.center.add(models.NotificationRequest{ID: "other_1"})

	n, err := f.sched.CancelNotifications(ctx, models.NotificationStreakCelebration)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.center.ofType(models.NotificationStreakCelebration))
	assert.Len(t, f.center.ofType(models.NotificationQuiz), 3)

	pending, err := f.sched.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 4)

	_, err = f.sched.CancelNotifications(ctx, models.NotificationType("bogus"))
	assert.Error(t, err)
}
