package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/catalog"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/errs"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/metrics"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/settle"
)

// ErrInvalidTap marks a tap event that can never be handled, so retrying it is pointless.
var ErrInvalidTap = errors.New("invalid tap event")

// TapDispatcher routes tapped notifications back into the app: quiz taps open
// the quiz, streak taps force a celebration.
type TapDispatcher struct {
	sessions  *Sessions
	devices   DeviceDirectory
	catalog   *catalog.Catalog
	presenter Presenter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	// TapSettleDelay lets the app finish navigating to the tapped screen
	// before the quiz is pushed.
	TapSettleDelay time.Duration
}

func NewTapDispatcher(sessions *Sessions, devices DeviceDirectory, catalog *catalog.Catalog, presenter Presenter, metrics *metrics.Metrics, logger *slog.Logger, tapSettleDelay time.Duration) *TapDispatcher {
	return &TapDispatcher{
		sessions:       sessions,
		devices:        devices,
		catalog:        catalog,
		presenter:      presenter,
		metrics:        metrics,
		logger:         logger,
		TapSettleDelay: tapSettleDelay,
	}
}

// Handle processes one tap. Taps from unregistered devices are invalid;
// otherwise only lookup and presenter failures are returned, and a payload
// that cannot be decoded falls back to a random quiz message.
func (d *TapDispatcher) Handle(ctx context.Context, ev models.TapEvent) error {
	if ev.DeviceID == "" {
		return ErrInvalidTap
	}
	sess, err := d.session(ctx, ev.DeviceID)
	if err != nil {
		return err
	}
	log := d.logger.With(slog.String("device_id", ev.DeviceID), slog.String("identifier", ev.Identifier))

	switch ev.Type() {
	case models.NotificationQuiz:
		d.metrics.Taps.WithLabelValues(string(models.NotificationQuiz)).Inc()
		return d.openQuiz(ctx, sess, ev.Payload[models.PayloadMessageID], log)
	case models.NotificationStreakCelebration:
		d.metrics.Taps.WithLabelValues(string(models.NotificationStreakCelebration)).Inc()
		return d.forceCelebration(ctx, sess, log)
	default:
		d.metrics.Taps.WithLabelValues("unknown").Inc()
		log.Warn("undecodable tap payload, falling back to a random message", slog.Any("payload", ev.Payload))
		return d.openQuiz(ctx, sess, "", log)
	}
}

// session builds a session only for devices the directory knows about.
func (d *TapDispatcher) session(ctx context.Context, deviceID string) (*Session, error) {
	if sess, ok := d.sessions.Lookup(deviceID); ok {
		return sess, nil
	}
	if _, err := d.devices.Device(ctx, deviceID); err != nil {
		if errors.Is(err, errs.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: unregistered device %q", ErrInvalidTap, deviceID)
		}
		return nil, fmt.Errorf("look up device %q: %w", deviceID, err)
	}
	return d.sessions.Get(deviceID), nil
}

func (d *TapDispatcher) openQuiz(ctx context.Context, sess *Session, messageID string, log *slog.Logger) error {
	msg, ok := sess.Tracker.Message(messageID)
	if !ok {
		if messageID != "" {
			log.Warn("tapped message not in catalog, falling back to a random message", slog.String("message_id", messageID))
		}
		msg, ok = d.randomMessage(sess)
	}
	if !ok {
		log.Warn("catalog has no quiz messages to show")
		return nil
	}

	if err := settle.Wait(ctx, nil, d.TapSettleDelay); err != nil {
		return err
	}
	return d.presenter.ShowQuiz(ctx, sess.DeviceID, msg)
}

func (d *TapDispatcher) randomMessage(sess *Session) (models.MessageVariant, bool) {
	if tag := sess.AudienceTag(); tag != "" {
		if msg, ok := sess.Tracker.PickMessage(tag); ok {
			return msg, true
		}
	}
	return d.catalog.RandomMessage()
}

// forceCelebration queues a force. If the app has not reported its streak in
// this process yet, the force is picked up by the next foreground.
func (d *TapDispatcher) forceCelebration(ctx context.Context, sess *Session, log *slog.Logger) error {
	sess.Reconciler.RequestForce()

	state, ok := sess.Tracking()
	if !ok {
		log.Debug("streak unknown, celebration queued for next foreground")
		return nil
	}

	view, shown := sess.Reconciler.OnForeground(ctx, state)
	if !shown {
		return nil
	}
	return d.presenter.ShowCelebration(ctx, sess.DeviceID, view)
}
