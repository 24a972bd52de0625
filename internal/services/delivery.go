package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/errs"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/metrics"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/retry"
)

// PayloadIdentifier carries the request id in the pushed data so the tap
// event can echo it back.
const PayloadIdentifier = "identifier"

var errUndeliverable = errors.New("no deliverable token")

// DeliveryWorker fires pending notifications once their time has come.
type DeliveryWorker struct {
	due         DueSource
	devices     DeviceDirectory
	provider    PushProvider
	status      *StatusUpdater
	metrics     *metrics.Metrics
	logger      *slog.Logger
	retryCfg    retry.Config
	interval    time.Duration
	batch       int
	suppressTTL time.Duration
	now         func() time.Time
}

func NewDeliveryWorker(
	due DueSource,
	devices DeviceDirectory,
	provider PushProvider,
	status *StatusUpdater,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	retryCfg retry.Config,
	interval time.Duration,
	batch int,
) *DeliveryWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	retryCfg.OnRetry = func(int, error) { metrics.Retried.Inc() }
	return &DeliveryWorker{
		due:         due,
		devices:     devices,
		provider:    provider,
		status:      status,
		metrics:     metrics,
		logger:      logger,
		retryCfg:    retryCfg,
		interval:    interval,
		batch:       batch,
		suppressTTL: 7 * 24 * time.Hour,
		now:         time.Now,
	}
}

// Run polls for due notifications until ctx is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("delivery worker started", slog.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.DeliverDue(ctx)
		}
	}
}

// DeliverDue sends every notification due now and returns how many were
// delivered. Claimed notifications are never retried by a later poll.
func (w *DeliveryWorker) DeliverDue(ctx context.Context) int {
	delivered := 0
	for {
		due, err := w.due.ClaimDue(ctx, w.now(), w.batch)
		if err != nil {
			w.logger.Error("failed to claim due notifications", slog.Any("error", err))
			return delivered
		}
		for _, n := range due {
			if w.deliver(ctx, n) {
				delivered++
			}
		}
		if len(due) < w.batch || ctx.Err() != nil {
			return delivered
		}
	}
}

func (w *DeliveryWorker) deliver(ctx context.Context, n models.DueNotification) bool {
	log := w.logger.With(slog.String("device_id", n.DeviceID), slog.String("request_id", n.Request.ID))

	token, err := w.tokenFor(ctx, n.DeviceID)
	if err != nil {
		w.metrics.Failed.Inc()
		if errors.Is(err, errUndeliverable) || errors.Is(err, errs.ErrDeviceNotFound) {
			log.Warn("skipping notification", slog.Any("error", err))
			w.status.MarkSkipped(ctx, n, err.Error())
			return false
		}
		log.Error("failed to resolve device", slog.Any("error", err))
		w.status.MarkFailed(ctx, n, w.provider.Name(), err.Error())
		return false
	}

	payload := &PushPayload{
		Token: token,
		Title: n.Request.Title,
		Body:  n.Request.Body,
		Data:  deliveryData(n.Request),
	}
	sendErr := retry.Do(ctx, w.retryCfg, func() error {
		res, err := w.provider.Send(ctx, payload)
		if err == nil {
			return nil
		}
		if isTokenFatal(res.Error) {
			if supErr := w.devices.SuppressToken(ctx, token, w.suppressTTL); supErr != nil {
				log.Warn("failed to suppress token", slog.Any("error", supErr))
			}
			return retry.Permanent(err)
		}
		log.Warn("push send failed", slog.Any("error", err))
		return err
	})
	if sendErr != nil {
		w.metrics.Failed.Inc()
		w.status.MarkFailed(ctx, n, w.provider.Name(), sendErr.Error())
		log.Error("notification not delivered", slog.Any("error", sendErr))
		return false
	}

	w.metrics.Delivered.Inc()
	w.status.MarkDelivered(ctx, n, w.provider.Name())
	return true
}

func (w *DeliveryWorker) tokenFor(ctx context.Context, deviceID string) (string, error) {
	device, err := w.devices.Device(ctx, deviceID)
	if err != nil {
		return "", err
	}
	if device.Token == "" || models.PlatformCategory(device.Platform) != "mobile" {
		return "", fmt.Errorf("%w: platform %q", errUndeliverable, device.Platform)
	}
	suppressed, err := w.devices.IsTokenSuppressed(ctx, device.Token)
	if err != nil {
		return "", err
	}
	if suppressed {
		return "", fmt.Errorf("%w: token suppressed", errUndeliverable)
	}
	return device.Token, nil
}

func deliveryData(req models.NotificationRequest) map[string]string {
	data := make(map[string]string, len(req.Payload)+1)
	for k, v := range req.Payload {
		data[k] = v
	}
	data[PayloadIdentifier] = req.ID
	return data
}
