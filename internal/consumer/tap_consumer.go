package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/settle"
)

// TapHandler handles one decoded tap event.
type TapHandler interface {
	Handle(ctx context.Context, ev models.TapEvent) error
}

// TapConsumer feeds notification taps published by the gateway into the
// dispatcher.
type TapConsumer struct {
	base          *BaseConsumer
	handler       TapHandler
	logger        *slog.Logger
	maxDeliveries int
	// LaunchSettleDelay holds back the first tap until the rest of the
	// process has finished starting. Ready replaces it when set.
	LaunchSettleDelay time.Duration
	Ready             <-chan struct{}
	// Permanent reports errors that must not be requeued.
	Permanent func(error) bool
}

func NewTapConsumer(base *BaseConsumer, handler TapHandler, logger *slog.Logger, maxDeliveries int, launchSettleDelay time.Duration) *TapConsumer {
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}
	return &TapConsumer{
		base:              base,
		handler:           handler,
		logger:            logger,
		maxDeliveries:     maxDeliveries,
		LaunchSettleDelay: launchSettleDelay,
	}
}

func (p *TapConsumer) Start(ctx context.Context) error {
	if err := settle.Wait(ctx, p.Ready, p.LaunchSettleDelay); err != nil {
		return nil
	}
	p.logger.Info("tap consumer started")
	return p.base.Start(ctx, p.handleDelivery)
}

func (p *TapConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var ev models.TapEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		p.logger.Error("failed to unmarshal tap event", slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}

	if err := p.handler.Handle(ctx, ev); err != nil {
		if p.Permanent != nil && p.Permanent(err) {
			p.logger.Error("tap event rejected", slog.String("device_id", ev.DeviceID), slog.Any("error", err))
			_ = msg.Reject(false)
			return err
		}
		requeue := p.shouldRetry(&msg)
		if requeue {
			p.logger.Warn("tap handling failed, message requeued", slog.String("device_id", ev.DeviceID), slog.Any("error", err))
		} else {
			p.logger.Error("tap handling failed, message dead-lettered", slog.String("device_id", ev.DeviceID), slog.Any("error", err))
		}
		_ = msg.Nack(false, requeue)
		return err
	}

	return msg.Ack(false)
}

func (p *TapConsumer) shouldRetry(msg *amqp.Delivery) bool {
	return deliveryAttempts(msg) < p.maxDeliveries
}

func deliveryAttempts(msg *amqp.Delivery) int {
	if raw, ok := msg.Headers["x-death"]; ok {
		if deaths, ok := raw.([]interface{}); ok && len(deaths) > 0 {
			if table, ok := deaths[0].(amqp.Table); ok {
				if count, ok := table["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}
	if msg.Redelivered {
		return 1
	}
	return 0
}

// IsPermanent builds a Permanent check matching target.
func IsPermanent(target error) func(error) bool {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}
