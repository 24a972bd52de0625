package services

import (
	"context"
	"log/slog"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/repository"
)

const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// StatusRecorder persists the delivery outcome of a notification request.
type StatusRecorder interface {
	UpdateStatus(ctx context.Context, status repository.DeliveryStatus) error
}

// StatusUpdater records delivery outcomes. Recording is best effort; failures
// are only logged.
type StatusUpdater struct {
	store  StatusRecorder
	logger *slog.Logger
}

func NewStatusUpdater(store StatusRecorder, logger *slog.Logger) *StatusUpdater {
	return &StatusUpdater{
		store:  store,
		logger: logger,
	}
}

func (s *StatusUpdater) MarkDelivered(ctx context.Context, n models.DueNotification, provider string) {
	s.update(ctx, n, StatusDelivered, provider, "")
}

func (s *StatusUpdater) MarkFailed(ctx context.Context, n models.DueNotification, provider, detail string) {
	s.update(ctx, n, StatusFailed, provider, detail)
}

func (s *StatusUpdater) MarkSkipped(ctx context.Context, n models.DueNotification, detail string) {
	s.update(ctx, n, StatusSkipped, "", detail)
}

func (s *StatusUpdater) update(ctx context.Context, n models.DueNotification, status, provider, detail string) {
	if s == nil || s.store == nil {
		return
	}
	err := s.store.UpdateStatus(ctx, repository.DeliveryStatus{
		RequestID: n.Request.ID,
		DeviceID:  n.DeviceID,
		Type:      string(n.Request.Type()),
		Status:    status,
		Provider:  provider,
		Detail:    detail,
	})
	if err != nil {
		s.logger.Error("failed to record delivery status",
			slog.String("request_id", n.Request.ID), slog.String("status", status), slog.Any("error", err))
	}
}
