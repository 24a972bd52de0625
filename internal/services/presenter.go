package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
)

// Data message actions understood by the app.
const (
	ActionShowQuiz        = "show_quiz"
	ActionShowCelebration = "show_celebration"
)

// PushPresenter surfaces UI on the device with silent data pushes that the
// app turns into the quiz chat or the celebration screen.
type PushPresenter struct {
	devices  DeviceDirectory
	provider PushProvider
	logger   *slog.Logger
}

func NewPushPresenter(devices DeviceDirectory, provider PushProvider, logger *slog.Logger) *PushPresenter {
	return &PushPresenter{
		devices:  devices,
		provider: provider,
		logger:   logger,
	}
}

func (p *PushPresenter) ShowQuiz(ctx context.Context, deviceID string, msg models.MessageVariant) error {
	quiz, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode quiz %s: %w", msg.ID, err)
	}
	return p.send(ctx, deviceID, map[string]string{
		"action":                ActionShowQuiz,
		models.PayloadMessageID: msg.ID,
		"quiz":                  string(quiz),
	})
}

func (p *PushPresenter) ShowCelebration(ctx context.Context, deviceID string, view CelebrationView) error {
	return p.send(ctx, deviceID, map[string]string{
		"action":          ActionShowCelebration,
		"previous_streak": strconv.Itoa(view.PreviousStreak),
		"current_streak":  strconv.Itoa(view.CurrentStreak),
		"emoji":           view.Celebration.Emoji,
		"title":           view.Celebration.Title,
		"body":            view.Celebration.Body,
	})
}

func (p *PushPresenter) send(ctx context.Context, deviceID string, data map[string]string) error {
	device, err := p.devices.Device(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("resolve device %s: %w", deviceID, err)
	}
	if _, err := p.provider.Send(ctx, &PushPayload{Token: device.Token, Data: data, DataOnly: true}); err != nil {
		p.logger.Warn("failed to present on device",
			slog.String("device_id", deviceID), slog.String("action", data["action"]), slog.Any("error", err))
		return err
	}
	return nil
}
