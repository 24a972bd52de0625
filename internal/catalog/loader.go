package catalog

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
)

type quizFile struct {
	Messages []models.MessageVariant `json:"messages"`
}

type celebrationFile struct {
	Milestones []models.MilestoneMessage      `json:"milestones"`
	Generic    []models.GenericStreakTemplate `json:"generic"`
}

// LoadQuizMessages decodes the quiz dataset. Missing or malformed data yields
// an empty slice; entries without an id or text are dropped, as are repeated ids.
func LoadQuizMessages(data []byte, logger *slog.Logger) []models.MessageVariant {
	var file quizFile
	if !decode(data, &file, "quiz", logger) {
		return nil
	}

	seen := make(map[string]struct{}, len(file.Messages))
	out := make([]models.MessageVariant, 0, len(file.Messages))
	for _, msg := range file.Messages {
		if strings.TrimSpace(msg.ID) == "" || strings.TrimSpace(msg.Text) == "" {
			logger.Warn("skipping incomplete quiz message", slog.String("id", msg.ID))
			continue
		}
		if _, dup := seen[msg.ID]; dup {
			logger.Warn("skipping duplicate quiz message", slog.String("id", msg.ID))
			continue
		}
		seen[msg.ID] = struct{}{}
		out = append(out, msg)
	}
	return out
}

// LoadMilestones decodes the milestone list of the celebration dataset.
func LoadMilestones(data []byte, logger *slog.Logger) []models.MilestoneMessage {
	var file celebrationFile
	if !decode(data, &file, "celebration", logger) {
		return nil
	}
	out := make([]models.MilestoneMessage, 0, len(file.Milestones))
	for _, m := range file.Milestones {
		if m.Day <= 0 {
			logger.Warn("skipping milestone with invalid day", slog.Int("day", m.Day))
			continue
		}
		out = append(out, m)
	}
	return out
}

// LoadGenericTemplates decodes the generic template list of the celebration dataset.
func LoadGenericTemplates(data []byte, logger *slog.Logger) []models.GenericStreakTemplate {
	var file celebrationFile
	if !decode(data, &file, "celebration", logger) {
		return nil
	}
	return file.Generic
}

func decode(data []byte, v interface{}, dataset string, logger *slog.Logger) bool {
	if len(data) == 0 {
		logger.Warn("catalog dataset is empty", slog.String("dataset", dataset))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("catalog dataset is malformed", slog.String("dataset", dataset), slog.Any("error", err))
		return false
	}
	return true
}
