// Package catalog holds the static notification content: quiz messages,
// streak milestones and the generic celebration templates.
package catalog

import (
	"embed"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
)

const (
	QuizFile        = "quiz.json"
	CelebrationFile = "celebrations.json"
)

//go:embed data/*.json
var bundled embed.FS

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	messages   []models.MessageVariant
	byID       map[string]models.MessageVariant
	milestones map[int]models.MilestoneMessage
	generic    []models.GenericStreakTemplate

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithRand replaces the random source used to pick generic templates and
// random messages.
func WithRand(rnd *rand.Rand) Option {
	return func(c *Catalog) {
		c.rnd = rnd
	}
}

// New builds a catalog from already decoded content.
func New(messages []models.MessageVariant, milestones []models.MilestoneMessage, generic []models.GenericStreakTemplate, opts ...Option) *Catalog {
	c := &Catalog{
		messages:   messages,
		byID:       make(map[string]models.MessageVariant, len(messages)),
		milestones: make(map[int]models.MilestoneMessage, len(milestones)),
		generic:    generic,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, m := range messages {
		c.byID[m.ID] = m
	}
	for _, m := range milestones {
		c.milestones[m.Day] = m
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads both datasets from dir, or from the copies bundled into the
// binary when dir is empty. A missing file leaves that part of the catalog
// empty; it never fails.
func Load(dir string, logger *slog.Logger, opts ...Option) *Catalog {
	quiz := readDataset(dir, QuizFile, logger)
	celebrations := readDataset(dir, CelebrationFile, logger)

	c := New(
		LoadQuizMessages(quiz, logger),
		LoadMilestones(celebrations, logger),
		LoadGenericTemplates(celebrations, logger),
		opts...,
	)
	logger.Info("catalog loaded",
		slog.Int("messages", len(c.messages)),
		slog.Int("milestones", len(c.milestones)),
		slog.Int("generic_templates", len(c.generic)),
	)
	return c
}

func readDataset(dir, name string, logger *slog.Logger) []byte {
	var (
		data []byte
		err  error
	)
	if dir == "" {
		data, err = bundled.ReadFile("data/" + name)
	} else {
		data, err = os.ReadFile(filepath.Join(dir, name))
	}
	if err != nil {
		logger.Warn("catalog dataset unavailable", slog.String("dataset", name), slog.Any("error", err))
		return nil
	}
	return data
}

// Messages returns every quiz message.
func (c *Catalog) Messages() []models.MessageVariant {
	return c.messages
}

// Message looks a quiz message up by id.
func (c *Catalog) Message(id string) (models.MessageVariant, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// MessagesForTag returns the quiz messages eligible for the audience tag.
func (c *Catalog) MessagesForTag(tag string) []models.MessageVariant {
	var out []models.MessageVariant
	for _, m := range c.messages {
		if m.HasTag(tag) {
			out = append(out, m)
		}
	}
	return out
}

// RandomMessage picks any quiz message regardless of audience.
func (c *Catalog) RandomMessage() (models.MessageVariant, bool) {
	if len(c.messages) == 0 {
		return models.MessageVariant{}, false
	}
	return c.messages[c.intn(len(c.messages))], true
}

// Celebration resolves the content for a streak day: the exact milestone if
// one exists, else a random generic template rendered for day, else a fixed
// fallback.
func (c *Catalog) Celebration(day int) models.Celebration {
	if m, ok := c.milestones[day]; ok {
		return models.Celebration{
			Day:              day,
			Emoji:            m.Emoji,
			Title:            m.Title,
			Body:             m.Message,
			NotificationBody: m.Notification,
		}
	}

	if len(c.generic) > 0 {
		tpl := c.generic[c.intn(len(c.generic))]
		return models.Celebration{
			Day:              day,
			Emoji:            renderStreak(tpl.Emoji, day),
			Title:            renderStreak(tpl.Title, day),
			Body:             renderStreak(tpl.Message, day),
			NotificationBody: renderStreak(tpl.Notification, day),
		}
	}

	return FallbackCelebration(day)
}

// FallbackCelebration is used when the catalog has no celebration content at all.
func FallbackCelebration(day int) models.Celebration {
	return models.Celebration{
		Day:              day,
		Emoji:            "🔥",
		Title:            fmt.Sprintf("%d Day Streak!", day),
		Body:             fmt.Sprintf("You've stayed on track for %d days in a row. Keep going!", day),
		NotificationBody: fmt.Sprintf("%d days strong! Open the app to celebrate your streak.", day),
	}
}

func (c *Catalog) intn(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.Intn(n)
}
