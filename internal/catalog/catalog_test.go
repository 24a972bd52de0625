package catalog

import (
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCelebration_ExactMilestone(t *testing.T) {
	c := New(nil,
		[]models.MilestoneMessage{{Day: 7, Emoji: "🏅", Title: "One Week", Message: "Seven days", Notification: "A week!"}},
		[]models.GenericStreakTemplate{{Emoji: "🔥", Title: "{streak} days", Message: "m", Notification: "n"}},
	)

	got := c.Celebration(7)
	assert.Equal(t, models.Celebration{Day: 7, Emoji: "🏅", Title: "One Week", Body: "Seven days", NotificationBody: "A week!"}, got)
}

func TestCelebration_GenericTemplateSubstitutesEveryField(t *testing.T) {
	c := New(nil, nil, []models.GenericStreakTemplate{{
		Emoji:        "🔥",
		Title:        "{streak} Day Streak",
		Message:      "You reached {streak} days, {streak} in a row",
		Notification: "Day {streak}!",
	}})

	got := c.Celebration(12)
	assert.Equal(t, "12 Day Streak", got.Title)
	assert.Equal(t, "You reached 12 days, 12 in a row", got.Body)
	assert.Equal(t, "Day 12!", got.NotificationBody)
	for _, field := range []string{got.Emoji, got.Title, got.Body, got.NotificationBody} {
		assert.NotContains(t, field, models.StreakPlaceholder)
	}
}

func TestCelebration_GenericPickIsRandom(t *testing.T) {
	generic := []models.GenericStreakTemplate{
		{Title: "A {streak}"},
		{Title: "B {streak}"},
		{Title: "C {streak}"},
	}
	c := New(nil, nil, generic, WithRand(rand.New(rand.NewSource(1))))

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[c.Celebration(4).Title] = true
	}
	assert.Len(t, seen, 3)
}

func TestCelebration_EmptyCatalogFallsBack(t *testing.T) {
	c := New(nil, nil, nil)

	got := c.Celebration(9)
	assert.Equal(t, "🔥", got.Emoji)
	assert.Contains(t, got.Title, "9")
	assert.Contains(t, got.Body, "9")
	assert.Contains(t, got.NotificationBody, "9")
}

func TestLoad_BundledData(t *testing.T) {
	c := Load("", testLogger())

	require.NotEmpty(t, c.Messages())
	assert.NotEmpty(t, c.MessagesForTag("male"))
	assert.NotEmpty(t, c.MessagesForTag("female"))

	got := c.Celebration(30)
	assert.Equal(t, "One Month", got.Title)
}

func TestLoad_MissingDirectoryYieldsEmptyCatalog(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "missing"), testLogger())

	assert.Empty(t, c.Messages())
	_, ok := c.RandomMessage()
	assert.False(t, ok)
	assert.Equal(t, FallbackCelebration(5), c.Celebration(5))
}

func TestLoad_MalformedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, QuizFile), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, CelebrationFile), []byte(`{"milestones": 3}`), 0o600))

	c := Load(dir, testLogger())
	assert.Empty(t, c.Messages())
	assert.Equal(t, "🔥", c.Celebration(2).Emoji)
}

func TestLoadQuizMessages_DropsIncompleteAndDuplicates(t *testing.T) {
	data := []byte(`{"messages": [
		{"id": "a", "text": "first", "audienceTags": ["male"]},
		{"id": "a", "text": "dup", "audienceTags": ["male"]},
		{"id": "", "text": "no id"},
		{"id": "b", "text": "  "},
		{"id": "c", "text": "third", "audienceTags": ["female"]}
	]}`)

	got := LoadQuizMessages(data, testLogger())
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "c", got[1].ID)
}

func TestMessageLookup(t *testing.T) {
	c := New([]models.MessageVariant{
		{ID: "m1", Text: "one", AudienceTags: []string{"male"}},
		{ID: "f1", Text: "two", AudienceTags: []string{"female"}},
		{ID: "b1", Text: "three", AudienceTags: []string{"male", "female"}},
	}, nil, nil)

	msg, ok := c.Message("f1")
	require.True(t, ok)
	assert.Equal(t, "two", msg.Text)

	_, ok = c.Message("nope")
	assert.False(t, ok)

	ids := []string{}
	for _, m := range c.MessagesForTag("male") {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, "m1,b1", strings.Join(ids, ","))
}

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]interface{}
		want     string
	}{
		{"single", "{streak} days", map[string]interface{}{"streak": 4}, "4 days"},
		{"spaced", "day { streak }", map[string]interface{}{"streak": 4}, "day 4"},
		{"unknown key kept", "{name} at {streak}", map[string]interface{}{"streak": 2}, "{name} at 2"},
		{"no vars", "{streak}", nil, "{streak}"},
		{"empty", "", map[string]interface{}{"streak": 1}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.template, tt.vars))
		})
	}
}
