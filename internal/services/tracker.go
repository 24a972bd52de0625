package services

import (
	"math/rand"
	"sync"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/catalog"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
)

// UsedMessageTracker picks quiz messages without repeating one until every
// message for the audience has been used. The used set lives only as long as
// the process.
type UsedMessageTracker struct {
	catalog *catalog.Catalog

	mu   sync.Mutex
	used map[string]struct{}
	rnd  *rand.Rand
}

func NewUsedMessageTracker(c *catalog.Catalog, rnd *rand.Rand) *UsedMessageTracker {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &UsedMessageTracker{
		catalog: c,
		used:    make(map[string]struct{}),
		rnd:     rnd,
	}
}

// PickMessage returns a random unused message for tag and marks it used. Once
// every message for tag is used the whole set is cleared and the pick is made
// from all of them again. It only reports false when no message carries tag.
func (t *UsedMessageTracker) PickMessage(tag string) (models.MessageVariant, bool) {
	candidates := t.catalog.MessagesForTag(tag)
	if len(candidates) == 0 {
		return models.MessageVariant{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fresh := make([]models.MessageVariant, 0, len(candidates))
	for _, m := range candidates {
		if _, seen := t.used[m.ID]; !seen {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == 0 {
		t.used = make(map[string]struct{})
		fresh = candidates
	}

	pick := fresh[t.rnd.Intn(len(fresh))]
	t.used[pick.ID] = struct{}{}
	return pick, true
}

// MarkUsed records a message delivered through another path.
func (t *UsedMessageTracker) MarkUsed(id string) {
	t.mu.Lock()
	t.used[id] = struct{}{}
	t.mu.Unlock()
}

// Used is the number of message ids currently marked used.
func (t *UsedMessageTracker) Used() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.used)
}

// Reset forgets every used message so all of them are eligible again.
func (t *UsedMessageTracker) Reset() {
	t.mu.Lock()
	t.used = make(map[string]struct{})
	t.mu.Unlock()
}

// Message resolves a tapped notification's message id.
func (t *UsedMessageTracker) Message(id string) (models.MessageVariant, bool) {
	return t.catalog.Message(id)
}
