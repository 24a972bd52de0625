package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/catalog"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/errs"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/logger"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/metrics"
)

var errBoom = errors.New("boom")

type fakeCenter struct {
	mu         sync.Mutex
	pending    map[string]models.NotificationRequest
	status     models.AuthorizationStatus
	grant      bool
	permErr    error
	listErr    error
	cancelErr  error
	submitErr  func(models.NotificationRequest) error
	submitted  []models.NotificationRequest
	cancelCall int
}

func newFakeCenter(status models.AuthorizationStatus) *fakeCenter {
	return &fakeCenter{pending: make(map[string]models.NotificationRequest), status: status}
}

func (c *fakeCenter) Submit(_ context.Context, req models.NotificationRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitErr != nil {
		if err := c.submitErr(req); err != nil {
			return err
		}
	}
	c.pending[req.ID] = req
	c.submitted = append(c.submitted, req)
	return nil
}

func (c *fakeCenter) ListPending(context.Context) ([]models.NotificationRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	out := make([]models.NotificationRequest, 0, len(c.pending))
	for _, r := range c.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func (c *fakeCenter) Cancel(_ context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelCall++
	if c.cancelErr != nil {
		return c.cancelErr
	}
	for _, id := range ids {
		delete(c.pending, id)
	}
	return nil
}

func (c *fakeCenter) CancelAll(ctx context.Context) error {
	c.mu.Lock()
	c.pending = make(map[string]models.NotificationRequest)
	c.mu.Unlock()
	return nil
}

func (c *fakeCenter) CheckPermission(context.Context) (models.AuthorizationStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.permErr
}

func (c *fakeCenter) RequestPermission(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.permErr != nil {
		return false, c.permErr
	}
	return c.grant, nil
}

func (c *fakeCenter) add(req models.NotificationRequest) {
	c.mu.Lock()
	c.pending[req.ID] = req
	c.mu.Unlock()
}

func (c *fakeCenter) ofType(typ models.NotificationType) []models.NotificationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.NotificationRequest
	for id, r := range c.pending {
		if typ.Owns(id) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

type fakePrefs struct {
	mu       sync.Mutex
	lastDay  int
	toggles  models.FeatureToggles
	readErr  error
	writeErr error
	writes   []int
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{toggles: models.DefaultToggles()}
}

func (p *fakePrefs) LastShownStreakDay(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDay, p.readErr
}

func (p *fakePrefs) SetLastShownStreakDay(_ context.Context, day int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	p.lastDay = day
	p.writes = append(p.writes, day)
	return nil
}

func (p *fakePrefs) Toggles(context.Context) (models.FeatureToggles, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.toggles, p.readErr
}

func (p *fakePrefs) SetToggles(_ context.Context, t models.FeatureToggles) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toggles = t
	return p.writeErr
}

type fakePresenter struct {
	mu           sync.Mutex
	quizzes      []models.MessageVariant
	celebrations []CelebrationView
	err          error
}

func (p *fakePresenter) ShowQuiz(_ context.Context, _ string, msg models.MessageVariant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quizzes = append(p.quizzes, msg)
	return p.err
}

func (p *fakePresenter) ShowCelebration(_ context.Context, _ string, view CelebrationView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.celebrations = append(p.celebrations, view)
	return p.err
}

type fakeDevices struct {
	mu         sync.Mutex
	devices    map[string]models.Device
	suppressed map[string]bool
	lookupErr  error
}

func newFakeDevices(devices ...models.Device) *fakeDevices {
	d := &fakeDevices{devices: make(map[string]models.Device), suppressed: make(map[string]bool)}
	for _, dev := range devices {
		d.devices[dev.ID] = dev
	}
	return d
}

func (d *fakeDevices) Device(_ context.Context, id string) (models.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookupErr != nil {
		return models.Device{}, d.lookupErr
	}
	dev, ok := d.devices[id]
	if !ok {
		return models.Device{}, errs.ErrDeviceNotFound
	}
	return dev, nil
}

func (d *fakeDevices) IsTokenSuppressed(_ context.Context, token string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed[token], nil
}

func (d *fakeDevices) SuppressToken(_ context.Context, token string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suppressed[token] = true
	return nil
}

type fakeProvider struct {
	mu       sync.Mutex
	sent     []*PushPayload
	failures int
	fatal    string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Send(_ context.Context, payload *PushPayload) (models.DeliveryResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, payload)
	res := models.DeliveryResult{Token: payload.Token, Provider: p.Name()}
	if p.fatal != "" {
		res.Error = p.fatal
		return res, errors.New(p.fatal)
	}
	if p.failures > 0 {
		p.failures--
		return res, errBoom
	}
	res.Delivered = true
	return res, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]models.MessageVariant{
			{ID: "m1", Text: "Male one", AudienceTags: []string{"male"}},
			{ID: "m2", Text: "Male two", AudienceTags: []string{"male"}},
			{ID: "m3", Text: "Male three", AudienceTags: []string{"male"}},
			{ID: "f1", Text: "Female one", AudienceTags: []string{"female"}},
			{ID: "b1", Text: "Both", AudienceTags: []string{"male", "female"}},
		},
		[]models.MilestoneMessage{
			{Day: 1, Emoji: "🌱", Title: "Day One", Message: "You started", Notification: "Day one done"},
			{Day: 7, Emoji: "🏅", Title: "One Week", Message: "Seven days", Notification: "A full week"},
		},
		[]models.GenericStreakTemplate{
			{Emoji: "🔥", Title: "{streak} Days", Message: "{streak} days strong", Notification: "Day {streak}!"},
		},
	)
}

func testMetrics() *metrics.Metrics {
	return metrics.New("test")
}

var discard = logger.Discard()
