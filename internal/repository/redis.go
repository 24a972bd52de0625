package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/errs"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
)

const (
	dueKey            = "notify:due"
	permissionGranted = "granted"
	permissionDenied  = "denied"
)

func pendingKey(deviceID string) string    { return "notify:pending:" + deviceID }
func permissionKey(deviceID string) string { return "notify:permission:" + deviceID }
func answerKey(deviceID string) string     { return "notify:permission:answer:" + deviceID }
func deviceKey(deviceID string) string     { return "notify:device:" + deviceID }
func suppressedKey(token string) string    { return "push:token:suppressed:" + token }
func dueMember(deviceID, id string) string { return deviceID + "|" + id }

// RedisRepository keeps registered devices, every device's pending
// notification requests and permission state, plus the due-time index the
// delivery worker polls.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
	// answerPoll bounds each blocking wait for a permission answer so that
	// context cancellation is noticed.
	answerPoll time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client:     client,
		ttl:        ttl,
		answerPoll: time.Second,
	}
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// RegisterDevice stores or refreshes a device's push token.
func (r *RedisRepository) RegisterDevice(ctx context.Context, device models.Device) error {
	return r.client.HSet(ctx, deviceKey(device.ID), map[string]interface{}{
		"token":    device.Token,
		"platform": device.Platform,
	}).Err()
}

// Device returns a registered device or errs.ErrDeviceNotFound.
func (r *RedisRepository) Device(ctx context.Context, deviceID string) (models.Device, error) {
	fields, err := r.client.HGetAll(ctx, deviceKey(deviceID)).Result()
	if err != nil {
		return models.Device{}, err
	}
	if len(fields) == 0 {
		return models.Device{}, errs.ErrDeviceNotFound
	}
	return models.Device{ID: deviceID, Token: fields["token"], Platform: fields["platform"]}, nil
}

// IsTokenSuppressed returns true if the token is currently marked as invalid.
func (r *RedisRepository) IsTokenSuppressed(ctx context.Context, token string) (bool, error) {
	exists, err := r.client.Exists(ctx, suppressedKey(token)).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

// SuppressToken stores a token in Redis with a TTL.
func (r *RedisRepository) SuppressToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return r.client.SetEX(ctx, suppressedKey(token), "1", ttl).Err()
}

// SetPermission records the permission status the device reported.
func (r *RedisRepository) SetPermission(ctx context.Context, deviceID string, status models.AuthorizationStatus) error {
	return r.client.Set(ctx, permissionKey(deviceID), string(status), 0).Err()
}

// AnswerPermission records the user's answer to a permission prompt and wakes
// any RequestPermission call waiting on it.
func (r *RedisRepository) AnswerPermission(ctx context.Context, deviceID string, granted bool) error {
	status, answer := models.AuthorizationDenied, permissionDenied
	if granted {
		status, answer = models.AuthorizationAuthorized, permissionGranted
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, permissionKey(deviceID), string(status), 0)
		pipe.LPush(ctx, answerKey(deviceID), answer)
		pipe.Expire(ctx, answerKey(deviceID), time.Minute)
		return nil
	})
	return err
}

// ClaimDue removes and returns up to limit requests whose fire time is not
// after now. A request is claimed by exactly one caller.
func (r *RedisRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.DueNotification, error) {
	members, err := r.client.ZRangeByScore(ctx, dueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range due: %w", err)
	}

	out := make([]models.DueNotification, 0, len(members))
	for _, member := range members {
		removed, err := r.client.ZRem(ctx, dueKey, member).Result()
		if err != nil {
			return out, fmt.Errorf("claim %s: %w", member, err)
		}
		if removed == 0 {
			continue
		}

		idx := strings.LastIndex(member, "|")
		if idx < 0 {
			continue
		}
		deviceID, id := member[:idx], member[idx+1:]

		raw, err := r.client.HGet(ctx, pendingKey(deviceID), id).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("load %s: %w", member, err)
		}
		if err := r.client.HDel(ctx, pendingKey(deviceID), id).Err(); err != nil {
			return out, fmt.Errorf("release %s: %w", member, err)
		}

		var req models.NotificationRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			continue
		}
		out = append(out, models.DueNotification{DeviceID: deviceID, Request: req})
	}
	return out, nil
}

// Center returns the device-scoped notification center.
func (r *RedisRepository) Center(deviceID string) *DeviceCenter {
	return &DeviceCenter{repo: r, deviceID: deviceID}
}

// DeviceCenter is one device's pending notifications and permission state.
type DeviceCenter struct {
	repo     *RedisRepository
	deviceID string
}

func (c *DeviceCenter) Submit(ctx context.Context, req models.NotificationRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request %s: %w", req.ID, err)
	}
	_, err = c.repo.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, pendingKey(c.deviceID), req.ID, raw)
		pipe.ZAdd(ctx, dueKey, &redis.Z{
			Score:  float64(req.FireAt.Unix()),
			Member: dueMember(c.deviceID, req.ID),
		})
		return nil
	})
	return err
}

// ListPending returns the pending requests ordered by fire time. Entries that
// cannot be decoded are skipped.
func (c *DeviceCenter) ListPending(ctx context.Context) ([]models.NotificationRequest, error) {
	entries, err := c.repo.client.HGetAll(ctx, pendingKey(c.deviceID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.NotificationRequest, 0, len(entries))
	for _, raw := range entries {
		var req models.NotificationRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out, nil
}

func (c *DeviceCenter) Cancel(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		members = append(members, dueMember(c.deviceID, id))
	}
	_, err := c.repo.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, pendingKey(c.deviceID), ids...)
		pipe.ZRem(ctx, dueKey, members...)
		return nil
	})
	return err
}

func (c *DeviceCenter) CancelAll(ctx context.Context) error {
	ids, err := c.repo.client.HKeys(ctx, pendingKey(c.deviceID)).Result()
	if err != nil {
		return err
	}
	return c.Cancel(ctx, ids)
}

func (c *DeviceCenter) CheckPermission(ctx context.Context) (models.AuthorizationStatus, error) {
	raw, err := c.repo.client.Get(ctx, permissionKey(c.deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return models.AuthorizationNotDetermined, nil
	}
	if err != nil {
		return models.AuthorizationNotDetermined, err
	}
	return models.ParseAuthorizationStatus(raw), nil
}

// RequestPermission waits for the user's answer to the permission prompt. As
// on the device, an already decided status is returned without prompting.
func (c *DeviceCenter) RequestPermission(ctx context.Context) (bool, error) {
	status, err := c.CheckPermission(ctx)
	if err != nil {
		return false, err
	}
	if status != models.AuthorizationNotDetermined {
		return status == models.AuthorizationAuthorized, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		res, err := c.repo.client.BLPop(ctx, c.repo.answerPoll, answerKey(c.deviceID)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return false, err
		}
		// res is [key, value]
		return len(res) == 2 && res[1] == permissionGranted, nil
	}
}
