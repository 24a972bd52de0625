package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/models"
)

// FCMProvider sends notifications via Firebase Cloud Messaging.
type FCMProvider struct {
	serverKey string
	endpoint  string
	client    *http.Client
	logger    *slog.Logger
}

func NewFCMProvider(serverKey, endpoint string, timeout time.Duration, logger *slog.Logger) *FCMProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FCMProvider{
		serverKey: serverKey,
		endpoint:  endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (p *FCMProvider) Name() string {
	return "fcm"
}

// Send pushes one message to one token. A per-token error reported by FCM is
// returned both in the result and as the error.
func (p *FCMProvider) Send(ctx context.Context, payload *PushPayload) (models.DeliveryResult, error) {
	result := models.DeliveryResult{Token: payload.Token, Provider: p.Name()}
	if payload.Token == "" {
		return result, fmt.Errorf("fcm: no token supplied")
	}

	reqMap := map[string]interface{}{
		"to":       payload.Token,
		"priority": "high",
	}
	if !payload.DataOnly {
		reqMap["notification"] = map[string]string{
			"title": payload.Title,
			"body":  payload.Body,
		}
	} else {
		reqMap["content_available"] = true
	}
	if len(payload.Data) > 0 {
		reqMap["data"] = payload.Data
	}

	body, err := json.Marshal(reqMap)
	if err != nil {
		return result, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return result, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.serverKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return result, fmt.Errorf("fcm: received status %d", resp.StatusCode)
	}

	var fcmResp fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&fcmResp); err != nil {
		return result, err
	}
	if len(fcmResp.Results) == 0 {
		return result, fmt.Errorf("fcm: returned no results")
	}

	res := fcmResp.Results[0]
	result.MessageID = res.MessageID
	result.Error = res.Error
	if res.Error != "" {
		p.logger.Debug("fcm rejected message", slog.String("error", res.Error))
		return result, fmt.Errorf("fcm: %s", res.Error)
	}
	result.Delivered = true
	return result, nil
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// isTokenFatal reports whether FCM will never accept the token again.
func isTokenFatal(err string) bool {
	switch err {
	case "NotRegistered", "InvalidRegistration", "MismatchSenderId":
		return true
	default:
		return false
	}
}
