package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/modryx/warden/internal/setup/config"
	"github.com/modryx/warden/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrAuth indicates the platform rejected our credentials.
	ErrAuth = errors.New("platform rejected credentials")
	// ErrRequestFailed indicates a non-auth request failure.
	ErrRequestFailed = errors.New("platform request failed")
)

// Client is the HTTP client for the platform's REST API. All calls use
// bounded timeouts and retry transient failures with backoff; auth
// failures are surfaced once and never retried.
type Client struct {
	baseURL   string
	userAgent string
	authToken string
	http      *http.Client
	logger    *zap.Logger
}

// NewClient creates a platform API client.
func NewClient(cfg *config.Platform, authToken string, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		authToken: authToken,
		http:      &http.Client{Timeout: timeout},
		logger:    logger.Named("platform"),
	}
}

// GetGroupInstances lists the live instances for a group.
func (c *Client) GetGroupInstances(ctx context.Context, groupID string) ([]*InstanceSummary, error) {
	var instances []*InstanceSummary

	path := fmt.Sprintf("/groups/%s/instances", groupID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &instances); err != nil {
		return nil, fmt.Errorf("failed to list instances for group %s: %w", groupID, err)
	}

	return instances, nil
}

// GetUserProfile fetches the full profile for a user.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var profile UserProfile

	path := fmt.Sprintf("/users/%s", userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch profile for user %s: %w", userID, err)
	}

	return &profile, nil
}

// HandleJoinRequest applies an accept or reject verdict to a pending
// group join request.
func (c *Client) HandleJoinRequest(ctx context.Context, groupID, userID string, action JoinRequestAction) error {
	body := map[string]string{"action": string(action)}

	path := fmt.Sprintf("/groups/%s/requests/%s", groupID, userID)
	if err := c.doJSON(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("failed to handle join request for user %s: %w", userID, err)
	}

	return nil
}

// ListMessageSlots returns the operator's invite message slots.
func (c *Client) ListMessageSlots(ctx context.Context) ([]*MessageSlot, error) {
	var slots []*MessageSlot

	if err := c.doJSON(ctx, http.MethodGet, "/message/slots", nil, &slots); err != nil {
		return nil, fmt.Errorf("failed to list message slots: %w", err)
	}

	return slots, nil
}

// ResetMessageSlot clears a slot. Resets are not subject to the edit
// cooldown, which the fallback channel relies on.
func (c *Client) ResetMessageSlot(ctx context.Context, slot int) error {
	path := fmt.Sprintf("/message/slots/%d", slot)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to reset message slot %d: %w", slot, err)
	}

	return nil
}

// UpdateMessageSlot writes new text into a slot.
func (c *Client) UpdateMessageSlot(ctx context.Context, slot int, message string) error {
	body := map[string]string{"message": message}

	path := fmt.Sprintf("/message/slots/%d", slot)
	if err := c.doJSON(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("failed to update message slot %d: %w", slot, err)
	}

	return nil
}

// SelfInvite sends the operator an invite referencing a world/instance
// and an optional message slot.
func (c *Client) SelfInvite(ctx context.Context, invite *InviteRequest) error {
	path := fmt.Sprintf("/invite/me/%s:%s", invite.WorldID, invite.InstanceID)

	var body any
	if invite.MessageSlot != nil {
		body = map[string]int{"messageSlot": *invite.MessageSlot}
	}

	if err := c.doJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("failed to send self invite: %w", err)
	}

	return nil
}

// doJSON performs one API call with retry on transient failures.
// Auth rejections are marked permanent so the retry loop stops immediately.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	_, err := utils.WithRetry(ctx, func() (struct{}, error) {
		err := c.doJSONOnce(ctx, method, path, body, out)
		if errors.Is(err, ErrAuth) {
			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, err
	}, utils.GetAPIRetryOptions())

	return err
}

func (c *Client) doJSONOnce(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader

	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuth
	case resp.StatusCode >= 400:
		c.logger.Warn("Platform API returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))

		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
