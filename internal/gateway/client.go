package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrUnauthorized is returned when the gateway rejects the bot token.
var ErrUnauthorized = fmt.Errorf("gateway rejected the bot token (403)")

// Cache entry for dialog lookups
type cacheEntry struct {
	data      interface{}
	timestamp time.Time
	ttl       time.Duration
}

func (ce *cacheEntry) isExpired() bool {
	return time.Since(ce.timestamp) > ce.ttl
}

// Client talks to the Message Gateway Bot API.
type Client struct {
	baseURL    string
	token      string
	client     *http.Client
	cache      map[string]*cacheEntry
	cacheMu    sync.RWMutex
	defaultTTL time.Duration
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		client:     &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string]*cacheEntry),
		defaultTTL: 30 * time.Second,
	}
}

// WebsocketURL returns the wss endpoint for the message_new event stream.
func (c *Client) WebsocketURL() string {
	ws := strings.Replace(c.baseURL, "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	return ws + "/ws?events=message_new"
}

// Token returns the bot token used for the X-Bot-Token header.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, payload interface{}) ([]byte, int, error) {
	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Bot-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (c *Client) getCached(key string) (interface{}, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	if entry, exists := c.cache[key]; exists && !entry.isExpired() {
		log.Debug("Cache hit for key: %s", key)
		return entry.data, true
	}
	return nil, false
}

func (c *Client) setCache(key string, data interface{}, ttl time.Duration) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	c.cache[key] = &cacheEntry{data: data, timestamp: time.Now(), ttl: ttl}
}

// Probe checks the Bot API with GET /bots. Used at startup and by the
// periodic availability loop.
func (c *Client) Probe(ctx context.Context) error {
	_, status, err := c.doRequest(ctx, http.MethodGet, "/bots", nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusForbidden {
		return ErrUnauthorized
	}
	if status != http.StatusOK {
		return fmt.Errorf("gateway probe returned %d", status)
	}
	return nil
}

// SendMessage delivers a public text message into a chat and returns the
// created message id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		log.Info("Empty message for chat %d, skipping send", chatID)
		return 0, nil
	}

	payload := map[string]interface{}{
		"chat_id": chatID,
		"type":    "text",
		"content": text,
		"scope":   "public",
	}
	data, status, err := c.doRequest(ctx, http.MethodPost, "/messages", nil, payload)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return 0, fmt.Errorf("send message failed with status %d: %s", status, string(data))
	}

	var resp struct {
		MessageID int64 `json:"message_id"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &resp); err != nil {
			log.Warn("Unparseable send response: %v", err)
		}
	}
	log.Info("Sent message %d to chat %d", resp.MessageID, chatID)
	return resp.MessageID, nil
}

// DialogAssigned reports whether the dialog already has a manager on it.
// Lookup failures count as unassigned so the bot keeps answering when
// the CRM wobbles.
func (c *Client) DialogAssigned(ctx context.Context, dialogID int64) bool {
	if dialogID == 0 {
		return false
	}

	cacheKey := fmt.Sprintf("dialog_assigned:%d", dialogID)
	if cached, found := c.getCached(cacheKey); found {
		if assigned, ok := cached.(bool); ok {
			return assigned
		}
	}

	params := url.Values{}
	params.Set("id", fmt.Sprintf("%d", dialogID))
	data, status, err := c.doRequest(ctx, http.MethodGet, "/dialogs", params, nil)
	if err != nil {
		log.Error("Failed to check dialog %d: %v", dialogID, err)
		return false
	}
	if status == http.StatusNotFound {
		log.Info("Dialog %d not found, treating as unassigned", dialogID)
		return false
	}
	if status != http.StatusOK {
		log.Warn("Dialog lookup returned %d", status)
		return false
	}

	var dialogs []Dialog
	if err := json.Unmarshal(data, &dialogs); err != nil {
		// Some deployments return a single object instead of a list.
		var one Dialog
		if err := json.Unmarshal(data, &one); err != nil {
			log.Warn("Unexpected dialog payload: %s", string(data))
			return false
		}
		dialogs = []Dialog{one}
	}

	assigned := false
	for _, d := range dialogs {
		if d.ID == dialogID && d.IsAssigned {
			assigned = true
			break
		}
	}
	c.setCache(cacheKey, assigned, 0)
	return assigned
}

// GetDialog fetches a dialog record, trying the direct endpoint first and
// falling back to a bounded page scan by chat id.
func (c *Client) GetDialog(ctx context.Context, dialogID int64) (*Dialog, error) {
	data, status, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/dialogs/%d", dialogID), nil, nil)
	if err == nil && status == http.StatusOK && len(data) > 0 {
		var d Dialog
		if err := json.Unmarshal(data, &d); err == nil && d.ID != 0 {
			return &d, nil
		}
	}

	params := url.Values{}
	params.Set("id", fmt.Sprintf("%d", dialogID))
	data, status, err = c.doRequest(ctx, http.MethodGet, "/dialogs", params, nil)
	if err == nil && status == http.StatusOK {
		var list []Dialog
		if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
			return &list[0], nil
		}
		var one Dialog
		if err := json.Unmarshal(data, &one); err == nil && one.ID != 0 {
			return &one, nil
		}
	}

	// Page scan matching dialogs by chat id, bounded to keep it quick.
	const limit, maxPages = 100, 5
	for page := 1; page <= maxPages; page++ {
		params := url.Values{}
		params.Set("limit", fmt.Sprintf("%d", limit))
		params.Set("page", fmt.Sprintf("%d", page))
		data, status, err := c.doRequest(ctx, http.MethodGet, "/dialogs", params, nil)
		if err != nil || status != http.StatusOK {
			return nil, fmt.Errorf("dialog %d not found", dialogID)
		}

		var dialogs []Dialog
		if err := json.Unmarshal(data, &dialogs); err != nil {
			var wrapped struct {
				Dialogs []Dialog `json:"dialogs"`
			}
			if err := json.Unmarshal(data, &wrapped); err != nil {
				return nil, fmt.Errorf("unexpected dialogs payload on page %d", page)
			}
			dialogs = wrapped.Dialogs
		}
		for i := range dialogs {
			if dialogs[i].ChatID == dialogID || dialogs[i].ID == dialogID {
				return &dialogs[i], nil
			}
		}
		if len(dialogs) < limit {
			break
		}
	}
	return nil, fmt.Errorf("dialog %d not found", dialogID)
}

// OnlineManagers lists the online, active users of a manager group.
func (c *Client) OnlineManagers(ctx context.Context, group int) ([]Manager, error) {
	params := url.Values{}
	params.Set("group", fmt.Sprintf("%d", group))
	params.Set("online", "1")
	params.Set("active", "1")
	params.Set("limit", "50")

	data, status, err := c.doRequest(ctx, http.MethodGet, "/users", params, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("users lookup returned %d: %s", status, string(data))
	}

	var managers []Manager
	if err := json.Unmarshal(data, &managers); err != nil {
		var wrapped struct {
			Users []Manager `json:"users"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("unexpected users payload: %w", err)
		}
		managers = wrapped.Users
	}
	return managers, nil
}

// AssignDialog hands a dialog to a specific manager.
func (c *Client) AssignDialog(ctx context.Context, dialogID int64, userID int) error {
	payload := map[string]interface{}{"user_id": userID}
	data, status, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/dialogs/%d/assign", dialogID), nil, payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusNoContent {
		return fmt.Errorf("assign failed with status %d: %s", status, string(data))
	}
	log.Info("Dialog %d assigned to manager %d", dialogID, userID)
	return nil
}
