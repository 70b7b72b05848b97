package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	reconnectDelay       = 5 * time.Second
	maxReconnectDelay    = 60 * time.Second
	maxReconnectAttempts = 10
	pingInterval         = 30 * time.Second
	pongTimeout          = 10 * time.Second
)

// EventHandler receives decoded websocket events.
type EventHandler func(ctx context.Context, ev Event)

// Consumer maintains the websocket connection to the gateway event
// stream, reconnecting with a doubling delay until the attempt budget is
// exhausted.
type Consumer struct {
	client  *Client
	handler EventHandler
	dialer  *websocket.Dialer
}

func NewConsumer(client *Client, handler EventHandler) *Consumer {
	return &Consumer{
		client:  client,
		handler: handler,
		dialer:  websocket.DefaultDialer,
	}
}

// Run blocks until ctx is cancelled or reconnection gives up.
func (c *Consumer) Run(ctx context.Context) error {
	attempts := 0
	delay := reconnectDelay

	for {
		if attempts >= maxReconnectAttempts {
			return fmt.Errorf("reached max reconnect attempts: %d", maxReconnectAttempts)
		}
		if attempts > 0 {
			log.Info("Reconnecting %d/%d...", attempts, maxReconnectAttempts)
		} else {
			log.Info("Starting websocket...")
		}

		connected, err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Error("Websocket session ended: %v", err)
		}
		// A successful dial restarts the attempt budget.
		if connected {
			attempts = 0
			delay = reconnectDelay
		}

		attempts++
		wait := delay
		delay = delay * 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
		log.Info("Next reconnect attempt in %v...", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Consumer) runOnce(ctx context.Context) (bool, error) {
	header := http.Header{}
	header.Set("X-Bot-Token", c.client.Token())

	conn, resp, err := c.dialer.DialContext(ctx, c.client.WebsocketURL(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			log.Error("Bot token authorization failed (403)")
		}
		return false, fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()
	log.Info("Websocket connection established")

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pingInterval + pongTimeout))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pongTimeout)); err != nil {
					log.Warn("Ping failed: %v", err)
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read failed: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pingInterval + pongTimeout))

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Error("Error decoding event: %v", err)
			continue
		}
		c.handler(ctx, ev)
	}
}
