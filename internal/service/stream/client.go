package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"StratView/internal/domain/models"

	"github.com/gorilla/websocket"
)

// Client follows the workflow snapshot stream of a running server.
type Client struct {
	url          string
	pingInterval time.Duration

	conn *websocket.Conn
}

// New creates a stream client for the server at baseURL (http or ws scheme).
func New(baseURL string, pingInterval time.Duration) *Client {
	return &Client{url: streamURL(baseURL), pingInterval: pingInterval}
}

func streamURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/stream"
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	return nil
}

// Read streams snapshots until ctx ends or the server closes the stream.
// A normal close ends the snapshot channel without an error.
func (c *Client) Read(ctx context.Context) (<-chan models.Snapshot, <-chan error) {
	snaps := make(chan models.Snapshot, 16)
	errs := make(chan error, 1)

	if c.conn == nil {
		errs <- fmt.Errorf("stream not connected")
		close(snaps)
		close(errs)
		return snaps, errs
	}

	// ping loop
	go func() {
		if c.pingInterval <= 0 {
			return
		}
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	// unblock ReadMessage when ctx ends
	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	// read loop
	go func() {
		defer close(snaps)
		defer close(errs)
		for {
			_, b, err := c.conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					errs <- fmt.Errorf("stream read: %w", err)
				}
				return
			}
			var s models.Snapshot
			if err := json.Unmarshal(b, &s); err != nil {
				// ignore frames that are not snapshots
				continue
			}
			select {
			case snaps <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	return snaps, errs
}

// Close closes the WS connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
