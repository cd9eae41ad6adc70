// SPDX-License-Identifier: MPL-2.0

// Package hass provides clients for the Home Assistant WebSocket and REST
// APIs. Only the registry-maintenance subset of the protocol is implemented:
// entity/area/label registry reads, entity metadata updates, label
// management, and the stop service call.
package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"hassctl/internal/issue"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// ErrAuthInvalid is returned when the server rejects the access token.
var ErrAuthInvalid = errors.New("authentication rejected")

type (
	// Client is a Home Assistant WebSocket API client. It is not safe for
	// concurrent use; the maintenance commands are strictly sequential.
	Client struct {
		conn   *websocket.Conn
		nextID int
		logger *log.Logger
	}

	// DialOption configures a Client during Dial.
	DialOption func(*Client)

	// wsFrame is the wire format for every message in both directions.
	wsFrame struct {
		ID      int             `json:"id,omitempty"`
		Type    string          `json:"type"`
		Success *bool           `json:"success,omitempty"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *APIError       `json:"error,omitempty"`
		// Message is set on auth_invalid frames.
		Message string `json:"message,omitempty"`
	}
)

// WithLogger sets the logger used for protocol debug output.
func WithLogger(l *log.Logger) DialOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WebSocketURL converts a Home Assistant base URL (http:// or https://)
// into the WebSocket API endpoint (ws:// or wss:// + /api/websocket).
func WebSocketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", server, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// Already a websocket URL.
	default:
		return "", fmt.Errorf("invalid server URL %q: unsupported scheme %q", server, u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/api/websocket"
	return u.String(), nil
}

// Dial connects to the Home Assistant WebSocket API and completes the
// authentication handshake. The caller must Close the returned client.
func Dial(ctx context.Context, server, token string, opts ...DialOption) (*Client, error) {
	wsURL, err := WebSocketURL(server)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("connect to Home Assistant").
			WithResource(wsURL).
			WithSuggestion("Check that HASS_SERVER points at your Home Assistant instance").
			WithSuggestion("Verify Home Assistant is running and reachable").
			Wrap(err).
			BuildError()
	}

	c := &Client{conn: conn, logger: log.Default()}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.authenticate(token); err != nil {
		conn.Close()
		return nil, err
	}

	c.logger.Debug("websocket authenticated", "url", wsURL)
	return c, nil
}

// authenticate performs the auth_required / auth / auth_ok exchange.
func (c *Client) authenticate(token string) error {
	var hello wsFrame
	if err := c.conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("reading server greeting: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("unexpected greeting %q", hello.Type)
	}

	auth := map[string]string{"type": "auth", "access_token": token}
	if err := c.conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}

	var reply wsFrame
	if err := c.conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("reading auth reply: %w", err)
	}

	switch reply.Type {
	case "auth_ok":
		return nil
	case "auth_invalid":
		return issue.NewErrorContext().
			WithOperation("authenticate with Home Assistant").
			WithSuggestion("Check that HASS_TOKEN is a valid long-lived access token").
			WithSuggestion("Tokens are revoked when their owning user is deleted").
			Wrap(fmt.Errorf("%w: %s", ErrAuthInvalid, reply.Message)).
			BuildError()
	default:
		return fmt.Errorf("unexpected auth reply %q", reply.Type)
	}
}

// Close shuts down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends a command frame and waits for the matching result frame.
// Interleaved event frames (from subscriptions on other connections) and
// stale results are skipped. Fields are merged into the outgoing frame.
func (c *Client) Call(ctx context.Context, msgType string, fields map[string]any) (json.RawMessage, error) {
	c.nextID++
	id := c.nextID

	msg := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		msg[k] = v
	}
	msg["id"] = id
	msg["type"] = msgType

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("ws call", "id", id, "type", msgType)
	if err := c.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("sending %s: %w", msgType, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var frame wsFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return nil, fmt.Errorf("reading %s result: %w", msgType, err)
		}
		if frame.Type == "event" || frame.ID != id {
			continue
		}

		if frame.Success != nil && !*frame.Success {
			apiErr := frame.Error
			if apiErr == nil {
				apiErr = &APIError{Message: "unknown error"}
			}
			return nil, fmt.Errorf("%s: %w", msgType, apiErr)
		}
		return frame.Result, nil
	}
}

// --- Typed operations ---

// ListEntities returns every entity registry entry.
func (c *Client) ListEntities(ctx context.Context) ([]EntityEntry, error) {
	result, err := c.Call(ctx, "config/entity_registry/list", nil)
	if err != nil {
		return nil, err
	}
	var entities []EntityEntry
	if err := json.Unmarshal(result, &entities); err != nil {
		return nil, fmt.Errorf("decoding entity registry: %w", err)
	}
	return entities, nil
}

// ListAreas returns the area registry as an area_id → name map.
func (c *Client) ListAreas(ctx context.Context) (map[string]string, error) {
	result, err := c.Call(ctx, "config/area_registry/list", nil)
	if err != nil {
		return nil, err
	}
	var areas []Area
	if err := json.Unmarshal(result, &areas); err != nil {
		return nil, fmt.Errorf("decoding area registry: %w", err)
	}

	byID := make(map[string]string, len(areas))
	for _, a := range areas {
		byID[a.AreaID] = a.Name
	}
	return byID, nil
}

// ListLabels returns every label registry entry.
func (c *Client) ListLabels(ctx context.Context) ([]Label, error) {
	result, err := c.Call(ctx, "config/label_registry/list", nil)
	if err != nil {
		return nil, err
	}
	var labels []Label
	if err := json.Unmarshal(result, &labels); err != nil {
		return nil, fmt.Errorf("decoding label registry: %w", err)
	}
	return labels, nil
}

// UpdateEntity applies a metadata update and returns the updated entry.
func (c *Client) UpdateEntity(ctx context.Context, update EntityUpdate) (*EntityEntry, error) {
	fields := map[string]any{"entity_id": update.EntityID}
	if update.Icon != nil {
		fields["icon"] = *update.Icon
	}
	if update.AreaID != nil {
		fields["area_id"] = *update.AreaID
	}
	if update.Labels != nil {
		fields["labels"] = *update.Labels
	}

	result, err := c.Call(ctx, "config/entity_registry/update", fields)
	if err != nil {
		return nil, err
	}

	// The server wraps the updated entry: {"entity_entry": {...}}.
	// Older versions returned the entry directly; accept both.
	var wrapped struct {
		EntityEntry *EntityEntry `json:"entity_entry"`
	}
	if err := json.Unmarshal(result, &wrapped); err == nil && wrapped.EntityEntry != nil {
		return wrapped.EntityEntry, nil
	}
	var entry EntityEntry
	if err := json.Unmarshal(result, &entry); err != nil {
		return nil, fmt.Errorf("decoding updated entity: %w", err)
	}
	return &entry, nil
}

// CreateLabel creates a label; icon and color are optional.
func (c *Client) CreateLabel(ctx context.Context, name, icon, color string) (*Label, error) {
	fields := map[string]any{"name": name}
	if icon != "" {
		fields["icon"] = icon
	}
	if color != "" {
		fields["color"] = color
	}

	result, err := c.Call(ctx, "config/label_registry/create", fields)
	if err != nil {
		return nil, err
	}
	var label Label
	if err := json.Unmarshal(result, &label); err != nil {
		return nil, fmt.Errorf("decoding created label: %w", err)
	}
	return &label, nil
}

// DeleteLabel removes a label by id.
func (c *Client) DeleteLabel(ctx context.Context, labelID string) error {
	_, err := c.Call(ctx, "config/label_registry/delete", map[string]any{"label_id": labelID})
	return err
}
