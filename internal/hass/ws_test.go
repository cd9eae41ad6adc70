// SPDX-License-Identifier: MPL-2.0

package hass

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const testToken = "test-token"

// newWSServer starts a websocket test server. After the auth handshake it
// hands the connection to handler for the scripted part of the exchange.
func newWSServer(t *testing.T, handler func(t *testing.T, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/websocket" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if err := conn.WriteJSON(map[string]any{"type": "auth_required", "ha_version": "2026.1.0"}); err != nil {
			return
		}
		var auth map[string]string
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		if auth["access_token"] != testToken {
			_ = conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
			return
		}
		if err := conn.WriteJSON(map[string]any{"type": "auth_ok"}); err != nil {
			return
		}

		if handler != nil {
			handler(t, conn)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// replyResult answers the next request frame with the given result payload.
func replyResult(t *testing.T, conn *websocket.Conn, wantType string, result any) {
	t.Helper()
	var req map[string]any
	if err := conn.ReadJSON(&req); err != nil {
		t.Errorf("server read: %v", err)
		return
	}
	if req["type"] != wantType {
		t.Errorf("request type = %v, want %v", req["type"], wantType)
	}
	_ = conn.WriteJSON(map[string]any{
		"id":      req["id"],
		"type":    "result",
		"success": true,
		"result":  result,
	})
}

func dialTest(t *testing.T, srv *httptest.Server, token string) (*Client, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return Dial(ctx, srv.URL, token)
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		name    string
		server  string
		want    string
		wantErr bool
	}{
		{"http", "http://homeassistant.local:8123", "ws://homeassistant.local:8123/api/websocket", false},
		{"https", "https://ha.example.net", "wss://ha.example.net/api/websocket", false},
		{"trailing slash", "http://ha.example.net/", "ws://ha.example.net/api/websocket", false},
		{"already ws", "ws://ha.example.net", "ws://ha.example.net/api/websocket", false},
		{"bad scheme", "ftp://ha.example.net", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WebSocketURL(tt.server)
			if (err != nil) != tt.wantErr {
				t.Fatalf("WebSocketURL() err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("WebSocketURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDial_AuthOK(t *testing.T) {
	srv := newWSServer(t, nil)

	c, err := dialTest(t, srv, testToken)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer c.Close()
}

func TestDial_AuthInvalid(t *testing.T) {
	srv := newWSServer(t, nil)

	_, err := dialTest(t, srv, "wrong-token")
	if err == nil {
		t.Fatal("Dial() should fail with bad token")
	}
	if !errors.Is(err, ErrAuthInvalid) {
		t.Errorf("error should wrap ErrAuthInvalid, got: %v", err)
	}
}

func TestClient_ListEntities_SkipsEvents(t *testing.T) {
	srv := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		// Interleave an event frame before the real answer.
		_ = conn.WriteJSON(map[string]any{"id": 99, "type": "event", "event": map[string]any{}})
		_ = conn.WriteJSON(map[string]any{
			"id":      req["id"],
			"type":    "result",
			"success": true,
			"result": []map[string]any{
				{"entity_id": "automation.kitchen", "unique_id": "123", "platform": "automation", "area_id": "kitchen", "labels": []string{"climate"}},
				{"entity_id": "sensor.temp", "unique_id": "t1", "platform": "mqtt"},
			},
		})
	})

	c, err := dialTest(t, srv, testToken)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	entities, err := c.ListEntities(context.Background())
	if err != nil {
		t.Fatalf("ListEntities() error: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("len(entities) = %d, want 2", len(entities))
	}
	if !entities[0].IsAutomation() || !entities[0].HasMetadata() {
		t.Errorf("first entry predicates wrong: %+v", entities[0])
	}
	if entities[1].IsAutomation() {
		t.Errorf("sensor misclassified as automation")
	}
}

func TestClient_CallError(t *testing.T) {
	srv := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{
			"id":      req["id"],
			"type":    "result",
			"success": false,
			"error":   map[string]string{"code": "not_found", "message": "Entity not found"},
		})
	})

	c, err := dialTest(t, srv, testToken)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err = c.UpdateEntity(context.Background(), EntityUpdate{EntityID: "automation.ghost"})
	if err == nil {
		t.Fatal("UpdateEntity() should surface server error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error should wrap APIError, got %T: %v", err, err)
	}
	if apiErr.Code != "not_found" {
		t.Errorf("Code = %q", apiErr.Code)
	}
}

func TestClient_UpdateEntity_OmitsUnsetFields(t *testing.T) {
	icon := "mdi:thermometer"

	srv := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req["icon"] != icon {
			t.Errorf("icon = %v, want %v", req["icon"], icon)
		}
		if _, ok := req["area_id"]; ok {
			t.Error("area_id should be absent when not set")
		}
		if _, ok := req["labels"]; ok {
			t.Error("labels should be absent when not set")
		}
		_ = conn.WriteJSON(map[string]any{
			"id":      req["id"],
			"type":    "result",
			"success": true,
			"result": map[string]any{
				"entity_entry": map[string]any{"entity_id": "automation.kitchen", "icon": icon},
			},
		})
	})

	c, err := dialTest(t, srv, testToken)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	entry, err := c.UpdateEntity(context.Background(), EntityUpdate{
		EntityID: "automation.kitchen",
		Icon:     &icon,
	})
	if err != nil {
		t.Fatalf("UpdateEntity() error: %v", err)
	}
	if entry.Icon != icon {
		t.Errorf("updated Icon = %q", entry.Icon)
	}
}

func TestClient_ListAreasAndLabels(t *testing.T) {
	srv := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		replyResult(t, conn, "config/area_registry/list", []map[string]string{
			{"area_id": "kitchen", "name": "Kitchen"},
			{"area_id": "porch", "name": "Front Porch"},
		})
		replyResult(t, conn, "config/label_registry/list", []map[string]string{
			{"label_id": "climate", "name": "Climate", "icon": "mdi:thermometer", "color": "blue"},
		})
	})

	c, err := dialTest(t, srv, testToken)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	areas, err := c.ListAreas(context.Background())
	if err != nil {
		t.Fatalf("ListAreas() error: %v", err)
	}
	if areas["kitchen"] != "Kitchen" || areas["porch"] != "Front Porch" {
		t.Errorf("areas = %v", areas)
	}

	labels, err := c.ListLabels(context.Background())
	if err != nil {
		t.Fatalf("ListLabels() error: %v", err)
	}
	if len(labels) != 1 || labels[0].LabelID != "climate" {
		t.Errorf("labels = %v", labels)
	}
}

func TestClient_LabelLifecycle(t *testing.T) {
	srv := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req["type"] != "config/label_registry/create" || req["name"] != "climate" {
			t.Errorf("unexpected create request: %v", req)
		}
		_ = conn.WriteJSON(map[string]any{
			"id": req["id"], "type": "result", "success": true,
			"result": map[string]string{"label_id": "climate", "name": "climate"},
		})

		replyResult(t, conn, "config/label_registry/delete", nil)
	})

	c, err := dialTest(t, srv, testToken)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	label, err := c.CreateLabel(context.Background(), "climate", "", "")
	if err != nil {
		t.Fatalf("CreateLabel() error: %v", err)
	}
	if label.LabelID != "climate" {
		t.Errorf("LabelID = %q", label.LabelID)
	}

	if err := c.DeleteLabel(context.Background(), "climate"); err != nil {
		t.Fatalf("DeleteLabel() error: %v", err)
	}
}

func TestAPIError_Error(t *testing.T) {
	e := &APIError{Code: "not_found", Message: "Entity not found"}
	if got := e.Error(); !strings.Contains(got, "not_found") || !strings.Contains(got, "Entity not found") {
		t.Errorf("Error() = %q", got)
	}

	plain := &APIError{Message: "boom"}
	if plain.Error() != "boom" {
		t.Errorf("Error() = %q", plain.Error())
	}
}

func TestEntityUpdate_IsEmpty(t *testing.T) {
	if !(EntityUpdate{EntityID: "automation.x"}).IsEmpty() {
		t.Error("update without fields should be empty")
	}
	icon := "mdi:x"
	if (EntityUpdate{EntityID: "automation.x", Icon: &icon}).IsEmpty() {
		t.Error("update with icon should not be empty")
	}
}

// Ensure the wire frame decodes a realistic result payload.
func TestWSFrame_Decode(t *testing.T) {
	raw := `{"id":3,"type":"result","success":true,"result":[{"entity_id":"automation.a","unique_id":"1"}]}`
	var frame wsFrame
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.ID != 3 || frame.Success == nil || !*frame.Success {
		t.Errorf("frame = %+v", frame)
	}
}
