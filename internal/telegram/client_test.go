package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-token")
	c.baseURL = srv.URL
	return c
}

func TestClientGetMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottest-token/getMe") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"id": 42, "username": "budgetbot"},
		})
	})

	me, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error = %v", err)
	}
	if me.ID != 42 || me.Username != "budgetbot" {
		t.Errorf("GetMe() = %+v", me)
	}
}

func TestClientAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"description": "Unauthorized",
			"error_code":  401,
		})
	})

	_, err := c.GetMe(context.Background())
	if err == nil {
		t.Fatal("expected error for ok=false response")
	}
	if !strings.Contains(err.Error(), "Unauthorized") {
		t.Errorf("error should carry the API description: %v", err)
	}
}

func TestClientSendMessage(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": map[string]interface{}{}})
	})

	if err := c.SendMessage(context.Background(), 1001, "*hi*"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got["chat_id"].(float64) != 1001 {
		t.Errorf("chat_id = %v", got["chat_id"])
	}
	if got["text"] != "*hi*" {
		t.Errorf("text = %v", got["text"])
	}
	if got["parse_mode"] != "Markdown" {
		t.Errorf("parse_mode = %v", got["parse_mode"])
	}
}

func TestClientGetUpdates(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": true,
			"result": []map[string]interface{}{
				{"update_id": 7, "message": map[string]interface{}{
					"message_id": 1,
					"text":       "coffee 3.50",
					"from":       map[string]interface{}{"id": 5},
					"chat":       map[string]interface{}{"id": 5, "type": "private"},
				}},
			},
		})
	})

	updates, err := c.GetUpdates(context.Background(), 3, 30)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if got["offset"].(float64) != 3 {
		t.Errorf("offset = %v", got["offset"])
	}
	if len(updates) != 1 || updates[0].UpdateID != 7 {
		t.Fatalf("updates = %+v", updates)
	}
	if updates[0].Message.Text != "coffee 3.50" || updates[0].Message.Chat.Type != "private" {
		t.Errorf("message = %+v", updates[0].Message)
	}
}
