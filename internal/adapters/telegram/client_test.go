package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/config"
	"github.com/rs/zerolog"
)

func TestSendMessagePlain(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botT0KEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(config.Config{TelegramToken: "T0KEN"}, zerolog.Nop()).WithAPIBase(srv.URL)
	if err := c.SendMessagePlain(context.Background(), 42, "Sprint 10 (a_b)"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["chat_id"] != float64(42) || got["text"] != "Sprint 10 (a_b)" {
		t.Fatalf("unexpected body %v", got)
	}
	if _, ok := got["parse_mode"]; ok {
		t.Fatalf("plain messages must not set parse_mode")
	}
}

func TestSendMessagePlainErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	c := NewClient(config.Config{TelegramToken: "T0KEN"}, zerolog.Nop()).WithAPIBase(srv.URL)
	if err := c.SendMessagePlain(context.Background(), 42, "x"); err == nil {
		t.Fatalf("expected error on 400")
	}
	if err := NewClient(config.Config{}, zerolog.Nop()).SendMessagePlain(context.Background(), 42, "x"); err == nil {
		t.Fatalf("expected error without token")
	}
}
