package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWhatsAppSender_Send(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.test"}]}`))
	}))
	defer srv.Close()

	s := NewWhatsAppSender("token-123", "555000")
	s.baseURL = srv.URL

	if err := s.Send(context.Background(), "905551112233", "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotPath != "/555000/messages" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody["to"] != "905551112233" {
		t.Fatalf("unexpected recipient %v", gotBody["to"])
	}
	text, _ := gotBody["text"].(map[string]any)
	if text["body"] != "hello" {
		t.Fatalf("unexpected body %v", gotBody["text"])
	}
}

func TestWhatsAppSender_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewWhatsAppSender("bad", "555000")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), "905551112233", "hello")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "status=401") {
		t.Fatalf("error should carry status: %v", err)
	}
}

func TestWhatsAppSender_Unconfigured(t *testing.T) {
	s := NewWhatsAppSender("", "")
	if err := s.Send(context.Background(), "905551112233", "hello"); err == nil {
		t.Fatal("expected error when not configured")
	}
}
