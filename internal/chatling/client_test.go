package chatling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Opts{BotID: "b1"}); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewClient(Opts{APIKey: "k1"}); err == nil {
		t.Error("expected error for missing bot id")
	}

	c, err := NewClient(Opts{APIKey: "k1", BotID: "b1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.apiURL != DefaultAPIURL {
		t.Errorf("apiURL = %q, want default %q", c.apiURL, DefaultAPIURL)
	}
}

func TestAsk_SendsMessageAndAuth(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"status":"success","data":{"response":"Hello there","conversation_id":4711}}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Opts{APIURL: srv.URL, APIKey: "secret-key", BotID: "bot42"})

	reply, ref, err := c.Ask(context.Background(), "", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Hello there" {
		t.Errorf("reply = %q, want %q", reply, "Hello there")
	}
	if ref != "4711" {
		t.Errorf("ref = %q, want %q (numeric id normalized)", ref, "4711")
	}
	if gotPath != "/chatbots/bot42/ai/kb/chat" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["message"] != "hi" {
		t.Errorf("message = %v, want hi", gotBody["message"])
	}
	if _, ok := gotBody["conversation_id"]; ok {
		t.Error("conversation_id sent on first message, want omitted")
	}
}

func TestAsk_ReusesSessionRef(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"status":"success","data":{"response":"ok","conversation_id":"conv-9"}}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Opts{APIURL: srv.URL, APIKey: "k", BotID: "b"})

	_, ref, err := c.Ask(context.Background(), "conv-9", "again")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["conversation_id"] != "conv-9" {
		t.Errorf("conversation_id = %v, want conv-9", gotBody["conversation_id"])
	}
	if ref != "conv-9" {
		t.Errorf("ref = %q, want conv-9", ref)
	}
}

func TestAsk_LegacyReplyField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reply":"legacy answer"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Opts{APIURL: srv.URL, APIKey: "k", BotID: "b"})

	reply, ref, err := c.Ask(context.Background(), "old-ref", "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "legacy answer" {
		t.Errorf("reply = %q", reply)
	}
	if ref != "old-ref" {
		t.Errorf("ref = %q, want prior ref kept when response has none", ref)
	}
}

func TestAsk_FallbackOnMissingReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"conversation_id":"conv-3"}}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Opts{APIURL: srv.URL, APIKey: "k", BotID: "b"})

	// A 2xx response with no reply text still answers the customer.
	reply, ref, err := c.Ask(context.Background(), "", "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != FallbackReply {
		t.Errorf("reply = %q, want fallback %q", reply, FallbackReply)
	}
	if ref != "conv-3" {
		t.Errorf("ref = %q, want session ref still captured", ref)
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	s := "x" + strings.Repeat("é", 300) // cut point lands mid-rune
	got := truncate(s, 200)
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("got = %q, want ellipsis suffix", got)
	}
	if got := truncate("short", 200); got != "short" {
		t.Errorf("got = %q, want unmodified short string", got)
	}
}

func TestAsk_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{"http error", http.StatusUnauthorized, `{"message":"bad key"}`, "401"},
		{"bad json", http.StatusOK, `not json`, "parse response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := NewClient(Opts{APIURL: srv.URL, APIKey: "k", BotID: "b"})
			_, _, err := c.Ask(context.Background(), "", "q")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %v, want to contain %q", err, tt.wantSub)
			}
		})
	}
}
