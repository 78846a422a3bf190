// Package chatling is an HTTP client for the Chatling AI chatbot API. It
// implements the relay responder: each call sends one message to the bot
// and returns its reply along with the conversation reference Chatling
// assigned, so follow-up messages stay in the same AI session.
package chatling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"
)

const DefaultAPIURL = "https://api.chatling.ai/v2"

// FallbackReply is sent to the customer when the API answers successfully
// but without any reply text. An empty answer must not strand the
// conversation: escalated buffers in particular would otherwise retry the
// same empty response forever.
const FallbackReply = "Sorry, I couldn't fetch a response."

// Client talks to the Chatling REST API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	botID      string
}

// Opts holds parameters for creating a Client.
type Opts struct {
	APIURL     string // defaults to DefaultAPIURL
	APIKey     string
	BotID      string
	HTTPClient *http.Client // defaults to a 30s-timeout client
}

// NewClient creates a Chatling client.
func NewClient(opts Opts) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("chatling: api key is required")
	}
	if opts.BotID == "" {
		return nil, fmt.Errorf("chatling: bot id is required")
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		apiURL:     opts.APIURL,
		apiKey:     opts.APIKey,
		botID:      opts.BotID,
	}, nil
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	AIModelID      int    `json:"ai_model_id,omitempty"`
}

// chatResponse covers both response shapes Chatling has served: the
// current envelope with a data object, and the legacy flat reply field.
type chatResponse struct {
	Status string `json:"status"`
	Data   struct {
		Response       string          `json:"response"`
		ConversationID json.RawMessage `json:"conversation_id"`
	} `json:"data"`
	Reply   string `json:"reply"`
	Message string `json:"message"`
}

// Ask sends text to the bot and returns its reply. sessionRef is the
// conversation reference from a prior call, or empty to start a new AI
// conversation; the (possibly new) reference is returned alongside the
// reply and should be cached by the caller.
func (c *Client) Ask(ctx context.Context, sessionRef, text string) (string, string, error) {
	payload, err := json.Marshal(chatRequest{
		Message:        text,
		ConversationID: sessionRef,
	})
	if err != nil {
		return "", "", fmt.Errorf("chatling: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chatbots/%s/ai/kb/chat", c.apiURL, c.botID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("chatling: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("chatling: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("chatling: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("chatling: api returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("chatling: parse response: %w", err)
	}

	reply := parsed.Data.Response
	if reply == "" {
		reply = parsed.Reply
	}
	if reply == "" {
		reply = FallbackReply
	}

	newRef := rawToString(parsed.Data.ConversationID)
	if newRef == "" {
		newRef = sessionRef
	}
	return reply, newRef, nil
}

// rawToString normalizes the conversation id, which Chatling returns as
// either a JSON string or a number.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// truncate caps s at n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
