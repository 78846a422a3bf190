// Package bitrix is an HTTP client for the Bitrix24 REST API over an
// inbound webhook. It implements the relay sink (bot messages into open
// channel dialogs) and exposes the CRM calls the relay uses around a
// human takeover: contact identity lookup and the lead handoff flag.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Client talks to a Bitrix24 portal through its permanent webhook URL
// (https://<portal>.bitrix24.xx/rest/<user>/<token>/).
type Client struct {
	httpClient *http.Client
	webhookURL string
	botID      int
	clientID   string
}

// Opts holds parameters for creating a Client.
type Opts struct {
	WebhookURL string
	BotID      int
	ClientID   string       // bot app client id, sent with imbot calls
	HTTPClient *http.Client // defaults to a 30s-timeout client
}

// NewClient creates a Bitrix24 client.
func NewClient(opts Opts) (*Client, error) {
	if opts.WebhookURL == "" {
		return nil, fmt.Errorf("bitrix: webhook url is required")
	}
	if opts.BotID == 0 {
		return nil, fmt.Errorf("bitrix: bot id is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		webhookURL: strings.TrimRight(opts.WebhookURL, "/"),
		botID:      opts.BotID,
		clientID:   opts.ClientID,
	}, nil
}

// restResponse is the common Bitrix24 envelope. Result shapes vary per
// method, so it stays raw until the caller decodes it.
type restResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// call posts one REST method (e.g. "imbot.message.add") with a JSON
// payload and returns the decoded result field.
func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("bitrix: marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/%s.json", c.webhookURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bitrix: build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bitrix: send %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("bitrix: read %s response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bitrix: %s returned %d: %s", method, resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed restResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("bitrix: parse %s response: %w", method, err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("bitrix: %s failed: %s (%s)", method, parsed.Error, parsed.ErrorDescription)
	}
	return parsed.Result, nil
}

// SendMessage posts a bot message into the given dialog.
func (c *Client) SendMessage(ctx context.Context, dialogID, text string) error {
	if dialogID == "" {
		return fmt.Errorf("bitrix: dialog id is required")
	}
	if text == "" {
		return fmt.Errorf("bitrix: message text is required")
	}
	_, err := c.call(ctx, "imbot.message.add", map[string]any{
		"BOT_ID":    c.botID,
		"CLIENT_ID": c.clientID,
		"DIALOG_ID": dialogID,
		"MESSAGE":   text,
	})
	return err
}

// Contact holds the CRM identity fields the relay keeps per conversation.
type Contact struct {
	LeadID string
	Name   string
	Phone  string
	Email  string
}

// crmContact mirrors the crm.contact.get result. Phone and email come as
// multifield lists; only the first value of each is used.
type crmContact struct {
	ID       json.Number `json:"ID"`
	Name     string      `json:"NAME"`
	LastName string      `json:"LAST_NAME"`
	LeadID   json.Number `json:"LEAD_ID"`
	Phone    []crmMulti  `json:"PHONE"`
	Email    []crmMulti  `json:"EMAIL"`
}

type crmMulti struct {
	Value string `json:"VALUE"`
}

// GetContact fetches a CRM contact by id.
func (c *Client) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	if contactID == "" {
		return nil, fmt.Errorf("bitrix: contact id is required")
	}
	result, err := c.call(ctx, "crm.contact.get", map[string]any{"id": contactID})
	if err != nil {
		return nil, err
	}

	var raw crmContact
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("bitrix: parse contact: %w", err)
	}

	contact := &Contact{
		LeadID: raw.LeadID.String(),
		Name:   strings.TrimSpace(raw.Name + " " + raw.LastName),
	}
	if len(raw.Phone) > 0 {
		contact.Phone = raw.Phone[0].Value
	}
	if len(raw.Email) > 0 {
		contact.Email = raw.Email[0].Value
	}
	return contact, nil
}

// GetLeadField fetches one field from a CRM lead, typically a UF_CRM_*
// custom field. Returns the raw JSON value, or nil when the field is
// absent.
func (c *Client) GetLeadField(ctx context.Context, leadID, field string) (json.RawMessage, error) {
	result, err := c.call(ctx, "crm.lead.get", map[string]any{"id": leadID})
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result, &fields); err != nil {
		return nil, fmt.Errorf("bitrix: parse lead: %w", err)
	}
	return fields[field], nil
}

// SetLeadField updates one field on a CRM lead. Bitrix returns result=true
// on success; anything else is reported as an error.
func (c *Client) SetLeadField(ctx context.Context, leadID, field string, value any) error {
	result, err := c.call(ctx, "crm.lead.update", map[string]any{
		"id":     leadID,
		"fields": map[string]any{field: value},
	})
	if err != nil {
		return err
	}

	var ok bool
	if err := json.Unmarshal(result, &ok); err != nil || !ok {
		return fmt.Errorf("bitrix: crm.lead.update rejected for lead %s field %s", leadID, field)
	}
	return nil
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
