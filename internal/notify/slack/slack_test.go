package slack

import (
	"context"
	"errors"
	"sync"
	"testing"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/switchboard/internal/notify"
)

// --- Mock Slack client ---

type mockClient struct {
	mu      sync.Mutex
	posts   []postedMessage
	postErr error
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

func (m *mockClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return "", "", m.postErr
	}
	m.posts = append(m.posts, postedMessage{channelID: channelID, options: options})
	return channelID, "123.456", nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{BotToken: "xoxb-1"}); err == nil {
		t.Error("expected error for missing channel id")
	}
	if _, err := New(Opts{ChannelID: "C123"}); err == nil {
		t.Error("expected error for missing token and client")
	}
	if _, err := New(Opts{ChannelID: "C123", Client: &mockClient{}}); err != nil {
		t.Errorf("unexpected error with injected client: %v", err)
	}
}

func TestPost(t *testing.T) {
	client := &mockClient{}
	n, err := New(Opts{ChannelID: "C123", Client: client})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := notify.Event{Title: "Human takeover started", Body: "details", Severity: notify.SeverityInfo}
	if err := n.Post(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(client.posts))
	}
	if client.posts[0].channelID != "C123" {
		t.Errorf("channelID = %q", client.posts[0].channelID)
	}
}

func TestPost_Error(t *testing.T) {
	client := &mockClient{postErr: errors.New("channel_not_found")}
	n, _ := New(Opts{ChannelID: "C123", Client: client})

	err := n.Post(context.Background(), notify.Event{Title: "t"})
	if err == nil {
		t.Fatal("expected error")
	}
}
