package directory

import (
	"context"
	"testing"

	"github.com/zorium-chat/memebot/testutil"
)

func newTestClient(t *testing.T, token string) (*Client, *testutil.MockDirectoryServer) {
	t.Helper()
	mock := testutil.NewMockDirectoryServer(t, "good-token")
	c := &Client{BaseURL: mock.URL, Token: token, HTTPClient: mock.Client()}
	return c, mock
}

func TestValidate(t *testing.T) {
	c, mock := newTestClient(t, "good-token")
	mock.SetIdentity("bot42", "MemeBot")

	id, err := c.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if id != "bot42" {
		t.Errorf("bot id = %q, want bot42", id)
	}
}

func TestValidateRejectsBadToken(t *testing.T) {
	c, _ := newTestClient(t, "wrong-token")
	if _, err := c.Validate(context.Background()); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestProfile(t *testing.T) {
	c, mock := newTestClient(t, "good-token")
	mock.SetIdentity("bot42", "Memeothy")

	name, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	if name != "Memeothy" {
		t.Errorf("name = %q, want Memeothy", name)
	}
}

func TestServersAndChannels(t *testing.T) {
	c, mock := newTestClient(t, "good-token")
	mock.AddServer("srv1", "General", []map[string]any{
		{"id": "ch1", "name": "general", "type": "text"},
		{"id": "ch2", "name": "voicey", "type": "voice"},
		{"id": "ch3", "name": "untyped"},
	})

	ctx := context.Background()
	servers, err := c.Servers(ctx)
	if err != nil {
		t.Fatalf("Servers() error: %v", err)
	}
	if len(servers) != 1 || servers[0].ID != "srv1" || servers[0].Name != "General" {
		t.Fatalf("servers = %+v", servers)
	}

	channels, err := c.Channels(ctx, "srv1")
	if err != nil {
		t.Fatalf("Channels() error: %v", err)
	}
	if len(channels) != 3 {
		t.Fatalf("channels = %+v", channels)
	}
	wantText := map[string]bool{"ch1": true, "ch2": false, "ch3": true}
	for _, ch := range channels {
		if ch.IsText() != wantText[ch.ID] {
			t.Errorf("IsText(%s) = %v, want %v", ch.ID, ch.IsText(), wantText[ch.ID])
		}
	}
}

func TestSendMessage(t *testing.T) {
	c, mock := newTestClient(t, "good-token")

	err := c.SendMessage(context.Background(), "srv1", "ch1", "hello")
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %+v, want one message", sent)
	}
	if sent[0].ServerID != "srv1" || sent[0].ChannelID != "ch1" || sent[0].Content != "hello" {
		t.Errorf("sent = %+v", sent[0])
	}
}

func TestSendMessageNotRetried(t *testing.T) {
	c, mock := newTestClient(t, "good-token")
	mock.FailSends(true)

	if err := c.SendMessage(context.Background(), "srv1", "ch1", "hello"); err == nil {
		t.Fatal("expected error for failing send")
	}
	if got := mock.Sent(); len(got) != 0 {
		t.Errorf("no message should be recorded, got %+v", got)
	}
}
