// Package directory is a minimal client for the bot directory API: token
// validation, bot profile, server/channel enumeration, and message sending.
// All requests carry the bot token in the X-Bot-Token header.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// Client talks to the directory API for one bot credential.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Server is one server the bot credential has access to.
type Server struct {
	ID   string
	Name string
}

// Channel is one channel within a server. Type is "text" for text channels and
// may be empty on older servers (treated as text).
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// IsText reports whether the channel should receive a subscription.
func (c Channel) IsText() bool {
	return c.Type == "text" || c.Type == ""
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// getJSON performs an authenticated GET with retry on transient failures and
// decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("X-Bot-Token", c.Token)
			resp, err := c.http().Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if err := resp.Body.Close(); err != nil {
					slog.Warn("failed to close response body", slog.Any("err", err))
				}
			}()
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				err := fmt.Errorf("GET %s failed: %s: %s", endpoint, resp.Status, string(b))
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode %s: %w", endpoint, err))
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

// Validate checks the bot token and returns the bot id on success.
func (c *Client) Validate(ctx context.Context) (string, error) {
	var body struct {
		Valid bool   `json:"valid"`
		BotID string `json:"bot_id"`
	}
	if err := c.getJSON(ctx, "/validate", &body); err != nil {
		return "", err
	}
	if !body.Valid {
		return "", fmt.Errorf("bot token rejected")
	}
	return body.BotID, nil
}

// Profile returns the bot's display name.
func (c *Client) Profile(ctx context.Context) (string, error) {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "/profile", &body); err != nil {
		return "", err
	}
	return body.Name, nil
}

// Servers lists the servers the bot credential has access to. Server payloads
// use either id/name or serverId/serverName keys depending on API age.
func (c *Client) Servers(ctx context.Context) ([]Server, error) {
	var body struct {
		Servers []struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			ServerID   string `json:"serverId"`
			ServerName string `json:"serverName"`
		} `json:"servers"`
	}
	if err := c.getJSON(ctx, "/servers", &body); err != nil {
		return nil, err
	}
	out := make([]Server, 0, len(body.Servers))
	for _, s := range body.Servers {
		srv := Server{ID: s.ServerID, Name: s.ServerName}
		if srv.ID == "" {
			srv.ID = s.ID
		}
		if srv.Name == "" {
			srv.Name = s.Name
		}
		out = append(out, srv)
	}
	return out, nil
}

// Channels lists the channels of one server.
func (c *Client) Channels(ctx context.Context, serverID string) ([]Channel, error) {
	var body struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.getJSON(ctx, "/"+serverID+"/channels", &body); err != nil {
		return nil, err
	}
	return body.Channels, nil
}

// SendMessage posts a message into a channel. Sends are deliberately not
// retried: a duplicated chat reply is worse than a dropped one.
func (c *Client) SendMessage(ctx context.Context, serverID, channelID, content string) error {
	payload, err := json.Marshal(map[string]string{
		"channelId": channelID,
		"content":   content,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+serverID+"/messages/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Bot-Token", c.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send message failed: %s: %s", resp.Status, string(b))
	}
	return nil
}
