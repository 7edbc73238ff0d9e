package memegen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/zorium-chat/memebot/telemetry"
)

// Template is one entry of the provider's catalog.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Example Example `json:"example"`
}

// Example carries a template's suggested captions as [top, bottom].
type Example struct {
	Text []string `json:"text"`
}

// Slug returns the path-safe template id. Catalog ids may be path-shaped
// (e.g. "memes/drake"); image URLs want only the last segment.
func (t Template) Slug() string {
	if i := strings.LastIndex(t.ID, "/"); i >= 0 {
		return t.ID[i+1:]
	}
	return t.ID
}

// ExampleText returns the template's example captions, empty when absent.
func (t Template) ExampleText() (top, bottom string) {
	if len(t.Example.Text) > 0 {
		top = t.Example.Text[0]
	}
	if len(t.Example.Text) > 1 {
		bottom = t.Example.Text[1]
	}
	return top, bottom
}

// Client fetches the template catalog.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// unrecoverableStatus reports whether a response status should not be retried.
func unrecoverableStatus(code int) bool {
	return code >= 400 && code < 500
}

// Templates fetches the full catalog from GET {base}/templates. Network errors
// and 5xx responses are retried a few times with jittered backoff; 4xx is not.
func (c *Client) Templates(ctx context.Context) ([]Template, error) {
	telemetry.Inc(telemetry.TemplateFetches)
	var out []Template
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/templates", nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
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
				err := fmt.Errorf("templates request failed: %s: %s", resp.Status, string(b))
				if unrecoverableStatus(resp.StatusCode) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			var list []Template
			if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode templates: %w", err))
			}
			out = list
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Debug("retrying template fetch", slog.Uint64("attempt", uint64(n)), slog.Any("err", err))
		}),
	)
	if err != nil {
		telemetry.Inc(telemetry.TemplateFetchFailures)
		return nil, err
	}
	return out, nil
}
