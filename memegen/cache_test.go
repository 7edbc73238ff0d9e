package memegen

import (
	"context"
	"testing"
	"time"

	"github.com/zorium-chat/memebot/testutil"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *testutil.MockProviderServer) {
	t.Helper()
	provider := testutil.NewMockProviderServer(t)
	c := NewCache(&Client{BaseURL: provider.URL, HTTPClient: provider.Client()}, ttl)
	return c, provider
}

func TestCatalogFreshWithinTTL(t *testing.T) {
	c, provider := newTestCache(t, 5*time.Minute)
	provider.SetTemplates([]map[string]any{
		{"id": "drake", "name": "Drake Hotline Bling"},
		{"id": "fry", "name": "Futurama Fry"},
	})

	ctx := context.Background()
	first := c.Catalog(ctx)
	second := c.Catalog(ctx)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("catalog sizes = %d, %d; want 2, 2", len(first), len(second))
	}
	if provider.TemplateCalls() != 1 {
		t.Errorf("upstream fetches = %d, want exactly 1 within TTL", provider.TemplateCalls())
	}
}

func TestCatalogRefetchAfterExpiry(t *testing.T) {
	c, provider := newTestCache(t, 5*time.Minute)
	provider.SetTemplates([]map[string]any{{"id": "drake", "name": "Drake"}})

	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	c.Catalog(ctx)
	now = now.Add(4 * time.Minute)
	c.Catalog(ctx)
	if provider.TemplateCalls() != 1 {
		t.Fatalf("fetches before expiry = %d, want 1", provider.TemplateCalls())
	}
	now = now.Add(2 * time.Minute)
	c.Catalog(ctx)
	if provider.TemplateCalls() != 2 {
		t.Errorf("fetches after expiry = %d, want 2", provider.TemplateCalls())
	}
}

func TestCatalogStaleOnFailure(t *testing.T) {
	c, provider := newTestCache(t, time.Minute)
	provider.SetTemplates([]map[string]any{{"id": "drake", "name": "Drake"}})

	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	if got := c.Catalog(ctx); len(got) != 1 {
		t.Fatalf("initial catalog size = %d, want 1", len(got))
	}

	provider.FailTemplates(404)
	now = now.Add(2 * time.Minute)
	got := c.Catalog(ctx)
	if len(got) != 1 || got[0].ID != "drake" {
		t.Errorf("stale catalog not preserved after failed refresh: %+v", got)
	}
	if c.Age() < 2*time.Minute {
		t.Errorf("fetchedAt must be untouched by a failed refresh, age = %v", c.Age())
	}
}

func TestCatalogEmptyOnColdFailure(t *testing.T) {
	c, provider := newTestCache(t, time.Minute)
	provider.FailTemplates(500)
	if got := c.Catalog(context.Background()); len(got) != 0 {
		t.Errorf("cold failing catalog = %+v, want empty", got)
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
}

func TestSearch(t *testing.T) {
	c, provider := newTestCache(t, time.Minute)
	provider.SetTemplates([]map[string]any{
		{"id": "drake", "name": "Drake Hotline Bling"},
		{"id": "fry", "name": "Futurama Fry"},
		{"id": "grumpy", "name": "Grumpy Cat"},
	})
	ctx := context.Background()
	got := c.Search(ctx, "FRY")
	if len(got) != 1 || got[0].ID != "fry" {
		t.Errorf("Search(FRY) = %+v, want the fry template", got)
	}
	if got := c.Search(ctx, "zzz"); len(got) != 0 {
		t.Errorf("Search(zzz) = %+v, want empty", got)
	}
	// 1 upstream fetch covers all three searches.
	if provider.TemplateCalls() != 1 {
		t.Errorf("fetches = %d, want 1", provider.TemplateCalls())
	}
}

func TestPrefetch(t *testing.T) {
	c, provider := newTestCache(t, time.Minute)
	provider.SetTemplates([]map[string]any{
		{"id": "drake", "name": "Drake"},
		{"id": "fry", "name": "Fry"},
	})
	if n := c.Prefetch(context.Background()); n != 2 {
		t.Errorf("Prefetch = %d, want 2", n)
	}
}
