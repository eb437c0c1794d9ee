package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/alicebob/miniredis/v2"
)

func TestRedisCacheRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisCache(mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
	})

	scope := Scope("https://acme.atlassian.net", "bot@acme.io", "secret")
	if _, ok := c.GetSprints(ctx, scope, 7); ok {
		t.Fatalf("expected miss on empty cache")
	}
	in := []domain.Sprint{
		{ID: 2, Name: "Sprint 2", State: "active", StartDate: "2024-01-15"},
		{ID: 1, Name: "Sprint 1", State: "closed", EndDate: "2024-01-14"},
	}
	if err := c.PutSprints(ctx, Scope("https://acme.atlassian.net/", "bot@acme.io", "secret"), 7, in); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, ok := c.GetSprints(ctx, Scope("https://ACME.atlassian.net", "bot@acme.io", "secret"), 7)
	if !ok {
		t.Fatalf("expected hit")
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].EndDate != "2024-01-14" {
		t.Fatalf("unexpected sprints %+v", got)
	}
	if _, ok := c.GetSprints(ctx, scope, 8); ok {
		t.Fatalf("boards must not share entries")
	}
	if _, ok := c.GetSprints(ctx, Scope("https://acme.atlassian.net", "bot@acme.io", "wrong"), 7); ok {
		t.Fatalf("other credentials must not share entries")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := c.GetSprints(ctx, scope, 7); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestRedisCacheIgnoresCorruptEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
	})
	scope := Scope("https://acme.atlassian.net", "bot@acme.io", "secret")
	if err := mr.Set(sprintsKey(scope, 3), "{not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, ok := c.GetSprints(context.Background(), scope, 3); ok {
		t.Fatalf("corrupt entry must read as a miss")
	}
}

func TestScopeNeverHoldsTheToken(t *testing.T) {
	scope := Scope("https://acme.atlassian.net", "bot@acme.io", "secret")
	if strings.Contains(scope, "secret") || strings.Contains(scope, "bot@acme.io") {
		t.Fatalf("scope leaks credentials: %q", scope)
	}
	if scope == Scope("https://acme.atlassian.net", "bot@acme.io", "other") {
		t.Fatalf("different tokens produced the same scope")
	}
}

func TestNoopNeverHits(t *testing.T) {
	var c SprintCache = Noop{}
	_ = c.PutSprints(context.Background(), "x", 1, []domain.Sprint{{ID: 1}})
	if _, ok := c.GetSprints(context.Background(), "x", 1); ok {
		t.Fatalf("noop cache returned a hit")
	}
}
