package cache

import (
	"testing"
	"time"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New(DefaultConfig())
	c.Put("schema:Person", "compiled-person", L2)
	v, ok := c.Get("schema:Person")
	if !ok || v != "compiled-person" {
		t.Fatalf("expected hit, got v=%v ok=%v", v, ok)
	}
}

func TestGetOrCompileCallsOnceAndCaches(t *testing.T) {
	c := New(DefaultConfig())
	calls := 0
	compile := func() (any, error) {
		calls++
		return "built", nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompile("k", L1, compile)
		if err != nil || v != "built" {
			t.Fatalf("unexpected v=%v err=%v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected compile to run exactly once, got %d", calls)
	}
}

func TestExpiredEntryIsEvictedOnGet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.L1BaseTTL = time.Millisecond
	cfg.MinTTL = time.Millisecond
	cfg.AdaptiveTTL = false
	c := New(cfg)
	c.Put("k", "v", L1)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted, Len()=%d", c.Len())
	}
}

func TestTtlRuleOverrideNotMultiply(t *testing.T) {
	// Mirrors ttl_manager.rs's own test_ttl_rules: a matching rule with
	// an override replaces the base TTL outright rather than scaling it.
	m := NewManager(DefaultConfig())
	override := 2 * time.Hour
	m.AddRule(Rule{Pattern: "schema:", Override: &override, Priority: 10})
	ttl := m.SetTTL("linkml:schema:test", L1)
	if ttl != 2*time.Hour {
		t.Fatalf("expected override TTL of 2h, got %v", ttl)
	}
}

func TestTtlRuleMultiplier(t *testing.T) {
	m := NewManager(DefaultConfig())
	mult := 2.0
	m.AddRule(Rule{Pattern: "pattern:", Multiplier: &mult, Priority: 5})
	ttl := m.SetTTL("pattern:foo", L2)
	if ttl != 2*time.Hour {
		t.Fatalf("expected 2x L2 base (2h), got %v", ttl)
	}
}

func TestAdaptiveTTLExtendsOnFrequentAccess(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg)
	initial := m.SetTTL("k", L1)
	for i := 0; i < 5; i++ {
		m.GetTTL("k")
	}
	v, _ := m.entries.Load("k")
	entry := v.(*Entry)
	if entry.ttlDuration < initial {
		t.Fatalf("expected TTL to grow or stay equal under adaptive TTL, got %v < %v", entry.ttlDuration, initial)
	}
}

func TestRemoveExpiredSweepsOnlyExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.L1BaseTTL = time.Millisecond
	cfg.MinTTL = time.Millisecond
	cfg.AdaptiveTTL = false
	m := NewManager(cfg)
	m.SetTTL("expires-soon", L1)
	m.SetTTL("stays", L3)
	time.Sleep(5 * time.Millisecond)
	expired := m.RemoveExpired()
	if len(expired) != 1 || expired[0] != "expires-soon" {
		t.Fatalf("expected only expires-soon to be swept, got %v", expired)
	}
	if m.IsExpired("stays") {
		t.Fatal("expected long-TTL entry to still be live")
	}
}

func TestMaintainerSweepsInBackground(t *testing.T) {
	cfg := DefaultConfig()
	cfg.L1BaseTTL = time.Millisecond
	cfg.MinTTL = time.Millisecond
	cfg.AdaptiveTTL = false
	c := New(cfg)
	c.Put("k", "v", L1)

	done := make(chan []string, 1)
	maint := NewMaintainer(c, 5*time.Millisecond, func(evicted []string, _ Stats) {
		if len(evicted) > 0 {
			select {
			case done <- evicted:
			default:
			}
		}
	})
	maint.Start()
	defer maint.Stop()

	select {
	case evicted := <-done:
		if len(evicted) != 1 || evicted[0] != "k" {
			t.Fatalf("got %v", evicted)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background sweep")
	}
}
