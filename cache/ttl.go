// Package cache implements the multi-level, adaptive-TTL compiled-
// schema/pattern/rule cache. It replaces the teacher's unbounded
// Compiler.cache map[string]*Schema (jsonschema/v2/compiler.go) with a
// bounded, background-swept structure whose TTLs grow with access
// frequency and can be overridden per key pattern.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Level identifies which cache tier an entry belongs to. L1 is hot/
// short-lived, L2 medium, L3 long-lived — mirroring
// ttl_manager.rs's cache_level 1/2/3 convention.
type Level uint8

const (
	L1 Level = 1
	L2 Level = 2
	L3 Level = 3
)

// Config mirrors ttl_manager.rs's TtlConfig, including its exact
// defaults (5min/1h/24h base TTLs, 1min/7day clamp, 1.5x extension
// factor, promotion threshold 5).
type Config struct {
	L1BaseTTL          time.Duration
	L2BaseTTL          time.Duration
	L3BaseTTL          time.Duration
	MinTTL             time.Duration
	MaxTTL             time.Duration
	TTLExtensionFactor float64
	AdaptiveTTL        bool
	PromotionThreshold uint32
}

// DefaultConfig returns ttl_manager.rs's TtlConfig::default() values.
func DefaultConfig() Config {
	return Config{
		L1BaseTTL:          5 * time.Minute,
		L2BaseTTL:          time.Hour,
		L3BaseTTL:          24 * time.Hour,
		MinTTL:             time.Minute,
		MaxTTL:             7 * 24 * time.Hour,
		TTLExtensionFactor: 1.5,
		AdaptiveTTL:        true,
		PromotionThreshold: 5,
	}
}

func (c Config) baseTTL(level Level) time.Duration {
	switch level {
	case L1:
		return c.L1BaseTTL
	case L3:
		return c.L3BaseTTL
	default:
		return c.L2BaseTTL
	}
}

// accessPattern tracks access history for one entry, the Go analogue of
// AccessPattern in ttl_manager.rs (SmallVec<[Instant; 8]> becomes a
// fixed-size ring buffer here since Go has no stack-allocated small-vec
// type in the pack).
type accessPattern struct {
	mu               sync.Mutex
	count            uint32
	lastAccess       time.Time
	avgInterval      time.Duration
	history          [8]time.Time
	historyLen       int
}

func newAccessPattern() *accessPattern {
	return &accessPattern{lastAccess: time.Now()}
}

func (p *accessPattern) recordAccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.count++
	if p.count > 1 {
		interval := now.Sub(p.lastAccess)
		weight := 1.0 / float64(p.count)
		newAvg := p.avgInterval.Seconds()*(1.0-weight) + interval.Seconds()*weight
		p.avgInterval = time.Duration(newAvg * float64(time.Second))
	}
	p.lastAccess = now

	if p.historyLen < len(p.history) {
		p.history[p.historyLen] = now
		p.historyLen++
	} else {
		// Drop the oldest entry and append, mirroring
		// SmallVec::remove(0) + push in the original.
		copy(p.history[:], p.history[1:])
		p.history[len(p.history)-1] = now
	}
}

// frequency returns accesses per hour, mirroring access_frequency().
func (p *accessPattern) frequency() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.historyLen == 0 {
		return 0
	}
	duration := p.lastAccess.Sub(p.history[0])
	if duration <= 0 {
		return 0
	}
	return float64(p.count) / (duration.Hours())
}

// predictNextAccess mirrors predict_next_access: nil until at least 2
// accesses have been recorded.
func (p *accessPattern) predictNextAccess() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.count < 2 {
		return time.Time{}, false
	}
	return p.lastAccess.Add(p.avgInterval), true
}

// Entry is one cached TTL record, mirroring ttl_manager.rs's TtlEntry.
type Entry struct {
	expiresAt   time.Time
	ttlDuration time.Duration
	level       Level
	pattern     *accessPattern
}

func newEntry(ttl time.Duration, level Level) *Entry {
	return &Entry{
		expiresAt:   time.Now().Add(ttl),
		ttlDuration: ttl,
		level:       level,
		pattern:     newAccessPattern(),
	}
}

// IsExpired reports whether the entry's TTL has elapsed.
func (e *Entry) IsExpired() bool { return time.Now().After(e.expiresAt) }

// TimeUntilExpiry returns the remaining TTL, or false if already
// expired.
func (e *Entry) TimeUntilExpiry() (time.Duration, bool) {
	remaining := time.Until(e.expiresAt)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// recordAccess records an access and, if adaptive TTL is enabled,
// extends the entry's TTL based on its access frequency — extension_factor
// = 1 + min(frequency/10, config.TTLExtensionFactor-1), clamped to
// [MinTTL, MaxTTL]. Ported verbatim from TtlEntry::record_access.
func (e *Entry) recordAccess(cfg Config) {
	e.pattern.recordAccess()
	if !cfg.AdaptiveTTL {
		return
	}
	frequency := e.pattern.frequency()
	extensionFactor := 1.0 + min(frequency/10.0, cfg.TTLExtensionFactor-1.0)
	newTTL := time.Duration(e.ttlDuration.Seconds() * extensionFactor * float64(time.Second))
	if newTTL < cfg.MinTTL {
		newTTL = cfg.MinTTL
	}
	if newTTL > cfg.MaxTTL {
		newTTL = cfg.MaxTTL
	}
	e.ttlDuration = newTTL
	e.expiresAt = time.Now().Add(newTTL)
}

// Rule is a hierarchical TTL override keyed by a substring match against
// the cache key, mirroring ttl_manager.rs's TtlRule. A matching rule
// with Override set replaces the level's base TTL outright; Multiplier
// (checked only when Override is unset) scales it. Rules are tried in
// descending Priority order, first match wins — confirmed by
// ttl_manager.rs's own test_ttl_rules unit test, which expects an exact
// override, not an override multiplied onto the base.
type Rule struct {
	Pattern    string
	Override   *time.Duration
	Multiplier *float64
	Priority   int
}

// Manager is the TTL authority for a Cache: it decides each key's TTL,
// tracks access patterns, and expires entries on request. Mirrors
// ttl_manager.rs's TtlManager, with DashMap/parking_lot::RwLock
// translated to sync.Map/sync.RWMutex, the concurrency idiom the
// teacher itself uses throughout jsonschema/v2.
type Manager struct {
	cfg     Config
	entries sync.Map // string -> *Entry
	rulesMu sync.RWMutex
	rules   []Rule

	globalPattern *accessPattern
}

// NewManager returns a Manager configured with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, globalPattern: newAccessPattern()}
}

// AddRule registers rule, keeping rules sorted by descending Priority.
func (m *Manager) AddRule(rule Rule) {
	m.rulesMu.Lock()
	defer m.rulesMu.Unlock()
	m.rules = append(m.rules, rule)
	sortRulesByPriorityDesc(m.rules)
}

func sortRulesByPriorityDesc(rules []Rule) {
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0 && rules[j-1].Priority < rules[j].Priority; j-- {
			rules[j-1], rules[j] = rules[j], rules[j-1]
		}
	}
}

func (m *Manager) applyRules(key string, base time.Duration) time.Duration {
	m.rulesMu.RLock()
	defer m.rulesMu.RUnlock()
	for _, rule := range m.rules {
		if !strings.Contains(key, rule.Pattern) {
			continue
		}
		if rule.Override != nil {
			return *rule.Override
		}
		if rule.Multiplier != nil {
			return time.Duration(base.Seconds() * *rule.Multiplier * float64(time.Second))
		}
	}
	return base
}

// SetTTL creates (or replaces) the TTL entry for key at the given
// level, applying any matching Rule, and returns the TTL actually
// assigned.
func (m *Manager) SetTTL(key string, level Level) time.Duration {
	base := m.cfg.baseTTL(level)
	ttl := m.applyRules(key, base)
	m.entries.Store(key, newEntry(ttl, level))
	return ttl
}

// GetTTL records an access against key's entry and returns its
// (possibly just-extended) TTL, or false if key has no entry.
func (m *Manager) GetTTL(key string) (time.Duration, bool) {
	v, ok := m.entries.Load(key)
	if !ok {
		return 0, false
	}
	entry := v.(*Entry)
	entry.recordAccess(m.cfg)
	m.globalPattern.recordAccess()
	return entry.ttlDuration, true
}

// IsExpired reports whether key is absent or has expired.
func (m *Manager) IsExpired(key string) bool {
	v, ok := m.entries.Load(key)
	if !ok {
		return true
	}
	return v.(*Entry).IsExpired()
}

// RemoveExpired sweeps all entries and deletes expired ones, returning
// the removed keys. Mirrors remove_expired's DashMap::retain sweep.
func (m *Manager) RemoveExpired() []string {
	var expired []string
	m.entries.Range(func(k, v any) bool {
		if v.(*Entry).IsExpired() {
			expired = append(expired, k.(string))
		}
		return true
	})
	for _, k := range expired {
		m.entries.Delete(k)
	}
	return expired
}

// Stats summarizes the manager's current entry population.
type Stats struct {
	TotalEntries           int
	ExpiredCount           int
	EntriesByLevel         map[Level]int
	GlobalAccessFrequency  float64
}

// GetStats mirrors get_stats.
func (m *Manager) GetStats() Stats {
	stats := Stats{EntriesByLevel: map[Level]int{}}
	m.entries.Range(func(_, v any) bool {
		entry := v.(*Entry)
		stats.TotalEntries++
		if entry.IsExpired() {
			stats.ExpiredCount++
		}
		stats.EntriesByLevel[entry.level]++
		return true
	})
	stats.GlobalAccessFrequency = m.globalPattern.frequency()
	return stats
}

// PredictOptimalTTL mirrors predict_optimal_ttl: once an entry has at
// least 3 recorded accesses, predicts its next access time and returns
// that interval plus a 20% buffer as a suggested TTL.
func (m *Manager) PredictOptimalTTL(key string) (time.Duration, bool) {
	v, ok := m.entries.Load(key)
	if !ok {
		return 0, false
	}
	entry := v.(*Entry)
	entry.pattern.mu.Lock()
	count := entry.pattern.count
	entry.pattern.mu.Unlock()
	if count < 3 {
		return 0, false
	}
	nextAccess, ok := entry.pattern.predictNextAccess()
	if !ok {
		return 0, false
	}
	now := time.Now()
	if !nextAccess.After(now) {
		return 0, false
	}
	predicted := nextAccess.Sub(now)
	buffer := time.Duration(predicted.Seconds() * 0.2 * float64(time.Second))
	return predicted + buffer, true
}
