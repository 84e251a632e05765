package rule

import (
	"context"
	"fmt"

	"github.com/gyaneshwarpardhi/automation/internal/event"
)

// MatchRules returns snapshots of the enabled rules triggered by ev, in
// catalog order. It has no side effects.
func MatchRules(ev *event.Event, rules []Rule) []Match {
	out := make([]Match, 0)
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if r.Trigger.EventType != ev.Name {
			continue
		}
		if r.Trigger.TenantID != "" && r.Trigger.TenantID != ev.TenantID {
			continue
		}
		if r.Trigger.BrandID != "" && r.Trigger.BrandID != ev.BrandID() {
			continue
		}
		out = append(out, r.Snapshot())
	}
	return out
}

// Matcher queries a catalog and applies MatchRules.
type Matcher struct {
	catalog Catalog
}

// NewMatcher creates a Matcher over the given catalog.
func NewMatcher(c Catalog) *Matcher {
	return &Matcher{catalog: c}
}

// Match returns the rule versions triggered by ev.
func (m *Matcher) Match(ctx context.Context, ev *event.Event) ([]Match, error) {
	rules, err := m.catalog.Rules(ctx, ev.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load rules for tenant %s: %w", ev.TenantID, err)
	}
	return MatchRules(ev, rules), nil
}
