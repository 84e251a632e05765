package rule

import (
	"context"
	"sync/atomic"

	"github.com/gyaneshwarpardhi/automation/internal/config"
)

// Catalog supplies rule versions for a tenant. Implementations are expected
// to have already applied tenant-level authorization.
type Catalog interface {
	Rules(ctx context.Context, tenantID string) ([]Rule, error)
}

// StaticCatalog holds an in-memory rule set.
// The set is immutable once stored; hot-reload builds a new one and swaps atomically.
type StaticCatalog struct {
	rules atomic.Pointer[[]Rule]
}

// NewStaticCatalog creates a catalog over rules.
func NewStaticCatalog(rules []Rule) *StaticCatalog {
	c := &StaticCatalog{}
	c.Swap(rules)
	return c
}

// Swap atomically replaces the rule set (used on hot-reload).
func (c *StaticCatalog) Swap(rules []Rule) {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	c.rules.Store(&cp)
}

// All returns every rule in the catalog, enabled or not.
func (c *StaticCatalog) All() []Rule {
	return *c.rules.Load()
}

// Rules implements Catalog: global rules plus rules scoped to tenantID.
func (c *StaticCatalog) Rules(_ context.Context, tenantID string) ([]Rule, error) {
	all := c.All()
	out := make([]Rule, 0, len(all))
	for _, r := range all {
		if r.Trigger.TenantID == "" || r.Trigger.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Build converts a validated RuleConfig into catalog rules, keeping file order.
func Build(cfg *config.RuleConfig) []Rule {
	out := make([]Rule, 0, len(cfg.Rules))
	for _, d := range cfg.Rules {
		out = append(out, Rule{
			ID:        d.ID,
			VersionID: d.VersionID,
			Name:      d.Name,
			Priority:  d.Priority,
			Enabled:   d.Enabled,
			Trigger: Trigger{
				EventType: d.Trigger.EventType,
				TenantID:  d.Trigger.TenantID,
				BrandID:   d.Trigger.BrandID,
			},
			Conditions: d.Conditions,
			Actions:    d.Actions,
		})
	}
	return out
}
