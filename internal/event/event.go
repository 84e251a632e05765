package event

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingTenant is returned when an event arrives without a tenant scope.
	ErrMissingTenant = errors.New("event tenant id is required")
	// ErrMissingName is returned when an event has no name to match triggers on.
	ErrMissingName = errors.New("event name is required")
)

// Event is the canonical input model for all automation events.
type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"` // "deal.created", "ticket.updated", etc.
	OccurredAt time.Time      `json:"occurredAt"`
	TenantID   string         `json:"tenantId"`
	Payload    map[string]any `json:"payload"`
	Meta       *Meta          `json:"meta,omitempty"`
}

// Meta carries delivery metadata set by the event source.
type Meta struct {
	Source        string `json:"source,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	BrandID       string `json:"brandId,omitempty"`
}

// Validate checks the fields the runtime cannot operate without.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("event: nil event")
	}
	if e.TenantID == "" {
		return fmt.Errorf("event %s: %w", e.ID, ErrMissingTenant)
	}
	if e.Name == "" {
		return fmt.Errorf("event %s: %w", e.ID, ErrMissingName)
	}
	return nil
}

// BrandID returns the brand scope of the event, or "" when unscoped.
func (e *Event) BrandID() string {
	if e.Meta == nil {
		return ""
	}
	return e.Meta.BrandID
}

// Data renders the event as the generic document conditions are evaluated against.
func (e *Event) Data() map[string]any {
	data := map[string]any{
		"id":         e.ID,
		"name":       e.Name,
		"occurredAt": e.OccurredAt.Format(time.RFC3339Nano),
		"tenantId":   e.TenantID,
		"payload":    e.Payload,
	}
	if e.Meta != nil {
		data["meta"] = map[string]any{
			"source":        e.Meta.Source,
			"correlationId": e.Meta.CorrelationID,
			"brandId":       e.Meta.BrandID,
		}
	}
	return data
}
