package action

import (
	"fmt"
	"strings"
)

// LogKind handles "LOG" actions: params.message is required.
type LogKind struct{}

func (LogKind) Type() string { return "LOG" }

func (LogKind) Validate(params map[string]any) error {
	if _, err := requireString(params, "message"); err != nil {
		return fmt.Errorf("LOG: %w", err)
	}
	if lvl, ok := params["level"].(string); ok {
		switch strings.ToLower(lvl) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("LOG: level must be debug, info, warn or error, got %q", lvl)
		}
	}
	return nil
}

// SendEmailKind handles "SEND_EMAIL" actions.
// It supports two addressing modes:
//   - to: <literal address>
//   - to_field: <event path holding the address>
type SendEmailKind struct{}

func (SendEmailKind) Type() string { return "SEND_EMAIL" }

func (SendEmailKind) Validate(params map[string]any) error {
	_, hasTo := params["to"]
	_, hasField := params["to_field"]
	if !hasTo && !hasField {
		return fmt.Errorf("SEND_EMAIL: one of 'to' or 'to_field' is required")
	}
	if to, ok := params["to"].(string); ok && !strings.Contains(to, "@") {
		return fmt.Errorf("SEND_EMAIL: 'to' must be an email address, got %q", to)
	}
	if _, err := requireString(params, "template"); err != nil {
		return fmt.Errorf("SEND_EMAIL: %w", err)
	}
	return nil
}

// UpdateCRMFieldKind handles "UPDATE_CRM_FIELD" actions.
type UpdateCRMFieldKind struct{}

func (UpdateCRMFieldKind) Type() string { return "UPDATE_CRM_FIELD" }

func (UpdateCRMFieldKind) Validate(params map[string]any) error {
	entity, err := requireString(params, "entity")
	if err != nil {
		return fmt.Errorf("UPDATE_CRM_FIELD: %w", err)
	}
	switch entity {
	case "contact", "deal", "company", "ticket":
	default:
		return fmt.Errorf("UPDATE_CRM_FIELD: unknown entity %q", entity)
	}
	if _, err := requireString(params, "field"); err != nil {
		return fmt.Errorf("UPDATE_CRM_FIELD: %w", err)
	}
	if _, ok := params["value"]; !ok {
		return fmt.Errorf("UPDATE_CRM_FIELD: 'value' is required")
	}
	return nil
}

// CreateTaskKind handles "CREATE_TASK" actions.
type CreateTaskKind struct{}

func (CreateTaskKind) Type() string { return "CREATE_TASK" }

func (CreateTaskKind) Validate(params map[string]any) error {
	if _, err := requireString(params, "title"); err != nil {
		return fmt.Errorf("CREATE_TASK: %w", err)
	}
	if due, ok := params["due_in_hours"]; ok {
		switch n := due.(type) {
		case int:
			if n <= 0 {
				return fmt.Errorf("CREATE_TASK: 'due_in_hours' must be positive")
			}
		case float64:
			if n <= 0 {
				return fmt.Errorf("CREATE_TASK: 'due_in_hours' must be positive")
			}
		default:
			return fmt.Errorf("CREATE_TASK: 'due_in_hours' must be a number, got %T", due)
		}
	}
	return nil
}

func requireString(params map[string]any, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("'%s' is required", key)
	}
	return v, nil
}
