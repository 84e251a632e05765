package condition

import (
	"fmt"
	"math"

	"github.com/diegoholiveira/jsonlogic/v3"

	"github.com/gyaneshwarpardhi/automation/internal/jsonvalue"
)

// Apply evaluates a JSON-logic tree against data. Both are copied to
// JSON-native values first, so callers may pass YAML-decoded trees.
func Apply(logic, data any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("json-logic: %v", r)
		}
	}()
	return jsonlogic.ApplyInterface(jsonvalue.Copy(logic), jsonvalue.Copy(data))
}

// truthy follows JSON-logic truthiness: 0, "", [], null and false are falsy.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	}
	if f, ok := jsonvalue.Copy(v).(float64); ok {
		return f != 0
	}
	return true
}
