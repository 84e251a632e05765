package event

import (
	"strconv"
)

// Resolve walks a dot-separated path into a generic document.
// Map keys and slice indexes are both supported; "" resolves to the root.
func Resolve(data any, path []string) (any, bool) {
	cur := data
	for _, seg := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
