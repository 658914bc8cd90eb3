package condition

import (
	"strconv"
	"strings"
)

type undefinedValue struct{}

// Undefined is the operand produced for a path that does not resolve.
var Undefined interface{} = undefinedValue{}

func IsUndefined(v interface{}) bool {
	_, ok := v.(undefinedValue)
	return ok
}

// ResolveField walks a dot-separated path through nested objects and arrays. A missing or
// null intermediate segment yields Undefined.
func ResolveField(event map[string]interface{}, path string) interface{} {
	if event == nil {
		return Undefined
	}

	var current interface{} = event
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[segment]
			if !ok {
				return Undefined
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return Undefined
			}
			current = node[idx]
		default:
			return Undefined
		}
	}

	return current
}
