package hybrid

import "strings"

// Validator scores a raw provider result in [0, 1]. The score is a
// coarse availability signal; domain validation happens downstream.
type Validator func(result any) float64

// DefaultValidator scores 0.9 for any result with non-empty content,
// 0.1 for a result carrying an explicit error, and 0.3 for anything
// else recognizable but empty.
func DefaultValidator(result any) float64 {
	switch v := result.(type) {
	case nil:
		return 0.3
	case string:
		if strings.TrimSpace(v) != "" {
			return 0.9
		}
		return 0.3
	case map[string]any:
		if hasError(v) {
			return 0.1
		}
		if content, ok := v["content"].(string); ok && strings.TrimSpace(content) != "" {
			return 0.9
		}
		return 0.3
	default:
		return 0.3
	}
}

func hasError(m map[string]any) bool {
	if errVal, ok := m["error"]; ok {
		if s, isStr := errVal.(string); isStr {
			return strings.TrimSpace(s) != ""
		}
		return errVal != nil
	}
	if status, ok := m["status"].(string); ok && strings.EqualFold(status, "error") {
		return true
	}
	return false
}
