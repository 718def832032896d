package index

import "strings"

// containsFold reports whether s contains substr, ASCII-case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
