// Package utils provides small helpers with no domain knowledge,
// shared across layers.
package utils

import "strconv"

// AtoiDefault parses s as an int, falling back to def when s is empty
// or not a valid integer. Used for query parameters such as page and
// page_size on the reference listings, where a bad value should mean
// "use the default" rather than an error.
//
// Example:
//
//	page := utils.AtoiDefault(c.Query("page"), 1)
//	size := utils.AtoiDefault(c.Query("page_size"), 50)
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
