// Package utils provides small, generic helper functions used across
// different layers of the application: query parsing and page arithmetic
// shared by the handlers and the list services.
package utils

import "strconv"

// Page size bounds applied to every paginated list.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// NormalizePage returns a 1-based page and a page size in
// [1, MaxPageSize]; a non-positive size becomes DefaultPageSize.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return page, Clamp(pageSize, 1, MaxPageSize)
}

// Offset is the row offset of a normalized page.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

// TotalPages is ceil(total / pageSize), or 0 for a non-positive size.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
