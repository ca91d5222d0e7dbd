package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bryanwahyu/bito-analyst/internal/domain/analysis"
)

// Input validation and sanitization utilities

// ParseID parses a positive numeric path id.
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ValidateStatus accepts an empty filter or a known analysis status.
func ValidateStatus(raw string) (analysis.Status, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", nil
	}
	st, err := analysis.ParseStatus(raw)
	if err != nil {
		return "", fmt.Errorf("invalid status: %s (allowed: pending, processing, completed, failed)", raw)
	}
	return st, nil
}

// ValidatePage turns page/page_size query values into limit and offset.
// Both empty means no pagination (limit 0).
func ValidatePage(pageRaw, sizeRaw string) (limit, offset int, err error) {
	if pageRaw == "" && sizeRaw == "" {
		return 0, 0, nil
	}
	page := 1
	if pageRaw != "" {
		page, err = strconv.Atoi(pageRaw)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("invalid page: %s", pageRaw)
		}
	}
	size := 0
	if sizeRaw != "" {
		size, err = strconv.Atoi(sizeRaw)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid page_size: %s", sizeRaw)
		}
	}
	size = ValidateLimit(size)
	return size, (page - 1) * size, nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
