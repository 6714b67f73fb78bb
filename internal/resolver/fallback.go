package resolver

import "strings"

// FirstDefined returns the first non-nil pointer, or nil.
func FirstDefined[T any](candidates ...*T) *T {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

// ValueOr dereferences v, falling back when v is nil.
func ValueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

// FirstNonEmpty returns the first value that is not blank after trimming.
func FirstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return *v
		}
	}
	return ""
}
