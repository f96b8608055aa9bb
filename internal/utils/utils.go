package utils

import "strings"

func ToPtr[T any](t T) *T {
	return &t
}

func FromPtr[T any](t *T) T {
	var zero T
	if t == nil {
		return zero
	}
	return *t
}

// ToPtrNil returns nil for blank strings so optional fields stay unset.
func ToPtrNil(t string) *string {
	if strings.TrimSpace(t) == "" {
		return nil
	}
	return &t
}

func OrDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
