// Package utils provides utility functions for the application.
package utils

import (
	"crypto/rand"
	"encoding/hex"
)

func ToPtr[T any](v T) *T {
	return &v
}

// Truncate shortens s to at most n bytes
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// RandomSecret returns 64 hex characters from crypto/rand
func RandomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
