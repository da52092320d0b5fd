// Package util contains small helpers shared across the console packages.
package util

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD normalization. Passwords are normalized before
// they are sent so that visually identical input composed differently on
// another keyboard still authenticates.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

// WipeBytes best-effort zeroes the provided byte slice in place.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}
