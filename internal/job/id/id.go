// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Prefix marks identifiers as preview jobs.
const Prefix = "prv_"

// Generate creates a new unique job ID.
// Format: prv_<uuid>
// Example: prv_1b4e28ba-2fa1-4d2f-883f-0016d3cca427
func Generate() string {
	return Prefix + uuid.New().String()
}

// Valid reports whether s looks like an ID produced by Generate.
func Valid(s string) bool {
	if len(s) <= len(Prefix) || s[:len(Prefix)] != Prefix {
		return false
	}
	return uuid.Validate(s[len(Prefix):]) == nil
}
