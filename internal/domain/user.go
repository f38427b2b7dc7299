// Package domain contains entity without logic, just meta-data
package domain

// UserID is the caller-asserted identity label. It is not a verified
// credential and is never validated for format or uniqueness.
type UserID string
