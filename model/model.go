package model

import (
	"encoding/hex"
	"errors"
	"strings"
)

// Role is the single-letter access class stored with every record.
type Role string

const (
	RoleAdmin Role = "A"
	RoleUser  Role = "U"
)

var ErrUnknownRole = errors.New("unknown role")

// ParseRole accepts "a", "A", "u" or "U", ignoring surrounding whitespace.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleUser:
		return r, nil
	default:
		return "", ErrUnknownRole
	}
}

type UidRecord struct {
	UID  string
	Name string
	Role Role
}

// Normalized returns the record in the form it is persisted and compared in.
func (r UidRecord) Normalized() UidRecord {
	return UidRecord{
		UID:  NormalizeUID(r.UID),
		Name: strings.TrimSpace(r.Name),
		Role: Role(strings.ToUpper(strings.TrimSpace(string(r.Role)))),
	}
}

func (r UidRecord) IsAdmin() bool { return r.Role == RoleAdmin }

// NormalizeUID trims whitespace and upper-cases a tag identifier.
func NormalizeUID(uid string) string {
	return strings.ToUpper(strings.TrimSpace(uid))
}

// FormatUID renders raw serial bytes as "AA:BB:CC:DD".
func FormatUID(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{c}))
	}
	return strings.Join(parts, ":")
}

// ValidUID reports whether uid, after normalization, is a colon-joined
// sequence of two-digit hex byte pairs.
func ValidUID(uid string) bool {
	uid = NormalizeUID(uid)
	if uid == "" {
		return false
	}
	for _, p := range strings.Split(uid, ":") {
		if len(p) != 2 {
			return false
		}
		if _, err := hex.DecodeString(p); err != nil {
			return false
		}
	}
	return true
}
