// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultDisplayName = "Anonymous"
	MaxDisplayNameLen  = 36
)

// ConnID identifies one live transport connection.
type ConnID string

// Member represents a connection's participation in a session.
// No transport or lifecycle logic here.
type Member struct {
	ConnID ConnID `json:"sid"`
	Name   string `json:"name"`
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(id ConnID, name string) Member {
	return Member{ConnID: id, Name: NormalizeName(name)}
}

// NormalizeName trims the display name, falls back to DefaultDisplayName
// and cuts it to MaxDisplayNameLen runes.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultDisplayName
	}
	if utf8.RuneCountInString(name) <= MaxDisplayNameLen {
		return name
	}
	r := []rune(name)
	return string(r[:MaxDisplayNameLen])
}
