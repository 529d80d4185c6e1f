package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	long := strings.Repeat("x", MaxDisplayNameLen+10)
	cases := []struct {
		in, want string
	}{
		{"", DefaultDisplayName},
		{"   ", DefaultDisplayName},
		{" Alice ", "Alice"},
		{long, long[:MaxDisplayNameLen]},
		{strings.Repeat("й", MaxDisplayNameLen+1), strings.Repeat("й", MaxDisplayNameLen)},
	}
	for _, c := range cases {
		if got := NormalizeName(c.in); got != c.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNewSessionID(t *testing.T) {
	seen := make(map[SessionID]struct{})
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		if len(id) != SessionIDLen {
			t.Fatalf("expected %d chars, got %q", SessionIDLen, id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) < 90 {
		t.Errorf("expected mostly unique ids, got %d distinct of 100", len(seen))
	}
}

func TestParseSessionID(t *testing.T) {
	if _, err := ParseSessionID("  "); !errors.Is(err, ErrMissingSession) {
		t.Errorf("expected ErrMissingSession, got %v", err)
	}
	id, err := ParseSessionID(" abc123 ")
	if err != nil || id != "abc123" {
		t.Errorf("got %q, %v", id, err)
	}
}
