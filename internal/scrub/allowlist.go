package scrub

import "strings"

// Allowlist suppresses matches whose surface text is a known-safe
// value: shared test fixtures such as example.com addresses and the
// loopback and wildcard IPs, plus any caller-supplied additions.
// Comparison is case-folded so "Example.com" and "EXAMPLE.COM" both
// match an "example.com" entry.
type Allowlist struct {
	surfaces map[string]struct{}
}

// defaultAllowlist covers fixtures common enough to appear in
// committed example code without being real PII.
var defaultAllowlist = []string{
	"test@example.com",
	"user@example.com",
	"admin@example.com",
	"jane.doe@example.com",
	"john.doe@example.com",
	"127.0.0.1",
	"0.0.0.0",
}

// NewAllowlist builds an Allowlist from the default fixture set plus
// any caller-supplied additions.
func NewAllowlist(extra ...string) *Allowlist {
	a := &Allowlist{surfaces: make(map[string]struct{}, len(defaultAllowlist)+len(extra))}
	for _, s := range defaultAllowlist {
		a.surfaces[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range extra {
		a.surfaces[strings.ToLower(s)] = struct{}{}
	}
	return a
}

// Allowed reports whether surface should be left alone rather than
// scrubbed.
func (a *Allowlist) Allowed(surface string) bool {
	_, ok := a.surfaces[strings.ToLower(surface)]
	return ok
}

// FilterEntities drops entity matches whose surface is allowlisted.
func (a *Allowlist) FilterEntities(matches []EntityMatch) []EntityMatch {
	out := matches[:0:0]
	for _, m := range matches {
		if !a.Allowed(m.Surface) {
			out = append(out, m)
		}
	}
	return out
}
