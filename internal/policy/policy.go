// Package policy decides whether a focused application is allowed during a
// monitored session. Decisions only annotate the event stream and the audit
// log; nothing is ever blocked.
package policy

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Policy is an allow/deny list of glob patterns over application names.
// Deny patterns are checked first, then allow patterns; an application
// matching neither is denied.
type Policy struct {
	allow []string
	deny  []string
}

// New compiles the pattern lists, rejecting any malformed glob up front so
// a typo in the config is caught at startup rather than per event.
func New(allow, deny []string) (*Policy, error) {
	for _, p := range append(append([]string{}, allow...), deny...) {
		if _, err := filepath.Match(p, "probe"); err != nil {
			return nil, fmt.Errorf("policy: invalid glob pattern %q: %w", p, err)
		}
	}
	return &Policy{allow: allow, deny: deny}, nil
}

// Decision is the outcome of a policy check for one application name.
type Decision struct {
	Allowed bool
	Reason  string
}

// Decide checks app against the deny list, then the allow list. Matching is
// case-insensitive since platform focus providers disagree on casing.
func (p *Policy) Decide(app string) Decision {
	name := strings.ToLower(app)
	for _, pat := range p.deny {
		if ok, _ := filepath.Match(strings.ToLower(pat), name); ok {
			return Decision{Allowed: false, Reason: "deny pattern " + pat}
		}
	}
	for _, pat := range p.allow {
		if ok, _ := filepath.Match(strings.ToLower(pat), name); ok {
			return Decision{Allowed: true, Reason: "allow pattern " + pat}
		}
	}
	return Decision{Allowed: false, Reason: "no matching pattern"}
}
