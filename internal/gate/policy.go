// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package gate

// In this file: the read-only policy gate.

import (
	"fmt"
	"strings"
)

// PolicyError is returned when a query fails the read-only gate.  It is
// distinct from ExecError so transports can map it to a client-error class.
type PolicyError struct {
	Query  string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("statement is not permitted: %s", e.Reason)
}

// defaultAllowPrefixes are the leading tokens a statement may start with.
// "with" admits common-table-expression selects that a bare prefix check
// would wrongly deny.
var defaultAllowPrefixes = []string{"select", "with"}

// defaultDenyWords are destructive or state-changing verbs that deny a
// statement wherever they appear as a standalone word, even after the
// prefix check passed.  This is redundant defense-in-depth on top of the
// prefix rule, not a substitute for it.
var defaultDenyWords = []string{
	"alter",
	"attach",
	"create",
	"delete",
	"detach",
	"drop",
	"insert",
	"pragma",
	"reindex",
	"replace",
	"truncate",
	"update",
	"vacuum",
}

// Policy decides whether a caller-supplied query may be executed.  The
// decision is a pure function of the query text: deny by default, allow
// only statements whose leading token is on the allow-list and which
// contain no denied word and no embedded statement separator.
//
// This is a textual heuristic, not a SQL parse: a word inside a string
// literal is still matched, and comment-obfuscated keywords are not
// detected.  The gate errs on the side of denial.
type Policy struct {
	allow []string
	deny  map[string]struct{}
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithAllowPrefixes replaces the allowed leading tokens.
func WithAllowPrefixes(prefixes ...string) PolicyOption {
	return func(p *Policy) {
		p.allow = p.allow[:0]
		for _, pre := range prefixes {
			p.allow = append(p.allow, strings.ToLower(pre))
		}
	}
}

// WithDenyWords replaces the denied keyword list.
func WithDenyWords(words ...string) PolicyOption {
	return func(p *Policy) {
		p.deny = make(map[string]struct{}, len(words))
		for _, w := range words {
			p.deny[strings.ToLower(w)] = struct{}{}
		}
	}
}

// NewPolicy creates a Policy.  Without options it is equivalent to
// DefaultPolicy.
func NewPolicy(opt ...PolicyOption) *Policy {
	p := &Policy{allow: append([]string(nil), defaultAllowPrefixes...)}
	p.deny = make(map[string]struct{}, len(defaultDenyWords))
	for _, w := range defaultDenyWords {
		p.deny[w] = struct{}{}
	}
	for _, o := range opt {
		o(p)
	}
	return p
}

// DefaultPolicy returns the canonical read-only policy: statements must
// start with "select" or "with", must not contain a destructive keyword,
// and must be a single statement.
func DefaultPolicy() *Policy {
	return NewPolicy()
}

// Check returns nil when query is allowed, or a *PolicyError naming the
// first rule that denied it.  Check never touches the store and has no
// side effects.
func (p *Policy) Check(query string) error {
	folded := strings.ToLower(strings.TrimSpace(query))
	if folded == "" {
		return &PolicyError{Query: query, Reason: "empty statement"}
	}

	lead := leadingToken(folded)
	allowed := false
	for _, pre := range p.allow {
		if lead == pre {
			allowed = true
			break
		}
	}
	if !allowed {
		return &PolicyError{Query: query, Reason: fmt.Sprintf("only read-only statements are allowed, got %q", lead)}
	}

	// A single trailing semicolon is tolerated; anything after one is a
	// compound statement.
	if rest := strings.TrimSuffix(strings.TrimRight(folded, " \t\r\n"), ";"); strings.ContainsRune(rest, ';') {
		return &PolicyError{Query: query, Reason: "multiple statements are not allowed"}
	}

	for _, word := range splitWords(folded) {
		if _, bad := p.deny[word]; bad {
			return &PolicyError{Query: query, Reason: fmt.Sprintf("keyword %q is not allowed", word)}
		}
	}
	return nil
}

// leadingToken returns the first run of letters in s.
func leadingToken(s string) string {
	for i, r := range s {
		if !isWordRune(r) {
			return s[:i]
		}
	}
	return s
}

// splitWords splits s into identifier-like words, so that e.g. "created_at"
// is a single word and does not match "create".
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) })
}

func isWordRune(r rune) bool {
	return r == '_' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9')
}
