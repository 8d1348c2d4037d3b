// Package rewrite implements the ordered literal substitution table applied
// to request bodies.
package rewrite

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyPattern is returned when a rule has an empty pattern.
var ErrEmptyPattern = errors.New("rule pattern must not be empty")

// Rule is a single literal substitution.
type Rule struct {
	Pattern     string `toml:"pattern"`
	Replacement string `toml:"replacement"`
}

// Table is an immutable, ordered list of rules. Rules are applied in
// declaration order and each rule sees the output of the ones before it.
type Table struct {
	rules []Rule
}

// NewTable validates rules and returns a Table holding its own copy of them.
func NewTable(rules []Rule) (*Table, error) {
	own := make([]Rule, len(rules))
	for i, r := range rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d: %w", i, ErrEmptyPattern)
		}
		own[i] = r
	}
	return &Table{rules: own}, nil
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// Rules returns a copy of the rules in application order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Apply runs every rule over body and returns the rewritten text.
func (t *Table) Apply(body string) string {
	out, _ := t.ApplyCount(body)
	return out
}

// ApplyCount is like Apply but also reports the number of substitutions made.
func (t *Table) ApplyCount(body string) (string, int) {
	if body == "" {
		return body, 0
	}

	total := 0
	for _, r := range t.rules {
		n := strings.Count(body, r.Pattern)
		if n == 0 {
			continue
		}
		body = strings.ReplaceAll(body, r.Pattern, r.Replacement)
		total += n
	}
	return body, total
}

// DefaultRules returns the built-in rule set used when the configuration
// declares none.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern:     "Create one with `update_todo_list` if your task is complicated or involves multiple steps.",
			Replacement: "Create one with `update_todo_list`  if your task is complicated or involves multiple steps.",
		},
		{
			Pattern:     "Always use the actual tool name as the XML tag name for proper parsing and execution.",
			Replacement: "Always use the  actual tool name  as the  XML tag name  for proper parsing and execution.",
		},
		{
			Pattern:     "You are Kilo Code, a highly skilled software engineer with extensive knowledge in many programming languages, frameworks, design patterns, and best practices.",
			Replacement: "You are Kilo Code,  a highly skilled software engineer with extensive knowledge in many programming languages,  frameworks, design patterns, and best practices.",
		},
	}
}
