// Package directive extracts embedded "sender > receiver: payload"
// instructions from free-form task text. Directives are line-oriented:
//
//	source > target: payload
//	source > [target1, target2]: payload
//	source > target (priority=high, ack=true): payload
//
// Lines that match the grammar become bus sends; the residual text is the
// base query handed to the worker chain.
package directive

import (
	"regexp"
	"strconv"
	"strings"
)

// directiveRe matches one directive line: a bare-word source, ">", a
// bare-word target or bracketed target list, an optional parenthesized
// parameter block, and a ":" payload.
var directiveRe = regexp.MustCompile(
	`^\s*([A-Za-z_][\w-]*)\s*>\s*(\[[^\]]+\]|[A-Za-z_][\w-]*)\s*(\(([^)]*)\))?\s*:\s*(.+)$`,
)

// quickRe is the cheap pre-check: a bare word, ">", a word or bracketed
// list, then ":".
var quickRe = regexp.MustCompile(`(?m)^\s*[A-Za-z_][\w-]*\s*>\s*(\[[^\]]+\]|[A-Za-z_][\w-]*)[^:\n]*:`)

// Directive is one parsed inter-worker instruction.
type Directive struct {
	// Source is the worker the instruction is attributed to.
	Source string
	// Targets are the workers the payload is addressed to.
	Targets []string
	// Payload is the instruction text.
	Payload string
	// Params holds the optional parameter block. Values are typed:
	// "true"/"false" become bool, all-digit tokens become int, everything
	// else stays a string.
	Params map[string]any
}

// HasDirectionalSyntax reports whether the text contains at least one line
// that looks like a directive. It is a cheap pre-check; Parse is
// authoritative.
func HasDirectionalSyntax(text string) bool {
	return quickRe.MatchString(text)
}

// Parse extracts every directive line from the text, in order.
func Parse(text string) []Directive {
	var directives []Directive
	for _, line := range strings.Split(text, "\n") {
		m := directiveRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		directives = append(directives, Directive{
			Source:  m[1],
			Targets: parseTargets(m[2]),
			Payload: strings.TrimSpace(m[5]),
			Params:  parseParams(m[4]),
		})
	}
	return directives
}

// ExtractBaseQuery returns the text with every directive line removed.
// The residual is the task payload actually handed to the worker chain.
func ExtractBaseQuery(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if directiveRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Validate reports which worker names mentioned in the directives are not
// present in the given registry names. Unknown names are warnings for the
// caller, not parse failures.
func Validate(directives []Directive, known []string) []string {
	knownSet := make(map[string]bool, len(known))
	for _, name := range known {
		knownSet[name] = true
	}

	var unknown []string
	seen := make(map[string]bool)
	report := func(name string) {
		if !knownSet[name] && !seen[name] {
			seen[name] = true
			unknown = append(unknown, name)
		}
	}

	for _, d := range directives {
		report(d.Source)
		for _, target := range d.Targets {
			report(target)
		}
	}
	return unknown
}

// parseTargets splits a bare word or "[a, b, c]" list into target names.
func parseTargets(s string) []string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return []string{s}
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")

	var targets []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			targets = append(targets, part)
		}
	}
	return targets
}

// parseParams parses the "key=value, key=value" parameter block.
func parseParams(s string) map[string]any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	params := make(map[string]any)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		params[strings.TrimSpace(key)] = typedValue(strings.TrimSpace(value))
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// typedValue converts a raw parameter value to bool, int, or string.
func typedValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil && isDigits(s) {
		return n
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
