// Package refaffix detects archival catalogue references inside record text
// and rewrites them with a configured affix. Detection runs in two layers:
// a whole-string check, then substitution of references embedded in longer
// prose. A definitive set of department codes, when configured, gates which
// candidates are rewritten; without one the engine runs in syntactic-only
// mode for slash-path references.
package refaffix

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

type Rules struct {
	Prefix       string
	Suffix       string
	MaxPrefixLen int // 0 = no truncation of the affixed head

	// SpecialCases maps whole normalized references to exact replacements,
	// bypassing the prefix logic.
	SpecialCases map[string]string

	RequireSlash        bool // reject slashless strings in path validation
	MaxSlashes          int
	FirstTokenAlphaOnly bool

	// DefinitiveRefs is the optional reference set: a JSON string, a
	// decoded array, or a decoded object (keys valid_department_codes,
	// valid_dept_codes or valid_refs hold the list; otherwise the object's
	// keys are the set).
	DefinitiveRefs any

	// ExclusionPatterns are case-insensitive literals or regexes; text
	// matched by one, and any reference immediately following a match,
	// is never rewritten.
	ExclusionPatterns []string
}

// DefaultRules carries the validation defaults: slash required, at most
// nine slashes, alphabetic first token.
func DefaultRules() Rules {
	return Rules{RequireSlash: true, MaxSlashes: 9, FirstTokenAlphaOnly: true}
}

var (
	bareTokenRe  = regexp.MustCompile(`^[A-Z]{1,4}$`)
	aptRe        = regexp.MustCompile(`(?i)\bAPT/`)
	aptHeadRe    = regexp.MustCompile(`(?i)^APT/`)
	shortTokenRe = regexp.MustCompile(`\b[A-Z]{1,4}\b`)
	slashTokenRe = regexp.MustCompile(`[A-Z0-9-]+(?:/[A-Z0-9-]+)+/?`)
	tokenRe      = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	alphaRe      = regexp.MustCompile(`^[A-Za-z]+$`)
)

type Engine struct {
	rules      Rules
	special    map[string]string
	hasSet     bool
	refs       map[string]struct{}
	exclusions []*regexp.Regexp
}

// Compile normalizes the rule set once: special-case keys are uppercased,
// the definitive set is parsed and normalized, exclusion patterns are
// compiled. The only failure mode is an undecodable definitive-refs value.
func Compile(r Rules) (*Engine, error) {
	e := &Engine{rules: r, special: map[string]string{}}
	for k, v := range r.SpecialCases {
		e.special[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	entries, provided, err := parseRefs(r.DefinitiveRefs)
	if err != nil {
		return nil, err
	}
	if provided {
		e.hasSet = true
		e.refs = make(map[string]struct{}, len(entries))
		for _, s := range entries {
			n := strings.ToUpper(strings.TrimSpace(s))
			if n != "" {
				e.refs[n] = struct{}{}
			}
		}
	}
	for _, p := range r.ExclusionPatterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		e.exclusions = append(e.exclusions, compileExclusion(p))
	}
	return e, nil
}

func parseRefs(v any) (entries []string, provided bool, err error) {
	switch t := v.(type) {
	case nil:
		return nil, false, nil
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(t), &decoded); err != nil {
			return nil, true, fmt.Errorf("refaffix: definitive refs: %w", err)
		}
		if s, ok := decoded.(string); ok {
			return []string{s}, true, nil
		}
		out, _, err := parseRefs(decoded)
		return out, true, err
	case []any:
		var out []string
		for _, it := range t {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out, true, nil
	case map[string]any:
		for _, key := range []string{"valid_department_codes", "valid_dept_codes", "valid_refs"} {
			if inner, ok := t[key]; ok {
				out, _, err := parseRefs(inner)
				return out, true, err
			}
		}
		out := make([]string, 0, len(t))
		for k := range t {
			out = append(out, k)
		}
		return out, true, nil
	}
	return nil, true, fmt.Errorf("refaffix: definitive refs: unsupported type %T", v)
}

// A pattern with regex metacharacters is used as a regex when it compiles;
// anything else matches as an escaped literal. Both are case-insensitive.
func compileExclusion(p string) *regexp.Regexp {
	if p != regexp.QuoteMeta(p) {
		if re, err := regexp.Compile(`(?i)` + p); err == nil {
			return re
		}
	}
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(p))
}

// IsReferenceLike reports whether s looks like a catalogue reference.
// Checks run in order: emptiness and slash count, bare short token (needs
// the definitive set), the hard APT/ exclusion, a short token embedded in
// longer text, and finally slash-path validation of the raw string.
func (e *Engine) IsReferenceLike(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	if strings.Count(t, "/") > e.rules.MaxSlashes {
		return false
	}
	if bareTokenRe.MatchString(t) {
		if e.hasSet {
			return e.membershipOK(t)
		}
		return false
	}
	if aptRe.MatchString(s) {
		return false
	}
	if m := shortTokenRe.FindString(t); m != "" && m != t {
		if e.hasSet {
			return e.membershipOK(m)
		}
		return true
	}
	slashes := strings.Count(s, "/")
	if e.rules.RequireSlash && slashes < 1 {
		return false
	}
	if slashes > e.rules.MaxSlashes {
		return false
	}
	raw := strings.Split(s, "/")
	if len(raw) < 2 || len(raw) > 10 {
		return false
	}
	for _, rawTok := range raw {
		tok := strings.TrimSpace(rawTok)
		if tok == "" || tok != rawTok || !tokenRe.MatchString(tok) {
			return false
		}
	}
	first := raw[0]
	if e.rules.FirstTokenAlphaOnly && !alphaRe.MatchString(first) {
		return false
	}
	return len(first) > 1 || first == "S"
}

func (e *Engine) membershipOK(token string) bool {
	t := strings.ToUpper(strings.TrimSpace(token))
	if _, ok := e.special[t]; ok {
		return true
	}
	if !e.hasSet {
		return false
	}
	_, ok := e.refs[t]
	return ok
}

// admit gates affixing of a detected reference against the definitive set.
// The set holds department codes, so a slash-carrying reference is admitted
// by its head token as well as by the whole string.
func (e *Engine) admit(ref string) bool {
	t := strings.ToUpper(strings.TrimSpace(ref))
	if e.membershipOK(t) {
		return true
	}
	if head, _, found := strings.Cut(t, "/"); found {
		return e.membershipOK(head)
	}
	return false
}

// Affix rewrites a single reference: special cases replace outright; the
// head before the first slash must be alphabetic; an already-prefixed head
// is kept; otherwise the prefix is prepended and the head truncated to
// MaxPrefixLen. The tail keeps its original form and the suffix is
// appended last.
func (e *Engine) Affix(ref string) string {
	norm := strings.ToUpper(strings.TrimSpace(ref))
	if repl, ok := e.special[norm]; ok {
		return repl
	}
	head, tail, found := strings.Cut(ref, "/")
	headTrim := strings.TrimSpace(head)
	if !alphaRe.MatchString(headTrim) {
		return ref
	}
	upperHead := strings.ToUpper(headTrim)
	newHead := upperHead
	if p := strings.ToUpper(e.rules.Prefix); p == "" || !strings.HasPrefix(upperHead, p) {
		newHead = e.rules.Prefix + upperHead
		if e.rules.MaxPrefixLen > 0 && len(newHead) > e.rules.MaxPrefixLen {
			newHead = newHead[:e.rules.MaxPrefixLen]
		}
	}
	out := newHead
	if found {
		out += "/" + tail
	}
	return out + e.rules.Suffix
}

// Apply rewrites references in one text value. Exclusion spans are computed
// once over the input. A whole-string reference is affixed directly (gated
// by admit when a definitive set exists); otherwise embedded references are
// substituted in place.
func (e *Engine) Apply(text string) string {
	spans := e.exclusionSpans(text)
	if e.IsReferenceLike(text) {
		if wholeExcluded(spans, len(text)) {
			return text
		}
		if !e.hasSet {
			return e.Affix(text)
		}
		if e.admit(text) {
			return e.Affix(text)
		}
	}
	return e.replaceEmbedded(text, spans)
}

func (e *Engine) exclusionSpans(text string) [][2]int {
	var spans [][2]int
	for _, re := range e.exclusions {
		for _, m := range re.FindAllStringIndex(text, -1) {
			spans = append(spans, [2]int{m[0], m[1]})
		}
	}
	return spans
}

func wholeExcluded(spans [][2]int, n int) bool {
	for _, sp := range spans {
		if sp[0] == 0 && sp[1] >= n {
			return true
		}
	}
	return false
}

// A token is vetoed when it overlaps an exclusion span, or when a span ends
// before it with nothing but punctuation or whitespace in between: the
// exclusion phrase qualifies the reference that follows it, as in
// "(formerly PARL)".
func tokenExcluded(text string, spans [][2]int, start, end int) bool {
	for _, sp := range spans {
		if start < sp[1] && end > sp[0] {
			return true
		}
		if sp[1] <= start && !hasAlnum(text[sp[1]:start]) {
			return true
		}
	}
	return false
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func (e *Engine) replaceEmbedded(text string, spans [][2]int) string {
	cur := replaceMatches(text, slashTokenRe, func(tok string, start, end int) string {
		if tokenExcluded(text, spans, start, end) {
			return tok
		}
		if !e.IsReferenceLike(tok) {
			return tok
		}
		if !e.hasSet || e.admit(tok) {
			return e.Affix(tok)
		}
		return tok
	})
	// Bare short tokens are rewritten only against a non-empty set. The
	// first pass may have shifted offsets, so spans are recomputed.
	if e.hasSet && len(e.refs) > 0 {
		scanned := cur
		rescanned := e.exclusionSpans(scanned)
		cur = replaceMatches(scanned, shortTokenRe, func(tok string, start, end int) string {
			if tokenExcluded(scanned, rescanned, start, end) {
				return tok
			}
			// the hard APT/ exclusion also protects the head of a path
			if aptHeadRe.MatchString(scanned[start:]) {
				return tok
			}
			if e.membershipOK(tok) && e.IsReferenceLike(tok) {
				return e.Affix(tok)
			}
			return tok
		})
	}
	return cur
}

func replaceMatches(s string, re *regexp.Regexp, fn func(match string, start, end int) string) string {
	idxs := re.FindAllStringIndex(s, -1)
	if len(idxs) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range idxs {
		b.WriteString(s[last:m[0]])
		b.WriteString(fn(s[m[0]:m[1]], m[0], m[1]))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
