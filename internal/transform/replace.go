package transform

import (
	"context"
	"regexp"
	"strings"

	"folio/internal/jsontree"
	"folio/internal/logging"
	"folio/internal/spec"
)

// replaceText substitutes match with replace across string values. The match
// is compiled as a regular expression; one that does not compile downgrades
// to literal substring replacement instead of failing the step.
type replaceText struct{}

func (replaceText) Execute(_ context.Context, data any, cfg spec.StepConfig, _ *Context) (any, error) {
	match, okM := cfg.String("match")
	repl, okR := cfg.String("replace")
	if !okM || !okR {
		return nil, spec.Errorf(spec.KindConfiguration, "replace_text: match and replace are required")
	}

	var sub func(string) string
	if re, err := regexp.Compile(match); err == nil {
		sub = func(s string) string { return re.ReplaceAllString(s, repl) }
	} else {
		logging.L().Warn("replace_text pattern downgraded to literal match",
			"pattern", match, "err", err)
		sub = func(s string) string { return strings.ReplaceAll(s, match, repl) }
	}
	fn := func(s string) string { return sub(normalizeEOL(s)) }
	return jsontree.RewriteStrings(data, cfg.TargetFields, fn), nil
}

// normalizeEOL folds Windows and bare-CR line endings to \n so patterns
// anchored on \n behave the same wherever the source was authored.
func normalizeEOL(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func init() { Register("replace_text", replaceText{}) }
