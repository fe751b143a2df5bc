package ir

import (
	"regexp"
	"strings"
)

// normalize.go strips debug annotations, alias-analysis annotations and
// attribute tokens from a raw IR line, and collapses whitespace, per
// spec.md §4.1. Ported line-for-line from
// original_source/python/hsx-llc.py's normalize_ir_line/ATTR_TOKENS.

// ---------------------
// ----- Constants -----
// ---------------------

// attrTokens is the fixed closed set of attribute words dropped from every
// instruction line before pattern matching.
var attrTokens = []string{
	"nsw", "nuw", "noundef", "dso_local", "local_unnamed_addr", "volatile",
}

var (
	dbgRe      = regexp.MustCompile(`,\s*!dbg\S*`)
	tbaaRe     = regexp.MustCompile(`,\s*!tbaa\s*!?\d*`)
	metaRefRe  = regexp.MustCompile(`!\d+`)
	whitespace = regexp.MustCompile(`\s+`)
)

var attrRes = compileAttrRes()

func compileAttrRes() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(attrTokens))
	for i, tok := range attrTokens {
		res[i] = regexp.MustCompile(`\b` + tok + `\b`)
	}
	return res
}

// NormalizeLine strips debug-location annotations, TBAA annotations,
// metadata references and attribute words from line, and collapses
// whitespace. Quoted identifiers get no special treatment: the same patterns
// and whitespace collapsing apply inside a quoted atom as outside it.
func NormalizeLine(line string) string {
	line = dbgRe.ReplaceAllString(line, "")
	line = tbaaRe.ReplaceAllString(line, "")
	line = metaRefRe.ReplaceAllString(line, "")
	for _, re := range attrRes {
		line = re.ReplaceAllString(line, "")
	}
	line = whitespace.ReplaceAllString(line, " ")
	return strings.TrimSpace(line)
}

// IsCommentLine reports whether line's first non-whitespace character opens
// an IR comment (`;`), per spec.md §4.1 "lines whose first non-whitespace
// character is a comment start are dropped."
func IsCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, ";")
}
