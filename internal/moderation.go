package internal

import (
	"regexp"
	"strings"
)

// blockedTerms is intentionally small and self-contained so it can later be
// swapped for a dedicated profanity library or hosted moderation API
// without touching callers (spec: content moderation is a pluggable
// predicate).
var blockedTerms = []string{
	"porn", "porno", "pussy", "dick", "cock", "penis", "vagina",
	"boob", "boobs", "tits", "tit", "cum", "sex", "sexy", "horny", "rape",
	"nazi", "hitler", "terrorist",
	"fuck", "fucking", "shit", "bitch", "cunt", "asshole", "bastard", "motherfucker",
}

var leetMap = map[rune]rune{
	'@': 'a', '$': 's', '0': 'o', '1': 'i', '3': 'e', '4': 'a',
	'5': 's', '7': 't', '8': 'b', '9': 'g', '!': 'i', '+': 't',
}

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9\s]+`)

type blockedTermPattern struct {
	word   *regexp.Regexp
	spaced *regexp.Regexp
}

var blockedTermPatterns = compileBlockedTerms(blockedTerms)

func compileBlockedTerms(terms []string) []blockedTermPattern {
	patterns := make([]blockedTermPattern, len(terms))
	for i, term := range terms {
		patterns[i] = blockedTermPattern{
			word:   regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`),
			spaced: regexp.MustCompile(`\b` + strings.Join(splitChars(term), `\s*`) + `\b`),
		}
	}
	return patterns
}

// ModerationFunc decides whether free-text is allowed; Moderate is the
// default implementation and may be swapped per-room for stricter rules.
type ModerationFunc func(text string) (blocked bool, reason string)

// Moderate is the pluggable blocked-term predicate. It folds common
// leetspeak substitutions and matches blocked terms as whole words, or as
// individually separated letters (e.g. "f u c k"), so trivial bypasses
// don't slip through.
func Moderate(text string) (bool, string) {
	if strings.TrimSpace(text) == "" {
		return false, ""
	}

	normalized := normalizeForModeration(text)
	for _, p := range blockedTermPatterns {
		if p.word.MatchString(normalized) || p.spaced.MatchString(normalized) {
			return true, "That response includes language we can't accept. Please try a different word or phrase."
		}
	}

	return false, ""
}

func normalizeForModeration(text string) string {
	lowered := strings.Map(func(r rune) rune {
		if mapped, ok := leetMap[r]; ok {
			return mapped
		}
		return r
	}, strings.ToLower(text))

	lowered = nonAlnumRun.ReplaceAllString(lowered, " ")
	lowered = collapseRepeatedRuns(lowered)
	return lowered
}

// collapseRepeatedRuns collapses any run of 3+ identical characters down to
// 2 (Go's RE2-based regexp package has no backreference support, so this
// can't be expressed as a single pattern like `(.)\1{2,}`).
func collapseRepeatedRuns(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	runLen := 0
	for i, r := range runes {
		if i > 0 && r == runes[i-1] {
			runLen++
		} else {
			runLen = 1
		}
		if runLen <= 2 {
			out = append(out, r)
		}
	}
	return string(out)
}

func splitChars(term string) []string {
	out := make([]string, 0, len(term))
	for _, r := range term {
		out = append(out, regexp.QuoteMeta(string(r)))
	}
	return out
}
