// Package sanitize normalizes model output before it is displayed.
//
// Fragment is safe to apply to pieces of a streamed response: it never
// touches whitespace, so concatenating sanitized fragments gives the same
// text as sanitizing their concatenation. Sanitize applies the full set of
// rules, including the line-oriented whitespace rules, and is meant for
// complete texts such as stored chat history.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FallbackText is returned when a text cannot be repaired.
const FallbackText = "content could not be displayed"

var (
	horizontalRun  = regexp.MustCompile(`[ \t]+`)
	trailingSpaces = regexp.MustCompile(`(?m) +$`)
	leadingSpaces  = regexp.MustCompile(`(?m)^ +`)
	blankLineRun   = regexp.MustCompile(`\n{3,}`)
)

// Sanitize repairs encoding damage, removes control and unprintable
// characters and normalizes whitespace. It never panics; any internal
// failure yields FallbackText.
func Sanitize(raw string) (out string) {
	if raw == "" {
		return ""
	}

	defer func() {
		if r := recover(); r != nil {
			out = FallbackText
		}
	}()

	cleaned, ok := clean(raw, norm.NFC)
	if !ok {
		return FallbackText
	}

	cleaned = horizontalRun.ReplaceAllString(cleaned, " ")
	cleaned = trailingSpaces.ReplaceAllString(cleaned, "")
	cleaned = leadingSpaces.ReplaceAllString(cleaned, "")
	cleaned = blankLineRun.ReplaceAllString(cleaned, "\n\n")

	return cleaned
}

// Fragment applies the whitespace-neutral subset of Sanitize: encoding
// repair, control character stripping and replacement of unprintable code
// points. A fragment that cannot be repaired is returned unchanged.
func Fragment(raw string) (out string) {
	if raw == "" {
		return ""
	}

	defer func() {
		if r := recover(); r != nil {
			out = raw
		}
	}()

	cleaned, ok := clean(raw)
	if !ok {
		return raw
	}
	return cleaned
}

func clean(raw string, extra ...transform.Transformer) (string, bool) {
	repaired := repairEncoding(raw)

	result, _, err := transform.String(filterChain(extra...), repaired)
	if err != nil {
		return "", false
	}
	return result, true
}

// repairEncoding round-trips invalid text through a UTF-8 decoder, which
// turns broken byte sequences into U+FFFD. Valid input is returned as is.
func repairEncoding(raw string) string {
	if utf8.ValidString(raw) {
		return raw
	}
	repaired, err := xunicode.UTF8.NewDecoder().String(raw)
	if err != nil {
		return strings.ToValidUTF8(raw, string(unicode.ReplacementChar))
	}
	return repaired
}

// filterChain builds a fresh transformer per call; transformers carry state.
// Normalization is left to callers holding complete text, since composing
// characters can straddle fragment boundaries.
func filterChain(extra ...transform.Transformer) transform.Transformer {
	chain := []transform.Transformer{
		runes.Remove(runes.Predicate(isStrippedControl)),
		runes.Map(replaceDisallowed),
	}
	return transform.Chain(append(chain, extra...)...)
}

// isStrippedControl reports ASCII and C1 control characters other than
// newline, carriage return and tab.
func isStrippedControl(r rune) bool {
	switch r {
	case '\n', '\r', '\t':
		return false
	}
	return r < 0x20 || (r >= 0x7f && r <= 0x9f)
}

// replaceDisallowed turns unprintable code points into a single space.
func replaceDisallowed(r rune) rune {
	switch r {
	case '\n', '\r', '\t':
		return r
	case unicode.ReplacementChar, 0xFFFE, 0xFFFF:
		return ' '
	}
	if !unicode.IsPrint(r) {
		return ' '
	}
	return r
}
