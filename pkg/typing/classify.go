package typing

import (
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// ContentClass is a coarse kind of text used to pick a pacing profile.
type ContentClass int

const (
	ClassPlain ContentClass = iota
	ClassCode
	ClassList
	ClassMarkdown
)

func (c ContentClass) String() string {
	switch c {
	case ClassCode:
		return "code"
	case ClassList:
		return "list"
	case ClassMarkdown:
		return "markdown"
	default:
		return "plain"
	}
}

var (
	fencePattern      = regexp.MustCompile("(?m)^\\s*(```|~~~)")
	inlineCodePattern = regexp.MustCompile("`[^`\n]+`")
	listPattern       = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s+\S`)
	markdownPattern   = regexp.MustCompile(`(?m)^#{1,6}\s|\*\*[^*\n]+\*\*|__[^_\n]+__|^>\s|\[[^\]\n]+\]\([^)\n]+\)|^\s*\|.*\|\s*$`)
)

// Classify picks the content class of text with cheap textual checks.
// Fenced blocks and inline code spans win over list items, which win over
// other markdown. Multi-line text with no such markers is handed to the
// chroma analysers as a last check for bare source code.
func Classify(text string) ContentClass {
	switch {
	case fencePattern.MatchString(text), inlineCodePattern.MatchString(text):
		return ClassCode
	case listPattern.MatchString(text):
		return ClassList
	case markdownPattern.MatchString(text):
		return ClassMarkdown
	case strings.Count(text, "\n") >= 2 && lexers.Analyse(text) != nil:
		return ClassCode
	}
	return ClassPlain
}
