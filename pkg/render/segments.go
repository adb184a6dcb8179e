package render

import (
	"regexp"
	"strings"
)

// SegmentType is the kind of a block of answer text.
type SegmentType int

const (
	SegmentText SegmentType = iota
	SegmentCodeBlock
	SegmentHeader
	SegmentList
)

// Segment is a parsed block of answer text.
type Segment struct {
	Type     SegmentType
	Content  string
	Language string // For code blocks
	Level    int    // For headers or list nesting
}

var (
	fenceLine  = regexp.MustCompile("^\\s*(```|~~~)\\s*([\\w+#.-]*)")
	headerLine = regexp.MustCompile(`^\s*(#{1,6})\s+(.*)$`)
	listLine   = regexp.MustCompile(`^(\s*)(?:[-*+]|\d+[.)])\s+(.*)$`)
)

// ParseSegments splits answer text into typed blocks. An unclosed fence
// runs to the end of the text, which is what a partial answer looks like.
func ParseSegments(content string) []Segment {
	var segments []Segment
	lines := strings.Split(content, "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := fenceLine.FindStringSubmatch(line); m != nil {
			fence := m[1]
			var codeLines []string
			i++ // Skip the opening fence
			for i < len(lines) {
				if strings.HasPrefix(strings.TrimSpace(lines[i]), fence) {
					break
				}
				codeLines = append(codeLines, lines[i])
				i++
			}
			segments = append(segments, Segment{
				Type:     SegmentCodeBlock,
				Content:  strings.Join(codeLines, "\n"),
				Language: m[2],
			})
			continue
		}

		if m := headerLine.FindStringSubmatch(line); m != nil {
			segments = append(segments, Segment{
				Type:    SegmentHeader,
				Content: strings.TrimSpace(m[2]),
				Level:   len(m[1]),
			})
			continue
		}

		if m := listLine.FindStringSubmatch(line); m != nil {
			segments = append(segments, Segment{
				Type:    SegmentList,
				Content: line,
				Level:   len(m[1])/2 + 1,
			})
			continue
		}

		// Consecutive plain lines stay together so paragraphs keep their
		// blank lines.
		if n := len(segments); n > 0 && segments[n-1].Type == SegmentText {
			segments[n-1].Content += "\n" + line
			continue
		}
		segments = append(segments, Segment{Type: SegmentText, Content: line})
	}

	return segments
}
