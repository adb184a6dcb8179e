// Package render turns stream snapshots into terminal output.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/killallgit/vivu/pkg/logger"
	"github.com/killallgit/vivu/pkg/stream"
	"github.com/killallgit/vivu/pkg/tokens"
	"github.com/killallgit/vivu/pkg/typing"
)

// Formatter styles answers, reasoning and status lines.
type Formatter struct {
	thinkingBoxStyle lipgloss.Style
	thinkingHeader   lipgloss.Style
	codeBlockStyle   lipgloss.Style
	headerStyle      lipgloss.Style
	listStyle        lipgloss.Style
	statusStyle      lipgloss.Style
	errorStyle       lipgloss.Style

	chromaFormatter chroma.Formatter
	chromaStyle     *chroma.Style
	counter         *tokens.Counter
	width           int
	plain           bool
}

type FormatterOption func(*Formatter)

// Plain turns off colours, boxes and highlighting. Output that is not a
// terminal gets plain text.
func Plain() FormatterOption {
	return func(f *Formatter) {
		f.plain = true
	}
}

// WithTokenCounter estimates the token count of answers the server sent
// without one.
func WithTokenCounter(c *tokens.Counter) FormatterOption {
	return func(f *Formatter) {
		f.counter = c
	}
}

func NewFormatter(width int, opts ...FormatterOption) *Formatter {
	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	f := &Formatter{
		width:           width,
		chromaFormatter: formatter,
		chromaStyle:     styles.Get("monokai"),

		thinkingBoxStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#555555")).
			Padding(0, 1).
			Foreground(lipgloss.Color("#888888")).
			Italic(true),

		thinkingHeader: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Bold(true),

		codeBlockStyle: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#FFD700")).
			Padding(0, 1),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6347")),

		listStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98")),

		statusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FormatElapsed renders a reasoning duration the way the header shows it.
func FormatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// ReasoningHeader is the title line above a reasoning block.
func ReasoningHeader(active bool, elapsed *time.Duration, tick int) string {
	switch {
	case active:
		return "Thinking" + typing.Dots(tick)
	case elapsed != nil:
		return "Thought for " + FormatElapsed(*elapsed)
	default:
		return "Thought"
	}
}

// FormatReasoning renders a reasoning block with its header.
func (f *Formatter) FormatReasoning(text string, active bool, elapsed *time.Duration, tick int) string {
	header := ReasoningHeader(active, elapsed, tick)
	text = strings.TrimSpace(text)

	if f.plain {
		if text == "" {
			return header
		}
		return header + "\n" + indent(text, "  ")
	}

	if text == "" {
		return f.thinkingHeader.Render(header)
	}
	box := f.thinkingBoxStyle
	if f.width > 8 {
		box = box.Width(f.width - 2)
	}
	return f.thinkingHeader.Render(header) + "\n" + box.Render(text)
}

// FormatAnswer styles a complete answer.
func (f *Formatter) FormatAnswer(text string) string {
	if f.plain {
		return text
	}

	log := logger.WithComponent("render")
	segments := ParseSegments(text)
	log.Debug("Formatting answer", "segments", len(segments))

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg.Type {
		case SegmentCodeBlock:
			parts = append(parts, f.FormatCodeBlock(seg.Content, seg.Language))
		case SegmentHeader:
			parts = append(parts, f.headerStyle.Render(seg.Content))
		case SegmentList:
			parts = append(parts, f.listStyle.Render(seg.Content))
		default:
			parts = append(parts, seg.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// FormatCodeBlock applies syntax highlighting and boxing to code content
func (f *Formatter) FormatCodeBlock(content, language string) string {
	if f.plain {
		return content
	}

	log := logger.WithComponent("render")

	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(content)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	highlighted := content
	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		log.Debug("Failed to tokenize code, using plain text", "error", err)
	} else {
		var buf strings.Builder
		if err := f.chromaFormatter.Format(&buf, f.chromaStyle, iterator); err != nil {
			log.Debug("Failed to format code, using plain text", "error", err)
		} else {
			highlighted = strings.TrimRight(buf.String(), "\n")
		}
	}

	return f.codeBlockStyle.Render(highlighted)
}

// FormatStatus renders the line under a finished answer.
func (f *Formatter) FormatStatus(s stream.Snapshot) string {
	var parts []string
	if s.Model != "" {
		parts = append(parts, s.Model)
	}
	switch {
	case s.EvalCount > 0:
		parts = append(parts, fmt.Sprintf("%d tokens", s.EvalCount))
	case f.counter != nil && !s.WasCancelled && s.AnswerText != "":
		parts = append(parts, fmt.Sprintf("~%d tokens", f.counter.Count(s.ReasoningText+s.AnswerText)))
	}
	if s.TotalDuration > 0 {
		parts = append(parts, FormatElapsed(s.TotalDuration))
	}
	if s.WasCancelled {
		parts = append(parts, "stopped")
	}
	line := strings.Join(parts, " · ")
	if f.plain || line == "" {
		return line
	}
	return f.statusStyle.Render(line)
}

func (f *Formatter) FormatError(err error) string {
	msg := "error: " + err.Error()
	if f.plain {
		return msg
	}
	return f.errorStyle.Render(msg)
}

// FormatFinal renders a finished response: reasoning (when shown), the
// answer and the status line.
func (f *Formatter) FormatFinal(s stream.Snapshot, showReasoning bool) string {
	var blocks []string
	if showReasoning && s.HasReasoning() {
		blocks = append(blocks, f.FormatReasoning(s.ReasoningText, false, s.ReasoningElapsed, 0))
	}
	blocks = append(blocks, f.FormatAnswer(s.AnswerText))
	if status := f.FormatStatus(s); status != "" {
		blocks = append(blocks, status)
	}
	return strings.Join(blocks, "\n\n")
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
