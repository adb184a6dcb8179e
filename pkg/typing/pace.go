package typing

import (
	"strings"
	"time"
)

const (
	DefaultBaseDelay = 20 * time.Millisecond
	DefaultMinDelay  = 2 * time.Millisecond

	// maxLineBatch caps a line-aligned step on very long lines.
	maxLineBatch = 160
)

// Pace is the size and delay of one advance step.
type Pace struct {
	Delay time.Duration
	Batch int
}

// Profile is the unscaled pacing of one content class.
type Profile struct {
	Delay time.Duration
	Batch int
	// LineAligned steps reveal up to the end of the current line.
	LineAligned bool
}

// Pacer turns a content class and the unshown text into a Pace.
type Pacer struct {
	profiles map[ContentClass]Profile
	minDelay time.Duration
}

// NewPacer derives all profiles from the plain-text delay. Code and lists
// advance faster and line by line; markdown slightly faster than prose.
func NewPacer(baseDelay, minDelay time.Duration) Pacer {
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	return Pacer{
		profiles: map[ContentClass]Profile{
			ClassPlain:    {Delay: baseDelay, Batch: 1},
			ClassMarkdown: {Delay: baseDelay * 3 / 4, Batch: 2},
			ClassList:     {Delay: baseDelay / 2, Batch: 1, LineAligned: true},
			ClassCode:     {Delay: baseDelay / 4, Batch: 8, LineAligned: true},
		},
		minDelay: minDelay,
	}
}

// Profile returns the unscaled profile of class. A zero Pacer uses the
// default profiles.
func (p Pacer) Profile(class ContentClass) Profile {
	if p.profiles == nil {
		return defaultPacer.Profile(class)
	}
	if prof, ok := p.profiles[class]; ok {
		return prof
	}
	return p.profiles[ClassPlain]
}

// Next computes the step for the unshown text. Longer backlogs move in
// bigger and quicker steps so the display does not fall behind forever.
func (p Pacer) Next(class ContentClass, remaining string) Pace {
	prof := p.Profile(class)
	factor := speedFactor(len([]rune(remaining)))

	pace := Pace{
		Delay: prof.Delay / time.Duration(factor),
		Batch: prof.Batch * factor,
	}
	minDelay := p.minDelay
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	if pace.Delay < minDelay {
		pace.Delay = minDelay
	}
	if pace.Batch < 1 {
		pace.Batch = 1
	}

	if prof.LineAligned {
		if end := lineEnd(remaining); end > pace.Batch {
			pace.Batch = min(end, maxLineBatch)
		}
	}
	return pace
}

var defaultPacer = NewPacer(DefaultBaseDelay, DefaultMinDelay)

// PaceFor returns the step for the unshown text using the default profiles.
func PaceFor(class ContentClass, remaining string) Pace {
	return defaultPacer.Next(class, remaining)
}

func speedFactor(remaining int) int {
	switch {
	case remaining > 1000:
		return 4
	case remaining > 300:
		return 2
	default:
		return 1
	}
}

// lineEnd counts the runes up to and including the first newline, or all
// runes when there is none.
func lineEnd(s string) int {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return len([]rune(s[:idx+1]))
	}
	return len([]rune(s))
}
