package typing

import (
	"strings"
	"time"
)

// DotsInterval is how long each waiting indicator frame stays up.
const DotsInterval = 500 * time.Millisecond

// Dots returns the waiting indicator for the given animation tick. It cycles
// through no dots up to three.
func Dots(tick int) string {
	if tick < 0 {
		tick = -tick
	}
	return strings.Repeat(".", tick%4)
}
