// Package tokens estimates token counts for the status line when the server
// reports none.
package tokens

import (
	"strings"
	"sync"

	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/logger"
	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens with a BPE encoding. The encoding is loaded on first
// use; until it is available, or if it never is, counts are estimated from
// the text length.
type Counter struct {
	encoding string
	once     sync.Once
	encoder  *tiktoken.Tiktoken
	load     bool
}

// NewCounter picks an encoding for the model. Local models have no published
// encoding, cl100k_base is a reasonable stand-in.
func NewCounter(modelName string) *Counter {
	return &Counter{encoding: encodingForModel(modelName), load: true}
}

// NewEstimator returns a counter that never loads an encoding.
func NewEstimator() *Counter {
	return &Counter{}
}

func (c *Counter) encoderFor() *tiktoken.Tiktoken {
	c.once.Do(func() {
		if !c.load {
			return
		}
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			logger.WithComponent("tokens").Debug("Encoding unavailable, estimating", "encoding", c.encoding, "error", err)
			return
		}
		c.encoder = enc
	})
	return c.encoder
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := c.encoderFor(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return estimate(text)
}

// CountMessages approximates the prompt size of a request.
func (c *Counter) CountMessages(messages []chat.WireMessage) int {
	total := 0
	for _, m := range messages {
		// role plus boundary markers
		total += c.Count(m.Role) + c.Count(m.Content) + 4
	}
	if len(messages) > 0 {
		total += 3 // reply priming
	}
	return total
}

func encodingForModel(modelName string) string {
	name := strings.ToLower(modelName)
	if strings.Contains(name, "davinci") || strings.Contains(name, "curie") {
		return "p50k_base"
	}
	return "cl100k_base"
}

// estimate takes the larger of one token per word and one per four bytes.
func estimate(text string) int {
	words := len(strings.Fields(text))
	chars := len(text) / 4
	if words > chars {
		return words
	}
	return chars
}
