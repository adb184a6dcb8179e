package stream

import (
	"bytes"
	"io"
)

const readBufferSize = 4096

// readResult holds the complete lines of one read. err is set on the last
// result of the stream, io.EOF for a clean end.
type readResult struct {
	lines []string
	err   error
}

// readLines splits body into lines and sends the lines of every read as
// one result. A trailing line without a newline is delivered with io.EOF.
// It returns once the body fails or stop is closed.
func readLines(body io.Reader, out chan<- readResult, stop <-chan struct{}) {
	buf := make([]byte, readBufferSize)
	var pending []byte

	send := func(res readResult) bool {
		select {
		case out <- res:
			return true
		case <-stop:
			return false
		}
	}

	for {
		n, err := body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)

			var lines []string
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				lines = append(lines, string(pending[:idx]))
				pending = pending[idx+1:]
			}

			if len(lines) > 0 && !send(readResult{lines: lines}) {
				return
			}
		}

		if err != nil {
			res := readResult{err: err}
			if err == io.EOF && len(pending) > 0 {
				res.lines = []string{string(pending)}
			}
			send(res)
			return
		}
	}
}
