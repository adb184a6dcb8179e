package stream

import (
	"errors"
	"fmt"
)

// ErrServer matches any failure the server reported inside the stream.
var ErrServer = errors.New("server reported an error")

// ServerError carries the message of an error event.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("stream error: %s", e.Message)
}

func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}
