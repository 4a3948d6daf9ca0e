package psg

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedStream is the kind of every decoding or input validation failure.
	ErrMalformedStream = errors.New("malformed command stream")

	// ErrStreamFinished is returned by Decoder.Next after the terminal event.
	ErrStreamFinished = errors.New("command stream finished")
)

// StreamError locates a malformed stream failure.
type StreamError struct {
	Offset int
	Msg    string
}

func (err *StreamError) Error() string {
	return fmt.Sprintf("psg: offset 0x%04X: %s", err.Offset, err.Msg)
}

func (err *StreamError) Unwrap() error {
	return ErrMalformedStream
}

func malformed(offset int, format string, args ...any) error {
	return &StreamError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
