package protocol

import "fmt"

type CodecOp int

const (
	EncodingFailed CodecOp = iota + 1
	DecodingFailed
)

func (op CodecOp) String() string {
	switch op {
	case EncodingFailed:
		return "encoding failed"
	case DecodingFailed:
		return "decoding failed"
	}
	return "codec error"
}

// CodecError reports a single message that could not be encoded or decoded.
// It never implies the connection is broken.
type CodecError struct {
	Op   CodecOp
	Type MessageType
	Err  error
}

func (e *CodecError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Type, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }
