package wire

import "fmt"

// ValidationError reports a settings or preset field that violates its
// documented range before encoding. Validation is a precondition of every
// encode function; a frame is never produced from out-of-range input.
type ValidationError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: value %d out of range [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

// DecodeError reports an inbound frame that does not match the fixed layout.
type DecodeError struct {
	Frame string
	Got   int
	Want  int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s frame too short: got %d bytes, want %d", e.Frame, e.Got, e.Want)
}
