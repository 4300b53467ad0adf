package transport

import (
	"errors"
	"fmt"
)

// ErrorKind classifies session failures so callers can branch without string
// matching.
type ErrorKind string

const (
	TransportUnavailable  ErrorKind = "transport_unavailable"
	DeviceNotSelected     ErrorKind = "device_not_selected"
	NotConnected          ErrorKind = "not_connected"
	AlreadyConnected      ErrorKind = "already_connected"
	CharacteristicMissing ErrorKind = "characteristic_missing"
	WriteFailed           ErrorKind = "write_failed"
	ReadFailed            ErrorKind = "read_failed"
	FeatureUnsupported    ErrorKind = "feature_unsupported"
)

// SessionError is the transport error type. Kind is always set; Msg and Err
// are optional context.
type SessionError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *SessionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *SessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare SessionError values by Kind.
func (e *SessionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrTransportUnavailable  = &SessionError{Kind: TransportUnavailable}
	ErrDeviceNotSelected     = &SessionError{Kind: DeviceNotSelected}
	ErrNotConnected          = &SessionError{Kind: NotConnected}
	ErrAlreadyConnected      = &SessionError{Kind: AlreadyConnected}
	ErrCharacteristicMissing = &SessionError{Kind: CharacteristicMissing}
	ErrWriteFailed           = &SessionError{Kind: WriteFailed}
	ErrReadFailed            = &SessionError{Kind: ReadFailed}
	ErrFeatureUnsupported    = &SessionError{Kind: FeatureUnsupported}
)

// IsKind reports whether err is a SessionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var serr *SessionError
	if errors.As(err, &serr) {
		return serr.Kind == kind
	}
	return false
}
