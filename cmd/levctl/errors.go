package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/levctl/controller"
	"github.com/srg/levctl/internal/transport"
	"github.com/srg/levctl/internal/wire"
)

// FormatUserError turns internal error chains into a message a user can act
// on without reading source code.
func FormatUserError(err error) string {
	var verr *wire.ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf("invalid value: %v", verr)
	}

	var derr *wire.DecodeError
	if errors.As(err, &derr) {
		return fmt.Sprintf("device sent an unexpected response (%v); firmware mismatch?", derr)
	}

	if errors.Is(err, controller.ErrOperationInProgress) {
		return "another device operation is in progress, try again"
	}

	var serr *transport.SessionError
	if errors.As(err, &serr) {
		switch serr.Kind {
		case transport.TransportUnavailable:
			return fmt.Sprintf("Bluetooth is unavailable (%v); check that the adapter is powered on", serr.Unwrap())
		case transport.DeviceNotSelected:
			return "no device selected; pass a device address (see 'levctl scan')"
		case transport.NotConnected:
			return "not connected to a controller"
		case transport.AlreadyConnected:
			return "already connected to a controller"
		case transport.CharacteristicMissing:
			return fmt.Sprintf("device is missing a required characteristic (%s); is this a lever controller?", serr.Msg)
		case transport.FeatureUnsupported:
			return fmt.Sprintf("connected controller does not support %s", serr.Msg)
		case transport.WriteFailed, transport.ReadFailed:
			return fmt.Sprintf("communication with the controller failed: %v", serr)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "operation timed out; is the controller in range and powered on?"
	}

	return err.Error()
}
