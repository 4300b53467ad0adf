package wire

import "strconv"

// MaxControlValue is the upper bound for controller ids and control values,
// matching the 7-bit MIDI data range.
const MaxControlValue = 127

// EncodeControlChange builds the real-time channel frame: ASCII
// "<controllerId>,<value>" with a literal comma and no length prefix.
func EncodeControlChange(controllerID, value int) ([]byte, error) {
	if err := validateRange("controller_id", controllerID, 0, MaxControlValue); err != nil {
		return nil, err
	}
	if err := validateRange("value", value, 0, MaxControlValue); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, 8)
	frame = strconv.AppendInt(frame, int64(controllerID), 10)
	frame = append(frame, ',')
	frame = strconv.AppendInt(frame, int64(value), 10)
	return frame, nil
}
