package wire

import "encoding/binary"

// SettingsFrameSize is the fixed size of an encoded settings frame. The
// firmware has a fixed schema, so there is no length prefix; every field
// lives at a fixed offset and multi-byte integers are little-endian.
const SettingsFrameSize = 33

// Fixed byte offsets of each sub-model within a settings frame.
const (
	offLeverA     = 0
	offLeverB     = 7
	offLeverPushA = 14
	offLeverPushB = 19
	offTouch      = 24
	offScale      = 29
)

// EncodeSettings lays the settings out into a single fixed-size frame.
// Validation is a precondition: out-of-range input fails with a
// *ValidationError before a single byte is produced.
func EncodeSettings(s Settings) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	frame := make([]byte, SettingsFrameSize)
	encodeLever(frame[offLeverA:], s.LeverA)
	encodeLever(frame[offLeverB:], s.LeverB)
	encodeLeverPush(frame[offLeverPushA:], s.LeverPushA)
	encodeLeverPush(frame[offLeverPushB:], s.LeverPushB)
	encodeTouch(frame[offTouch:], s.Touch)
	encodeScale(frame[offScale:], s.Scale)
	return frame, nil
}

// DecodeSettings is the inverse of EncodeSettings. Frames shorter than the
// fixed size fail with a *DecodeError; trailing bytes are ignored so newer
// firmware can grow the frame without breaking older clients.
func DecodeSettings(frame []byte) (Settings, error) {
	if len(frame) < SettingsFrameSize {
		return Settings{}, &DecodeError{Frame: "settings", Got: len(frame), Want: SettingsFrameSize}
	}

	return Settings{
		LeverA:     decodeLever(frame[offLeverA:]),
		LeverB:     decodeLever(frame[offLeverB:]),
		LeverPushA: decodeLeverPush(frame[offLeverPushA:]),
		LeverPushB: decodeLeverPush(frame[offLeverPushB:]),
		Touch:      decodeTouch(frame[offTouch:]),
		Scale:      decodeScale(frame[offScale:]),
	}, nil
}

func encodeLever(b []byte, l Lever) {
	b[0] = encodeCC(l.CC)
	b[1] = l.Min
	b[2] = l.Max
	b[3] = byte(l.Mode)
	b[4] = l.Deadzone
	binary.LittleEndian.PutUint16(b[5:7], l.ReturnTime)
}

func decodeLever(b []byte) Lever {
	return Lever{
		CC:         decodeCC(b[0]),
		Min:        b[1],
		Max:        b[2],
		Mode:       LeverMode(b[3]),
		Deadzone:   b[4],
		ReturnTime: binary.LittleEndian.Uint16(b[5:7]),
	}
}

func encodeLeverPush(b []byte, p LeverPush) {
	b[0] = encodeCC(p.CC)
	b[1] = byte(p.Mode)
	b[2] = p.Threshold
	binary.LittleEndian.PutUint16(b[3:5], p.HoldTime)
}

func decodeLeverPush(b []byte) LeverPush {
	return LeverPush{
		CC:        decodeCC(b[0]),
		Mode:      PushMode(b[1]),
		Threshold: b[2],
		HoldTime:  binary.LittleEndian.Uint16(b[3:5]),
	}
}

func encodeTouch(b []byte, t Touch) {
	b[0] = encodeCC(t.CC)
	b[1] = t.Min
	b[2] = t.Max
	b[3] = byte(t.Mode)
	b[4] = t.Sensitivity
}

func decodeTouch(b []byte) Touch {
	return Touch{
		CC:          decodeCC(b[0]),
		Min:         b[1],
		Max:         b[2],
		Mode:        TouchMode(b[3]),
		Sensitivity: b[4],
	}
}

func encodeScale(b []byte, sc Scale) {
	b[0] = sc.Root
	b[1] = sc.Pattern
	b[2] = sc.Octave
	b[3] = sc.Channel
}

func decodeScale(b []byte) Scale {
	return Scale{
		Root:    b[0],
		Pattern: b[1],
		Octave:  b[2],
		Channel: b[3],
	}
}

// encodeCC stores a CC number in one byte; the disabled sentinel (-1)
// becomes 0xFF on the wire.
func encodeCC(cc int) byte {
	return byte(int8(cc))
}

func decodeCC(b byte) int {
	return int(int8(b))
}
