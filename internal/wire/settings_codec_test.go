package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fullSettings exercises every field with a distinct, in-range value so a
// transposed offset cannot survive the round-trip assertions.
func fullSettings() Settings {
	return Settings{
		LeverA: Lever{
			CC:         1,
			Min:        10,
			Max:        120,
			Mode:       LeverBipolar,
			Deadzone:   5,
			ReturnTime: 250,
		},
		LeverB: Lever{
			CC:         CCDisabled,
			Min:        0,
			Max:        127,
			Mode:       LeverRelative,
			Deadzone:   100,
			ReturnTime: 5000,
		},
		LeverPushA: LeverPush{
			CC:        64,
			Mode:      PushToggle,
			Threshold: 75,
			HoldTime:  1000,
		},
		LeverPushB: LeverPush{
			CC:        65,
			Mode:      PushMomentary,
			Threshold: 0,
			HoldTime:  0,
		},
		Touch: Touch{
			CC:          74,
			Min:         1,
			Max:         126,
			Mode:        TouchStrike,
			Sensitivity: 33,
		},
		Scale: Scale{
			Root:    11,
			Pattern: 8,
			Octave:  8,
			Channel: 15,
		},
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
	}{
		{"all fields populated", fullSettings()},
		{"zero value with valid bounds", func() Settings {
			var s Settings
			s.LeverA.CC = CCDisabled
			s.LeverB.CC = CCDisabled
			s.LeverPushA.CC = CCDisabled
			s.LeverPushB.CC = CCDisabled
			s.Touch.CC = CCDisabled
			return s
		}()},
		{"boundary CC values", func() Settings {
			s := fullSettings()
			s.LeverA.CC = 0
			s.LeverB.CC = 127
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeSettings(tt.settings)
			require.NoError(t, err)
			require.Len(t, frame, SettingsFrameSize)

			decoded, err := DecodeSettings(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.settings, decoded)
		})
	}
}

func TestEncodeSettingsLayout(t *testing.T) {
	s := fullSettings()
	frame, err := EncodeSettings(s)
	require.NoError(t, err)

	// Spot-check the byte contract rather than relying on the codec's own
	// inverse: the layout must remain stable for the firmware's sake.
	assert.Equal(t, byte(1), frame[0], "lever A CC")
	assert.Equal(t, byte(0xFF), frame[7], "lever B disabled CC encodes as 0xFF")
	assert.Equal(t, byte(250), frame[5], "lever A return time low byte")
	assert.Equal(t, byte(0), frame[6], "lever A return time high byte")
	assert.Equal(t, byte(0x88), frame[12], "lever B return time 5000 = 0x1388, low byte")
	assert.Equal(t, byte(0x13), frame[13], "lever B return time 5000 = 0x1388, high byte")
	assert.Equal(t, byte(64), frame[14], "lever push A CC")
	assert.Equal(t, byte(65), frame[19], "lever push B CC")
	assert.Equal(t, byte(74), frame[24], "touch CC")
	assert.Equal(t, byte(11), frame[29], "scale root")
	assert.Equal(t, byte(15), frame[32], "scale channel")
}

func TestEncodeSettingsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		field  string
	}{
		{"cc above range", func(s *Settings) { s.LeverA.CC = 128 }, "lever_a.cc"},
		{"cc below sentinel", func(s *Settings) { s.LeverB.CC = -2 }, "lever_b.cc"},
		{"touch cc above range", func(s *Settings) { s.Touch.CC = 200 }, "touch.cc"},
		{"min above max", func(s *Settings) { s.LeverA.Min = 100; s.LeverA.Max = 50 }, "lever_a.min"},
		{"deadzone above 100", func(s *Settings) { s.LeverA.Deadzone = 101 }, "lever_a.deadzone"},
		{"threshold above 100", func(s *Settings) { s.LeverPushA.Threshold = 150 }, "lever_push_a.threshold"},
		{"sensitivity above 100", func(s *Settings) { s.Touch.Sensitivity = 255 }, "touch.sensitivity"},
		{"return time above 5000", func(s *Settings) { s.LeverB.ReturnTime = 5001 }, "lever_b.return_time"},
		{"hold time above 5000", func(s *Settings) { s.LeverPushB.HoldTime = 60000 }, "lever_push_b.hold_time"},
		{"lever mode out of range", func(s *Settings) { s.LeverA.Mode = 3 }, "lever_a.mode"},
		{"push mode out of range", func(s *Settings) { s.LeverPushA.Mode = 2 }, "lever_push_a.mode"},
		{"scale root above 11", func(s *Settings) { s.Scale.Root = 12 }, "scale.root"},
		{"scale channel above 15", func(s *Settings) { s.Scale.Channel = 16 }, "scale.channel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fullSettings()
			tt.mutate(&s)

			frame, err := EncodeSettings(s)
			require.Error(t, err)
			assert.Nil(t, frame, "no frame may be produced from invalid settings")

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestEncodeSettingsBoundaryCCValues(t *testing.T) {
	// -1 (disabled), 0 and 127 are all inclusive-valid.
	for _, cc := range []int{CCDisabled, 0, 127} {
		s := fullSettings()
		s.LeverA.CC = cc

		_, err := EncodeSettings(s)
		assert.NoError(t, err, "CC %d must encode", cc)
	}
}

func TestDecodeSettingsShortFrame(t *testing.T) {
	_, err := DecodeSettings(make([]byte, SettingsFrameSize-1))

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, SettingsFrameSize-1, derr.Got)
	assert.Equal(t, SettingsFrameSize, derr.Want)
	assert.True(t, strings.HasPrefix(derr.Error(), "settings frame too short"))
}

func TestDecodeSettingsIgnoresTrailingBytes(t *testing.T) {
	s := fullSettings()
	frame, err := EncodeSettings(s)
	require.NoError(t, err)

	decoded, err := DecodeSettings(append(frame, 0xAA, 0xBB))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}
