// Package wire implements the binary settings/preset protocol exchanged with
// the controller firmware. All transforms are pure: validation and layout
// only, no I/O, no logging. The frame layouts are the compatibility-critical
// contract with firmware and must remain byte-stable.
package wire

// CCDisabled is the sentinel CC number meaning "control disabled".
// CC fields are plain ints so out-of-range input can be carried to Validate
// and rejected there instead of silently wrapping at a narrow integer type.
const CCDisabled = -1

// LeverMode selects how a lever position maps to CC values.
type LeverMode uint8

const (
	LeverAbsolute LeverMode = iota
	LeverRelative
	LeverBipolar
)

// PushMode selects how a lever push switch behaves.
type PushMode uint8

const (
	PushMomentary PushMode = iota
	PushToggle
)

// TouchMode selects how the touch strip reports values.
type TouchMode uint8

const (
	TouchContinuous TouchMode = iota
	TouchLatch
	TouchStrike
)

// Lever configures one of the two lever controls.
type Lever struct {
	CC         int       `yaml:"cc" json:"cc" default:"-1"`
	Min        uint8     `yaml:"min" json:"min"`
	Max        uint8     `yaml:"max" json:"max" default:"127"`
	Mode       LeverMode `yaml:"mode" json:"mode"`
	Deadzone   uint8     `yaml:"deadzone" json:"deadzone"`       // percent, 0..100
	ReturnTime uint16    `yaml:"return_time" json:"return_time"` // ms, 0..5000
}

// LeverPush configures the push switch at the end of a lever throw.
type LeverPush struct {
	CC        int      `yaml:"cc" json:"cc" default:"-1"`
	Mode      PushMode `yaml:"mode" json:"mode"`
	Threshold uint8    `yaml:"threshold" json:"threshold" default:"50"` // percent, 0..100
	HoldTime  uint16   `yaml:"hold_time" json:"hold_time"`              // ms, 0..5000
}

// Touch configures the touch strip control.
type Touch struct {
	CC          int       `yaml:"cc" json:"cc" default:"-1"`
	Min         uint8     `yaml:"min" json:"min"`
	Max         uint8     `yaml:"max" json:"max" default:"127"`
	Mode        TouchMode `yaml:"mode" json:"mode"`
	Sensitivity uint8     `yaml:"sensitivity" json:"sensitivity" default:"50"` // percent, 0..100
}

// Scale configures the note scale the controller plays in.
type Scale struct {
	Root    uint8 `yaml:"root" json:"root"`                 // semitone offset from C, 0..11
	Pattern uint8 `yaml:"pattern" json:"pattern"`           // scale pattern index, 0..8
	Octave  uint8 `yaml:"octave" json:"octave" default:"4"` // 0..8
	Channel uint8 `yaml:"channel" json:"channel"`           // MIDI channel, 0..15
}

// Settings is the complete device configuration. It encodes to a single
// fixed-size frame; the device never sees a partial update.
type Settings struct {
	LeverA     Lever     `yaml:"lever_a" json:"lever_a"`
	LeverB     Lever     `yaml:"lever_b" json:"lever_b"`
	LeverPushA LeverPush `yaml:"lever_push_a" json:"lever_push_a"`
	LeverPushB LeverPush `yaml:"lever_push_b" json:"lever_push_b"`
	Touch      Touch     `yaml:"touch" json:"touch"`
	Scale      Scale     `yaml:"scale" json:"scale"`
}

// Validate checks every field against its documented range. It returns the
// first violation as a *ValidationError and nil when the settings are
// encodable.
func (s *Settings) Validate() error {
	if err := s.LeverA.validate("lever_a"); err != nil {
		return err
	}
	if err := s.LeverB.validate("lever_b"); err != nil {
		return err
	}
	if err := s.LeverPushA.validate("lever_push_a"); err != nil {
		return err
	}
	if err := s.LeverPushB.validate("lever_push_b"); err != nil {
		return err
	}
	if err := s.Touch.validate("touch"); err != nil {
		return err
	}
	return s.Scale.validate("scale")
}

func (l *Lever) validate(prefix string) error {
	if err := validateCC(prefix+".cc", l.CC); err != nil {
		return err
	}
	if err := validateRange(prefix+".min", int(l.Min), 0, 127); err != nil {
		return err
	}
	if err := validateRange(prefix+".max", int(l.Max), 0, 127); err != nil {
		return err
	}
	if l.Min > l.Max {
		return &ValidationError{Field: prefix + ".min", Value: int(l.Min), Min: 0, Max: int(l.Max)}
	}
	if err := validateRange(prefix+".mode", int(l.Mode), 0, int(LeverBipolar)); err != nil {
		return err
	}
	if err := validateRange(prefix+".deadzone", int(l.Deadzone), 0, 100); err != nil {
		return err
	}
	return validateRange(prefix+".return_time", int(l.ReturnTime), 0, 5000)
}

func (p *LeverPush) validate(prefix string) error {
	if err := validateCC(prefix+".cc", p.CC); err != nil {
		return err
	}
	if err := validateRange(prefix+".mode", int(p.Mode), 0, int(PushToggle)); err != nil {
		return err
	}
	if err := validateRange(prefix+".threshold", int(p.Threshold), 0, 100); err != nil {
		return err
	}
	return validateRange(prefix+".hold_time", int(p.HoldTime), 0, 5000)
}

func (t *Touch) validate(prefix string) error {
	if err := validateCC(prefix+".cc", t.CC); err != nil {
		return err
	}
	if err := validateRange(prefix+".min", int(t.Min), 0, 127); err != nil {
		return err
	}
	if err := validateRange(prefix+".max", int(t.Max), 0, 127); err != nil {
		return err
	}
	if t.Min > t.Max {
		return &ValidationError{Field: prefix + ".min", Value: int(t.Min), Min: 0, Max: int(t.Max)}
	}
	if err := validateRange(prefix+".mode", int(t.Mode), 0, int(TouchStrike)); err != nil {
		return err
	}
	return validateRange(prefix+".sensitivity", int(t.Sensitivity), 0, 100)
}

func (sc *Scale) validate(prefix string) error {
	if err := validateRange(prefix+".root", int(sc.Root), 0, 11); err != nil {
		return err
	}
	if err := validateRange(prefix+".pattern", int(sc.Pattern), 0, 8); err != nil {
		return err
	}
	if err := validateRange(prefix+".octave", int(sc.Octave), 0, 8); err != nil {
		return err
	}
	return validateRange(prefix+".channel", int(sc.Channel), 0, 15)
}

// validateCC accepts the disabled sentinel (-1) or a standard CC number.
func validateCC(field string, cc int) error {
	return validateRange(field, cc, CCDisabled, 127)
}

func validateRange(field string, value, min, max int) error {
	if value < min || value > max {
		return &ValidationError{Field: field, Value: value, Min: min, Max: max}
	}
	return nil
}
