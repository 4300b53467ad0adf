package wire

import "encoding/binary"

const (
	// PresetSlotCount is the number of preset slots the firmware exposes.
	// The slot set is fixed-size and fully owned by the device.
	PresetSlotCount = 8

	// PresetNameSize is the on-wire size of a preset name. Names are UTF-8,
	// truncated at this size; shorter names are zero-padded, which doubles
	// as the decoder's terminator.
	PresetNameSize = 32

	// PresetSaveFrameSize is one slot byte followed by the name field.
	PresetSaveFrameSize = 1 + PresetNameSize

	// presetRecordSize is the stride of one record in a preset list frame:
	// 32 name + 4 timestamp (u32le) + 1 valid flag + 3 reserved.
	presetRecordSize = 40

	// PresetListFrameSize is the full list response: one record per slot.
	PresetListFrameSize = PresetSlotCount * presetRecordSize
)

// PresetMetadata describes one device-side preset slot as last read from the
// device. The device, not the client, is authoritative for slot contents.
type PresetMetadata struct {
	Slot      int    `json:"slot" yaml:"slot"`
	Name      string `json:"name" yaml:"name"`
	Timestamp uint32 `json:"timestamp" yaml:"timestamp"`
	Valid     bool   `json:"valid" yaml:"valid"`
}

/// EncodePresetSave builds the save command frame: the slot index followed by
// the zero-padded name. Names longer than PresetNameSize bytes are truncated;
// a name that exactly fills the field carries no terminating zero.
func EncodePresetSave(slot int, name string) ([]byte, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}

	frame := make([]byte, PresetSaveFrameSize)
	frame[0] = byte(slot)
	copy(frame[1:], name)
	return frame, nil
}

// EncodePresetLoad builds the single-byte load command frame.
func EncodePresetLoad(slot int) ([]byte, error) {
	return encodeSlotFrame(slot)
}

// EncodePresetDelete builds the single-byte delete command frame.
func EncodePresetDelete(slot int) ([]byte, error) {
	return encodeSlotFrame(slot)
}

// DecodePresetList parses the 320-byte list response into one metadata entry
// per slot. A record's name is read up to its first zero byte; presenting an
// empty name is left to the caller.
func DecodePresetList(frame []byte) ([]PresetMetadata, error) {
	if len(frame) < PresetListFrameSize {
		return nil, &DecodeError{Frame: "preset list", Got: len(frame), Want: PresetListFrameSize}
	}

	presets := make([]PresetMetadata, PresetSlotCount)
	for slot := 0; slot < PresetSlotCount; slot++ {
		rec := frame[slot*presetRecordSize:]
		presets[slot] = PresetMetadata{
			Slot:      slot,
			Name:      decodeName(rec[:PresetNameSize]),
			Timestamp: binary.LittleEndian.Uint32(rec[PresetNameSize : PresetNameSize+4]),
			Valid:     rec[PresetNameSize+4] != 0,
		}
	}
	return presets, nil
}

func decodeName(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func encodeSlotFrame(slot int) ([]byte, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	return []byte{byte(slot)}, nil
}

func validateSlot(slot int) error {
	return validateRange("slot", slot, 0, PresetSlotCount-1)
}
