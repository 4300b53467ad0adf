package transport

import "strings"

// GATT contract of the controller firmware. The configuration service is
// mandatory except for its preset characteristics; the real-time service is
// optional altogether.
const (
	ConfigServiceUUID  = "8f1d0001-6e2c-4b6b-9b35-4e2f1b6a7c01"
	SettingsCharUUID   = "8f1d0002-6e2c-4b6b-9b35-4e2f1b6a7c01"
	PresetSaveUUID     = "8f1d0003-6e2c-4b6b-9b35-4e2f1b6a7c01"
	PresetLoadUUID     = "8f1d0004-6e2c-4b6b-9b35-4e2f1b6a7c01"
	PresetListUUID     = "8f1d0005-6e2c-4b6b-9b35-4e2f1b6a7c01"
	PresetDeleteUUID   = "8f1d0006-6e2c-4b6b-9b35-4e2f1b6a7c01"
	ControlServiceUUID = "8f1d1001-6e2c-4b6b-9b35-4e2f1b6a7c01"
	ControlCharUUID    = "8f1d1002-6e2c-4b6b-9b35-4e2f1b6a7c01"
)

// ChannelUUID maps a logical channel to its characteristic UUID. Unknown
// channels map to the empty string.
func ChannelUUID(ch Channel) string {
	switch ch {
	case ChannelSettings:
		return SettingsCharUUID
	case ChannelPresetSave:
		return PresetSaveUUID
	case ChannelPresetLoad:
		return PresetLoadUUID
	case ChannelPresetList:
		return PresetListUUID
	case ChannelPresetDelete:
		return PresetDeleteUUID
	case ChannelControl:
		return ControlCharUUID
	default:
		return ""
	}
}

// bluetoothBaseSuffix is the tail of the Bluetooth SIG base UUID; 128-bit
// UUIDs of this shape collapse to their 16-bit short form.
const bluetoothBaseSuffix = "-0000-1000-8000-00805f9b34fb"

// NormalizeUUID converts a UUID string to the BLE library's internal form:
// lowercase, no dashes, no 0x prefix. SIG base UUIDs collapse to their
// 16-bit short form so "00002a00-0000-1000-8000-00805f9b34fb", "0x2A00" and
// "2a00" all normalize identically.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")

	if strings.HasSuffix(u, bluetoothBaseSuffix) && strings.HasPrefix(u, "0000") && len(u) == 36 {
		return u[4:8]
	}

	return strings.ReplaceAll(u, "-", "")
}

// NormalizeUUIDs normalizes a slice of UUID strings.
func NormalizeUUIDs(uuids []string) []string {
	result := make([]string, len(uuids))
	for i, u := range uuids {
		result[i] = NormalizeUUID(u)
	}
	return result
}
