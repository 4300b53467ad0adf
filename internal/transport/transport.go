// Package transport defines the session abstraction over the controller's
// GATT surface. Implementations live in subpackages; the rest of the program
// depends only on the interfaces here.
package transport

import (
	"context"
	"time"
)

// Channel identifies one logical endpoint on the device. Each channel maps
// to a single characteristic; the mapping lives in uuid.go.
type Channel string

const (
	ChannelSettings     Channel = "settings"
	ChannelPresetSave   Channel = "preset_save"
	ChannelPresetLoad   Channel = "preset_load"
	ChannelPresetList   Channel = "preset_list"
	ChannelPresetDelete Channel = "preset_delete"
	ChannelControl      Channel = "control"
)

// Capabilities reports what the connected device supports, derived once from
// service discovery. A zero value means nothing beyond the mandatory settings
// characteristic.
type Capabilities struct {
	// DevicePresets is true only when all four preset characteristics were
	// discovered.
	DevicePresets bool

	// Notifications is true when the settings notify subscription succeeded.
	// When false the session degrades to polling-only reads.
	Notifications bool

	// RealtimeControl is true when the control change characteristic was
	// discovered.
	RealtimeControl bool
}

// Status describes a connection state transition, delivered via
// StatusEvents. Err carries the cause for spontaneous disconnects and is nil
// for deliberate ones.
type Status struct {
	Connected bool
	Address   string
	Err       error
}

// ConnectOptions configures session establishment.
type ConnectOptions struct {
	// ConnectTimeout bounds dialing plus service discovery.
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`

	// ReadTimeout bounds individual characteristic reads.
	ReadTimeout time.Duration `yaml:"read_timeout" default:"5s"`
}

// Session is a live link to one controller. Implementations must be safe for
// concurrent use; writes to the same characteristic are serialized
// internally.
type Session interface {
	// Connect dials the device at the given address and discovers its GATT
	// profile. Fails with an AlreadyConnected error when a link is already
	// up, and with a CharacteristicMissing error when the mandatory
	// settings characteristic is absent.
	Connect(ctx context.Context, address string, opts *ConnectOptions) error

	// Disconnect tears the link down. Safe to call when not connected.
	Disconnect() error

	IsConnected() bool

	// Address returns the address of the connected device, or the empty
	// string when disconnected.
	Address() string

	// Capabilities is only meaningful while connected; it reports the zero
	// value otherwise.
	Capabilities() Capabilities

	// SendData writes a frame to the settings characteristic with response.
	SendData(ctx context.Context, frame []byte) error

	// ReadData reads the current settings frame.
	ReadData(ctx context.Context) ([]byte, error)

	// SendToChannel writes a frame to an arbitrary channel. The control
	// channel uses write-without-response; everything else writes with
	// response. Fails with a FeatureUnsupported error when the channel's
	// characteristic was not discovered.
	SendToChannel(ctx context.Context, ch Channel, frame []byte) error

	// ReadFromChannel reads a frame from a readable channel.
	ReadFromChannel(ctx context.Context, ch Channel) ([]byte, error)

	// SubscribeData registers a handler for settings notification frames.
	// At most one handler is active; registering replaces the previous one.
	// The handler is invoked from the transport's notification goroutine
	// and must not block.
	SubscribeData(handler func(frame []byte))

	// StatusEvents returns the connection state stream. The channel is
	// bounded with overwrite-oldest semantics, so a slow consumer only
	// loses history, never blocks the transport.
	StatusEvents() <-chan Status
}
