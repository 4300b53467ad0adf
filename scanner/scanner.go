// Package scanner discovers lever controllers over BLE advertisements.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cornelk/hashmap"
	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/levctl/internal/ringchan"
	"github.com/srg/levctl/internal/transport"
	"github.com/srg/levctl/internal/transport/goble"
)

// ProgressCallback is called when the scan phase changes.
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated.
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

// DeviceInfo is a snapshot of one advertising device.
type DeviceInfo struct {
	Address        string    `json:"address"`
	Name           string    `json:"name,omitempty"`
	RSSI           int       `json:"rssi"`
	Connectable    bool      `json:"connectable"`
	Services       []string  `json:"services,omitempty"`
	Advertisements int       `json:"advertisements"`
	LastSeen       time.Time `json:"last_seen"`
}

type DeviceEvent struct {
	Type       DeviceEventType
	DeviceInfo DeviceInfo
}

// Scanner handles controller discovery.
type Scanner struct {
	devices *hashmap.Map[string, *DeviceInfo]
	events  *ringchan.Ring[DeviceEvent]
	logger  *logrus.Logger

	scanOptions *ScanOptions
}

// ScanOptions configures scanning behavior.
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool

	// ServiceUUIDs keeps only devices advertising at least one of these
	// services. Empty means no service filter.
	ServiceUUIDs []string

	AllowList []string
	BlockList []string
}

// DefaultScanOptions scans for devices advertising the configuration
// service, which is what identifies a lever controller in a crowded room.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: false,
		ServiceUUIDs:    []string{transport.ConfigServiceUUID},
	}
}

// NewScanner creates a scanner.
func NewScanner(logger *logrus.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		events: ringchan.New[DeviceEvent](100),
		logger: logger,
	}, nil
}

// Scan performs discovery with the provided options and returns a snapshot
// of everything seen. The scan ends when the duration elapses or ctx is
// cancelled; both count as success.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) (map[string]DeviceInfo, error) {
	s.devices = hashmap.New[string, *DeviceInfo]()

	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}

	s.logger.WithFields(logrus.Fields{
		"duration": opts.Duration,
		"services": opts.ServiceUUIDs,
	}).Info("Starting scan...")

	progressCallback("Scanning")

	dev, err := goble.DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	scanCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.scanOptions = opts
	defer func() {
		s.scanOptions = nil
	}()

	err = dev.Scan(scanCtx, !opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("Scan completed")

	progressCallback("Processing results")

	devices := make(map[string]DeviceInfo, s.devices.Len())
	s.devices.Range(func(key string, value *DeviceInfo) bool {
		devices[key] = *value
		return true
	})

	return devices, nil
}

// handleAdvertisement updates an existing entry or admits a new device
// through the filters.
func (s *Scanner) handleAdvertisement(adv blelib.Advertisement) {
	address := adv.Addr().String()

	info, existing := s.devices.Get(address)
	if !existing {
		if !s.shouldIncludeDevice(adv, s.scanOptions) {
			return
		}
		info, existing = s.devices.GetOrInsert(address, &DeviceInfo{Address: address})
	}

	info.RSSI = adv.RSSI()
	info.Connectable = adv.Connectable()
	info.Advertisements++
	info.LastSeen = time.Now()
	if name := adv.LocalName(); name != "" {
		info.Name = name
	}
	info.Services = advertisedServices(adv)

	event := DeviceEvent{DeviceInfo: *info}
	if existing {
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  info.Name,
			"address": info.Address,
			"rssi":    info.RSSI,
		}).Info("Discovered controller")
		event.Type = EventNew
	}

	s.events.Send(event)
}

// shouldIncludeDevice applies the allow/block/service filters.
func (s *Scanner) shouldIncludeDevice(adv blelib.Advertisement, opts *ScanOptions) bool {
	if opts == nil {
		return true
	}

	addr := adv.Addr().String()

	for _, blocked := range opts.BlockList {
		if addr == blocked {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if addr == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if len(opts.ServiceUUIDs) > 0 {
		advertised := advertisedServices(adv)
		for _, required := range transport.NormalizeUUIDs(opts.ServiceUUIDs) {
			for _, svc := range advertised {
				if svc == required {
					return true
				}
			}
		}
		return false
	}

	return true
}

func advertisedServices(adv blelib.Advertisement) []string {
	uuids := adv.Services()
	services := make([]string, 0, len(uuids))
	for _, u := range uuids {
		services = append(services, transport.NormalizeUUID(u.String()))
	}
	return services
}

// Events returns a read-only stream of device events. The stream is bounded
// with overwrite-oldest semantics.
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}
