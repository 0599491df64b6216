//go:build android

package source

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// HotplugEventKind distinguishes a device arriving from a device leaving.
type HotplugEventKind int

const (
	Connected HotplugEventKind = iota
	Disconnected
)

// HotplugEvent is emitted by the platform USB hotplug watcher (an external
// collaborator on Android; see spec.md §1) for every device state change.
type HotplugEvent struct {
	Kind       HotplugEventKind
	Serial     string
	DeviceName string
}

// USBDevice is the subset of Android USB device APIs the hotplug manager
// needs: permission handling and opening a byte stream to the device.
type USBDevice interface {
	HasPermission() bool
	// RequestPermission blocks until the user grants or denies access.
	RequestPermission(ctx context.Context) (granted bool, err error)
	// Open returns a byte stream reading the device's USB-CDC endpoint.
	Open() (interface{ Read([]byte) (int, error) }, error)
}

// HotplugManager rewires incoming USB-CDC connections to the Sink
// registered for their serial number, by exact, case-sensitive match. An
// unrecognized serial is skipped silently, per spec.md §4.2.
type HotplugManager struct {
	log *slog.Logger

	mu          sync.Mutex
	dispatchers map[string]Sink // serial number -> sink, case-sensitive exact match

	lookupDevice func(name string) (USBDevice, error)
}

// NewHotplugManager creates a manager whose dispatchers map starts empty;
// register sinks with Register before events start arriving.
func NewHotplugManager(lookupDevice func(name string) (USBDevice, error)) *HotplugManager {
	return &HotplugManager{
		log:          slog.With("component", "hotplug"),
		dispatchers:  make(map[string]Sink),
		lookupDevice: lookupDevice,
	}
}

// Register maps a serial number to the sink that should receive its
// frames once the device connects.
func (m *HotplugManager) Register(serialNumber string, sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchers[serialNumber] = sink
}

// Run consumes hotplug events forever, dispatching each Connected event to
// a blocking per-device goroutine. The device's dispatcher is only looked
// up, never removed from the map, so a later re-plug rewires
// automatically.
func (m *HotplugManager) Run(ctx context.Context, events <-chan HotplugEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind != Connected {
				continue
			}
			go m.handleConnected(ctx, ev)
		}
	}
}

func (m *HotplugManager) handleConnected(ctx context.Context, ev HotplugEvent) {
	serialNumber := strings.TrimSpace(ev.Serial)

	m.mu.Lock()
	sink, ok := m.dispatchers[serialNumber]
	m.mu.Unlock()
	if !ok {
		m.log.Debug("unrecognized serial, skipping", "serial", serialNumber)
		return
	}

	dev, err := m.lookupDevice(ev.DeviceName)
	if err != nil {
		m.log.Warn("failed to resolve USB device", "device", ev.DeviceName, "error", err)
		return
	}

	if !dev.HasPermission() {
		granted, err := dev.RequestPermission(ctx)
		if err != nil || !granted {
			m.log.Warn("USB permission denied", "device", ev.DeviceName, "error", err)
			return
		}
	}

	stream, err := dev.Open()
	if err != nil {
		m.log.Warn("failed to open USB device", "device", ev.DeviceName, "error", err)
		return
	}

	log := m.log.With("serial", serialNumber, "device", ev.DeviceName)
	if err := readFramedJPEGs(stream, sink, log); err != nil {
		log.Debug("USB-CDC stream ended", "error", err)
	}
}

