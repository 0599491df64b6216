package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"github.com/pembem22/eyetrackvr-go/internal/frame"
)

// serialMode is the USB-CDC wire configuration from spec.md §4.2:
// 3,000,000 baud, 8 data bits, no parity, 1 stop bit.
var serialMode = &serial.Mode{
	BaudRate: 3_000_000,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// SerialSource reads the USB-CDC framing protocol off a named port (e.g.
// "COM3" on Windows, "/dev/ttyACM0" on Linux), reconnecting forever.
type SerialSource struct {
	Port string
	log  *slog.Logger
}

// NewSerialSource returns a source bound to the given port name.
func NewSerialSource(port string) *SerialSource {
	return &SerialSource{Port: port, log: slog.With("component", "serial-source", "port", port)}
}

// Run loops forever: open the port, frame and decode JPEGs, and on any
// I/O error log, sleep, and retry.
func (s *SerialSource) Run(ctx context.Context, sink Sink) error {
	for ctx.Err() == nil {
		if err := s.runOnce(ctx, sink); err != nil {
			s.log.Warn("serial connection failed, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
	return ctx.Err()
}

func (s *SerialSource) runOnce(ctx context.Context, sink Sink) error {
	port, err := serial.Open(s.Port, serialMode)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Port, err)
	}
	defer port.Close()

	go func() {
		<-ctx.Done()
		port.Close()
	}()

	return readFramedJPEGs(port, sink, s.log)
}

// readFramedJPEGs feeds r through a Framer, decoding every emitted payload
// as a JPEG. Shared by the desktop serial source and the Android hotplug
// path, which frame identically once a byte stream is in hand.
func readFramedJPEGs(r interface{ Read([]byte) (int, error) }, sink Sink, log *slog.Logger) error {
	framer := NewFramer()
	buf := make([]byte, 4096)

	for {
		n, err := r.Read(buf)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			continue
		}

		for _, payload := range framer.Feed(buf[:n]) {
			f, err := frame.Decode(payload, time.Now())
			if err != nil {
				log.Warn("dropping undecodable frame", "error", err)
				continue
			}
			sink.Dispatch(f)
		}
	}
}
