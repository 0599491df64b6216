//go:build linux

package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/pembem22/eyetrackvr-go/internal/frame"
)

// preferredUVCFormat is the desktop UVC capture mode from spec.md §4.2:
// MJPEG 320x240 at 120fps, falling back to whatever the device negotiates
// if that exact mode isn't available.
var preferredUVCFormat = v4l2.PixFormat{
	Width:       320,
	Height:      240,
	PixelFormat: v4l2.PixelFmtMJPEG,
	Field:       v4l2.FieldNone,
}

const preferredUVCFPS = 120

// UVCSource captures MJPEG frames from a local UVC camera index.
type UVCSource struct {
	Index int
	log   *slog.Logger
}

// NewUVCSource returns a source bound to camera index idx (e.g. 0 for
// /dev/video0).
func NewUVCSource(idx int) *UVCSource {
	return &UVCSource{Index: idx, log: slog.With("component", "uvc-source", "index", idx)}
}

// Run loops forever: open the device, stream decoded JPEG frames to sink,
// and on any error log, sleep, and retry.
func (s *UVCSource) Run(ctx context.Context, sink Sink) error {
	for ctx.Err() == nil {
		if err := s.runOnce(ctx, sink); err != nil {
			s.log.Warn("UVC capture failed, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
	return ctx.Err()
}

func (s *UVCSource) runOnce(ctx context.Context, sink Sink) error {
	path := fmt.Sprintf("/dev/video%d", s.Index)

	dev, err := device.Open(path,
		device.WithPixFormat(preferredUVCFormat),
		device.WithFPS(preferredUVCFPS),
	)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer dev.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := dev.Start(runCtx); err != nil {
		return fmt.Errorf("start streaming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-dev.GetOutput():
			if !ok {
				return fmt.Errorf("device output channel closed")
			}
			f, err := frame.Decode(payload, time.Now())
			if err != nil {
				s.log.Warn("dropping undecodable frame", "error", err)
				continue
			}
			sink.Dispatch(f)
		}
	}
}
