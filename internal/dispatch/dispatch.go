// Package dispatch adapts a decoded frame.Frame from a camera source into
// the channel shape its consumer expects, without ever copying pixel data:
// cropping happens once, downstream, in whichever stage actually needs
// pixels.
package dispatch

import (
	"github.com/pembem22/eyetrackvr-go/internal/broadcast"
	"github.com/pembem22/eyetrackvr-go/internal/frame"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

// Dispatcher publishes a decoded frame into zero or more sinks.
type Dispatcher interface {
	Dispatch(f *frame.Frame)
}

// MonoFace publishes the frame unchanged, for consumers that want the
// whole image (the camera mirror, a face-tracking sink, etc.).
type MonoFace struct {
	Sender *broadcast.Broadcaster[*frame.Frame]
}

func (d MonoFace) Dispatch(f *frame.Frame) { d.Sender.Send(f) }

// MonoEye wraps the frame as a single-eye EyesFrame.
type MonoEye struct {
	Side   gaze.FrameTag // TagLeft or TagRight
	Sender *broadcast.Broadcaster[gaze.EyesFrame]
}

func (d MonoEye) Dispatch(f *frame.Frame) {
	d.Sender.Send(gaze.EyesFrame{Tag: d.Side, Frame: f})
}

// StereoEyes wraps the frame as a side-by-side Both EyesFrame; the halves
// are split lazily by the inference stage.
type StereoEyes struct {
	Sender *broadcast.Broadcaster[gaze.EyesFrame]
}

func (d StereoEyes) Dispatch(f *frame.Frame) {
	d.Sender.Send(gaze.EyesFrame{Tag: gaze.TagBoth, Frame: f})
}
