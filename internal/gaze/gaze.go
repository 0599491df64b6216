// Package gaze defines the per-eye and combined gaze state types, and the
// EyesFrame tagged union that carries one or two eye crops through the
// dispatch and inference stages.
package gaze

import (
	"image"
	"time"

	"github.com/pembem22/eyetrackvr-go/internal/frame"
)

// EyelidOpen is the neutral-open eyelid value; 0 is fully closed, 1 is
// wide open.
const EyelidOpen = 0.75

// FreshnessCutoff is the maximum age a combined gaze state may have and
// still be reported as "tracked".
const FreshnessCutoff = 50 * time.Millisecond

// EyeGazeState is a single eye's gaze: pitch/yaw in degrees, eyelid in
// [0, 1]. The zero value is not the default — use DefaultEyeGazeState.
type EyeGazeState struct {
	Pitch  float32
	Yaw    float32
	Eyelid float32
}

// DefaultEyeGazeState is the value assumed for an eye with no data yet.
var DefaultEyeGazeState = EyeGazeState{Pitch: 0, Yaw: 0, Eyelid: EyelidOpen}

// Eye identifies which eye a Mono reading belongs to.
type Eye int

const (
	Left Eye = iota
	Right
)

// EyesGazeState is the tagged union produced by the inference stage: either
// one eye's fresh reading (Mono) or both eyes from a single stereo frame
// (Both, sharing one timestamp).
type EyesGazeState struct {
	Both bool

	// Valid when !Both.
	Eye   Eye
	State EyeGazeState

	// Valid when Both.
	LState EyeGazeState
	RState EyeGazeState

	Timestamp time.Time
}

// CombinedEyeGazeState is the fused output consumed by the OSC sender and
// the OpenXR layer.
type CombinedEyeGazeState struct {
	Pitch     float32
	LYaw      float32
	RYaw      float32
	LEyelid   float32
	REyelid   float32
	GazePitch float32
	GazeYaw   float32
	Timestamp time.Time
}

// DefaultCombined is the value reported before any gaze data has arrived.
var DefaultCombined = CombinedEyeGazeState{
	Pitch:   0,
	LEyelid: EyelidOpen,
	REyelid: EyelidOpen,
}

// FrameTag says which eye(s) a Frame represents.
type FrameTag int

const (
	TagLeft FrameTag = iota
	TagRight
	TagBoth // side-by-side: left half is the left eye, right half is the right eye
)

// EyesFrame pairs a decoded Frame with a tag describing which eye(s) it
// contains. Views into the left/right halves are computed lazily via
// image.SubImage and never copy pixel data.
type EyesFrame struct {
	Tag   FrameTag
	Frame *frame.Frame
}

// LeftView returns the left-eye sub-image, or false if this frame has no
// left eye.
func (e EyesFrame) LeftView() (image.Image, bool) {
	b := e.Frame.Decoded.Bounds()
	switch e.Tag {
	case TagLeft:
		return e.Frame.Decoded.SubImage(b), true
	case TagRight:
		return nil, false
	case TagBoth:
		half := image.Rect(b.Min.X, b.Min.Y, b.Min.X+b.Dx()/2, b.Max.Y)
		return e.Frame.Decoded.SubImage(half), true
	}
	return nil, false
}

// RightView returns the right-eye sub-image, or false if this frame has no
// right eye.
func (e EyesFrame) RightView() (image.Image, bool) {
	b := e.Frame.Decoded.Bounds()
	switch e.Tag {
	case TagRight:
		return e.Frame.Decoded.SubImage(b), true
	case TagLeft:
		return nil, false
	case TagBoth:
		half := image.Rect(b.Min.X+b.Dx()/2, b.Min.Y, b.Max.X, b.Max.Y)
		return e.Frame.Decoded.SubImage(half), true
	}
	return nil, false
}
