// Package inference crops, flips, and resizes an eye image, runs the
// per-eye gaze model on it, and emits a gaze.EyesGazeState preserving the
// input frame's tag (Mono in, Mono out; Both in, Both out sharing one
// timestamp), per spec.md §4.4.
package inference

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"github.com/nfnt/resize"

	"github.com/pembem22/eyetrackvr-go/internal/broadcast"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

// cropRect is the fixed 180x180 crop taken from the decoded 240x240 eye
// image before resizing, per spec.md §4.4.
var cropRect = image.Rect(30, 30, 30+180, 30+180)

// Worker runs the eye-gaze model over every eye present in each incoming
// EyesFrame (left, right, or both), using one Session for both eyes; Run
// blocks until ctx is cancelled or the input broadcaster closes.
type Worker struct {
	session Session
	log     *slog.Logger
}

// NewWorker loads the ONNX model at modelPath configured for
// intraOpThreads intra-op threads. Model-load failure is fatal at process
// start, per spec.md §4.4 and §7.
func NewWorker(modelPath string, intraOpThreads int) (*Worker, error) {
	session, err := loadModel(modelPath, intraOpThreads)
	if err != nil {
		return nil, fmt.Errorf("load eye model: %w", err)
	}
	return &Worker{session: session, log: slog.With("component", "inference")}, nil
}

// newWorkerWithSession is used by tests to inject a fake Session.
func newWorkerWithSession(s Session) *Worker {
	return &Worker{session: s, log: slog.With("component", "inference")}
}

// Close releases the underlying model session.
func (w *Worker) Close() error { return w.session.Close() }

// Run reads EyesFrames from in and emits EyesGazeState to out until ctx is
// cancelled. Missed frames (the receiver falling behind) are acceptable
// and not logged as errors; a decode/shape invariant violation panics,
// per spec.md §7.
func (w *Worker) Run(ctx context.Context, in *broadcast.Receiver[gaze.EyesFrame], out *broadcast.Broadcaster[gaze.EyesGazeState]) error {
	in.Activate()
	for {
		ef, status := in.RecvAsync(ctx)
		switch status {
		case broadcast.Closed:
			return nil
		case broadcast.Empty:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		state, err := w.Infer(ef)
		if err != nil {
			w.log.Warn("inference error, dropping frame", "error", err)
			continue
		}
		out.Send(state)
	}
}

// Infer runs the model over every eye present in ef and returns a tagged
// EyesGazeState matching ef's tag.
func (w *Worker) Infer(ef gaze.EyesFrame) (gaze.EyesGazeState, error) {
	switch ef.Tag {
	case gaze.TagLeft:
		view, _ := ef.LeftView()
		state, err := w.inferOne(view, false)
		if err != nil {
			return gaze.EyesGazeState{}, err
		}
		return gaze.EyesGazeState{Eye: gaze.Left, State: state, Timestamp: ef.Frame.CreatedAt}, nil

	case gaze.TagRight:
		view, _ := ef.RightView()
		state, err := w.inferOne(view, true)
		if err != nil {
			return gaze.EyesGazeState{}, err
		}
		return gaze.EyesGazeState{Eye: gaze.Right, State: state, Timestamp: ef.Frame.CreatedAt}, nil

	case gaze.TagBoth:
		lView, _ := ef.LeftView()
		rView, _ := ef.RightView()

		lState, err := w.inferOne(lView, false)
		if err != nil {
			return gaze.EyesGazeState{}, fmt.Errorf("left eye: %w", err)
		}
		rState, err := w.inferOne(rView, true)
		if err != nil {
			return gaze.EyesGazeState{}, fmt.Errorf("right eye: %w", err)
		}
		return gaze.EyesGazeState{
			Both:      true,
			LState:    lState,
			RState:    rState,
			Timestamp: ef.Frame.CreatedAt,
		}, nil
	}

	return gaze.EyesGazeState{}, fmt.Errorf("inference: unknown frame tag %v", ef.Tag)
}

// inferOne crops, flips (if isRight), resizes, and tensorizes img, runs the
// model, and negates yaw for the right eye so both eyes share one sign
// convention, per spec.md §4.4.
func (w *Worker) inferOne(img image.Image, isRight bool) (gaze.EyeGazeState, error) {
	cropped := cropToRGBA(img, cropRect)

	prepared := image.Image(cropped)
	if isRight {
		prepared = flipHorizontal(cropped)
	}

	resized := resize.Resize(tensorSize, tensorSize, prepared, resize.Lanczos3)

	tensor := redChannelTensor(resized)

	pitch, yaw, eyelid, err := w.session.Run(tensor)
	if err != nil {
		return gaze.EyeGazeState{}, err
	}
	if isRight {
		yaw = -yaw
	}

	return gaze.EyeGazeState{Pitch: pitch, Yaw: yaw, Eyelid: eyelid}, nil
}

// cropToRGBA extracts rect from img (which may be an arbitrary
// image.Image, such as an *image.RGBA sub-image) into a fresh *image.RGBA
// anchored at (0,0), so downstream flip/resize steps don't need to track
// the source's offset.
func cropToRGBA(img image.Image, rect image.Rectangle) *image.RGBA {
	abs := rect.Add(img.Bounds().Min)
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, abs.Min, draw.Src)
	return out
}

// flipHorizontal mirrors img left-to-right so the model always sees a
// left-eye layout, per spec.md §4.4.
func flipHorizontal(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			mirroredX := b.Max.X - 1 - (x - b.Min.X)
			out.Set(mirroredX, y, img.At(x, y))
		}
	}
	return out
}

// redChannelTensor builds a 1x64x64x1 row-major float32 tensor from the
// red channel of img (a grayscale approximation, per spec.md §4.4),
// normalized to [0, 1].
func redChannelTensor(img image.Image) []float32 {
	b := img.Bounds()
	tensor := make([]float32, tensorSize*tensorSize)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			tensor[i] = float32(r>>8) / 255.0
			i++
		}
	}
	return tensor
}
