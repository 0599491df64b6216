// Package fusion merges asynchronous per-eye gaze readings into a single
// CombinedEyeGazeState, applying eye-to-eye timeout fallback and a
// yaw-convergence floor, per spec.md §4.5.
package fusion

import (
	"context"
	"log/slog"
	"time"

	"github.com/pembem22/eyetrackvr-go/internal/broadcast"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

// convergenceFloor is the minimum l_yaw-r_yaw spread after fusion; Steam
// Link refuses gaze input from perfectly parallel or crossed eyes.
const convergenceFloor = 0.05

// timeoutCheckInterval drives the periodic re-evaluation of the
// eye-to-eye timeout fallback while one side has gone silent.
const timeoutCheckInterval = 10 * time.Millisecond

// Engine holds the last-known state of each eye and derives the combined
// gaze state on every update.
type Engine struct {
	log *slog.Logger

	lState gaze.EyeGazeState
	lTime  time.Time
	rState gaze.EyeGazeState
	rTime  time.Time
}

// NewEngine returns an Engine with both eyes defaulted and timestamp-zero,
// per spec.md §4.5.
func NewEngine() *Engine {
	return &Engine{
		log:    slog.With("component", "fusion"),
		lState: gaze.DefaultEyeGazeState,
		rState: gaze.DefaultEyeGazeState,
	}
}

// Run consumes per-eye EyesGazeState updates from in and publishes a fused
// CombinedEyeGazeState to out after each update, and republishes the
// current combined state every timeoutCheckInterval while no update
// arrives. Whether the 50ms eye-to-eye fallback applies is decided by
// combine from the two sides' last timestamps, so a republish without a
// new update yields the same state. It is the only place two gaze streams
// are combined, and runs on a single goroutine, so no locking is needed.
func (e *Engine) Run(ctx context.Context, in *broadcast.Receiver[gaze.EyesGazeState], out *broadcast.Broadcaster[gaze.CombinedEyeGazeState]) error {
	in.Activate()

	for {
		waitCtx, cancel := context.WithTimeout(ctx, timeoutCheckInterval)
		state, status := in.RecvAsync(waitCtx)
		cancel()

		switch status {
		case broadcast.Closed:
			return nil
		case broadcast.Empty:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			out.Send(e.combine())
		default: // Value or Overflowed
			e.apply(state)
			out.Send(e.combine())
		}
	}
}

// apply folds one EyesGazeState reading into the engine's per-eye state.
func (e *Engine) apply(s gaze.EyesGazeState) {
	if s.Both {
		e.lState, e.rState = s.LState, s.RState
		e.lTime, e.rTime = s.Timestamp, s.Timestamp
		return
	}
	switch s.Eye {
	case gaze.Left:
		e.lState, e.lTime = s.State, s.Timestamp
	case gaze.Right:
		e.rState, e.rTime = s.State, s.Timestamp
	}
}

// combine derives the current CombinedEyeGazeState from the engine's
// per-eye state, per spec.md §4.5.
func (e *Engine) combine() gaze.CombinedEyeGazeState {
	if e.rTime.After(e.lTime) && e.rTime.Sub(e.lTime) > gaze.FreshnessCutoff {
		return mirrorOnto(e.rState, e.rTime)
	}
	if e.lTime.After(e.rTime) && e.lTime.Sub(e.rTime) > gaze.FreshnessCutoff {
		return mirrorOnto(e.lState, e.lTime)
	}

	pitch := (e.lState.Pitch + e.rState.Pitch) / 2
	avgYaw := (e.lState.Yaw + e.rState.Yaw) / 2

	diff := e.lState.Yaw - e.rState.Yaw
	if diff < convergenceFloor {
		diff = convergenceFloor
	}

	lYaw := avgYaw + diff/2
	rYaw := avgYaw - diff/2

	timestamp := e.lTime
	if e.rTime.After(timestamp) {
		timestamp = e.rTime
	}

	return gaze.CombinedEyeGazeState{
		Pitch:     pitch,
		LYaw:      lYaw,
		RYaw:      rYaw,
		LEyelid:   e.lState.Eyelid,
		REyelid:   e.rState.Eyelid,
		GazePitch: pitch,
		GazeYaw:   avgYaw,
		Timestamp: timestamp,
	}
}

// mirrorOnto builds the eye-to-eye timeout fallback: the fresher eye's
// state is copied onto both sides.
func mirrorOnto(s gaze.EyeGazeState, t time.Time) gaze.CombinedEyeGazeState {
	return gaze.CombinedEyeGazeState{
		Pitch:     s.Pitch,
		LYaw:      s.Yaw,
		RYaw:      s.Yaw,
		LEyelid:   s.Eyelid,
		REyelid:   s.Eyelid,
		GazePitch: s.Pitch,
		GazeYaw:   s.Yaw,
		Timestamp: t,
	}
}
