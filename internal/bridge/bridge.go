// Package bridge holds the single process-wide, lock-protected "latest
// combined gaze state" snapshot that the OpenXR layer polls once per pose
// query, per spec.md §4.8.
package bridge

import (
	"sync"

	"github.com/pembem22/eyetrackvr-go/internal/broadcast"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

// Bridge is safe for concurrent use: the inference pipeline calls Init
// once at startup; any number of readers (in practice, one OpenXR thread)
// call Snapshot, which pulls newly arrived combined states from the
// receiver bound by Init.
type Bridge struct {
	mu       sync.Mutex
	receiver *broadcast.Receiver[gaze.CombinedEyeGazeState]
	last     gaze.CombinedEyeGazeState
	hasLast  bool
}

// New returns an uninitialized Bridge; Snapshot returns the zero state
// until Init is called.
func New() *Bridge {
	return &Bridge{}
}

var (
	globalMu sync.Mutex
	global   *Bridge
)

// SetGlobal registers b as the process-wide bridge instance, backing the
// OpenXR layer. Called once by the inference/fusion pipeline at startup.
func SetGlobal(b *Bridge) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = b
}

// Global returns the process-wide bridge instance, or nil if SetGlobal
// has not been called yet (e.g. pose queries arriving before the
// pipeline has started).
func Global() *Bridge {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Init binds the bridge to the fusion stage's broadcast output. Safe to
// call exactly once, from the inference pipeline's startup path.
func (b *Bridge) Init(receiver *broadcast.Receiver[gaze.CombinedEyeGazeState]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiver = receiver
	b.receiver.Activate()
}

// Snapshot drains any pending values (skipping overflow, since only the
// newest ever matters) and returns the newest one seen, or the last
// previously seen value if none arrived since the last call. It never
// blocks.
func (b *Bridge) Snapshot() (gaze.CombinedEyeGazeState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.receiver == nil {
		return gaze.CombinedEyeGazeState{}, false
	}

	for {
		v, status := b.receiver.TryRecv()
		switch status {
		case broadcast.Value, broadcast.Overflowed:
			b.last = v
			b.hasLast = true
			continue
		default:
			return b.last, b.hasLast
		}
	}
}
