package oscsender

import (
	"testing"

	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

func TestVRChatNativeEyesClosedAmountNeutral(t *testing.T) {
	c := gaze.CombinedEyeGazeState{Pitch: 0, LYaw: 0, RYaw: 0, LEyelid: 0.75, REyelid: 0.75}
	got := clamp(1-(c.LEyelid+c.REyelid)/(eyelidOpenScale*2), 0, 1)
	if got != 0 {
		t.Fatalf("EyesClosedAmount = %v, want 0", got)
	}
}

func TestVRChatNativeEyesClosedAmountFullyClosed(t *testing.T) {
	c := gaze.CombinedEyeGazeState{LEyelid: 0, REyelid: 0}
	got := clamp(1-(c.LEyelid+c.REyelid)/(eyelidOpenScale*2), 0, 1)
	if got != 1 {
		t.Fatalf("EyesClosedAmount = %v, want 1", got)
	}
}

func TestClampBounds(t *testing.T) {
	if clamp(-5, 0, 1) != 0 {
		t.Fatal("clamp did not floor at 0")
	}
	if clamp(5, 0, 1) != 1 {
		t.Fatal("clamp did not ceil at 1")
	}
}

func TestSinDegMatchesKnownAngles(t *testing.T) {
	if got := sinDeg(90); got < 0.999 || got > 1.001 {
		t.Fatalf("sinDeg(90) = %v, want ~1", got)
	}
	if got := sinDeg(0); got < -1e-6 || got > 1e-6 {
		t.Fatalf("sinDeg(0) = %v, want ~0", got)
	}
}

func TestNewRejectsMalformedEndpoint(t *testing.T) {
	if _, err := New("not-a-valid-endpoint"); err == nil {
		t.Fatal("expected error for malformed endpoint")
	}
}

func TestNewAcceptsHostPort(t *testing.T) {
	s, err := New("localhost:9000")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.client == nil {
		t.Fatal("expected a non-nil osc client")
	}
}
