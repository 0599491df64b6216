package openxr

import (
	"errors"
	"testing"
	"time"

	"github.com/pembem22/eyetrackvr-go/internal/bridge"
	"github.com/pembem22/eyetrackvr-go/internal/broadcast"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

// fakeNextLayer is a minimal NextLayer that records calls and lets tests
// script runtime responses.
type fakeNextLayer struct {
	extensions   []ExtensionProperty
	pathStrings  map[Path]string
	spaces       map[ActionSpaceCreateInfo]Space
	nextSpace    Space
	viewPose     Pose
	passthroughN int
}

func newFakeNextLayer() *fakeNextLayer {
	return &fakeNextLayer{
		pathStrings: make(map[Path]string),
		spaces:      make(map[ActionSpaceCreateInfo]Space),
		viewPose:    Pose{Orientation: IdentityQuaternion},
	}
}

func (f *fakeNextLayer) EnumerateInstanceExtensionProperties() ([]ExtensionProperty, error) {
	return f.extensions, nil
}

func (f *fakeNextLayer) GetSystemProperties(instance Instance, systemID uint64, chain SystemPropertiesChain) error {
	f.passthroughN = 0
	for _, e := range chain {
		if e != nil {
			f.passthroughN++
		}
	}
	return nil
}

func (f *fakeNextLayer) PathToString(path Path) (string, error) {
	s, ok := f.pathStrings[path]
	if !ok {
		return "", errors.New("unknown path")
	}
	return s, nil
}

func (f *fakeNextLayer) SuggestInteractionProfileBindings(instance Instance, interactionProfile Path, bindings []SuggestedBinding) error {
	return nil
}

func (f *fakeNextLayer) CreateActionSpace(session Session, info ActionSpaceCreateInfo) (Space, error) {
	f.nextSpace++
	f.spaces[info] = f.nextSpace
	return f.nextSpace, nil
}

func (f *fakeNextLayer) GetActionStatePose(session Session, action Action) (bool, error) {
	return false, nil
}

func (f *fakeNextLayer) LocateSpace(space, baseSpace Space, t time.Time) (SpaceLocation, error) {
	return SpaceLocation{}, nil
}

func (f *fakeNextLayer) LocateViewReferenceSpace(baseSpace Space, t time.Time) (Pose, error) {
	return f.viewPose, nil
}

func TestEnumerateInstanceExtensionPropertiesAddsExactlyThree(t *testing.T) {
	next := newFakeNextLayer()
	next.extensions = []ExtensionProperty{{Name: "XR_KHR_composition_layer_depth", Version: 1}, {Name: "XR_FB_foo", Version: 2}}
	l := NewLayer(next, bridge.New())

	got, err := l.EnumerateInstanceExtensionProperties()
	if err != nil {
		t.Fatalf("EnumerateInstanceExtensionProperties: %v", err)
	}
	if len(got) != len(next.extensions)+3 {
		t.Fatalf("got %d extensions, want runtime_count(%d) + 3", len(got), len(next.extensions))
	}
}

func TestGetSystemPropertiesDetachesAndReattaches(t *testing.T) {
	next := newFakeNextLayer()
	l := NewLayer(next, bridge.New())

	eyeGaze := &EyeGazeInteractionProperties{SupportsEyeGazeInteraction: false}
	other := &struct{ Marker int }{Marker: 42}
	faceTrack := &FaceTracking2Properties{SupportsFaceTracking2: false}

	chain := SystemPropertiesChain{eyeGaze, other, faceTrack}

	if err := l.GetSystemProperties(1, 1, chain); err != nil {
		t.Fatalf("GetSystemProperties: %v", err)
	}

	if !eyeGaze.SupportsEyeGazeInteraction {
		t.Error("expected SupportsEyeGazeInteraction=true post-call")
	}
	if !faceTrack.SupportsFaceTracking2 {
		t.Error("expected SupportsFaceTracking2=true post-call")
	}
	if other.Marker != 42 {
		t.Error("expected unrelated chain entry to pass through untouched")
	}
	if next.passthroughN != 1 {
		t.Fatalf("runtime saw %d non-nil chain entries, want 1 (only the unknown struct)", next.passthroughN)
	}
	if len(chain) != 3 || chain[0] != eyeGaze || chain[1] != other || chain[2] != faceTrack {
		t.Fatal("chain order was not preserved")
	}
}

func TestSuggestInteractionProfileBindingsResolvesGazeSpace(t *testing.T) {
	next := newFakeNextLayer()
	const profilePath Path = 10
	const bindingPath Path = 11
	next.pathStrings[profilePath] = eyeGazeInteractionProfile
	next.pathStrings[bindingPath] = eyeGazeBindingPath

	l := NewLayer(next, bridge.New())

	const action Action = 5
	info := ActionSpaceCreateInfo{Action: action, SubactionPath: NullPath}
	space, err := l.CreateActionSpace(1, info)
	if err != nil {
		t.Fatalf("CreateActionSpace: %v", err)
	}

	if err := l.SuggestInteractionProfileBindings(1, profilePath, []SuggestedBinding{
		{Action: action, Binding: bindingPath},
	}); err != nil {
		t.Fatalf("SuggestInteractionProfileBindings: %v", err)
	}

	l.mu.Lock()
	gotSpace, ok := l.gazeSpace, l.gazeSpaceSet
	remaining := len(l.possibleSpace)
	l.mu.Unlock()

	if !ok || gotSpace != space {
		t.Fatalf("gazeSpace = %v (set=%v), want %v", gotSpace, ok, space)
	}
	if remaining != 0 {
		t.Fatalf("possibleSpace map not cleared, has %d entries", remaining)
	}

	l.CreateSession()
	bc := broadcast.New[gaze.CombinedEyeGazeState]()
	b := bridge.New()
	b.Init(bc.NewReceiver())
	bc.Send(gaze.CombinedEyeGazeState{GazePitch: 10, GazeYaw: 20, Timestamp: time.Now()})
	l.bridge = b

	loc, err := l.LocateSpace(space, 0, time.Now())
	if err != nil {
		t.Fatalf("LocateSpace: %v", err)
	}
	if !loc.PositionTracked || !loc.OrientationTracked {
		t.Fatal("expected tracking flags set once bridge has fresh data")
	}
}

func TestGetActionStatePoseInactiveBeforeSessionCreated(t *testing.T) {
	next := newFakeNextLayer()
	l := NewLayer(next, bridge.New())
	l.eyeGazeAction = 7
	l.eyeGazeActionSet = true

	active, err := l.GetActionStatePose(1, 7)
	if err != nil {
		t.Fatalf("GetActionStatePose: %v", err)
	}
	if active {
		t.Fatal("expected is_active=false before SessionCreated")
	}
}

func TestGetActionStatePoseReflectsFreshnessCutoff(t *testing.T) {
	next := newFakeNextLayer()
	bc := broadcast.New[gaze.CombinedEyeGazeState]()
	b := bridge.New()
	b.Init(bc.NewReceiver())

	l := NewLayer(next, b)
	l.CreateInstance()
	l.CreateSession()
	l.eyeGazeAction = 7
	l.eyeGazeActionSet = true

	active, _ := l.GetActionStatePose(1, 7)
	if active {
		t.Fatal("expected is_active=false with no data ever received")
	}

	bc.Send(gaze.CombinedEyeGazeState{Timestamp: time.Now()})
	active, _ = l.GetActionStatePose(1, 7)
	if !active {
		t.Fatal("expected is_active=true with fresh data")
	}

	bc.Send(gaze.CombinedEyeGazeState{Timestamp: time.Now().Add(-100 * time.Millisecond)})
	active, _ = l.GetActionStatePose(1, 7)
	if active {
		t.Fatal("expected is_active=false with stale (>50ms) data")
	}
}

func TestFaceExpression2InvalidWithoutBridgeData(t *testing.T) {
	l := NewLayer(newFakeNextLayer(), bridge.New())
	expr, err := l.GetFaceExpression2()
	if err != nil {
		t.Fatalf("GetFaceExpression2: %v", err)
	}
	if expr.IsValid {
		t.Fatal("expected IsValid=false with no bridge data")
	}
}

func TestFaceExpression2PopulatesEyeSlots(t *testing.T) {
	bc := broadcast.New[gaze.CombinedEyeGazeState]()
	b := bridge.New()
	b.Init(bc.NewReceiver())
	bc.Send(gaze.CombinedEyeGazeState{Pitch: 0, LYaw: 30, RYaw: -30, LEyelid: 1.0, REyelid: 0.0, Timestamp: time.Now()})

	l := NewLayer(newFakeNextLayer(), b)
	expr, err := l.GetFaceExpression2()
	if err != nil {
		t.Fatalf("GetFaceExpression2: %v", err)
	}
	if !expr.IsValid {
		t.Fatal("expected IsValid=true with bridge data present")
	}
	for _, c := range expr.Confidences {
		if c != 1.0 {
			t.Fatalf("confidence = %v, want 1.0", c)
		}
	}
	if expr.Weights[ExprEyesLookRightL] <= 0 {
		t.Fatalf("expected positive left-eye look-right weight for l_yaw=30, got %v", expr.Weights[ExprEyesLookRightL])
	}
	if expr.Weights[ExprEyesClosedR] <= 0 {
		t.Fatalf("expected positive right-eye closed weight for r_eyelid=0, got %v", expr.Weights[ExprEyesClosedR])
	}
}
