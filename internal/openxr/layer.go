// Package openxr implements the pure-Go logic of the OpenXR API layer:
// extension virtualization, binding discovery, the session state
// machine, and pose/expression queries sourced from the output bridge,
// per spec.md §4.7. The C-ABI export surface the loader actually dlopens
// lives in cmd/openxr-layer and is a thin shim over Layer.
package openxr

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pembem22/eyetrackvr-go/internal/bridge"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

const eyeGazeInteractionProfile = "/interaction_profiles/ext/eye_gaze_interaction"
const eyeGazeBindingPath = "/user/eyes_ext/input/gaze_ext/pose"

// spaceKey identifies a possible action space by (action, subaction
// path), mirroring how CreateActionSpace is keyed before the layer knows
// which action is the gaze action.
type spaceKey struct {
	action Action
	sub    Path
}

// Layer holds all per-process OpenXR layer state. The zero value is not
// usable; construct with NewLayer. Safe for concurrent use: the loader
// may call different entry points from different threads.
type Layer struct {
	next   NextLayer
	bridge *bridge.Bridge
	log    *slog.Logger

	mu            sync.Mutex
	state         SessionState
	possibleSpace map[spaceKey]Space

	eyeGazeActionSet bool
	eyeGazeAction    Action
	gazeSpaceSet     bool
	gazeSpace        Space
}

// NewLayer returns a Layer delegating pass-through calls to next. If b is
// nil, bridge.Global() is consulted on every query instead, so the layer
// keeps working if the pipeline's bridge is registered after the loader
// has already started calling in.
func NewLayer(next NextLayer, b *bridge.Bridge) *Layer {
	return &Layer{
		next:          next,
		bridge:        b,
		log:           slog.With("component", "openxr-layer"),
		possibleSpace: make(map[spaceKey]Space),
	}
}

func (l *Layer) activeBridge() *bridge.Bridge {
	if l.bridge != nil {
		return l.bridge
	}
	return bridge.Global()
}

// CreateInstance transitions Uninitialized -> InstanceCreated.
func (l *Layer) CreateInstance() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = InstanceCreated
}

// CreateSession transitions InstanceCreated -> SessionCreated.
func (l *Layer) CreateSession() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = SessionCreated
}

// DestroySession transitions SessionCreated -> SessionDestroyed.
func (l *Layer) DestroySession() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = SessionDestroyed
}

// DestroyInstance transitions SessionDestroyed -> InstanceDestroyed.
func (l *Layer) DestroyInstance() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = InstanceDestroyed
}

// State reports the current session state.
func (l *Layer) State() SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// EnumerateInstanceExtensionProperties appends the layer's virtualized
// extensions to the runtime's list, satisfying testable property 11
// (exactly runtime_count + 3 entries).
func (l *Layer) EnumerateInstanceExtensionProperties() ([]ExtensionProperty, error) {
	runtimeExts, err := l.next.EnumerateInstanceExtensionProperties()
	if err != nil {
		return nil, err
	}
	out := make([]ExtensionProperty, 0, len(runtimeExts)+len(virtualizedExtensions))
	out = append(out, runtimeExts...)
	out = append(out, virtualizedExtensions...)
	return out, nil
}

// GetSystemProperties detaches the three virtualized SystemProperties
// chain entries (the runtime does not understand them), calls the
// runtime with whatever remains, then re-attaches the detached entries —
// in their original position — with "supported" set true.
func (l *Layer) GetSystemProperties(instance Instance, systemID uint64, chain SystemPropertiesChain) error {
	passthrough := make(SystemPropertiesChain, len(chain))
	copy(passthrough, chain)

	for i, entry := range chain {
		switch entry.(type) {
		case *EyeGazeInteractionProperties, *EyeTrackingSocialProperties, *FaceTracking2Properties:
			passthrough[i] = nil
		}
	}

	if err := l.next.GetSystemProperties(instance, systemID, passthrough); err != nil {
		return err
	}

	for _, entry := range chain {
		switch v := entry.(type) {
		case *EyeGazeInteractionProperties:
			v.SupportsEyeGazeInteraction = true
		case *EyeTrackingSocialProperties:
			v.SupportsEyeTrackingSocial = true
		case *FaceTracking2Properties:
			v.SupportsFaceTracking2 = true
		}
	}
	return nil
}

// CreateActionSpace records every (action, subaction path) -> space pair
// before the layer knows which action is the gaze action, per spec.md
// §4.7's binding-discovery design.
func (l *Layer) CreateActionSpace(session Session, info ActionSpaceCreateInfo) (Space, error) {
	space, err := l.next.CreateActionSpace(session, info)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	l.possibleSpace[spaceKey{action: info.Action, sub: info.SubactionPath}] = space
	l.mu.Unlock()

	return space, nil
}

// SuggestInteractionProfileBindings passes through bindings for any
// profile other than the eye-gaze one. For the eye-gaze profile, it scans
// for the gaze binding path, resolves the action behind it, and resolves
// that action's previously-created NullPath space as the gaze space,
// clearing the discovery map afterwards.
func (l *Layer) SuggestInteractionProfileBindings(instance Instance, interactionProfile Path, bindings []SuggestedBinding) error {
	profileStr, err := l.next.PathToString(interactionProfile)
	if err != nil {
		return err
	}
	if profileStr != eyeGazeInteractionProfile {
		return l.next.SuggestInteractionProfileBindings(instance, interactionProfile, bindings)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range bindings {
		bindingStr, err := l.next.PathToString(b.Binding)
		if err != nil {
			return err
		}
		if bindingStr != eyeGazeBindingPath {
			continue
		}

		l.eyeGazeAction = b.Action
		l.eyeGazeActionSet = true

		if space, ok := l.possibleSpace[spaceKey{action: b.Action, sub: NullPath}]; ok {
			l.gazeSpace = space
			l.gazeSpaceSet = true
			l.log.Debug("resolved gaze space", "action", b.Action, "space", space)
		}
		l.possibleSpace = make(map[spaceKey]Space)
	}

	return nil
}

// GetActionStatePose passes through queries for any action other than
// the resolved gaze action. For the gaze action, is_active reflects
// whether the bridge has data fresher than the 50ms freshness cutoff —
// and is unconditionally false before the session has reached
// SessionCreated, per spec.md §4.7.
func (l *Layer) GetActionStatePose(session Session, action Action) (isActive bool, err error) {
	l.mu.Lock()
	isGaze := l.eyeGazeActionSet && action == l.eyeGazeAction
	state := l.state
	l.mu.Unlock()

	if !isGaze {
		return l.next.GetActionStatePose(session, action)
	}
	if state != SessionCreated {
		return false, nil
	}

	b := l.activeBridge()
	if b == nil {
		return false, nil
	}
	snap, ok := b.Snapshot()
	if !ok {
		return false, nil
	}
	return time.Since(snap.Timestamp) <= gaze.FreshnessCutoff, nil
}

// LocateSpace passes through queries for any space other than the
// resolved gaze space. For the gaze space, it first locates the VIEW
// pose in base_space via the runtime, then composes it with a quaternion
// built from the latest combined (gaze_pitch, gaze_yaw). If the bridge
// has no data, tracking flags are cleared but SUCCESS (nil error) is
// still returned, per spec.md §4.7.
func (l *Layer) LocateSpace(space, baseSpace Space, t time.Time) (SpaceLocation, error) {
	l.mu.Lock()
	isGaze := l.gazeSpaceSet && space == l.gazeSpace
	l.mu.Unlock()

	if !isGaze {
		return l.next.LocateSpace(space, baseSpace, t)
	}

	viewPose, err := l.next.LocateViewReferenceSpace(baseSpace, t)
	if err != nil {
		return SpaceLocation{}, err
	}

	b := l.activeBridge()
	if b == nil {
		return SpaceLocation{Pose: Pose{Orientation: IdentityQuaternion}}, nil
	}
	snap, ok := b.Snapshot()
	if !ok {
		return SpaceLocation{Pose: Pose{Orientation: IdentityQuaternion}}, nil
	}

	gazeQuat := quaternionFromPitchYaw(snap.GazePitch, snap.GazeYaw)
	composed := quatMul(viewPose.Orientation, gazeQuat)

	return SpaceLocation{
		Pose:               Pose{Position: Vector3{}, Orientation: composed},
		PositionTracked:    true,
		OrientationTracked: true,
	}, nil
}

// GetEyeGazesSocial implements XR_FB_eye_tracking_social: per-eye poses
// built from (pitch, {l_yaw, r_yaw}) with a fixed half-IPD eye origin
// offset, per spec.md §4.7.
func (l *Layer) GetEyeGazesSocial() (left, right EyePose, err error) {
	b := l.activeBridge()
	if b == nil {
		return EyePose{}, EyePose{}, nil
	}
	snap, ok := b.Snapshot()
	if !ok {
		return EyePose{}, EyePose{}, nil
	}

	left = EyePose{
		Pose: Pose{
			Position:    Vector3{X: -eyeOriginOffset},
			Orientation: quaternionFromPitchYaw(snap.Pitch, snap.LYaw),
		},
		IsValid:    true,
		Confidence: 1.0,
	}
	right = EyePose{
		Pose: Pose{
			Position:    Vector3{X: eyeOriginOffset},
			Orientation: quaternionFromPitchYaw(snap.Pitch, snap.RYaw),
		},
		IsValid:    true,
		Confidence: 1.0,
	}
	return left, right, nil
}

// GetFaceExpression2 implements XR_FB_face_tracking2 for the eye-related
// blendshape slots that FaceExpression2 holds; it fills every one of
// them. Confidences are 1.0 whenever the bridge has data.
func (l *Layer) GetFaceExpression2() (FaceExpression2, error) {
	var out FaceExpression2

	b := l.activeBridge()
	if b == nil {
		return out, nil
	}
	snap, ok := b.Snapshot()
	if !ok {
		return out, nil
	}

	out.IsValid = true
	for i := range out.Confidences {
		out.Confidences[i] = 1.0
	}

	out.Weights[ExprUpperLidRaiserL] = remapClamp(snap.LEyelid, 0.75, 1.0, 0, 1)
	out.Weights[ExprUpperLidRaiserR] = remapClamp(snap.REyelid, 0.75, 1.0, 0, 1)
	out.Weights[ExprEyesClosedL] = remapClamp(snap.LEyelid, 0.75, 0.0, 0, 1)
	out.Weights[ExprEyesClosedR] = remapClamp(snap.REyelid, 0.75, 0.0, 0, 1)

	out.Weights[ExprEyesLookLeftL], out.Weights[ExprEyesLookRightL] = lookLeftRight(snap.LYaw)
	out.Weights[ExprEyesLookLeftR], out.Weights[ExprEyesLookRightR] = lookLeftRight(snap.RYaw)
	out.Weights[ExprEyesLookUpL], out.Weights[ExprEyesLookDownL] = lookUpDown(snap.Pitch)
	out.Weights[ExprEyesLookUpR], out.Weights[ExprEyesLookDownR] = lookUpDown(snap.Pitch)

	return out, nil
}

// remapClamp linearly remaps v from [fromLo, fromHi] to [toLo, toHi],
// clamping the input to the source range first. fromLo may be greater
// than fromHi (a reversed remap), matching the eyelid expressions'
// [0.75..0.0] -> [0..1] mapping.
func remapClamp(v, fromLo, fromHi, toLo, toHi float32) float32 {
	var t float32
	if fromHi != fromLo {
		t = (v - fromLo) / (fromHi - fromLo)
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return toLo + t*(toHi-toLo)
}

// lookLeftRight maps a +-45deg yaw to the EYES_LOOK_LEFT/RIGHT pair: a
// positive yaw (looking right, per the fusion stage's sign convention)
// drives the RIGHT slot, a negative yaw drives the LEFT slot.
func lookLeftRight(yawDeg float32) (left, right float32) {
	norm := remapClamp(yawDeg, 0, 45, 0, 1)
	if yawDeg >= 0 {
		return 0, norm
	}
	return remapClamp(yawDeg, 0, -45, 0, 1), 0
}

// lookUpDown maps a +-45deg pitch to the EYES_LOOK_UP/DOWN pair: a
// positive pitch (looking up) drives the UP slot.
func lookUpDown(pitchDeg float32) (up, down float32) {
	if pitchDeg >= 0 {
		return remapClamp(pitchDeg, 0, 45, 0, 1), 0
	}
	return 0, remapClamp(pitchDeg, 0, -45, 0, 1)
}

// ErrInvariantViolation is used for build-time-bug conditions the layer
// should never hit in a correctly wired process (e.g. a malformed
// binding chain), per spec.md §7's "invariant violation" error kind.
var ErrInvariantViolation = errors.New("openxr: invariant violation")

func invariantViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}
