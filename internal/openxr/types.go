package openxr

import "time"

// Opaque OpenXR handles, modeled as the ABI's underlying uint64 atoms.
type (
	Instance uint64
	Session  uint64
	Action   uint64
	Path     uint64
	Space    uint64
)

// NullPath is XR_NULL_PATH: the subaction path used for an action space
// created without a subaction qualifier.
const NullPath Path = 0

// SessionState is the layer's own state machine, independent of (and
// narrower than) the runtime's XrSessionState.
type SessionState int

const (
	Uninitialized SessionState = iota
	InstanceCreated
	SessionCreated
	SessionDestroyed
	InstanceDestroyed
)

// ExtensionProperty is one entry of an ExtensionProperties enumeration.
type ExtensionProperty struct {
	Name    string
	Version uint32
}

// virtualizedExtensions are advertised by the layer even when the
// underlying runtime does not support them, per spec.md §4.7.
var virtualizedExtensions = []ExtensionProperty{
	{Name: "XR_EXT_eye_gaze_interaction", Version: 1},
	{Name: "XR_FB_eye_tracking_social", Version: 2},
	{Name: "XR_FB_face_tracking2", Version: 1},
}

// SuggestedBinding is one (action, binding path) pair from an
// XrInteractionProfileSuggestedBinding.
type SuggestedBinding struct {
	Action  Action
	Binding Path
}

// ActionSpaceCreateInfo mirrors the fields of CreateActionSpace the layer
// needs to remember.
type ActionSpaceCreateInfo struct {
	Action        Action
	SubactionPath Path
}

// SpaceLocation is the result of LocateSpace: a pose plus tracking
// validity flags.
type SpaceLocation struct {
	Pose               Pose
	PositionTracked    bool
	OrientationTracked bool
}

// EyeGazeInteractionProperties is SystemEyeGazeInteractionPropertiesEXT.
type EyeGazeInteractionProperties struct {
	SupportsEyeGazeInteraction bool
}

// EyeTrackingSocialProperties is SystemEyeTrackingPropertiesFB.
type EyeTrackingSocialProperties struct {
	SupportsEyeTrackingSocial bool
}

// FaceTracking2Properties is SystemFaceTrackingProperties2FB.
type FaceTracking2Properties struct {
	SupportsFaceTracking2 bool
}

// SystemPropertiesChain is an ordered XrSystemProperties `next` chain.
// Entries the layer understands (*EyeGazeInteractionProperties,
// *EyeTrackingSocialProperties, *FaceTracking2Properties) are detached
// before the call reaches the runtime and re-attached, in their original
// position, with their "supported" field set true.
type SystemPropertiesChain []any

// EyePose is one eye's gaze pose for the FB social eye-tracking query.
type EyePose struct {
	Pose       Pose
	IsValid    bool
	Confidence float32
}

// eyeOriginOffset is the fixed half-IPD eye origin offset FB social eye
// tracking reports; Steam Link refuses a zero IPD, per spec.md §4.7/§9.
const eyeOriginOffset = 0.0325

// FaceExpression2 is the fixed-length blendshape weight/confidence vector
// for XR_FB_face_tracking2. Weights holds only the eye-related slots,
// indexed by the Expr* constants below rather than by FaceExpression2FB
// enum values; the other FaceExpression2FB members have no slot here.
type FaceExpression2 struct {
	Weights     [faceExpressionCount]float32
	Confidences [faceConfidenceCount]float32
	IsValid     bool
}

// Face expression slot indices the layer populates. The full
// FaceExpression2FB enum has many more members; only these are
// meaningful to an eye tracker.
const (
	ExprUpperLidRaiserL = iota
	ExprUpperLidRaiserR
	ExprEyesClosedL
	ExprEyesClosedR
	ExprEyesLookLeftL
	ExprEyesLookLeftR
	ExprEyesLookRightL
	ExprEyesLookRightR
	ExprEyesLookUpL
	ExprEyesLookUpR
	ExprEyesLookDownL
	ExprEyesLookDownR

	faceExpressionCount
)

const faceConfidenceCount = 2 // FaceConfidence2FB::COUNT: one per face region (upper/lower)

// NextLayer is the subset of the real OpenXR function table the layer
// calls through to. Production code backs this with the trampolines the
// loader negotiation handed the layer; tests inject a fake.
type NextLayer interface {
	EnumerateInstanceExtensionProperties() ([]ExtensionProperty, error)
	GetSystemProperties(instance Instance, systemID uint64, chain SystemPropertiesChain) error
	PathToString(path Path) (string, error)
	SuggestInteractionProfileBindings(instance Instance, interactionProfile Path, bindings []SuggestedBinding) error
	CreateActionSpace(session Session, info ActionSpaceCreateInfo) (Space, error)
	GetActionStatePose(session Session, action Action) (isActive bool, err error)
	LocateSpace(space, baseSpace Space, t time.Time) (SpaceLocation, error)
	LocateViewReferenceSpace(baseSpace Space, t time.Time) (Pose, error)
}
