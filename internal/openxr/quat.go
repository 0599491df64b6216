package openxr

import "math"

// Vector3 is a 3D position or direction.
type Vector3 struct{ X, Y, Z float32 }

// Quaternion is a unit orientation quaternion, scalar-last (x, y, z, w) to
// match the OpenXR ABI's XrQuaternionf layout.
type Quaternion struct{ X, Y, Z, W float32 }

// IdentityQuaternion is the no-rotation orientation.
var IdentityQuaternion = Quaternion{X: 0, Y: 0, Z: 0, W: 1}

// Pose is a position/orientation pair in some reference space.
type Pose struct {
	Position    Vector3
	Orientation Quaternion
}

// quaternionFromPitchYaw builds a quaternion from a pitch (rotation
// around X) followed by a yaw (rotation around Y), both in degrees, with
// no roll — the same extrinsic X-then-Y composition the gaze pipeline
// uses throughout.
func quaternionFromPitchYaw(pitchDeg, yawDeg float32) Quaternion {
	px := qFromAxisAngle(Vector3{X: 1}, pitchDeg)
	qy := qFromAxisAngle(Vector3{Y: 1}, yawDeg)
	return quatMul(qy, px)
}

func qFromAxisAngle(axis Vector3, angleDeg float32) Quaternion {
	half := float64(angleDeg) * math.Pi / 180 / 2
	s := float32(math.Sin(half))
	return Quaternion{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: float32(math.Cos(half))}
}

// quatMul composes a then b (b applied first, a applied second, i.e. the
// result rotates by b then a — Hamilton product a*b).
func quatMul(a, b Quaternion) Quaternion {
	return Quaternion{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
	}
}
