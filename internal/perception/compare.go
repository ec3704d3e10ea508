package perception

import "math"

// LandmarkDrift is the mean per-landmark displacement between two snapshots,
// normalized by the diagonal of the input face box. Only the common landmark
// prefix is compared. With no landmarks to compare, or a degenerate box, the
// drift is 1.0.
func LandmarkDrift(in, out Output) float64 {
	n := len(in.Face.Landmarks)
	if len(out.Face.Landmarks) < n {
		n = len(out.Face.Landmarks)
	}
	diag := math.Hypot(in.Face.Box.Width, in.Face.Box.Height)
	if n == 0 || diag <= 0 {
		return 1.0
	}

	var sum float64
	for i := 0; i < n; i++ {
		a, b := in.Face.Landmarks[i], out.Face.Landmarks[i]
		sum += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return (sum / float64(n)) / diag
}

// PoseDelta is max(|Δyaw|, |Δpitch|, |Δroll|) in degrees.
func PoseDelta(in, out Output) float64 {
	a, b := in.Face.HeadPose, out.Face.HeadPose
	return math.Max(math.Abs(b.Yaw-a.Yaw), math.Max(math.Abs(b.Pitch-a.Pitch), math.Abs(b.Roll-a.Roll)))
}

// ShoulderSlopeDelta is the change in shoulder-line angle in degrees. Missing
// shoulder keypoints on either side yield 0.
func ShoulderSlopeDelta(in, out Output) float64 {
	a, okA := shoulderAngle(in.Body)
	b, okB := shoulderAngle(out.Body)
	if !okA || !okB {
		return 0
	}
	d := math.Abs(b - a)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func shoulderAngle(b BodyEstimate) (float64, bool) {
	l, okL := b.Keypoint(KeypointLeftShoulder)
	r, okR := b.Keypoint(KeypointRightShoulder)
	if !okL || !okR {
		return 0, false
	}
	return math.Atan2(r.Y-l.Y, r.X-l.X) * 180 / math.Pi, true
}

// LightAngleDelta is the angle between the two estimated light directions in
// degrees. A zero vector on either side yields 0.
func LightAngleDelta(in, out Output) float64 {
	a, b := in.Photometric.LightDirection, out.Photometric.LightDirection
	if a == (Vec3{}) || b == (Vec3{}) {
		return 0
	}
	cx := a.Y*b.Z - a.Z*b.Y
	cy := a.Z*b.X - a.X*b.Z
	cz := a.X*b.Y - a.Y*b.X
	cross := math.Sqrt(cx*cx + cy*cy + cz*cz)
	dot := a.X*b.X + a.Y*b.Y + a.Z*b.Z
	return math.Atan2(cross, dot) * 180 / math.Pi
}

// ColorTemperatureDelta is the relative change in correlated color temperature.
// An unknown input temperature yields 0.
func ColorTemperatureDelta(in, out Output) float64 {
	base := in.Photometric.ColorTemperatureK
	if base <= 0 {
		return 0
	}
	return math.Abs(out.Photometric.ColorTemperatureK-base) / base
}
