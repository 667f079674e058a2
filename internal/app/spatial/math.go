package spatial

import (
	"math"

	"github.com/dkeye/VoicePeer/internal/domain"
)

// MaxPan bounds the stereo approximation so a source never fully leaves one ear.
const MaxPan = 0.8

// DistanceGain is 1 inside the full volume range, 0 past the fall off range
// and fades linearly in between.
func DistanceGain(distance float64, cfg domain.RangeConfig) float64 {
	full, silent := cfg.FullVolumeRange, cfg.SilentRange()
	switch {
	case distance <= full:
		return 1
	case distance >= silent || cfg.FallOffRange <= 0:
		return 0
	}
	return clamp(1-(distance-full)/cfg.FallOffRange, 0, 1)
}

// StereoPan approximates direction from the horizontal bearing of peer
// relative to the listener yaw. Rotation is (pitch, yaw, roll) in radians.
func StereoPan(self domain.Vec3, selfRot domain.Vec3, peer domain.Vec3) float64 {
	d := peer.Sub(self)
	if d.X == 0 && d.Z == 0 {
		return 0
	}
	bearing := math.Atan2(d.X, d.Z)
	rel := NormalizeAngle(bearing - selfRot.Yaw())
	return clamp(math.Sin(rel), -1, 1) * MaxPan
}

// NormalizeAngle wraps a to (-π, π].
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Forward is the listener facing direction for a (pitch, yaw, roll) rotation.
func Forward(rot domain.Vec3) domain.Vec3 {
	pitch, yaw := rot.Pitch(), rot.Yaw()
	return domain.Vec3{
		X: math.Sin(yaw) * math.Cos(pitch),
		Y: math.Sin(pitch),
		Z: -math.Cos(yaw) * math.Cos(pitch),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
