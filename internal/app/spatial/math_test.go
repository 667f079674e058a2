package spatial

import (
	"math"
	"testing"

	"github.com/dkeye/VoicePeer/internal/domain"
	"github.com/stretchr/testify/assert"
)

var ranges = domain.RangeConfig{FullVolumeRange: 10, FallOffRange: 20}

func TestDistanceGain_Boundaries(t *testing.T) {
	assert.Equal(t, 1.0, DistanceGain(0, ranges))
	assert.Equal(t, 1.0, DistanceGain(10, ranges))
	assert.InDelta(t, 0.5, DistanceGain(20, ranges), 1e-12)
	assert.Equal(t, 0.0, DistanceGain(30, ranges))
	assert.Equal(t, 0.0, DistanceGain(1000, ranges))
}

func TestDistanceGain_StrictlyDecreasingInFallOff(t *testing.T) {
	prev := DistanceGain(10, ranges)
	for d := 10.5; d < 30; d += 0.5 {
		g := DistanceGain(d, ranges)
		assert.Less(t, g, prev, "distance %v", d)
		assert.GreaterOrEqual(t, g, 0.0)
		prev = g
	}
}

func TestDistanceGain_ZeroFallOff(t *testing.T) {
	cfg := domain.RangeConfig{FullVolumeRange: 5}
	assert.Equal(t, 1.0, DistanceGain(5, cfg))
	assert.Equal(t, 0.0, DistanceGain(5.01, cfg))
}

func TestStereoPan(t *testing.T) {
	origin := domain.Vec3{}
	tests := []struct {
		name string
		yaw  float64
		peer domain.Vec3
		want float64
	}{
		{"bearing plus x", 0, domain.Vec3{X: 5}, MaxPan},
		{"bearing minus x", 0, domain.Vec3{X: -5}, -MaxPan},
		{"along z", 0, domain.Vec3{Z: 5}, 0},
		{"turned toward peer", math.Pi / 2, domain.Vec3{X: 5}, 0},
		{"same spot", 0, domain.Vec3{Y: 3}, 0},
		{"wrapped yaw", 4 * math.Pi, domain.Vec3{X: 5}, MaxPan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StereoPan(origin, domain.Vec3{Y: tt.yaw}, tt.peer)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestStereoPan_Bounded(t *testing.T) {
	for yaw := -10.0; yaw <= 10; yaw += 0.37 {
		for a := 0.0; a < 2*math.Pi; a += 0.21 {
			peer := domain.Vec3{X: math.Sin(a) * 7, Z: math.Cos(a) * 7}
			pan := StereoPan(domain.Vec3{X: 1, Z: -2}, domain.Vec3{Y: yaw}, peer)
			assert.LessOrEqual(t, math.Abs(pan), MaxPan+1e-12)
		}
	}
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, 0, NormalizeAngle(2*math.Pi), 1e-12)
	assert.InDelta(t, math.Pi, NormalizeAngle(-math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi/2, NormalizeAngle(3*math.Pi/2), 1e-12)
	assert.Equal(t, 0.0, NormalizeAngle(math.NaN()))
}

func TestForward(t *testing.T) {
	f := Forward(domain.Vec3{})
	assert.InDelta(t, 0, f.X, 1e-12)
	assert.InDelta(t, 0, f.Y, 1e-12)
	assert.InDelta(t, -1, f.Z, 1e-12)

	f = Forward(domain.Vec3{Y: math.Pi / 2})
	assert.InDelta(t, 1, f.X, 1e-12)
	assert.InDelta(t, 0, f.Z, 1e-12)

	f = Forward(domain.Vec3{X: math.Pi / 2})
	assert.InDelta(t, 1, f.Y, 1e-12)
}
