// Package domain contains entity without logic, just meta-data
package domain

import "math"

// Vec3 is a point or a rotation in world space. Rotations arrive as (pitch, yaw, roll).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3) Length() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

func (v Vec3) Distance(o Vec3) float64 { return v.Sub(o).Length() }

// Pitch, Yaw and Roll name the components of a rotation vector.
func (v Vec3) Pitch() float64 { return v.X }
func (v Vec3) Yaw() float64   { return v.Y }
func (v Vec3) Roll() float64  { return v.Z }

// RangeConfig is pushed by the rendezvous in the welcome envelope.
type RangeConfig struct {
	FullVolumeRange      float64 `json:"fullVolumeRange"`
	FallOffRange         float64 `json:"fallOffRange"`
	ExtraConnectionRange float64 `json:"additionalPeerConnectionRange"`
}

// SilentRange is the distance at which a peer becomes inaudible.
func (c RangeConfig) SilentRange() float64 { return c.FullVolumeRange + c.FallOffRange }

// PeerSpatial is the last known geometry of one audio source.
type PeerSpatial struct {
	Position *Vec3
	Rotation *Vec3
}
