// Package capture models one recording session of per-tick agent state:
// the tick records themselves, the run metadata that stays constant for a
// whole recording, and the recorder that accumulates ticks in order.
package capture

import (
	"github.com/go-gl/mathgl/mgl32"

	"parkourcap.ai/internal/capture/vision"
	"parkourcap.ai/internal/protocol"
)

// TickRecord is the full observation snapshot for one simulation step.
type TickRecord struct {
	Forward bool
	Left    bool
	Right   bool
	Back    bool
	Jump    bool
	Sneak   bool
	Sprint  bool

	Yaw      float32    // degrees, unrestricted range
	Velocity mgl32.Vec3 // world-space displacement per step

	OnGround             bool
	CollidedHorizontally bool
	CollidedVertically   bool

	Height float32 // absolute vertical coordinate

	Distances  [][]float32         // H rows of W hit distances, MaxRange when open
	Categories [][]vision.Category // same shape

	InFallZone bool
}

// GridDims reports the (width, height) of the tick's vision grids, (0, 0)
// when no grid was captured.
func (t *TickRecord) GridDims() (w, h int) {
	if len(t.Distances) == 0 {
		return 0, 0
	}
	return len(t.Distances[0]), len(t.Distances)
}

// HasGridDims reports whether both grids are exactly w x h.
func (t *TickRecord) HasGridDims(w, h int) bool {
	if len(t.Distances) != h || len(t.Categories) != h {
		return false
	}
	for r := 0; r < h; r++ {
		if len(t.Distances[r]) != w || len(t.Categories[r]) != w {
			return false
		}
	}
	return true
}

// FallZone is the fall-zone derivation: descending or settled, on the
// ground, and at most one block above the target floor.
func FallZone(vy float32, onGround bool, height float32, targetHeight int) bool {
	return vy <= 0 && onGround && height <= float32(targetHeight)+1
}

// FromRaw converts a wire/run-file tick into a TickRecord, deep-copying
// the grids so the record does not alias decoder buffers.
func FromRaw(rt protocol.RawTick) TickRecord {
	t := TickRecord{
		Forward:              rt.Forward,
		Left:                 rt.Left,
		Right:                rt.Right,
		Back:                 rt.Back,
		Jump:                 rt.Jump,
		Sneak:                rt.Sneak,
		Sprint:               rt.Sprint,
		Yaw:                  rt.Yaw,
		Velocity:             mgl32.Vec3{rt.VelocityX, rt.VelocityY, rt.VelocityZ},
		OnGround:             rt.OnGround,
		CollidedHorizontally: rt.CollidedHorizontally,
		CollidedVertically:   rt.CollidedVertically,
		Height:               rt.Height,
		InFallZone:           rt.InFallZone,
	}
	t.Distances = make([][]float32, len(rt.Distances))
	for r, row := range rt.Distances {
		t.Distances[r] = append([]float32(nil), row...)
	}
	t.Categories = make([][]vision.Category, len(rt.Categories))
	for r, row := range rt.Categories {
		cr := make([]vision.Category, len(row))
		for c, v := range row {
			cr[c] = vision.Category(v)
		}
		t.Categories[r] = cr
	}
	return t
}

// Raw converts a TickRecord back into its wire/run-file form.
func (t *TickRecord) Raw() protocol.RawTick {
	rt := protocol.RawTick{
		Forward:              t.Forward,
		Left:                 t.Left,
		Right:                t.Right,
		Back:                 t.Back,
		Jump:                 t.Jump,
		Sneak:                t.Sneak,
		Sprint:               t.Sprint,
		Yaw:                  t.Yaw,
		VelocityX:            t.Velocity.X(),
		VelocityY:            t.Velocity.Y(),
		VelocityZ:            t.Velocity.Z(),
		OnGround:             t.OnGround,
		CollidedHorizontally: t.CollidedHorizontally,
		CollidedVertically:   t.CollidedVertically,
		Height:               t.Height,
		InFallZone:           t.InFallZone,
	}
	rt.Distances = make([][]float32, len(t.Distances))
	for r, row := range t.Distances {
		rt.Distances[r] = append([]float32(nil), row...)
	}
	rt.Categories = make([][]uint8, len(t.Categories))
	for r, row := range t.Categories {
		cr := make([]uint8, len(row))
		for c, v := range row {
			cr[c] = uint8(v)
		}
		rt.Categories[r] = cr
	}
	return rt
}
