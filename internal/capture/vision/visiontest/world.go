// Package visiontest provides an in-memory voxel world implementing the
// vision interfaces, for tests that need deterministic ray geometry.
package visiontest

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"parkourcap.ai/internal/capture/vision"
)

// Block is one voxel's worth of geometry.
type Block struct {
	Cat   vision.Category
	Solid bool // registers on the strict pass
	Fluid bool // registers only when fluids are included
	// A block that is neither solid nor fluid (ladder, vine, web) registers
	// on the permissive pass only.
}

// World is a sparse voxel map. The zero value is all open space.
type World struct {
	blocks map[vision.VoxelPos]Block
}

func NewWorld() *World {
	return &World{blocks: make(map[vision.VoxelPos]Block)}
}

func (w *World) Set(x, y, z int, b Block) {
	w.blocks[vision.VoxelPos{x, y, z}] = b
}

// Fill sets every voxel in the inclusive box [min, max].
func (w *World) Fill(min, max vision.VoxelPos, b Block) {
	for x := min[0]; x <= max[0]; x++ {
		for y := min[1]; y <= max[1]; y++ {
			for z := min[2]; z <= max[2]; z++ {
				w.Set(x, y, z, b)
			}
		}
	}
}

// Clear removes every voxel in the inclusive box [min, max].
func (w *World) Clear(min, max vision.VoxelPos) {
	for x := min[0]; x <= max[0]; x++ {
		for y := min[1]; y <= max[1]; y++ {
			for z := min[2]; z <= max[2]; z++ {
				delete(w.blocks, vision.VoxelPos{x, y, z})
			}
		}
	}
}

func (w *World) CategoryOf(v vision.VoxelPos) vision.Category {
	return w.blocks[v].Cat
}

func (b Block) registers(shape vision.ShapeMode, fluids vision.FluidMode) bool {
	if b.Fluid {
		return fluids == vision.FluidsAny
	}
	if b.Solid {
		return true
	}
	return shape == vision.ShapePermissive
}

// Intersect walks the voxels pierced by the segment in order and returns
// the entry point into the first voxel whose block registers under the
// given modes.
func (w *World) Intersect(origin, end mgl32.Vec3, shape vision.ShapeMode, fluids vision.FluidMode, _ vision.EntityID) (vision.Hit, bool) {
	seg := end.Sub(origin)
	length := seg.Len()
	if length == 0 {
		return vision.Hit{}, false
	}
	dir := seg.Mul(1 / length)

	vox := voxelOf(origin)
	var step [3]int
	var tMax, tDelta [3]float32
	for i := 0; i < 3; i++ {
		switch {
		case dir[i] > 0:
			step[i] = 1
		case dir[i] < 0:
			step[i] = -1
		}
		tMax[i] = boundaryDistance(origin[i], dir[i])
		if dir[i] != 0 {
			tDelta[i] = math32.Abs(1 / dir[i])
		} else {
			tDelta[i] = math32.MaxFloat32
		}
	}

	t := float32(0)
	for {
		if b, ok := w.blocks[vox]; ok && b.registers(shape, fluids) {
			return vision.Hit{Pos: origin.Add(dir.Mul(t)), Voxel: vox}, true
		}

		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t = tMax[axis]
		if t > length {
			return vision.Hit{}, false
		}
		vox[axis] += step[axis]
		tMax[axis] += tDelta[axis]
	}
}

func voxelOf(p mgl32.Vec3) vision.VoxelPos {
	return vision.VoxelPos{
		int(math32.Floor(p.X())),
		int(math32.Floor(p.Y())),
		int(math32.Floor(p.Z())),
	}
}

// boundaryDistance is the ray parameter at which coordinate s first crosses
// a voxel boundary when moving with direction component ds.
func boundaryDistance(s, ds float32) float32 {
	if ds == 0 {
		return math32.MaxFloat32
	}
	if ds < 0 {
		s = -s
		ds = -ds
		if math32.Floor(s) == s {
			return 0
		}
	}
	return (1 - (s - math32.Floor(s))) / ds
}
