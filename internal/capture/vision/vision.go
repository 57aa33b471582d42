// Package vision samples a fixed angular grid of rays around an agent's
// facing direction and reduces each ray to a (distance, surface category)
// pair. The world geometry itself is external: implementations of
// Intersector and CategoryResolver are supplied by the host environment.
package vision

import "github.com/go-gl/mathgl/mgl32"

// ShapeMode selects which geometry registers as a hit.
type ShapeMode int

const (
	// ShapePermissive includes decorative/non-colliding shapes. Combined
	// with FluidsAny it sees ladders, vines, webs and fluid surfaces.
	ShapePermissive ShapeMode = iota
	// ShapeStrict includes collision shapes only.
	ShapeStrict
)

// FluidMode selects whether fluid surfaces register as hits.
type FluidMode int

const (
	FluidsAny FluidMode = iota
	FluidsNone
)

// VoxelPos is an integer voxel coordinate in the host world.
type VoxelPos [3]int

// Hit is the first surface struck along a ray segment.
type Hit struct {
	Pos   mgl32.Vec3 // exact intersection point
	Voxel VoxelPos   // voxel the surface belongs to
}

// EntityID identifies the entity to exclude from intersection tests,
// normally the observing agent itself.
type EntityID string

// Intersector is the host environment's ray-vs-geometry query. It is a pure
// query: the sampler may call it any number of times with no side effects.
type Intersector interface {
	Intersect(origin, end mgl32.Vec3, shape ShapeMode, fluids FluidMode, exclude EntityID) (Hit, bool)
}

// Category is a small enumerated surface class collapsed from the host's
// much larger raw surface-identifier space.
type Category uint8

// Well-known categories. Zero is open space (or plain solid terrain when
// reported by a strict-pass hit); the rest are movement-relevant surfaces a
// resolver may map host surfaces onto. Resolvers are free to define more.
const (
	CategoryOpen      Category = 0
	CategoryClimbable Category = 1
	CategoryFluid     Category = 2
	CategoryHazard    Category = 3
	CategorySlip      Category = 4
)

// CategoryResolver translates a voxel coordinate into its surface category.
type CategoryResolver interface {
	CategoryOf(v VoxelPos) Category
}

// DefaultSpecial is the default set of categories that short-circuit the
// strict pass when seen by the permissive pass. Membership is environment
// policy, so callers may override it in Config.
func DefaultSpecial() []Category {
	return []Category{CategoryClimbable, CategoryFluid, CategoryHazard}
}
