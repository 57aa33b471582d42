package vision

import (
	"fmt"
	"log"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Capture client defaults: a 36-wide grid spanning 120° horizontally and
// 180° vertically, rays capped at 64 blocks.
const (
	DefaultGridWidth     = 36
	DefaultHorizontalFOV = 120.0
	DefaultVerticalFOV   = 180.0
	DefaultMaxRange      = 64.0
)

type Config struct {
	GridWidth  int `yaml:"grid_width"`
	GridHeight int `yaml:"grid_height"` // 0: derived from the FOV ratio

	HorizontalFOV float32 `yaml:"horizontal_fov"` // degrees
	VerticalFOV   float32 `yaml:"vertical_fov"`
	MaxRange      float32 `yaml:"max_range"`

	// FollowPitch makes rays track the agent's head pitch. The capture
	// client records with a fixed zero pitch so the grid stays level.
	FollowPitch bool `yaml:"follow_pitch"`

	// Special lists the categories that, when seen by the permissive pass,
	// short-circuit the strict pass. Nil means DefaultSpecial().
	Special []Category `yaml:"special"`
}

// Validate fills defaults and rejects configurations the sampler cannot
// run with. A non-positive field of view or range is fatal here rather
// than a degenerate grid later.
func (c *Config) Validate() error {
	if c.GridWidth == 0 {
		c.GridWidth = DefaultGridWidth
	}
	if c.HorizontalFOV == 0 {
		c.HorizontalFOV = DefaultHorizontalFOV
	}
	if c.VerticalFOV == 0 {
		c.VerticalFOV = DefaultVerticalFOV
	}
	if c.MaxRange == 0 {
		c.MaxRange = DefaultMaxRange
	}
	if c.GridWidth < 0 {
		return fmt.Errorf("vision: grid_width %d must be positive", c.GridWidth)
	}
	if c.HorizontalFOV < 0 || c.VerticalFOV < 0 {
		return fmt.Errorf("vision: fov %gx%g must be positive", c.HorizontalFOV, c.VerticalFOV)
	}
	if c.MaxRange < 0 {
		return fmt.Errorf("vision: max_range %g must be positive", c.MaxRange)
	}
	if c.GridHeight == 0 {
		c.GridHeight = DeriveGridHeight(c.GridWidth, c.HorizontalFOV, c.VerticalFOV)
	}
	if c.GridHeight < 0 {
		return fmt.Errorf("vision: grid_height %d must be positive", c.GridHeight)
	}
	if c.Special == nil {
		c.Special = DefaultSpecial()
	}
	return nil
}

// DeriveGridHeight keeps the angular cell size of rows and columns equal by
// scaling the height from the FOV ratio. A degenerate horizontal FOV
// collapses to a single row rather than failing.
func DeriveGridHeight(width int, hFov, vFov float32) int {
	if hFov <= 0 {
		return 1
	}
	h := int(math32.Round(float32(width) * vFov / hFov))
	if h < 1 {
		return 1
	}
	return h
}

type Sampler struct {
	cfg     Config
	world   Intersector
	cats    CategoryResolver
	special map[Category]bool
	log     *log.Logger
}

func NewSampler(cfg Config, world Intersector, cats CategoryResolver, logger *log.Logger) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		if logger != nil {
			logger.Printf("vision: bad config: %v", err)
		}
		return nil, err
	}
	special := make(map[Category]bool, len(cfg.Special))
	for _, c := range cfg.Special {
		special[c] = true
	}
	return &Sampler{cfg: cfg, world: world, cats: cats, special: special, log: logger}, nil
}

// GridDims reports the effective grid size after height derivation.
func (s *Sampler) GridDims() (w, h int) { return s.cfg.GridWidth, s.cfg.GridHeight }

// Sample casts one ray per grid cell from viewpoint and returns the hit
// distance and surface category per cell, row-major. Cells whose rays hit
// nothing report MaxRange and CategoryOpen.
//
// Each ray runs a two-stage test: a permissive query first, whose hit wins
// only if it resolves to a special category (so climbable/fluid surfaces
// are never masked by the strict pass refusing to register them), then a
// strict query for ordinary terrain.
func (s *Sampler) Sample(viewpoint mgl32.Vec3, yawDeg, pitchDeg float32, exclude EntityID) ([][]float32, [][]Category) {
	w, h := s.cfg.GridWidth, s.cfg.GridHeight

	dist := make([][]float32, h)
	cats := make([][]Category, h)
	for r := range dist {
		dist[r] = make([]float32, w)
		cats[r] = make([]Category, w)
	}

	baseYaw := mgl32.DegToRad(yawDeg)
	var basePitch float32
	if s.cfg.FollowPitch {
		basePitch = mgl32.DegToRad(pitchDeg)
	}

	hFov := mgl32.DegToRad(s.cfg.HorizontalFOV)
	vFov := mgl32.DegToRad(s.cfg.VerticalFOV)
	yawStep := hFov / float32(w)
	pitchStep := vFov / float32(h)
	startYawOff := -hFov/2 + yawStep/2
	startPitchOff := -vFov/2 + pitchStep/2

	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			yaw := baseYaw + startYawOff + float32(c)*yawStep
			pitch := basePitch + startPitchOff + float32(r)*pitchStep
			pitch = mgl32.Clamp(pitch, -math32.Pi/2+0.001, math32.Pi/2-0.001)

			cosPitch := math32.Cos(pitch)
			dir := mgl32.Vec3{
				-math32.Sin(yaw) * cosPitch,
				-math32.Sin(pitch),
				math32.Cos(yaw) * cosPitch,
			}.Normalize()
			end := viewpoint.Add(dir.Mul(s.cfg.MaxRange))

			dist[r][c], cats[r][c] = s.castRay(viewpoint, end, exclude)
		}
	}
	return dist, cats
}

func (s *Sampler) castRay(origin, end mgl32.Vec3, exclude EntityID) (float32, Category) {
	if hit, ok := s.world.Intersect(origin, end, ShapePermissive, FluidsAny, exclude); ok {
		if cat := s.cats.CategoryOf(hit.Voxel); s.special[cat] {
			return hit.Pos.Sub(origin).Len(), cat
		}
	}
	if hit, ok := s.world.Intersect(origin, end, ShapeStrict, FluidsNone, exclude); ok {
		return hit.Pos.Sub(origin).Len(), s.cats.CategoryOf(hit.Voxel)
	}
	return s.cfg.MaxRange, CategoryOpen
}
