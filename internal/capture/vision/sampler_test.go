package vision_test

import (
	"log"
	"math"
	"os"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"parkourcap.ai/internal/capture/vision"
	"parkourcap.ai/internal/capture/vision/visiontest"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[vision-test] ", 0)
}

// singleRay builds a sampler whose grid is one cell looking straight ahead.
func singleRay(t *testing.T, w *visiontest.World, special []vision.Category) *vision.Sampler {
	t.Helper()
	cfg := vision.Config{
		GridWidth:     1,
		GridHeight:    1,
		HorizontalFOV: 2,
		VerticalFOV:   2,
		MaxRange:      16,
		Special:       special,
	}
	s, err := vision.NewSampler(cfg, w, w, testLogger())
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	return s
}

func TestConfig_Defaults(t *testing.T) {
	var cfg vision.Config
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.GridWidth != 36 {
		t.Fatalf("grid width: got %d want 36", cfg.GridWidth)
	}
	// 36 * 180/120 = 54 rows.
	if cfg.GridHeight != 54 {
		t.Fatalf("grid height: got %d want 54", cfg.GridHeight)
	}
	if cfg.MaxRange != 64 {
		t.Fatalf("max range: got %g want 64", cfg.MaxRange)
	}
	if len(cfg.Special) == 0 {
		t.Fatalf("expected default special set")
	}
}

func TestConfig_RejectsNegative(t *testing.T) {
	cfg := vision.Config{HorizontalFOV: -10}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for negative fov")
	}
	cfg = vision.Config{MaxRange: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for negative range")
	}
}

func TestDeriveGridHeight_Degenerate(t *testing.T) {
	if h := vision.DeriveGridHeight(36, 0, 180); h != 1 {
		t.Fatalf("degenerate fov: got %d want 1", h)
	}
	if h := vision.DeriveGridHeight(36, 120, 180); h != 54 {
		t.Fatalf("got %d want 54", h)
	}
}

func TestSample_MissReportsSentinel(t *testing.T) {
	w := visiontest.NewWorld()
	s := singleRay(t, w, nil)

	dist, cats := s.Sample(mgl32.Vec3{0.5, 0.5, 0.5}, 0, 0, "p1")
	if got := dist[0][0]; got != 16 {
		t.Fatalf("miss distance: got %g want 16", got)
	}
	if got := cats[0][0]; got != vision.CategoryOpen {
		t.Fatalf("miss category: got %d want open", got)
	}
}

func TestSample_SolidWall(t *testing.T) {
	w := visiontest.NewWorld()
	// Yaw 0 looks along +z; the wall face at z=3 is 2.5 blocks out.
	w.Fill(vision.VoxelPos{-2, -2, 3}, vision.VoxelPos{2, 2, 3}, visiontest.Block{Solid: true})
	s := singleRay(t, w, nil)

	dist, cats := s.Sample(mgl32.Vec3{0.5, 0.5, 0.5}, 0, 0, "p1")
	if got := dist[0][0]; math.Abs(float64(got)-2.5) > 1e-3 {
		t.Fatalf("wall distance: got %g want 2.5", got)
	}
	if got := cats[0][0]; got != vision.CategoryOpen {
		t.Fatalf("wall category: got %d want 0", got)
	}
}

func TestSample_SpecialShortCircuitsStrictPass(t *testing.T) {
	w := visiontest.NewWorld()
	w.Set(0, 0, 2, visiontest.Block{Cat: vision.CategoryFluid, Fluid: true})
	w.Set(0, 0, 3, visiontest.Block{Solid: true})

	s := singleRay(t, w, vision.DefaultSpecial())
	dist, cats := s.Sample(mgl32.Vec3{0.5, 0.5, 0.5}, 0, 0, "p1")
	if got := dist[0][0]; math.Abs(float64(got)-1.5) > 1e-3 {
		t.Fatalf("fluid distance: got %g want 1.5", got)
	}
	if got := cats[0][0]; got != vision.CategoryFluid {
		t.Fatalf("category: got %d want fluid", got)
	}
}

func TestSample_NonSpecialPermissiveHitFallsThrough(t *testing.T) {
	w := visiontest.NewWorld()
	// A fluid the policy does not care about: the permissive pass sees it
	// but the strict pass must still report the terrain behind it.
	w.Set(0, 0, 2, visiontest.Block{Cat: vision.CategoryFluid, Fluid: true})
	w.Set(0, 0, 3, visiontest.Block{Solid: true})

	s := singleRay(t, w, []vision.Category{vision.CategoryClimbable})
	dist, cats := s.Sample(mgl32.Vec3{0.5, 0.5, 0.5}, 0, 0, "p1")
	if got := dist[0][0]; math.Abs(float64(got)-2.5) > 1e-3 {
		t.Fatalf("distance: got %g want 2.5", got)
	}
	if got := cats[0][0]; got != vision.CategoryOpen {
		t.Fatalf("category: got %d want 0", got)
	}
}

func TestSample_ClimbableSeenThroughStrictPass(t *testing.T) {
	w := visiontest.NewWorld()
	// Ladders have no collision shape; only the permissive pass can see
	// them, and the special set makes that hit stick.
	w.Set(0, 0, 1, visiontest.Block{Cat: vision.CategoryClimbable})
	w.Set(0, 0, 4, visiontest.Block{Solid: true})

	s := singleRay(t, w, vision.DefaultSpecial())
	dist, cats := s.Sample(mgl32.Vec3{0.5, 0.5, 0.5}, 0, 0, "p1")
	if got := dist[0][0]; math.Abs(float64(got)-0.5) > 1e-3 {
		t.Fatalf("ladder distance: got %g want 0.5", got)
	}
	if got := cats[0][0]; got != vision.CategoryClimbable {
		t.Fatalf("category: got %d want climbable", got)
	}
}

func TestSample_GridShapeAndCoverage(t *testing.T) {
	w := visiontest.NewWorld()
	// Box the viewpoint in completely so every ray hits something.
	w.Fill(vision.VoxelPos{-4, -4, -4}, vision.VoxelPos{4, 4, 4}, visiontest.Block{Solid: true})
	w.Clear(vision.VoxelPos{-3, -3, -3}, vision.VoxelPos{3, 3, 3})

	cfg := vision.Config{GridWidth: 6, HorizontalFOV: 120, VerticalFOV: 180, MaxRange: 16}
	s, err := vision.NewSampler(cfg, w, w, testLogger())
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	gw, gh := s.GridDims()
	if gw != 6 || gh != 9 {
		t.Fatalf("dims: got %dx%d want 6x9", gw, gh)
	}

	dist, cats := s.Sample(mgl32.Vec3{0.5, 0.5, 0.5}, 37.5, 0, "p1")
	if len(dist) != gh || len(cats) != gh {
		t.Fatalf("rows: got %d/%d want %d", len(dist), len(cats), gh)
	}
	for r := range dist {
		if len(dist[r]) != gw || len(cats[r]) != gw {
			t.Fatalf("row %d cols: got %d/%d want %d", r, len(dist[r]), len(cats[r]), gw)
		}
		for c := range dist[r] {
			if dist[r][c] <= 0 || dist[r][c] >= 16 {
				t.Fatalf("ray (%d,%d): distance %g out of range", r, c, dist[r][c])
			}
		}
	}
}
