package pack

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"parkourcap.ai/internal/capture"
	"parkourcap.ai/internal/capture/vision"
)

func TestNormalizeAngle(t *testing.T) {
	cases := []struct{ in, want float32 }{
		{0, 0},
		{180, 180},
		{-180, 180},
		{181, -179},
		{360, 0},
		{-360, 0},
		{540, 180},
		{-540, 180},
		{725, 5},
		{-725, -5},
		{36005, 5},
		{-36005, -5},
	}
	for _, c := range cases {
		if got := NormalizeAngle(c.in); got != c.want {
			t.Fatalf("NormalizeAngle(%g): got %g want %g", c.in, got, c.want)
		}
	}
}

func TestNormalizeAngle_Properties(t *testing.T) {
	for a := float32(-1000); a <= 1000; a += 13.7 {
		got := NormalizeAngle(a)
		if got <= -180 || got > 180 {
			t.Fatalf("NormalizeAngle(%g) = %g out of (-180, 180]", a, got)
		}
		if shifted := NormalizeAngle(a + 360); shifted != got {
			t.Fatalf("NormalizeAngle(%g+360) = %g, want %g", a, shifted, got)
		}
	}
}

func TestQuantizeDistance_Saturation(t *testing.T) {
	cases := []struct {
		in   float32
		want uint8
	}{
		{0, 0},
		{25.5, 255},
		{100, 255}, // out of range, clamped then saturated
		{1.5, 15},
		{0.04, 0},  // rounds down
		{0.05, 1},  // rounds up
		{64, 255},
	}
	for _, c := range cases {
		if got := QuantizeDistance(c.in, 64); got != c.want {
			t.Fatalf("QuantizeDistance(%g): got %d want %d", c.in, got, c.want)
		}
	}
}

func TestDequantizeDistance_Precision(t *testing.T) {
	for d := float32(0); d <= 25.5; d += 0.173 {
		rec := DequantizeDistance(QuantizeDistance(d, 64))
		if diff := math.Abs(float64(rec - d)); diff > 0.05 {
			t.Fatalf("distance %g: recovered %g, off by %g", d, rec, diff)
		}
	}
}

func TestQuantizer_Proprio(t *testing.T) {
	sess := testSession(1, 1)
	sess.TargetYaw = 90
	q, err := NewQuantizer(sess, Params{MaxVelocity: 1, MaxRelativeHeight: 32, MaxDistance: 64})
	if err != nil {
		t.Fatalf("NewQuantizer: %v", err)
	}

	tick := capture.TickRecord{
		Yaw:                  0,
		Velocity:             mgl32.Vec3{0.5, -2, 0.25},
		OnGround:             true,
		CollidedVertically:   true,
		Height:               80, // 16 above target 64
		Distances:            [][]float32{{1, 2}, {3, 4}},
		Categories:           [][]vision.Category{{0, 1}, {2, 3}},
	}
	ew := q.Window(Window{Ticks: []capture.TickRecord{tick}})

	want := []float32{0.5, -1, 0.25, -0.5, 1, 0, 1, 0.5}
	if len(ew.Proprio) != ProprioSize {
		t.Fatalf("proprio length: got %d want %d", len(ew.Proprio), ProprioSize)
	}
	for i, w := range want {
		if got := ew.Proprio[i]; math.Abs(float64(got-w)) > 1e-6 {
			t.Fatalf("proprio[%d]: got %g want %g", i, got, w)
		}
	}
}

func TestQuantizer_WindowLayout(t *testing.T) {
	sess := testSession(2, 2)
	q, err := NewQuantizer(sess, Params{})
	if err != nil {
		t.Fatalf("NewQuantizer: %v", err)
	}

	ticks := makeTicks(2)
	ticks[0].Distances = [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	ticks[1].Distances = [][]float32{{1.1, 1.2}, {1.3, 1.4}}
	ticks[1].Categories = [][]vision.Category{{1, 2}, {3, 4}}
	ticks[1].Sprint = true

	ew := q.Window(Window{Ticks: ticks})

	if len(ew.Distances) != 8 || len(ew.Categories) != 8 {
		t.Fatalf("grid bytes: got %d/%d want 8", len(ew.Distances), len(ew.Categories))
	}
	// Tick-major, row-major: tick 0 occupies the first W*H bytes.
	wantDist := []byte{1, 2, 3, 4, 11, 12, 13, 14}
	for i, w := range wantDist {
		if ew.Distances[i] != w {
			t.Fatalf("distance byte %d: got %d want %d", i, ew.Distances[i], w)
		}
	}
	wantCat := []byte{0, 0, 0, 0, 1, 2, 3, 4}
	for i, w := range wantCat {
		if ew.Categories[i] != w {
			t.Fatalf("category byte %d: got %d want %d", i, ew.Categories[i], w)
		}
	}
	if len(ew.Proprio) != 2*ProprioSize {
		t.Fatalf("proprio length: got %d want %d", len(ew.Proprio), 2*ProprioSize)
	}
	if ew.Action != ActionSprint {
		t.Fatalf("action: got %#08b want sprint bit", ew.Action)
	}
}
