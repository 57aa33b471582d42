package pack

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"parkourcap.ai/internal/capture"
)

// ProprioSize is the per-tick proprioceptive vector length.
const ProprioSize = 8

// Quantization defaults. Velocities beyond one block per tick and heights
// beyond 32 blocks from the target floor saturate.
const (
	DefaultMaxVelocity       = 1.0
	DefaultMaxRelativeHeight = 32.0
	DefaultMaxDistance       = 64.0
)

type Params struct {
	MaxVelocity       float32 `yaml:"max_velocity"`
	MaxRelativeHeight float32 `yaml:"max_relative_height"`
	MaxDistance       float32 `yaml:"max_distance"` // pre-scale clamp, normally the sampler range
}

func (p *Params) Validate() error {
	if p.MaxVelocity == 0 {
		p.MaxVelocity = DefaultMaxVelocity
	}
	if p.MaxRelativeHeight == 0 {
		p.MaxRelativeHeight = DefaultMaxRelativeHeight
	}
	if p.MaxDistance == 0 {
		p.MaxDistance = DefaultMaxDistance
	}
	if p.MaxVelocity < 0 || p.MaxRelativeHeight < 0 || p.MaxDistance < 0 {
		return fmt.Errorf("pack: quantizer params must be positive: %+v", *p)
	}
	return nil
}

// EncodedWindow is one window in storage form: byte grids tick-major and
// row-major, proprioceptive floats tick-major, one action byte.
type EncodedWindow struct {
	Distances  []byte    // K*W*H
	Categories []byte    // K*W*H
	Proprio    []float32 // K*ProprioSize
	Action     uint8
}

// Quantizer maps windows into EncodedWindows. It is a pure function of the
// window plus session-constant metadata; nothing is shared across windows.
type Quantizer struct {
	sess capture.Session
	par  Params
}

func NewQuantizer(sess capture.Session, par Params) (*Quantizer, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if err := par.Validate(); err != nil {
		return nil, err
	}
	return &Quantizer{sess: sess, par: par}, nil
}

func (q *Quantizer) Window(w Window) EncodedWindow {
	k, gw, gh := q.sess.K, q.sess.GridWidth, q.sess.GridHeight
	ew := EncodedWindow{
		Distances:  make([]byte, 0, k*gw*gh),
		Categories: make([]byte, 0, k*gw*gh),
		Proprio:    make([]float32, 0, k*ProprioSize),
	}
	for i := range w.Ticks {
		t := &w.Ticks[i]
		for r := 0; r < gh; r++ {
			for c := 0; c < gw; c++ {
				ew.Distances = append(ew.Distances, QuantizeDistance(t.Distances[r][c], q.par.MaxDistance))
				ew.Categories = append(ew.Categories, uint8(t.Categories[r][c]))
			}
		}
	}
	for i := range w.Ticks {
		ew.Proprio = append(ew.Proprio, q.proprio(&w.Ticks[i])...)
	}
	ew.Action = w.ActionByte()
	return ew
}

// QuantizeDistance encodes a distance as tenths of a block, saturating at
// 255 (25.5 blocks).
func QuantizeDistance(d, max float32) uint8 {
	d = mgl32.Clamp(d, 0, max)
	v := math32.Round(d * 10)
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// DequantizeDistance recovers a distance from its byte form, to within
// 0.05 blocks of the (clamped) original.
func DequantizeDistance(b uint8) float32 {
	return float32(b) / 10
}

func (q *Quantizer) proprio(t *capture.TickRecord) []float32 {
	b2f := func(b bool) float32 {
		if b {
			return 1
		}
		return 0
	}
	return []float32{
		mgl32.Clamp(t.Velocity.X()/q.par.MaxVelocity, -1, 1),
		mgl32.Clamp(t.Velocity.Y()/q.par.MaxVelocity, -1, 1),
		mgl32.Clamp(t.Velocity.Z()/q.par.MaxVelocity, -1, 1),
		NormalizeAngle(t.Yaw-q.sess.TargetYaw) / 180,
		b2f(t.OnGround),
		b2f(t.CollidedHorizontally),
		b2f(t.CollidedVertically),
		mgl32.Clamp((t.Height-float32(q.sess.TargetHeight))/q.par.MaxRelativeHeight, -1, 1),
	}
}
