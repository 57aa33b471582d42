package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/chewxy/math32"
)

// Fall-zone advisory cadence: warn at most every warnIntervalTicks when
// the agent has drifted warnDistance or more blocks from the target floor.
const (
	warnIntervalTicks = 100
	warnDistance      = 8.0
)

var (
	ErrSessionActive  = errors.New("capture: recording already active")
	ErrNoSession      = errors.New("capture: no recording active")
	ErrNoTargetHeight = errors.New("capture: target height not set")
	ErrTickOrder      = errors.New("capture: tick index out of order")
	ErrNoData         = errors.New("capture: no ticks recorded")
)

// TickSource supplies ordered tick records, one per simulation step. Next
// returns io.EOF when the source is exhausted.
type TickSource interface {
	Next(ctx context.Context) (TickRecord, error)
}

// Run is one finished recording.
type Run struct {
	TargetYaw    float32
	TargetHeight int
	StartedAt    time.Time
	StoppedAt    time.Time
	Ticks        []TickRecord
}

// Session derives the run metadata for packing with window length k. Grid
// dimensions are taken from the first tick.
func (r Run) Session(k int) Session {
	s := Session{
		TargetYaw:    r.TargetYaw,
		TargetHeight: r.TargetHeight,
		K:            k,
		Frames:       len(r.Ticks),
	}
	if len(r.Ticks) > 0 {
		s.GridWidth, s.GridHeight = r.Ticks[0].GridDims()
	}
	return s
}

// Recorder accumulates one run's tick records in strict order. It is meant
// for a single producer goroutine per session; ticks arrive one per
// simulation step with no overlap.
type Recorder struct {
	log   *log.Logger
	warnf func(string)

	recording    bool
	targetHeight int
	haveTarget   bool
	targetYaw    float32
	startedAt    time.Time
	ticks        []TickRecord
	nextIndex    uint64
	lastWarn     uint64
}

func NewRecorder(logger *log.Logger) *Recorder {
	return &Recorder{log: logger}
}

// OnWarning registers a sink for advisory messages (fall-zone drift). The
// recorder logs them regardless.
func (r *Recorder) OnWarning(f func(string)) { r.warnf = f }

func (r *Recorder) Recording() bool { return r.recording }

// SetTargetHeight fixes the fall-zone floor for subsequent runs. It cannot
// change mid-recording.
func (r *Recorder) SetTargetHeight(h int) error {
	if r.recording {
		return ErrSessionActive
	}
	r.targetHeight = h
	r.haveTarget = true
	r.log.Printf("target height set to %d", h)
	return nil
}

// Start begins a run. The target bearing is fixed from the agent's facing
// at this moment.
func (r *Recorder) Start(currentYaw float32) error {
	if r.recording {
		return ErrSessionActive
	}
	if !r.haveTarget {
		return ErrNoTargetHeight
	}
	r.recording = true
	r.targetYaw = currentYaw
	r.startedAt = time.Now()
	r.ticks = r.ticks[:0]
	r.nextIndex = 0
	r.lastWarn = 0
	r.log.Printf("recording started: target yaw %.1f, target height %d", currentYaw, r.targetHeight)
	return nil
}

// Record appends the tick at index idx. Indices must increase by exactly
// one per call; the fall-zone flag is re-derived from the session's target
// height so the recorder, not the producer, owns that invariant.
func (r *Recorder) Record(idx uint64, t TickRecord) error {
	if !r.recording {
		return ErrNoSession
	}
	if idx != r.nextIndex {
		return fmt.Errorf("%w: got %d want %d", ErrTickOrder, idx, r.nextIndex)
	}
	r.nextIndex++

	t.InFallZone = FallZone(t.Velocity.Y(), t.OnGround, t.Height, r.targetHeight)
	r.ticks = append(r.ticks, t)
	r.checkFallZoneDrift(idx, t.Height)
	return nil
}

// Drain records every tick a source produces until io.EOF.
func (r *Recorder) Drain(ctx context.Context, src TickSource) (int, error) {
	n := 0
	for {
		t, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := r.Record(r.nextIndex, t); err != nil {
			return n, err
		}
		n++
	}
}

// Stop ends the run. With save=false the ticks are discarded and an empty
// run returned. Otherwise ticks recorded after the last ground contact are
// trimmed off: a run that ends mid-air ends at its final landing instead.
func (r *Recorder) Stop(save bool) (Run, error) {
	if !r.recording {
		return Run{}, ErrNoSession
	}
	r.recording = false

	run := Run{
		TargetYaw:    r.targetYaw,
		TargetHeight: r.targetHeight,
		StartedAt:    r.startedAt,
		StoppedAt:    time.Now(),
	}
	if !save {
		r.log.Printf("recording discarded: %d ticks", len(r.ticks))
		r.ticks = nil
		return run, nil
	}
	if len(r.ticks) == 0 {
		return run, ErrNoData
	}

	ticks := r.ticks
	r.ticks = nil
	lastGround := -1
	for i := len(ticks) - 1; i >= 0; i-- {
		if ticks[i].OnGround {
			lastGround = i
			break
		}
	}
	if lastGround >= 0 && lastGround < len(ticks)-1 {
		r.log.Printf("trimmed %d airborne ticks after last ground contact", len(ticks)-1-lastGround)
		ticks = ticks[:lastGround+1]
	}
	run.Ticks = ticks
	r.log.Printf("recording stopped: %d ticks kept", len(ticks))
	return run, nil
}

func (r *Recorder) checkFallZoneDrift(idx uint64, height float32) {
	if idx < r.lastWarn+warnIntervalTicks {
		return
	}
	drift := math32.Abs(height - float32(r.targetHeight))
	if drift >= warnDistance {
		msg := fmt.Sprintf("vertical distance to fall zone (%.1f) >= %.1f", drift, float32(warnDistance))
		r.log.Printf("warning: %s", msg)
		if r.warnf != nil {
			r.warnf(msg)
		}
		r.lastWarn = idx
	}
}
