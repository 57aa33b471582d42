// Package pack turns an ordered tick log into fixed-length training
// windows: a sliding windower with per-window validation and a quantizer
// that maps each window into byte-exact fixed-point form for the codec.
package pack

import (
	"iter"
	"log"

	"parkourcap.ai/internal/capture"
)

// Window is K consecutive ticks, oldest first. It aliases the tick log and
// never mutates it; the quantizer consumes it immediately.
type Window struct {
	Ticks []capture.TickRecord
}

// Last is the anchor tick: the most recent tick, whose input flags label
// the window.
func (w Window) Last() *capture.TickRecord {
	return &w.Ticks[len(w.Ticks)-1]
}

// Action flag bit positions within the action byte. Bit 7 stays zero.
const (
	ActionForward = 1 << iota
	ActionLeft
	ActionRight
	ActionBack
	ActionJump
	ActionSneak
	ActionSprint
)

// ActionByte packs the anchor tick's input flags into one byte.
func (w Window) ActionByte() uint8 {
	t := w.Last()
	var b uint8
	if t.Forward {
		b |= ActionForward
	}
	if t.Left {
		b |= ActionLeft
	}
	if t.Right {
		b |= ActionRight
	}
	if t.Back {
		b |= ActionBack
	}
	if t.Jump {
		b |= ActionJump
	}
	if t.Sneak {
		b |= ActionSneak
	}
	if t.Sprint {
		b |= ActionSprint
	}
	return b
}

// Slider slides a K-tick window over a tick log, dropping windows that
// contain a tick whose grids do not match the session dimensions.
type Slider struct {
	sess    capture.Session
	log     *log.Logger
	dropped int
}

func NewSlider(sess capture.Session, logger *log.Logger) (*Slider, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return &Slider{sess: sess, log: logger}, nil
}

// Windows yields one window per anchor index from K-1 to len(ticks)-1.
// Fewer than K ticks is a normal empty result, not an error. A corrupt
// tick invalidates only the windows that include it.
func (s *Slider) Windows(ticks []capture.TickRecord) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		s.dropped = 0
		k := s.sess.K
		if len(ticks) < k {
			return
		}

		bad := make([]bool, len(ticks))
		for i := range ticks {
			if !ticks[i].HasGridDims(s.sess.GridWidth, s.sess.GridHeight) {
				bad[i] = true
				s.log.Printf("tick %d: grid dimensions differ from session %dx%d, dropping its windows",
					i, s.sess.GridWidth, s.sess.GridHeight)
			}
		}

		// badIn tracks how many corrupt ticks the current window holds.
		badIn := 0
		for i := 0; i < k-1; i++ {
			if bad[i] {
				badIn++
			}
		}
		for t := k - 1; t < len(ticks); t++ {
			if bad[t] {
				badIn++
			}
			if badIn == 0 {
				if !yield(Window{Ticks: ticks[t-k+1 : t+1]}) {
					return
				}
			} else {
				s.dropped++
			}
			if bad[t-k+1] {
				badIn--
			}
		}
	}
}

// Dropped reports how many windows the latest Windows pass skipped.
func (s *Slider) Dropped() int { return s.dropped }
