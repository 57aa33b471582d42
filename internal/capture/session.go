package capture

import "fmt"

// Session is the run metadata that is invariant for one recorded run and
// that a reader needs to de-normalize the packed data. It is passed
// explicitly into the windower and quantizer; nothing here is process
// state.
type Session struct {
	TargetYaw    float32 // reference bearing, set at recording start
	TargetHeight int     // reference floor for fall-zone / relative height
	GridWidth    int
	GridHeight   int
	K            int // window length in ticks
	Frames       int // ticks in the recorded run
}

func (s Session) Validate() error {
	if s.K <= 0 {
		return fmt.Errorf("capture: window length %d must be positive", s.K)
	}
	if s.GridWidth <= 0 || s.GridHeight <= 0 {
		return fmt.Errorf("capture: grid %dx%d must be positive", s.GridWidth, s.GridHeight)
	}
	return nil
}
