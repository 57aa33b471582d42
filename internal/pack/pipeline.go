package pack

import (
	"log"

	"parkourcap.ai/internal/capture"
)

// Stats summarizes one packing pass.
type Stats struct {
	Windows int
	Dropped int
}

// BuildWindows runs the windower and quantizer over a tick log and
// returns the encoded windows ready for a codec backend.
func BuildWindows(sess capture.Session, ticks []capture.TickRecord, par Params, logger *log.Logger) ([]EncodedWindow, Stats, error) {
	slider, err := NewSlider(sess, logger)
	if err != nil {
		return nil, Stats{}, err
	}
	q, err := NewQuantizer(sess, par)
	if err != nil {
		return nil, Stats{}, err
	}

	var out []EncodedWindow
	for w := range slider.Windows(ticks) {
		out = append(out, q.Window(w))
	}
	return out, Stats{Windows: len(out), Dropped: slider.Dropped()}, nil
}
