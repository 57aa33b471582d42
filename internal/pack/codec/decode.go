package codec

import (
	"encoding/binary"
	"log"
	"math"

	"parkourcap.ai/internal/pack"
)

// Window is one decoded window: the anchor tick's grids, the full K-tick
// proprioceptive sequence, and the action bits.
type Window struct {
	LastDistances  []byte    // W*H, anchor tick, row-major
	LastCategories []byte    // W*H
	Proprio        []float32 // K*ProprioSize, tick-major
	Action         uint8
}

// Result is the outcome of a decode: the maximal prefix of fully-present
// windows, plus how many declared windows the input was short.
type Result struct {
	Header    Header
	Windows   []Window
	Truncated int
}

// Decode parses an artifact. A bad magic or version is fatal; a truncated
// tail is not: the effective window count is clipped to what the buffer
// actually holds and the shortfall reported in Result.Truncated. Decode
// never reads past len(data).
func Decode(data []byte, logger *log.Logger) (Result, error) {
	h, err := parseHeader(data)
	if err != nil {
		return Result{}, err
	}

	bodySize := h.BodySize()
	avail := len(data) - HeaderSize
	effective := avail / bodySize
	if effective > h.Windows {
		// Trailing junk beyond the declared count is ignored.
		effective = h.Windows
	}
	res := Result{
		Header:    h,
		Windows:   make([]Window, 0, effective),
		Truncated: h.Windows - effective,
	}
	if res.Truncated > 0 && logger != nil {
		logger.Printf("codec: truncated artifact: %d bytes hold %d of %d declared windows",
			len(data), effective, h.Windows)
	}

	grid := h.GridWidth * h.GridHeight
	lastOff := (h.K - 1) * grid
	for i := 0; i < effective; i++ {
		body := data[HeaderSize+i*bodySize : HeaderSize+(i+1)*bodySize]
		dist := body[:h.K*grid]
		cats := body[h.K*grid : 2*h.K*grid]
		prop := body[2*h.K*grid : bodySize-1]

		win := Window{
			LastDistances:  append([]byte(nil), dist[lastOff:lastOff+grid]...),
			LastCategories: append([]byte(nil), cats[lastOff:lastOff+grid]...),
			Proprio:        make([]float32, h.K*pack.ProprioSize),
			Action:         body[bodySize-1],
		}
		for j := range win.Proprio {
			win.Proprio[j] = math.Float32frombits(binary.BigEndian.Uint32(prop[j*4:]))
		}
		res.Windows = append(res.Windows, win)
	}
	return res, nil
}
