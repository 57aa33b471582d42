package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"parkourcap.ai/internal/capture"
	"parkourcap.ai/internal/pack"
)

// Backend materializes one quantized run as an artifact. Binary is the
// production format; JSON is the nested-array debug format. Both encode
// the same quantized values, so a window diff between the two formats
// isolates codec bugs from quantizer bugs.
type Backend interface {
	Pack(w io.Writer, sess capture.Session, wins []pack.EncodedWindow) error
}

type BinaryBackend struct{}

func (BinaryBackend) Pack(w io.Writer, sess capture.Session, wins []pack.EncodedWindow) error {
	return Write(w, sess, wins)
}

type JSONBackend struct {
	Indent bool
}

// jsonArtifact mirrors the binary layout field-for-field with the run
// file's short-key convention.
type jsonArtifact struct {
	TargetYaw    float32      `json:"ty"`
	TargetHeight int          `json:"tfy"`
	GridWidth    int          `json:"w"`
	GridHeight   int          `json:"h"`
	K            int          `json:"k"`
	Count        int          `json:"n"`
	Windows      []jsonWindow `json:"d"`
}

// Grid bytes stay plain integer arrays here (not base64) so a debug
// artifact is readable as-is.
type jsonWindow struct {
	Distances  []int     `json:"vd"` // K*W*H, same order as the binary body
	Categories []int     `json:"vb"`
	Proprio    []float32 `json:"p"`
	Action     uint8     `json:"a"`
}

func toInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func (j JSONBackend) Pack(w io.Writer, sess capture.Session, wins []pack.EncodedWindow) error {
	art := jsonArtifact{
		TargetYaw:    sess.TargetYaw,
		TargetHeight: sess.TargetHeight,
		GridWidth:    sess.GridWidth,
		GridHeight:   sess.GridHeight,
		K:            sess.K,
		Count:        len(wins),
		Windows:      make([]jsonWindow, len(wins)),
	}
	for i, win := range wins {
		art.Windows[i] = jsonWindow{
			Distances:  toInts(win.Distances),
			Categories: toInts(win.Categories),
			Proprio:    win.Proprio,
			Action:     win.Action,
		}
	}
	enc := json.NewEncoder(w)
	if j.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(art); err != nil {
		return fmt.Errorf("codec: encode json artifact: %w", err)
	}
	return nil
}
