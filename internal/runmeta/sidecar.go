// Package runmeta reads and writes the YAML sidecar that accompanies each
// packed artifact. The sidecar carries the session constants a consumer
// needs to de-normalize the packed values; the artifact alone is not
// self-describing beyond its grid shape.
package runmeta

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"parkourcap.ai/internal/capture"
)

type Sidecar struct {
	TargetYaw    float32 `yaml:"target_yaw"`
	TargetHeight int     `yaml:"target_height"`
	GridWidth    int     `yaml:"grid_width"`
	GridHeight   int     `yaml:"grid_height"`
	K            int     `yaml:"k"`
	Frames       int     `yaml:"frames"`
	Windows      int     `yaml:"windows"`
	Dropped      int     `yaml:"dropped,omitempty"`

	Source    string    `yaml:"source,omitempty"`
	Artifact  string    `yaml:"artifact,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
}

// FromSession builds the sidecar for a packed run.
func FromSession(sess capture.Session, windows, dropped int) Sidecar {
	return Sidecar{
		TargetYaw:    sess.TargetYaw,
		TargetHeight: sess.TargetHeight,
		GridWidth:    sess.GridWidth,
		GridHeight:   sess.GridHeight,
		K:            sess.K,
		Frames:       sess.Frames,
		Windows:      windows,
		Dropped:      dropped,
		CreatedAt:    time.Now().UTC(),
	}
}

// Session rebuilds the session constants a reader needs.
func (s Sidecar) Session() capture.Session {
	return capture.Session{
		TargetYaw:    s.TargetYaw,
		TargetHeight: s.TargetHeight,
		GridWidth:    s.GridWidth,
		GridHeight:   s.GridHeight,
		K:            s.K,
		Frames:       s.Frames,
	}
}

// PathFor is the conventional sidecar path next to an artifact.
func PathFor(artifact string) string {
	return artifact + ".meta.yml"
}

func Write(path string, sc Sidecar) error {
	b, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("runmeta: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("runmeta: write %s: %w", path, err)
	}
	return nil
}

func Read(path string) (Sidecar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Sidecar{}, fmt.Errorf("runmeta: read %s: %w", path, err)
	}
	var sc Sidecar
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return Sidecar{}, fmt.Errorf("runmeta: parse %s: %w", path, err)
	}
	return sc, nil
}
