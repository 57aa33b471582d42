package capture

import (
	"time"

	"parkourcap.ai/internal/protocol"
)

// RunFromRaw rebuilds a Run from its run-file form.
func RunFromRaw(raw protocol.RawRun) Run {
	run := Run{
		TargetYaw:    raw.TargetYaw,
		TargetHeight: raw.TargetHeight,
		StartedAt:    time.UnixMilli(raw.StartMillis),
		StoppedAt:    time.UnixMilli(raw.StopMillis),
		Ticks:        make([]TickRecord, len(raw.Ticks)),
	}
	for i, rt := range raw.Ticks {
		run.Ticks[i] = FromRaw(rt)
	}
	return run
}

// Raw converts the run into its run-file form, legend included.
func (r Run) Raw(source string) protocol.RawRun {
	raw := protocol.RawRun{
		StartMillis:  r.StartedAt.UnixMilli(),
		StopMillis:   r.StoppedAt.UnixMilli(),
		Source:       source,
		TargetYaw:    r.TargetYaw,
		TargetHeight: r.TargetHeight,
		KeyMappings:  protocol.RunKeyMappings(),
		Ticks:        make([]protocol.RawTick, len(r.Ticks)),
	}
	for i := range r.Ticks {
		raw.Ticks[i] = r.Ticks[i].Raw()
	}
	return raw
}
