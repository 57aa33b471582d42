package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	Environment     string `json:"environment,omitempty"` // e.g. server address the client is attached to
	GridWidth       int    `json:"grid_width"`
	GridHeight      int    `json:"grid_height"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
}

// START (client -> server): begin a recording run. TargetYaw is the facing
// at the moment recording starts; TargetHeight is the fall-zone floor.
type StartMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	TargetYaw       float32 `json:"target_yaw"`
	TargetHeight    int     `json:"target_height"`
}

// TICK (client -> server): one captured simulation step. Index must
// increase by exactly one per message within a run.
type TickMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Index           uint64  `json:"index"`
	Data            RawTick `json:"data"`
}

// STOP (client -> server): end the run. Save=false discards it.
type StopMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Save            bool   `json:"save"`
}

// STOPPED (server -> client): run outcome after a STOP.
type StoppedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ticks           int    `json:"ticks"`
	Windows         int    `json:"windows"`
	Artifact        string `json:"artifact,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

// WARNING (server -> client): advisory only, e.g. the fall-zone distance
// warning emitted on a fixed tick cadence.
type WarningMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Message         string `json:"message"`
}
