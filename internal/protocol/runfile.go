package protocol

// Raw run files use the capture client's short-key JSON layout. The "map"
// field spells out what each short key means so a run file is
// self-describing; readers only rely on the keys below.

// RawRun is one recorded run as written by the capture client.
type RawRun struct {
	StartMillis  int64             `json:"ts"`
	StopMillis   int64             `json:"te"`
	Source       string            `json:"ip"` // server address or "Singleplayer"
	TargetYaw    float32           `json:"ty"`
	TargetHeight int               `json:"tfy"`
	KeyMappings  map[string]string `json:"map,omitempty"`
	Ticks        []RawTick         `json:"d"`
}

// RawTick is one captured simulation step.
type RawTick struct {
	Forward bool `json:"f"`
	Left    bool `json:"l"`
	Right   bool `json:"r"`
	Back    bool `json:"b"`
	Jump    bool `json:"j"`
	Sneak   bool `json:"n"`
	Sprint  bool `json:"s"`

	Yaw float32 `json:"y"`

	VelocityX float32 `json:"vx"`
	VelocityY float32 `json:"vy"`
	VelocityZ float32 `json:"vz"`

	OnGround             bool `json:"g"`
	CollidedHorizontally bool `json:"ch"`
	CollidedVertically   bool `json:"cv"`

	Height float32 `json:"py"`

	Distances  [][]float32 `json:"vd"` // row-major, H rows of W
	Categories [][]uint8   `json:"vb"`
	InFallZone bool        `json:"fz"`
}

// RunKeyMappings is the canonical short-key legend embedded in run files.
func RunKeyMappings() map[string]string {
	return map[string]string{
		"ts":  "startTimestampMillis",
		"te":  "stopTimestampMillis",
		"ip":  "source",
		"ty":  "targetYaw",
		"tfy": "targetHeight",
		"map": "keyMappings",
		"d":   "tickList",
		"f":   "inputForward",
		"l":   "inputLeft",
		"r":   "inputRight",
		"b":   "inputBack",
		"j":   "inputJump",
		"n":   "inputSneak",
		"s":   "inputSprint",
		"y":   "yaw",
		"vx":  "velocityX",
		"vy":  "velocityY",
		"vz":  "velocityZ",
		"g":   "onGround",
		"ch":  "collidedHorizontally",
		"cv":  "collidedVertically",
		"py":  "height",
		"vd":  "visionDistanceGrid",
		"vb":  "visionCategoryGrid",
		"fz":  "inFallZone",
	}
}
