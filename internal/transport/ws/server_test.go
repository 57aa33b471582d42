package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"parkourcap.ai/internal/pack"
	"parkourcap.ai/internal/pack/codec"
	"parkourcap.ai/internal/protocol"
	"parkourcap.ai/internal/runmeta"
)

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readType(t *testing.T, conn *websocket.Conn, want string) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode base: %v", err)
		}
		if base.Type == protocol.TypeError {
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			t.Fatalf("server error: %s %s", e.Code, e.Message)
		}
		if base.Type == want {
			return msg
		}
	}
	t.Fatalf("no %s message", want)
	return nil
}

func rawTick(i int, onGround bool) protocol.RawTick {
	return protocol.RawTick{
		Forward:    true,
		Jump:       i%2 == 1,
		Yaw:        float32(10 * i),
		VelocityX:  0.1,
		OnGround:   onGround,
		Height:     64,
		Distances:  [][]float32{{1, 2}, {3, 4}},
		Categories: [][]uint8{{0, 1}, {0, 0}},
	}
}

func TestServer_RecordAndPack(t *testing.T) {
	dir := t.TempDir()
	logger := log.New(io.Discard, "", 0)
	srv := NewServer(dir, 2, pack.Params{}, nil, false, logger)
	srv.KeepRaw(true)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts.URL)
	defer conn.Close()

	sendMsg(t, conn, protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version,
		ClientName: "test-client", Environment: "Singleplayer",
		GridWidth: 2, GridHeight: 2,
	})
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(readType(t, conn, protocol.TypeWelcome), &welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if welcome.SessionID == "" {
		t.Fatalf("empty session id")
	}

	sendMsg(t, conn, protocol.StartMsg{
		Type: protocol.TypeStart, ProtocolVersion: protocol.Version,
		TargetYaw: 0, TargetHeight: 64,
	})
	for i := 0; i < 3; i++ {
		sendMsg(t, conn, protocol.TickMsg{
			Type: protocol.TypeTick, ProtocolVersion: protocol.Version,
			Index: uint64(i), Data: rawTick(i, true),
		})
	}
	sendMsg(t, conn, protocol.StopMsg{Type: protocol.TypeStop, ProtocolVersion: protocol.Version, Save: true})

	var stopped protocol.StoppedMsg
	if err := json.Unmarshal(readType(t, conn, protocol.TypeStopped), &stopped); err != nil {
		t.Fatalf("stopped: %v", err)
	}
	if stopped.Ticks != 3 {
		t.Fatalf("ticks: got %d want 3", stopped.Ticks)
	}
	if stopped.Windows != 2 {
		t.Fatalf("windows: got %d want 2", stopped.Windows)
	}
	if stopped.Artifact == "" {
		t.Fatalf("no artifact name")
	}

	path := filepath.Join(dir, stopped.Artifact)
	res, err := codec.ReadFile(path, logger)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(res.Windows) != 2 || res.Truncated != 0 {
		t.Fatalf("decoded: %d windows, %d truncated", len(res.Windows), res.Truncated)
	}
	if res.Header.GridWidth != 2 || res.Header.GridHeight != 2 || res.Header.K != 2 {
		t.Fatalf("header: %+v", res.Header)
	}

	sc, err := runmeta.Read(runmeta.PathFor(path))
	if err != nil {
		t.Fatalf("sidecar: %v", err)
	}
	if sc.Frames != 3 || sc.Windows != 2 || sc.TargetHeight != 64 {
		t.Fatalf("sidecar: %+v", sc)
	}

	rawPath := strings.TrimSuffix(path, ".bin") + ".run.json.zst"
	raw, err := readRawRun(rawPath)
	if err != nil {
		t.Fatalf("raw run: %v", err)
	}
	if len(raw.Ticks) != 3 || raw.Source != "Singleplayer" || raw.TargetHeight != 64 {
		t.Fatalf("raw run: %d ticks source=%q tfy=%d", len(raw.Ticks), raw.Source, raw.TargetHeight)
	}
	if raw.KeyMappings["vd"] != "visionDistanceGrid" {
		t.Fatalf("raw run legend missing: %v", raw.KeyMappings)
	}
}

// A queue saturated with advisory traffic must still deliver replies once
// the writer drains a slot, and advisories must drop rather than block.
func TestQueueRepliesOutliveFullQueue(t *testing.T) {
	out := make(chan []byte, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !queueAdvisory(out, []byte("w1")) || !queueAdvisory(out, []byte("w2")) {
		t.Fatalf("advisories with free slots should queue")
	}
	if queueAdvisory(out, []byte("w3")) {
		t.Fatalf("advisory on a full queue should drop")
	}

	delivered := make(chan bool, 1)
	go func() { delivered <- queueReply(ctx, out, []byte("stopped")) }()
	select {
	case <-delivered:
		t.Fatalf("reply completed against a full queue")
	case <-time.After(20 * time.Millisecond):
	}

	<-out // writer drains one advisory
	if !<-delivered {
		t.Fatalf("reply should queue once a slot frees")
	}
	if got := string(<-out); got != "w2" {
		t.Fatalf("queue order: got %q want w2", got)
	}
	if got := string(<-out); got != "stopped" {
		t.Fatalf("queue order: got %q want stopped", got)
	}
}

func TestQueueReplyConnectionLoss(t *testing.T) {
	out := make(chan []byte, 1)
	out <- []byte("w1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if queueReply(ctx, out, []byte("stopped")) {
		t.Fatalf("reply should abandon a dead connection")
	}
}

func readRawRun(path string) (protocol.RawRun, error) {
	var raw protocol.RawRun
	f, err := os.Open(path)
	if err != nil {
		return raw, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return raw, err
	}
	defer dec.Close()
	err = json.NewDecoder(dec).Decode(&raw)
	return raw, err
}

func TestServer_DiscardedRun(t *testing.T) {
	dir := t.TempDir()
	srv := NewServer(dir, 2, pack.Params{}, nil, false, log.New(io.Discard, "", 0))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts.URL)
	defer conn.Close()

	sendMsg(t, conn, protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version,
		ClientName: "test-client", GridWidth: 2, GridHeight: 2,
	})
	readType(t, conn, protocol.TypeWelcome)

	sendMsg(t, conn, protocol.StartMsg{Type: protocol.TypeStart, ProtocolVersion: protocol.Version, TargetHeight: 64})
	sendMsg(t, conn, protocol.TickMsg{Type: protocol.TypeTick, ProtocolVersion: protocol.Version, Index: 0, Data: rawTick(0, true)})
	sendMsg(t, conn, protocol.StopMsg{Type: protocol.TypeStop, ProtocolVersion: protocol.Version, Save: false})

	var stopped protocol.StoppedMsg
	if err := json.Unmarshal(readType(t, conn, protocol.TypeStopped), &stopped); err != nil {
		t.Fatalf("stopped: %v", err)
	}
	if stopped.Artifact != "" || stopped.Windows != 0 {
		t.Fatalf("discarded run produced artifact: %+v", stopped)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.bin*"))
	if len(matches) != 0 {
		t.Fatalf("unexpected artifacts: %v", matches)
	}
}
