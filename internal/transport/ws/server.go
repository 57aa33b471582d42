// Package ws accepts a live tick stream from a capture client over a
// websocket and drives one Recorder per connection. The client is the
// host-environment side of the boundary: it samples the world and sends
// ordered TICK messages; stopping a run packs it straight to an artifact.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"parkourcap.ai/internal/capture"
	"parkourcap.ai/internal/pack"
	"parkourcap.ai/internal/pack/codec"
	"parkourcap.ai/internal/protocol"
	"parkourcap.ai/internal/rundb"
	"parkourcap.ai/internal/runmeta"
)

type Server struct {
	log   *log.Logger
	index *rundb.DB // optional

	dataDir  string
	k        int
	par      pack.Params
	compress bool
	keepRaw  bool

	sessions atomic.Int64

	upgrader websocket.Upgrader
}

func NewServer(dataDir string, k int, par pack.Params, index *rundb.DB, compress bool, logger *log.Logger) *Server {
	return &Server{
		log:      logger,
		index:    index,
		dataDir:  dataDir,
		k:        k,
		par:      par,
		compress: compress,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// KeepRaw also writes each saved run's raw run-file JSON next to the
// packed artifact, the way the capture client would on its own.
func (s *Server) KeepRaw(v bool) { s.keepRaw = v }

// session is one connection's recording state. All access happens on the
// connection's reader goroutine.
type session struct {
	id       string
	source   string
	gridW    int
	gridH    int
	recorder *capture.Recorder
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, out := s.handshake(conn)
		if sess == nil {
			return
		}
		s.log.Printf("session %s: connected from %s (%dx%d grid)", sess.id, sess.source, sess.gridW, sess.gridH)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Replies (STOPPED, ERROR) are what the client blocks on, so they
		// wait for a queue slot; advisories may be dropped behind a stalled
		// writer but never displace a reply.
		reply := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			queueReply(ctx, out, b)
		}
		advise := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			queueAdvisory(out, b)
		}
		sess.recorder.OnWarning(func(msg string) {
			advise(protocol.WarningMsg{Type: protocol.TypeWarning, ProtocolVersion: protocol.Version, Message: msg})
		})

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.ProtocolVersion != protocol.Version {
				continue
			}
			switch base.Type {
			case protocol.TypeStart:
				s.handleStart(sess, msg, reply)
			case protocol.TypeTick:
				s.handleTick(sess, msg, reply, advise)
			case protocol.TypeStop:
				s.handleStop(sess, msg, reply)
			}
		}

		if sess.recorder.Recording() {
			s.log.Printf("session %s: connection lost mid-recording, discarding run", sess.id)
			_, _ = sess.recorder.Stop(false)
		}
		s.log.Printf("session %s: disconnected", sess.id)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (*session, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, nil
	}
	if hello.GridWidth <= 0 || hello.GridHeight <= 0 {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad grid dimensions"), time.Now().Add(time.Second))
		return nil, nil
	}
	source := hello.Environment
	if source == "" {
		source = "Singleplayer"
	}

	sess := &session{
		id:       fmt.Sprintf("s%d", s.sessions.Add(1)),
		source:   source,
		gridW:    hello.GridWidth,
		gridH:    hello.GridHeight,
		recorder: capture.NewRecorder(s.log),
	}

	welcome := protocol.WelcomeMsg{Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, SessionID: sess.id}
	b, _ := json.Marshal(welcome)
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return nil, nil
	}
	return sess, make(chan []byte, 16)
}

func (s *Server) handleStart(sess *session, msg []byte, send func(any)) {
	var start protocol.StartMsg
	if err := json.Unmarshal(msg, &start); err != nil {
		s.sendErr(send, protocol.ErrProtoBadRequest, "malformed START")
		return
	}
	if err := sess.recorder.SetTargetHeight(start.TargetHeight); err != nil {
		s.sendErr(send, codeFor(err), err.Error())
		return
	}
	if err := sess.recorder.Start(start.TargetYaw); err != nil {
		s.sendErr(send, codeFor(err), err.Error())
	}
}

func (s *Server) handleTick(sess *session, msg []byte, reply, advise func(any)) {
	var tick protocol.TickMsg
	if err := json.Unmarshal(msg, &tick); err != nil {
		s.sendErr(reply, protocol.ErrProtoBadRequest, "malformed TICK")
		return
	}
	rec := capture.FromRaw(tick.Data)
	if !rec.HasGridDims(sess.gridW, sess.gridH) {
		// Advisory: the tick is still recorded and the windower will drop
		// the windows it poisons, but the client should know immediately.
		s.sendErr(advise, protocol.ErrGridMismatch,
			fmt.Sprintf("tick %d grids are not %dx%d", tick.Index, sess.gridW, sess.gridH))
	}
	if err := sess.recorder.Record(tick.Index, rec); err != nil {
		s.sendErr(reply, codeFor(err), err.Error())
	}
}

func (s *Server) handleStop(sess *session, msg []byte, send func(any)) {
	var stop protocol.StopMsg
	if err := json.Unmarshal(msg, &stop); err != nil {
		s.sendErr(send, protocol.ErrProtoBadRequest, "malformed STOP")
		return
	}
	run, err := sess.recorder.Stop(stop.Save)
	if err != nil {
		s.sendErr(send, codeFor(err), err.Error())
		return
	}
	stopped := protocol.StoppedMsg{Type: protocol.TypeStopped, ProtocolVersion: protocol.Version, Ticks: len(run.Ticks)}
	if stop.Save {
		artifact, windows, err := s.packRun(sess, run)
		if err != nil {
			s.log.Printf("session %s: pack failed: %v", sess.id, err)
			s.sendErr(send, protocol.ErrInternal, "packing failed")
			return
		}
		stopped.Windows = windows
		stopped.Artifact = artifact
	}
	send(stopped)
}

func (s *Server) packRun(sess *session, run capture.Run) (string, int, error) {
	meta := run.Session(s.k)
	wins, stats, err := pack.BuildWindows(meta, run.Ticks, s.par, s.log)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return "", 0, err
	}
	name := fmt.Sprintf("%s_%s.bin", sanitize(sess.source), run.StoppedAt.Format("20060102_150405"))
	if s.compress {
		name += ".zst"
	}
	path := filepath.Join(s.dataDir, name)

	if err := codec.WriteFile(path, codec.BinaryBackend{}, meta, wins); err != nil {
		return "", 0, err
	}
	if s.keepRaw {
		rawPath := strings.TrimSuffix(strings.TrimSuffix(path, ".zst"), ".bin") + ".run.json.zst"
		if err := writeRawRun(rawPath, run.Raw(sess.source)); err != nil {
			return "", 0, err
		}
	}
	sc := runmeta.FromSession(meta, stats.Windows, stats.Dropped)
	sc.Source = sess.source
	sc.Artifact = name
	if err := runmeta.Write(runmeta.PathFor(path), sc); err != nil {
		return "", 0, err
	}

	if s.index != nil {
		sum, err := rundb.FileSHA256(path)
		if err != nil {
			return "", 0, err
		}
		_, err = s.index.Insert(context.Background(), rundb.Run{
			Path:         path,
			SHA256:       sum,
			Source:       sess.source,
			TargetYaw:    float64(meta.TargetYaw),
			TargetHeight: meta.TargetHeight,
			GridWidth:    meta.GridWidth,
			GridHeight:   meta.GridHeight,
			K:            meta.K,
			Frames:       meta.Frames,
			Windows:      stats.Windows,
			Dropped:      stats.Dropped,
			CreatedAt:    sc.CreatedAt,
		})
		if err != nil {
			return "", 0, err
		}
	}

	s.log.Printf("session %s: packed %d windows (%d dropped) -> %s", sess.id, stats.Windows, stats.Dropped, path)
	return name, stats.Windows, nil
}

// queueReply enqueues a response the client is waiting on. It blocks until
// the writer frees a slot or the connection dies; it is never dropped
// behind queued advisory traffic.
func queueReply(ctx context.Context, out chan<- []byte, b []byte) bool {
	select {
	case out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

// queueAdvisory enqueues best-effort traffic. A full queue drops it rather
// than stall the tick stream.
func queueAdvisory(out chan<- []byte, b []byte) bool {
	select {
	case out <- b:
		return true
	default:
		return false
	}
}

func (s *Server) sendErr(send func(any), code, msg string) {
	send(protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, Code: code, Message: msg})
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, capture.ErrSessionActive):
		return protocol.ErrSessionActive
	case errors.Is(err, capture.ErrNoSession):
		return protocol.ErrNoSession
	case errors.Is(err, capture.ErrNoTargetHeight):
		return protocol.ErrNoTargetHeight
	case errors.Is(err, capture.ErrTickOrder):
		return protocol.ErrTickOutOfOrder
	case errors.Is(err, capture.ErrNoData):
		return protocol.ErrNoData
	default:
		return protocol.ErrInternal
	}
}

func writeRawRun(path string, raw protocol.RawRun) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	if err := json.NewEncoder(enc).Encode(raw); err != nil {
		enc.Close()
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

func sanitize(source string) string {
	return unsafeChars.ReplaceAllString(source, "_")
}
