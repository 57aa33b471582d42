package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"parkourcap.ai/internal/capture"
	"parkourcap.ai/internal/pack"
	"parkourcap.ai/internal/pack/codec"
	"parkourcap.ai/internal/protocol"
	"parkourcap.ai/internal/rundb"
	"parkourcap.ai/internal/runmeta"
)

func main() {
	var (
		runPath  = flag.String("run", "", "path to raw run .json (or .json.zst)")
		outPath  = flag.String("out", "", "artifact path (default: <run>.bin)")
		k        = flag.Int("k", 4, "ticks per window")
		compress = flag.Bool("compress", false, "zstd-compress the artifact (forces .zst suffix)")
		jsonOut  = flag.String("json", "", "also write a readable JSON rendition here (optional)")
		indexDB  = flag.String("index", "", "sqlite index db to record the artifact in (optional)")
		maxVel   = flag.Float64("max_velocity", 0, "velocity normalization bound (0 = default)")
		maxDist  = flag.Float64("max_distance", 0, "distance clamp before scaling (0 = default)")
	)
	flag.Parse()

	if *runPath == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}

	logger := log.New(os.Stdout, "[pack] ", log.LstdFlags|log.Lmicroseconds)

	raw, err := readRun(*runPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read run:", err)
		os.Exit(1)
	}
	run := capture.RunFromRaw(raw)
	if len(run.Ticks) == 0 {
		fmt.Fprintln(os.Stderr, "run has no ticks")
		os.Exit(1)
	}

	sess := run.Session(*k)
	par := pack.Params{MaxVelocity: float32(*maxVel), MaxDistance: float32(*maxDist)}
	wins, stats, err := pack.BuildWindows(sess, run.Ticks, par, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build windows:", err)
		os.Exit(1)
	}

	out := *outPath
	if out == "" {
		out = strings.TrimSuffix(strings.TrimSuffix(*runPath, ".zst"), ".json") + ".bin"
	}
	if *compress && !strings.HasSuffix(out, ".zst") {
		out += ".zst"
	}

	if err := codec.WriteFile(out, codec.BinaryBackend{}, sess, wins); err != nil {
		fmt.Fprintln(os.Stderr, "write artifact:", err)
		os.Exit(1)
	}
	sc := runmeta.FromSession(sess, stats.Windows, stats.Dropped)
	sc.Source = raw.Source
	if err := runmeta.Write(runmeta.PathFor(out), sc); err != nil {
		fmt.Fprintln(os.Stderr, "write sidecar:", err)
		os.Exit(1)
	}

	if *jsonOut != "" {
		if err := codec.WriteFile(*jsonOut, codec.JSONBackend{}, sess, wins); err != nil {
			fmt.Fprintln(os.Stderr, "write json:", err)
			os.Exit(1)
		}
	}

	if *indexDB != "" {
		if err := indexArtifact(*indexDB, out, raw.Source, sess, stats, sc); err != nil {
			fmt.Fprintln(os.Stderr, "index:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("packed %d windows (%d dropped) from %d ticks -> %s\n", stats.Windows, stats.Dropped, sess.Frames, out)
}

func readRun(path string) (protocol.RawRun, error) {
	var raw protocol.RawRun
	f, err := os.Open(path)
	if err != nil {
		return raw, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return raw, err
		}
		defer dec.Close()
		r = dec
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return raw, fmt.Errorf("decode run: %w", err)
	}
	return raw, nil
}

func indexArtifact(dbPath, artifact, source string, sess capture.Session, stats pack.Stats, sc runmeta.Sidecar) error {
	db, err := rundb.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	sum, err := rundb.FileSHA256(artifact)
	if err != nil {
		return err
	}
	_, err = db.Insert(context.Background(), rundb.Run{
		Path:         artifact,
		SHA256:       sum,
		Source:       source,
		TargetYaw:    float64(sess.TargetYaw),
		TargetHeight: sess.TargetHeight,
		GridWidth:    sess.GridWidth,
		GridHeight:   sess.GridHeight,
		K:            sess.K,
		Frames:       sess.Frames,
		Windows:      stats.Windows,
		Dropped:      stats.Dropped,
		CreatedAt:    sc.CreatedAt,
	})
	return err
}
