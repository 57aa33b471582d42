package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"parkourcap.ai/internal/pack"
	"parkourcap.ai/internal/pack/codec"
	"parkourcap.ai/internal/rundb"
	"parkourcap.ai/internal/runmeta"
)

func main() {
	var (
		artPath = flag.String("artifact", "", "path to packed artifact (.bin or .bin.zst)")
		dumpIdx = flag.Int("window", -1, "dump one window as JSON (index, optional)")
		indexDB = flag.String("index", "", "sqlite run index to consult (optional)")
		list    = flag.Bool("list", false, "list every indexed run instead of inspecting one artifact")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[inspect] ", log.LstdFlags)

	if *list {
		if *indexDB == "" {
			fmt.Fprintln(os.Stderr, "-list needs -index")
			os.Exit(2)
		}
		if err := listRuns(*indexDB); err != nil {
			fmt.Fprintln(os.Stderr, "list:", err)
			os.Exit(1)
		}
		return
	}

	if *artPath == "" {
		fmt.Fprintln(os.Stderr, "missing -artifact")
		os.Exit(2)
	}

	res, err := codec.ReadFile(*artPath, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read artifact:", err)
		os.Exit(1)
	}

	h := res.Header
	fmt.Printf("artifact v%d grid=%dx%d k=%d windows=%d", h.Version, h.GridWidth, h.GridHeight, h.K, len(res.Windows))
	if res.Truncated > 0 {
		fmt.Printf(" (truncated: %d declared windows missing)", res.Truncated)
	}
	fmt.Println()

	if sc, err := runmeta.Read(runmeta.PathFor(*artPath)); err == nil {
		fmt.Printf("sidecar source=%q target_yaw=%.1f target_height=%d frames=%d windows=%d dropped=%d created=%s\n",
			sc.Source, sc.TargetYaw, sc.TargetHeight, sc.Frames, sc.Windows, sc.Dropped, sc.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	if *indexDB != "" {
		if err := printIndexRow(*indexDB, *artPath); err != nil {
			fmt.Fprintln(os.Stderr, "index:", err)
			os.Exit(1)
		}
	}

	if *dumpIdx < 0 {
		return
	}
	if *dumpIdx >= len(res.Windows) {
		fmt.Fprintf(os.Stderr, "window %d out of range (have %d)\n", *dumpIdx, len(res.Windows))
		os.Exit(1)
	}
	if err := dumpWindow(h, res.Windows[*dumpIdx]); err != nil {
		fmt.Fprintln(os.Stderr, "dump:", err)
		os.Exit(1)
	}
}

func listRuns(dbPath string) error {
	db, err := rundb.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.List(context.Background())
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s source=%q grid=%dx%d k=%d frames=%d windows=%d dropped=%d created=%s\n",
			r.Path, r.Source, r.GridWidth, r.GridHeight, r.K, r.Frames, r.Windows, r.Dropped,
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printIndexRow(dbPath, artifact string) error {
	db, err := rundb.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := db.ByPath(context.Background(), artifact)
	if err != nil {
		return err
	}
	fmt.Printf("index sha256=%s windows=%d dropped=%d created=%s\n",
		r.SHA256, r.Windows, r.Dropped, r.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

// dumpWindow prints one window with quantized bytes de-normalized back to
// block distances, grouped per proprioceptive tick.
func dumpWindow(h codec.Header, w codec.Window) error {
	grid := h.GridWidth * h.GridHeight
	dist := make([][]float32, h.GridHeight)
	cats := make([][]uint8, h.GridHeight)
	for row := 0; row < h.GridHeight; row++ {
		dist[row] = make([]float32, h.GridWidth)
		cats[row] = make([]uint8, h.GridWidth)
		for col := 0; col < h.GridWidth; col++ {
			i := row*h.GridWidth + col
			if i < grid && i < len(w.LastDistances) {
				dist[row][col] = pack.DequantizeDistance(w.LastDistances[i])
				cats[row][col] = w.LastCategories[i]
			}
		}
	}

	proprio := make([][]float32, h.K)
	for t := 0; t < h.K; t++ {
		proprio[t] = append([]float32(nil), w.Proprio[t*pack.ProprioSize:(t+1)*pack.ProprioSize]...)
	}

	out := struct {
		Distances  [][]float32 `json:"distances"`
		Categories [][]uint8   `json:"categories"`
		Proprio    [][]float32 `json:"proprio"`
		Action     uint8       `json:"action"`
	}{dist, cats, proprio, w.Action}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
