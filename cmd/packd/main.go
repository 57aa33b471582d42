package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parkourcap.ai/internal/rundb"
	"parkourcap.ai/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to packd.yaml (optional)")
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		dataDir    = flag.String("data", "", "artifact directory (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[packd] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	var index *rundb.DB
	if cfg.IndexDB != "" {
		index, err = rundb.Open(cfg.IndexDB)
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer index.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	capSrv := ws.NewServer(cfg.DataDir, cfg.WindowLength, cfg.Quantizer, index, cfg.Compress, logger)
	capSrv.KeepRaw(cfg.KeepRaw)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/capture", capSrv.Handler())

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (k=%d, data=%s)", cfg.Listen, cfg.WindowLength, cfg.DataDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
