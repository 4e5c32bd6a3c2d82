package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"stockgate/internal/bus"
	"stockgate/internal/config"
	"stockgate/internal/connector"
	"stockgate/internal/logger"
	"stockgate/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfgPath := os.Getenv("STOCKGATE_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/connector.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("initializing log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded env=%s accounts=%d", cfg.App.Env, len(cfg.Connector.Accounts))

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("opening store failed: %v", err)
	}
	defer st.Close()

	g, ctx := errgroup.WithContext(ctx)

	var transport bus.Transport
	switch cfg.Bus.Mode {
	case "websocket":
		hub := bus.NewHub()
		transport = hub
		g.Go(func() error {
			return serveHub(ctx, cfg.Bus.HubAddr, hub)
		})
	default:
		transport = bus.NewMemory()
	}
	defer transport.Close()

	conn, err := connector.New(cfg, transport, st)
	if err != nil {
		log.Fatalf("initializing connector failed: %v", err)
	}
	g.Go(func() error {
		return conn.Run(ctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("connector stopped: %v", err)
	}
}

func serveHub(ctx context.Context, addr string, hub *bus.Hub) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Infof("bus hub listening addr=%s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		_ = srv.Close()
		return ctx.Err()
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
