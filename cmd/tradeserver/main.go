package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"stockgate/internal/bridge"
	"stockgate/internal/bus"
	"stockgate/internal/config"
	"stockgate/internal/logger"
	"stockgate/internal/login"
	"stockgate/internal/tradeserver"
	"stockgate/internal/web"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfgPath := os.Getenv("STOCKGATE_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/tradeserver.yaml"
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

	session, err := resolveSession(ctx, cfg)
	if err != nil {
		log.Fatalf("resolving session failed: %v", err)
	}
	logger.Infof("session resolved account=%s type=%s", session.AccountID, session.AccountType)

	var transport bus.Transport
	switch cfg.Bus.Mode {
	case "websocket":
		client, err := bus.Dial(ctx, cfg.Bus.URL)
		if err != nil {
			log.Fatalf("dialing bus failed: %v", err)
		}
		transport = client
	default:
		transport = bus.NewMemory()
	}
	defer transport.Close()

	srv, err := tradeserver.New(cfg, session, transport)
	if err != nil {
		log.Fatalf("initializing trade server failed: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		return web.NewServer(cfg.App.HTTPAddr, cfg, srv).Run(ctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("trade server stopped: %v", err)
	}
}

// resolveSession asks the session service for the account descriptor, or
// derives one from local config when no service is configured.
func resolveSession(ctx context.Context, cfg *config.Config) (*login.Session, error) {
	if strings.TrimSpace(cfg.Server.SessionURL) != "" {
		client := login.NewClient(cfg.Server.SessionURL, cfg.Server.SessionToken)
		return client.Fetch(ctx, cfg.Server.AccountID)
	}
	acctType := "cash"
	for _, acct := range cfg.Connector.Accounts {
		if acct.ID == cfg.Server.AccountID {
			acctType = acct.Type
		}
	}
	return &login.Session{
		AccountID:   cfg.Server.AccountID,
		AccountType: acctType,
		PubChannel:  bridge.Channel(cfg.Bus.PubBase, cfg.Server.AccountID),
		SubChannel:  bridge.Channel(cfg.Bus.CmdBase, cfg.Server.AccountID),
	}, nil
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
