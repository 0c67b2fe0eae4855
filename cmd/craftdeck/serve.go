package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craftdeck/craftdeck"
	"github.com/craftdeck/craftdeck/internal/logger"
)

// stopGrace bounds how long shutdown waits for the wrapped server to exit
// after the cooperative stop command.
const stopGrace = 30 * time.Second

func runServe(configPath string) error {
	cfg, err := craftdeck.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	log := logger.New(slog.LevelInfo)
	deck, err := craftdeck.New(cfg, log)
	if err != nil {
		return fmt.Errorf("error assembling daemon: %w", err)
	}

	srv, err := deck.NewHTTPServer(cfg.Listen)
	if err != nil {
		return fmt.Errorf("error starting HTTP server: %w", err)
	}
	log.Info("craftdeck daemon listening", "addr", cfg.Listen, "base_path", cfg.BasePath)
	deck.Announce("Server Manager ready")
	deck.Announce("Server: " + cfg.Server.WorkDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("shutting down", "signal", s.String())

	// Stop the wrapped server first so it can save its world cleanly.
	if deck.Status() != craftdeck.StatusStopped {
		deck.Stop()
		waitStopped(deck)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("HTTP shutdown failed", "error", err)
	}
	return deck.Close()
}

func waitStopped(deck *craftdeck.Deck) {
	deadline := time.Now().Add(stopGrace)
	for time.Now().Before(deadline) {
		if deck.Status() == craftdeck.StatusStopped {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}
