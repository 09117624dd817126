package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sawdustofmind/cricket-live-scoring/internal/hub"
	"github.com/sawdustofmind/cricket-live-scoring/internal/log"
	"github.com/sawdustofmind/cricket-live-scoring/internal/mirror"
	"github.com/sawdustofmind/cricket-live-scoring/internal/server"
	"github.com/sawdustofmind/cricket-live-scoring/internal/store"
)

func run() int {
	port := flag.String("port", "8080", "Port to listen on")
	redisAddr := flag.String("redis", "", "Redis address for the read-side mirror (empty disables it)")
	pingInterval := flag.Duration("ping-interval", 30*time.Second, "Keep-alive ping interval")
	pongTimeout := flag.Duration("pong-timeout", 75*time.Second, "Max silence before a viewer is dropped")
	maxFrame := flag.Int64("max-frame", 64*1024, "Max inbound WebSocket frame size in bytes")
	origin := flag.String("origin", "", "Allowed WebSocket origin (empty allows any)")
	flag.Parse()

	log.Info("Starting Live Scoring Server",
		zap.String("port", *port),
		zap.String("redis_addr", *redisAddr),
		zap.Duration("ping_interval", *pingInterval),
	)

	var mir *mirror.Mirror
	if *redisAddr != "" {
		var err error
		mir, err = mirror.New(*redisAddr)
		if err != nil {
			log.Error("Failed to initialize mirror", zap.Error(err))
			return 1
		}
		defer func() {
			if err := mir.Close(); err != nil {
				log.Error("Failed to close mirror", zap.Error(err))
			}
		}()
	}

	st := store.New()
	h := hub.New(st)

	cfg := server.Defaults()
	cfg.PingInterval = *pingInterval
	cfg.PongTimeout = *pongTimeout
	cfg.MaxFrameSize = *maxFrame
	cfg.AllowedOrigin = *origin

	srv := server.New(cfg, st, h, mir)

	httpServer := &http.Server{
		Addr:    ":" + *port,
		Handler: srv.Router(),
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Live scoring server listening", zap.String("port", *port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Info("Shutdown signal received, stopping server")
	case <-errChan:
		return 1
	}

	if err := httpServer.Close(); err != nil {
		log.Error("Error closing server", zap.Error(err))
	}
	log.Info("Live scoring server stopped")
	return 0
}

func main() {
	// Initialize global logger
	if err := log.Init(true); err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	os.Exit(run())
}
