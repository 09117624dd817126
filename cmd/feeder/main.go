package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sawdustofmind/cricket-live-scoring/internal/feeder"
	"github.com/sawdustofmind/cricket-live-scoring/internal/log"
)

func run() int {
	filePath := flag.String("file", "commands.jsonl", "Path to the recorded command file")
	serverURL := flag.String("server", "ws://localhost:8080", "Live scoring server URL")
	matchID := flag.String("match", "", "Match id to feed")
	speed := flag.Duration("speed", 100*time.Millisecond, "delay between sending command frames")
	flag.Parse()

	if *matchID == "" {
		log.Error("A match id is required (-match)")
		return 1
	}

	log.Info("Starting Feeder",
		zap.String("file", *filePath),
		zap.String("server_url", *serverURL),
		zap.String("match_id", *matchID),
		zap.Duration("speed", *speed),
	)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutdown signal received, stopping")
		cancel()
	}()

	log.Info("Parsing command file")
	commands, err := feeder.ParseFile(*filePath)
	if err != nil {
		log.Error("Error parsing file", zap.Error(err))
		return 1
	}
	if len(commands) == 0 {
		log.Error("No commands to replay")
		return 1
	}

	sender := feeder.NewSender(*serverURL, *matchID)
	if err := sender.Connect(ctx); err != nil {
		log.Error("Error connecting to server", zap.Error(err))
		return 1
	}
	defer func() {
		if err := sender.Close(); err != nil {
			log.Error("Error closing connection", zap.Error(err))
		}
	}()

	log.Info("Starting command replay", zap.Int("command_count", len(commands)))
	if err := sender.ReplayCommands(ctx, commands, *speed); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("Error replaying commands", zap.Error(err))
			return 1
		}
	}

	log.Info("Feeder finished successfully")
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
