package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/peteski22/prior-consent/internal/grpcplugin"
)

const version = "1.0.0"

func main() {
	var (
		address      = flag.String("address", "", "Address to listen on (e.g., /tmp/plugin.sock or localhost:50051)")
		network      = flag.String("network", "unix", "Network type: 'unix' or 'tcp'")
		settingsPath = flag.String("settings", "settings.yaml", "Path to the YAML settings file")
	)
	flag.Parse()

	if *address == "" {
		log.Fatal("--address is required")
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "consent-gate",
		Level:  hclog.Info,
		Output: os.Stderr,
	})

	registry, err := grpcplugin.OpenRegistry(*settingsPath, logger)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	gate := grpcplugin.NewServer(registry, version, logger)

	// Handle graceful shutdown.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		_, _ = gate.Stop(context.Background(), &emptypb.Empty{})
	}()

	if err := grpcplugin.Serve(*network, *address, gate); err != nil {
		log.Fatalf("Failed to serve: %v", err)
	}
}
