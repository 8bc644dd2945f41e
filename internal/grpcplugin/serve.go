package grpcplugin

import (
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/go-hclog"
	pb "github.com/mozilla-ai/mcpd-plugins-sdk-go/pkg/plugins/v1/plugins"
	"google.golang.org/grpc"

	"github.com/peteski22/prior-consent/internal/addons"
	"github.com/peteski22/prior-consent/internal/settings"
)

// OpenRegistry loads the settings file at path and builds the addon registry over it.
func OpenRegistry(path string, logger hclog.Logger) (*addons.Registry, error) {
	store, err := settings.NewFileStore(path, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		return nil, err
	}
	return addons.NewRegistry(addons.DefaultCatalog(), settings.NewService(store, logger), settings.NewPluginState(store), logger)
}

// Serve listens on address and serves gate until the host asks it to stop.
func Serve(network, address string, gate *Server) error {
	if network == "unix" {
		// Clean up existing socket if it exists.
		_ = os.Remove(address)
	}
	listener, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer func() {
		if network == "unix" {
			_ = os.Remove(address)
		}
	}()

	grpcServer := grpc.NewServer()
	pb.RegisterPluginServer(grpcServer, gate)
	gate.OnStop(grpcServer.GracefulStop)

	gate.logger.Info("plugin listening", "address", address, "network", network)
	return grpcServer.Serve(listener)
}
