package grpcplugin

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	pb "github.com/mozilla-ai/mcpd-plugins-sdk-go/pkg/plugins/v1/plugins"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	startTimeout = 10 * time.Second
	callTimeout  = 5 * time.Second
	stopTimeout  = 5 * time.Second
	exitTimeout  = 2 * time.Second
)

// Client runs a plugin binary as a child process and talks to it over gRPC.
// NOTE: Use Launch to create a Client.
type Client struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
	conn    *grpc.ClientConn
	plugin  pb.PluginClient
	name    string
	address string
	network string
	logger  hclog.Logger
}

// Launch starts binaryPath with args after the address flags, waits for its
// socket, configures it with custom and checks that it handles the response flow.
func Launch(ctx context.Context, binaryPath string, args []string, custom map[string]string, logger hclog.Logger) (*Client, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("plugin-client")
	logger.Info("starting plugin", "path", binaryPath)

	address, network := pluginAddress(filepath.Base(binaryPath))
	cmd := exec.CommandContext(ctx, binaryPath, append([]string{"--address", address, "--network", network}, args...)...)
	cmd.Stdout = logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true})
	cmd.Stderr = logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true})

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}
	logger.Debug("plugin process started", "pid", cmd.Process.Pid, "address", address, "network", network)

	c := &Client{cmd: cmd, exited: make(chan struct{}), address: address, network: network, logger: logger}
	go func() {
		c.waitErr = cmd.Wait()
		close(c.exited)
	}()

	dialCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := waitForSocket(dialCtx, network, address, c.exited); err != nil {
		c.kill()
		return nil, fmt.Errorf("plugin didn't start: %w", err)
	}

	target := address
	if network == "unix" {
		target = "unix://" + address
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		c.kill()
		return nil, fmt.Errorf("failed to connect to plugin: %w", err)
	}
	c.conn = conn
	c.plugin = pb.NewPluginClient(conn)

	if err := c.handshake(ctx, custom); err != nil {
		c.close()
		c.kill()
		return nil, err
	}

	return c, nil
}

func (c *Client) handshake(ctx context.Context, custom map[string]string) error {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	meta, err := c.plugin.GetMetadata(callCtx, &emptypb.Empty{})
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}
	c.name = meta.GetName()

	caps, err := c.plugin.GetCapabilities(callCtx, &emptypb.Empty{})
	if err != nil {
		return fmt.Errorf("failed to get capabilities: %w", err)
	}
	var response bool
	for _, f := range caps.GetFlows() {
		if f == pb.Flow_FLOW_RESPONSE {
			response = true
		}
	}
	if !response {
		return fmt.Errorf("plugin '%s' does not handle responses", c.name)
	}

	if _, err := c.plugin.Configure(callCtx, &pb.PluginConfig{CustomConfig: custom}); err != nil {
		return fmt.Errorf("failed to configure plugin: %w", err)
	}

	c.logger.Info("plugin started", "name", meta.GetName(), "version", meta.GetVersion(), "pid", c.cmd.Process.Pid)
	return nil
}

// Name returns the name the plugin reported.
func (c *Client) Name() string {
	return c.name
}

// HandleResponse sends resp through the plugin.
func (c *Client) HandleResponse(ctx context.Context, resp *pb.HTTPResponse) (*pb.HTTPResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return c.plugin.HandleResponse(callCtx, resp)
}

// Stop asks the plugin to shut down and force-kills it if it doesn't exit.
func (c *Client) Stop(ctx context.Context) error {
	c.logger.Info("stopping plugin", "name", c.name)

	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if _, err := c.plugin.Stop(stopCtx, &emptypb.Empty{}); err != nil {
		c.logger.Warn("graceful stop failed, force killing", "error", err)
	}
	c.close()

	select {
	case <-time.After(exitTimeout):
		c.logger.Warn("plugin didn't exit, force killing", "name", c.name)
		if err := c.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill process: %w", err)
		}
		<-c.exited
	case <-c.exited:
		if c.waitErr != nil {
			c.logger.Debug("plugin process exited with error", "error", c.waitErr)
		}
	}

	c.removeSocket()
	c.logger.Info("plugin stopped", "name", c.name)
	return nil
}

func (c *Client) close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("error closing connection", "error", err)
	}
}

func (c *Client) kill() {
	select {
	case <-c.exited:
	default:
		if err := c.cmd.Process.Kill(); err != nil {
			c.logger.Warn("failed to kill plugin process", "error", err)
		}
		<-c.exited
	}
	c.removeSocket()
}

func (c *Client) removeSocket() {
	if c.network != "unix" {
		return
	}
	if err := os.Remove(c.address); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove socket file", "path", c.address, "error", err)
	}
}

func pluginAddress(pluginName string) (address string, network string) {
	if runtime.GOOS == "windows" {
		port := 50000 + (time.Now().UnixNano() % 10000)
		return fmt.Sprintf("localhost:%d", port), "tcp"
	}
	sock := fmt.Sprintf("plugin-%s-%s.sock", strings.ReplaceAll(pluginName, " ", "-"), uuid.NewString()[:8])
	return filepath.Join(os.TempDir(), sock), "unix"
}

// waitForSocket polls address until it accepts connections, the context ends
// or the plugin process exits.
func waitForSocket(ctx context.Context, network, address string, exited <-chan struct{}) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return ErrPluginExited
		case <-ticker.C:
			conn, err := net.DialTimeout(network, address, 100*time.Millisecond)
			if err == nil {
				_ = conn.Close()
				return nil
			}
		}
	}
}
