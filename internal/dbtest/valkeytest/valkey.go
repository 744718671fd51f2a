// Package valkeytest runs a disposable Valkey container for integration
// tests.
package valkeytest

import (
	"context"
	"fmt"
	"net"

	"github.com/docker/go-connections/nat"
	"github.com/valkey-io/valkey-go"

	valkeycontainer "github.com/testcontainers/testcontainers-go/modules/valkey"
	slogctx "github.com/veqryn/slog-context"
)

const image = "valkey/valkey:8-alpine"

// Instance is a running Valkey container with a connected client.
type Instance struct {
	Client valkey.Client
	// Addr is the host:port the container is reachable on.
	Addr string

	container *valkeycontainer.ValkeyContainer
}

// Start launches a container and connects a client to it.
func Start(ctx context.Context) (*Instance, error) {
	container, err := valkeycontainer.Run(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("starting valkey container: %w", err)
	}

	port, err := container.MappedPort(ctx, nat.Port("6379"))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("mapping the valkey port: %w", err)
	}

	addr := net.JoinHostPort("localhost", port.Port())

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("connecting to valkey: %w", err)
	}

	return &Instance{Client: client, Addr: addr, container: container}, nil
}

// Terminate closes the client and removes the container.
func (i *Instance) Terminate(ctx context.Context) {
	i.Client.Close()

	if err := i.container.Terminate(ctx); err != nil {
		slogctx.Error(ctx, "Failed to terminate ValKey container", "error", err)
	}
}
