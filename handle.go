package oxc

import (
	"context"
	"fmt"
	"sync"

	"github.com/nanoncore/nano-oxc/types"
)

// Handle serializes the calls made on one physical device: the SCPI
// session relies on strict request/response alternation, so only one
// call may be in flight.
type Handle struct {
	mu      sync.Mutex
	dev     OXC
	address string
}

var (
	_ OXC               = (*Handle)(nil)
	_ NetworkConfigurer = (*Handle)(nil)
)

// NewHandle wraps dev.
func NewHandle(address string, dev OXC) *Handle {
	return &Handle{dev: dev, address: address}
}

// Address returns host:port of the device.
func (h *Handle) Address() string { return h.address }

// Device returns the wrapped device. Calls made on it bypass serialization.
func (h *Handle) Device() OXC { return h.dev }

func (h *Handle) Open(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Open(ctx)
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Close()
}

func (h *Handle) IsOpen() bool {
	return h.dev.IsOpen()
}

func (h *Handle) Reconnect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Reconnect(ctx)
}

func (h *Handle) HealthCheck(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.HealthCheck(ctx)
}

func (h *Handle) Identify(ctx context.Context) (*Identity, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Identify(ctx)
}

func (h *Handle) Ports(ctx context.Context) (*PortRange, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Ports(ctx)
}

func (h *Handle) Connections(ctx context.Context) (ConnectionMap, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Connections(ctx)
}

func (h *Handle) SetConnections(ctx context.Context, conns ConnectionMap) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.SetConnections(ctx, conns)
}

func (h *Handle) Connect(ctx context.Context, conns ConnectionMap) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Connect(ctx, conns)
}

func (h *Handle) Disconnect(ctx context.Context, conns ConnectionMap) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Disconnect(ctx, conns)
}

func (h *Handle) DisconnectAll(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.DisconnectAll(ctx)
}

func (h *Handle) GetPower(ctx context.Context, ports []int) (PowerReading, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.GetPower(ctx, ports)
}

func (h *Handle) Power(ctx context.Context) (PowerReading, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Power(ctx)
}

// NetworkConfig returns the management network settings when the device
// reports them.
func (h *Handle) NetworkConfig(ctx context.Context) (map[string]string, error) {
	nc, ok := h.dev.(NetworkConfigurer)
	if !ok {
		return nil, fmt.Errorf("network config: %w", types.ErrNotSupported)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return nc.NetworkConfig(ctx)
}
