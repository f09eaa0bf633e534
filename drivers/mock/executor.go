package mock

import (
	"context"
	"sync"

	"github.com/nanoncore/nano-oxc/types"
)

// Executor speaks SCPI to a Driver in process, so vendor adapters can run
// against the simulated fabric without a network.
type Executor struct {
	device *Driver
	mu     sync.Mutex
	sent   []string
}

var (
	_ types.Driver       = (*Executor)(nil)
	_ types.SCPIExecutor = (*Executor)(nil)
)

// NewExecutor creates an executor for device.
func NewExecutor(device *Driver) *Executor {
	return &Executor{device: device}
}

// Device returns the simulated fabric.
func (e *Executor) Device() *Driver { return e.device }

func (e *Executor) Open(ctx context.Context) error        { return e.device.Open(ctx) }
func (e *Executor) Close() error                          { return e.device.Close() }
func (e *Executor) IsOpen() bool                          { return e.device.IsOpen() }
func (e *Executor) Reconnect(ctx context.Context) error   { return e.device.Reconnect(ctx) }
func (e *Executor) HealthCheck(ctx context.Context) error { return e.device.HealthCheck(ctx) }

// Query implements types.SCPIExecutor.
func (e *Executor) Query(ctx context.Context, message string) (string, error) {
	e.record(message)
	return e.device.Exec(ctx, message)
}

// Command implements types.SCPIExecutor.
func (e *Executor) Command(ctx context.Context, message string) error {
	e.record(message)
	_, err := e.device.Exec(ctx, message)
	return err
}

// Sent returns every message received, in order.
func (e *Executor) Sent() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sent...)
}

func (e *Executor) record(message string) {
	e.mu.Lock()
	e.sent = append(e.sent, message)
	e.mu.Unlock()
}
