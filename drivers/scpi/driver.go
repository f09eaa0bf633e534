package scpi

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/nanoncore/nano-oxc/types"
)

// Driver implements types.Driver and types.SCPIExecutor over a Session.
type Driver struct {
	config  *types.EquipmentConfig
	session *Session
}

var (
	_ types.Driver       = (*Driver)(nil)
	_ types.SCPIExecutor = (*Driver)(nil)
)

// NewDriver creates a new SCPI driver. The connection is opened lazily.
func NewDriver(config *types.EquipmentConfig, opts ...Option) (*Driver, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	// Default SCPI port
	if config.Port == 0 {
		config.Port = types.DefaultSCPIPort
	}

	// Default timeout
	if config.Timeout == 0 {
		config.Timeout = types.DefaultTimeout
	}

	if config.Protocol == "" {
		config.Protocol = types.ProtocolSCPI
	}

	var dialer Dialer
	switch config.Protocol {
	case types.ProtocolSCPI:
		dialer = &TCPDialer{Timeout: config.Timeout}
	case types.ProtocolSSH:
		dialer = &SSHDialer{
			Username:  config.Username,
			Password:  config.Password,
			Subsystem: config.Metadata["ssh_subsystem"],
			Timeout:   config.Timeout,
		}
	default:
		return nil, fmt.Errorf("protocol %q is not supported by the SCPI driver", config.Protocol)
	}

	address := net.JoinHostPort(config.Address, strconv.Itoa(config.Port))
	opts = append([]Option{WithDialer(dialer)}, opts...)

	return &Driver{
		config:  config,
		session: NewSession(address, config.Timeout, opts...),
	}, nil
}

// Address returns host:port of the device.
func (d *Driver) Address() string { return d.session.Address() }

// Config returns the equipment configuration.
func (d *Driver) Config() *types.EquipmentConfig { return d.config }

// Session returns the underlying session.
func (d *Driver) Session() *Session { return d.session }

// Open establishes and synchronizes the session.
func (d *Driver) Open(ctx context.Context) error {
	return d.session.Open(ctx)
}

// Close releases the session. The driver cannot be reopened.
func (d *Driver) Close() error {
	return d.session.Close()
}

// IsOpen returns true while a synchronized session is held.
func (d *Driver) IsOpen() bool {
	switch d.session.State() {
	case StateSynchronized, StateServing:
		return true
	default:
		return false
	}
}

// Reconnect drops the session; the next call reopens it.
func (d *Driver) Reconnect(ctx context.Context) error {
	return d.session.Reconnect(ctx)
}

// HealthCheck performs a synchronization round trip.
func (d *Driver) HealthCheck(ctx context.Context) error {
	return d.session.Sync(ctx)
}

// Query implements types.SCPIExecutor.
func (d *Driver) Query(ctx context.Context, message string) (string, error) {
	return d.session.Query(ctx, message)
}

// Command implements types.SCPIExecutor.
func (d *Driver) Command(ctx context.Context, message string) error {
	return d.session.Command(ctx, message)
}

// Identify queries *idn?.
func (d *Driver) Identify(ctx context.Context) (*types.Identity, error) {
	resp, err := d.session.Query(ctx, "*idn?")
	if err != nil {
		return nil, err
	}
	return types.ParseIdentity(resp), nil
}
