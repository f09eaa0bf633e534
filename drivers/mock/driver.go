package mock

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/nanoncore/nano-oxc/types"
	"github.com/nanoncore/nano-oxc/vendors/common"
	"github.com/nanoncore/nano-oxc/vendors/polatis/codec"
)

// DarkLevel is the power reported by a port without light.
const DarkLevel = -99.99

// MaxPowerPorts is the number of ports a single power query may carry.
const MaxPowerPorts = 256

// Driver implements a mock cross-connect for testing.
// It simulates a switch fabric without connecting to real equipment.
type Driver struct {
	config     *types.EquipmentConfig
	mu         sync.RWMutex
	open       bool
	closed     bool
	identity   types.Identity
	ports      types.PortRange
	conns      types.ConnectionMap
	power      map[int]float64
	network    map[string]string
	failures   []error
	cmdHistory []string
}

var (
	_ types.OXC               = (*Driver)(nil)
	_ types.NetworkConfigurer = (*Driver)(nil)
)

// NewDriver creates a new mock driver. The fabric size and model come from
// the "inputs", "outputs" and "model" metadata keys.
func NewDriver(config *types.EquipmentConfig) (*Driver, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	inputs := common.MetadataIntOr(config.Metadata, 16, "inputs")
	outputs := common.MetadataIntOr(config.Metadata, inputs, "outputs")
	if inputs <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("invalid fabric size %dx%d", inputs, outputs)
	}
	model := common.MetadataStringOr(config.Metadata,
		fmt.Sprintf("N-MCK-%dx%d-SIM", inputs, outputs), "model")

	address := config.Address
	if address == "" {
		address = "127.0.0.1"
	}

	return &Driver{
		config: config,
		identity: types.Identity{
			Vendor:   "Mock",
			Model:    model,
			Serial:   common.MetadataStringOr(config.Metadata, "MOCK-SIM-001", "serial"),
			Firmware: "1.0.0",
		},
		ports: types.PortRange{Inputs: inputs, Outputs: outputs},
		conns: make(types.ConnectionMap),
		power: make(map[int]float64),
		network: map[string]string{
			"IPADDR":  address,
			"NETMASK": "255.255.255.0",
			"GATEWAY": "0.0.0.0",
		},
		cmdHistory: make([]string, 0),
	}, nil
}

// Address returns host:port of the simulated device.
func (d *Driver) Address() string {
	port := d.config.Port
	if port == 0 {
		port = types.DefaultSCPIPort
	}
	return net.JoinHostPort(d.network["IPADDR"], strconv.Itoa(port))
}

// Open simulates connecting to equipment
func (d *Driver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return types.ErrClosed
	}
	d.open = true
	d.recordCommand("open")
	return nil
}

// Close ends the simulation; the driver cannot be reopened
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.open = false
	d.closed = true
	d.recordCommand("close")
	return nil
}

// IsOpen returns connection status
func (d *Driver) IsOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.open
}

// Reconnect simulates a session reset
func (d *Driver) Reconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return types.ErrClosed
	}
	d.open = false
	d.recordCommand("reconnect")
	return nil
}

// HealthCheck simulates a synchronization round trip
func (d *Driver) HealthCheck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.begin("sync")
}

// Identify returns the simulated identification
func (d *Driver) Identify(ctx context.Context) (*types.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin("identify"); err != nil {
		return nil, err
	}
	id := d.identity
	return &id, nil
}

// Ports returns the fabric size
func (d *Driver) Ports(ctx context.Context) (*types.PortRange, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin("ports"); err != nil {
		return nil, err
	}
	r := d.ports
	return &r, nil
}

// Connections returns a copy of the active cross-connects
func (d *Driver) Connections(ctx context.Context) (types.ConnectionMap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin("connections"); err != nil {
		return nil, err
	}
	return d.snapshot(), nil
}

// SetConnections replaces every cross-connect
func (d *Driver) SetConnections(ctx context.Context, conns types.ConnectionMap) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	norm, err := d.validate(conns)
	if err != nil {
		return err
	}
	if err := d.begin("set " + norm.String()); err != nil {
		return err
	}
	d.conns = norm
	return nil
}

// Connect adds cross-connects; ports already in use are rejected
func (d *Driver) Connect(ctx context.Context, conns types.ConnectionMap) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	norm, err := d.validate(conns)
	if err != nil {
		return err
	}
	if err := d.begin("connect " + norm.String()); err != nil {
		return err
	}

	busy := make(map[int]bool, 2*len(d.conns))
	for in, out := range d.conns {
		busy[in], busy[out] = true, true
	}
	for _, p := range norm.Pairs() {
		if busy[p.In] || busy[p.Out] {
			return fmt.Errorf("%w: %s conflicts with an active connection", types.ErrInvalidConnection, p)
		}
	}
	for in, out := range norm {
		d.conns[in] = out
	}
	return nil
}

// Disconnect removes cross-connects; every pair must be active
func (d *Driver) Disconnect(ctx context.Context, conns types.ConnectionMap) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	norm, err := d.validate(conns)
	if err != nil {
		return err
	}
	if err := d.begin("disconnect " + norm.String()); err != nil {
		return err
	}

	for _, p := range norm.Pairs() {
		if out, ok := d.conns[p.In]; !ok || out != p.Out {
			return fmt.Errorf("%w: %s is not connected", types.ErrInvalidConnection, p)
		}
	}
	for in := range norm {
		delete(d.conns, in)
	}
	return nil
}

// DisconnectAll clears the fabric
func (d *Driver) DisconnectAll(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin("disconnect-all"); err != nil {
		return err
	}
	d.conns = make(types.ConnectionMap)
	return nil
}

// GetPower returns the simulated power of ports
func (d *Driver) GetPower(ctx context.Context, ports []int) (types.PowerReading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(fmt.Sprintf("power %d ports", len(ports))); err != nil {
		return nil, err
	}
	reading := make(types.PowerReading, len(ports))
	for _, p := range ports {
		if !d.ports.IsInput(p) && !d.ports.IsOutput(p) {
			return nil, fmt.Errorf("%w: port %d", types.ErrPortOutOfRange, p)
		}
		reading[p] = d.level(p)
	}
	return reading, nil
}

// Power returns the simulated power of every port
func (d *Driver) Power(ctx context.Context) (types.PowerReading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin("power all"); err != nil {
		return nil, err
	}
	all := append(d.ports.InputPorts(), d.ports.OutputPorts()...)
	reading := make(types.PowerReading, len(all))
	for _, p := range all {
		reading[p] = d.level(p)
	}
	return reading, nil
}

// NetworkConfig returns the simulated management network settings
func (d *Driver) NetworkConfig(ctx context.Context) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin("netconfig"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(d.network))
	for k, v := range d.network {
		out[k] = v
	}
	return out, nil
}

// SetPower overrides the level reported for port.
func (d *Driver) SetPower(port int, dbm float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.power[port] = dbm
}

// InjectFailure makes the next operations fail with errs, one per call.
func (d *Driver) InjectFailure(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, errs...)
}

// GetCommandHistory returns the command history (useful for testing)
func (d *Driver) GetCommandHistory() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	history := make([]string, len(d.cmdHistory))
	copy(history, d.cmdHistory)
	return history
}

// Exec interprets one SCPI message against the fabric and returns the
// response text of a query.
func (d *Driver) Exec(ctx context.Context, message string) (string, error) {
	header, arg, _ := strings.Cut(strings.TrimSpace(message), " ")
	switch strings.ToLower(header) {
	case "*idn?":
		id, err := d.Identify(ctx)
		if err != nil {
			return "", err
		}
		return strings.Join(id.Fields(), ","), nil

	case "*rst", "oxc:swit:disc:all":
		return "", d.DisconnectAll(ctx)

	case "oxc:swit:conn:stat?":
		conns, err := d.Connections(ctx)
		if err != nil {
			return "", err
		}
		return codec.EncodeConnections(conns)

	case "oxc:swit:conn:only", "oxc:swit:conn:add", "oxc:swit:conn:sub":
		conns, err := codec.DecodeConnections(arg)
		if err != nil {
			return "", err
		}
		switch strings.ToLower(header) {
		case "oxc:swit:conn:only":
			return "", d.SetConnections(ctx, conns)
		case "oxc:swit:conn:add":
			return "", d.Connect(ctx, conns)
		default:
			return "", d.Disconnect(ctx, conns)
		}

	case ":pmon:pow?":
		ports, err := codec.DecodePortList(arg)
		if err != nil {
			return "", err
		}
		if len(ports) > MaxPowerPorts {
			return "", fmt.Errorf("too many ports in power query: %d", len(ports))
		}
		reading, err := d.GetPower(ctx, ports)
		if err != nil {
			return "", err
		}
		levels := make([]float64, len(ports))
		for i, p := range ports {
			levels[i] = reading[p]
		}
		return codec.EncodeLevels(levels), nil

	case ":syst:comm:netw:addr?":
		settings, err := d.NetworkConfig(ctx)
		if err != nil {
			return "", err
		}
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%q", k, settings[k])
		}
		return strings.Join(parts, " "), nil

	default:
		return "", fmt.Errorf("undefined header %q", header)
	}
}

// Helper methods

func (d *Driver) recordCommand(cmd string) {
	d.cmdHistory = append(d.cmdHistory, cmd)
}

// begin records cmd and returns the pending failure, if any. Callers hold mu.
func (d *Driver) begin(cmd string) error {
	if d.closed {
		return types.ErrClosed
	}
	d.recordCommand(cmd)
	if len(d.failures) > 0 {
		err := d.failures[0]
		d.failures = d.failures[1:]
		return err
	}
	return nil
}

func (d *Driver) validate(conns types.ConnectionMap) (types.ConnectionMap, error) {
	norm, err := conns.Normalize()
	if err != nil {
		return nil, err
	}
	for _, p := range norm.Pairs() {
		if !d.ports.IsInput(p.In) || !d.ports.IsOutput(p.Out) {
			return nil, fmt.Errorf("%w: %s on a %dx%d fabric", types.ErrPortOutOfRange, p, d.ports.Inputs, d.ports.Outputs)
		}
	}
	return norm, nil
}

func (d *Driver) snapshot() types.ConnectionMap {
	out := make(types.ConnectionMap, len(d.conns))
	for in, o := range d.conns {
		out[in] = o
	}
	return out
}

// level returns the configured power of port, or a deterministic level
// derived from whether the port carries a connection.
func (d *Driver) level(port int) float64 {
	if v, ok := d.power[port]; ok {
		return v
	}
	for in, out := range d.conns {
		if port == in {
			return -1.5
		}
		if port == out {
			return -3.0 - float64(port%8)*0.25
		}
	}
	return DarkLevel
}
