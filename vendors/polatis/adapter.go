package polatis

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/nanoncore/nano-oxc/logger"
	"github.com/nanoncore/nano-oxc/types"
	"github.com/nanoncore/nano-oxc/vendors/common"
	"github.com/nanoncore/nano-oxc/vendors/polatis/codec"
)

// MaxPowerReadings is the number of ports a single power query may carry.
const MaxPowerReadings = 256

// portCountPattern extracts <inputs>x<outputs> from a product code such as
// N-VST-96x96-LU1-DMHNV-801.
var portCountPattern = regexp.MustCompile(`(?i)-(\d+)x(\d+)-`)

// Adapter wraps a base driver with Polatis-specific logic.
// Polatis switches are driven with SCPI, either on a raw socket or over SSH.
type Adapter struct {
	baseDriver   types.Driver
	scpiExecutor types.SCPIExecutor
	config       *types.EquipmentConfig
	logger       logger.Logger

	mu          sync.Mutex
	productCode string
	portRange   *types.PortRange
}

var (
	_ types.OXC               = (*Adapter)(nil)
	_ types.NetworkConfigurer = (*Adapter)(nil)
)

// NewAdapter creates a new Polatis adapter
func NewAdapter(baseDriver types.Driver, config *types.EquipmentConfig) types.OXC {
	adapter := &Adapter{
		baseDriver: baseDriver,
		config:     config,
		logger:     logger.GetLogger().With("vendor", string(types.VendorPolatis)),
	}

	// Check if base driver supports SCPI execution
	if executor, ok := baseDriver.(types.SCPIExecutor); ok {
		adapter.scpiExecutor = executor
	}
	if config != nil && config.Address != "" {
		adapter.logger = adapter.logger.With("address", adapter.Address())
	}

	return adapter
}

func (a *Adapter) Open(ctx context.Context) error {
	return a.baseDriver.Open(ctx)
}

func (a *Adapter) Close() error {
	return a.baseDriver.Close()
}

func (a *Adapter) IsOpen() bool {
	return a.baseDriver.IsOpen()
}

// Reconnect drops the session. Cached identification is kept: it does not
// change while the device stays the same.
func (a *Adapter) Reconnect(ctx context.Context) error {
	return a.baseDriver.Reconnect(ctx)
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	return a.baseDriver.HealthCheck(ctx)
}

// Address returns host:port of the switch.
func (a *Adapter) Address() string {
	if addr, ok := a.baseDriver.(interface{ Address() string }); ok {
		return addr.Address()
	}
	if a.config == nil {
		return ""
	}
	port := a.config.Port
	if port == 0 {
		port = types.DefaultSCPIPort
	}
	return net.JoinHostPort(a.config.Address, strconv.Itoa(port))
}

// Identify queries *idn?
func (a *Adapter) Identify(ctx context.Context) (*types.Identity, error) {
	resp, err := a.query(ctx, "*idn?")
	if err != nil {
		return nil, err
	}
	id := types.ParseIdentity(resp)

	a.mu.Lock()
	if a.productCode == "" {
		a.productCode = id.Model
	}
	a.mu.Unlock()
	return id, nil
}

// ProductCode returns the model field of the identification, queried once.
func (a *Adapter) ProductCode(ctx context.Context) (string, error) {
	a.mu.Lock()
	code := a.productCode
	a.mu.Unlock()
	if code != "" {
		return code, nil
	}

	id, err := a.Identify(ctx)
	if err != nil {
		return "", err
	}
	return id.Model, nil
}

// Ports returns the port range encoded in the product code.
func (a *Adapter) Ports(ctx context.Context) (*types.PortRange, error) {
	a.mu.Lock()
	cached := a.portRange
	a.mu.Unlock()
	if cached != nil {
		r := *cached
		return &r, nil
	}

	code, err := a.ProductCode(ctx)
	if err != nil {
		return nil, err
	}
	r, err := ParsePortRange(code)
	if err != nil {
		a.logger.Debug("product code has no port count", "product_code", code)
		return nil, fmt.Errorf("device %s (%s): %w", a.Address(), code, err)
	}

	a.mu.Lock()
	a.portRange = r
	a.mu.Unlock()

	out := *r
	return &out, nil
}

// Connections retrieves all the active cross-connects
func (a *Adapter) Connections(ctx context.Context) (types.ConnectionMap, error) {
	resp, err := a.query(ctx, "oxc:swit:conn:stat?")
	if err != nil {
		return nil, err
	}
	conns, err := codec.DecodeConnections(resp)
	if err != nil {
		return nil, fmt.Errorf("connections of %s: %w", a.Address(), err)
	}
	return conns, nil
}

// SetConnections replaces every cross-connect in one command, equivalent
// to DisconnectAll followed by Connect. An empty map clears the fabric.
func (a *Adapter) SetConnections(ctx context.Context, conns types.ConnectionMap) error {
	if len(conns) == 0 {
		return a.DisconnectAll(ctx)
	}
	wire, err := codec.EncodeConnections(conns)
	if err != nil {
		return err
	}
	return a.command(ctx, "oxc:swit:conn:only "+wire)
}

// Connect adds cross-connects to the current configuration
func (a *Adapter) Connect(ctx context.Context, conns types.ConnectionMap) error {
	if len(conns) == 0 {
		return nil
	}
	wire, err := codec.EncodeConnections(conns)
	if err != nil {
		return err
	}
	return a.command(ctx, "oxc:swit:conn:add "+wire)
}

// Disconnect removes cross-connects from the current configuration
func (a *Adapter) Disconnect(ctx context.Context, conns types.ConnectionMap) error {
	if len(conns) == 0 {
		return nil
	}
	wire, err := codec.EncodeConnections(conns)
	if err != nil {
		return err
	}
	return a.command(ctx, "oxc:swit:conn:sub "+wire)
}

// DisconnectAll removes every active cross-connect
func (a *Adapter) DisconnectAll(ctx context.Context) error {
	return a.command(ctx, "oxc:swit:disc:all")
}

// GetPower reads the power levels of ports. The switch reads at most
// MaxPowerReadings ports per query, larger requests are split.
func (a *Adapter) GetPower(ctx context.Context, ports []int) (types.PowerReading, error) {
	code, err := a.ProductCode(ctx)
	if err != nil {
		return nil, err
	}
	if strings.Contains(code, "I-OST") {
		return nil, fmt.Errorf("power readings on %s (%s): %w", a.Address(), code, types.ErrNotSupported)
	}

	reading := make(types.PowerReading, len(ports))
	for start := 0; start < len(ports); start += MaxPowerReadings {
		end := min(start+MaxPowerReadings, len(ports))
		chunk := ports[start:end]

		resp, err := a.query(ctx, ":pmon:pow? "+codec.EncodePortList(chunk))
		if err != nil {
			return nil, err
		}
		levels, err := codec.DecodeLevels(resp)
		if err != nil {
			return nil, fmt.Errorf("power of %s: %w", a.Address(), err)
		}
		if len(levels) != len(chunk) {
			return nil, fmt.Errorf("power of %s: %w: %d levels for %d ports",
				a.Address(), types.ErrDecode, len(levels), len(chunk))
		}
		for i, p := range chunk {
			reading[p] = levels[i]
		}
	}
	return reading, nil
}

// Power reads every output port, and the input ports too on models with
// input photodetectors.
func (a *Adapter) Power(ctx context.Context) (types.PowerReading, error) {
	r, err := a.Ports(ctx)
	if err != nil {
		return nil, err
	}
	code, err := a.ProductCode(ctx)
	if err != nil {
		return nil, err
	}

	ports := r.OutputPorts()
	if a.hasInputPhotodetectors(code) {
		ports = append(r.InputPorts(), ports...)
	}
	return a.GetPower(ctx, ports)
}

// NetworkConfig retrieves the management network configuration
func (a *Adapter) NetworkConfig(ctx context.Context) (map[string]string, error) {
	resp, err := a.query(ctx, ":syst:comm:netw:addr?")
	if err != nil {
		return nil, err
	}
	return ParseNetworkConfig(resp)
}

// ParsePortRange extracts the port range from a product code.
func ParsePortRange(productCode string) (*types.PortRange, error) {
	m := portCountPattern.FindStringSubmatch(productCode)
	if m == nil {
		return nil, types.ErrNotAnOXC
	}
	inputs, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNotAnOXC, err)
	}
	outputs, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNotAnOXC, err)
	}
	return &types.PortRange{Inputs: inputs, Outputs: outputs}, nil
}

// ParseNetworkConfig parses whitespace separated key=value pairs, values
// optionally quoted.
func ParseNetworkConfig(resp string) (map[string]string, error) {
	out := make(map[string]string)
	for _, field := range strings.Fields(resp) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("%w: network setting %q", types.ErrDecode, field)
		}
		out[strings.TrimSpace(key)] = strings.Trim(value, "\" \t")
	}
	return out, nil
}

func (a *Adapter) hasInputPhotodetectors(code string) bool {
	models := types.DefaultInputPhotodetectorModels
	if a.config != nil && a.config.InputPhotodetectorModels != nil {
		models = a.config.InputPhotodetectorModels
	}
	for _, m := range models {
		if m == code {
			return true
		}
	}
	return false
}

func (a *Adapter) query(ctx context.Context, msg string) (string, error) {
	if a.scpiExecutor == nil {
		return "", fmt.Errorf("SCPI executor not available - Polatis requires an SCPI driver")
	}
	resp, err := a.scpiExecutor.Query(ctx, msg)
	if err != nil {
		return "", err
	}
	return common.CleanResponse(resp), nil
}

func (a *Adapter) command(ctx context.Context, msg string) error {
	if a.scpiExecutor == nil {
		return fmt.Errorf("SCPI executor not available - Polatis requires an SCPI driver")
	}
	return a.scpiExecutor.Command(ctx, msg)
}
