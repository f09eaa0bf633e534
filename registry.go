package oxc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nanoncore/nano-oxc/drivers/scpi"
	"github.com/nanoncore/nano-oxc/drivers/snmp"
	"github.com/nanoncore/nano-oxc/logger"
	"github.com/nanoncore/nano-oxc/slicing"
	"github.com/nanoncore/nano-oxc/types"
)

// Registry keeps one driver per physical device and the slices defined
// over them. Devices are keyed by host:port and may also be found by name.
type Registry struct {
	devices *xsync.MapOf[string, *device]
	names   *xsync.MapOf[string, string]
	slices  *xsync.MapOf[string, *slice]

	// sliceMu makes the overlap check and the insertion of a slice atomic.
	sliceMu sync.Mutex

	inventory   *Inventory
	collector   *scpi.Collector
	retry       *RetryPolicy
	sessionOpts []scpi.Option
	logger      logger.Logger
	closed      atomic.Bool
}

type device struct {
	config  *types.EquipmentConfig
	handle  *Handle
	session *scpi.Session
	prober  *snmp.Prober
}

type slice struct {
	name    string
	parent  string
	dev     *slicing.VirtualDevice
	inputs  []int
	outputs []int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger, also handed to the SCPI sessions
// and slices it creates.
func WithLogger(l logger.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithInventory lets Get resolve names the registry has not opened yet.
func WithInventory(inv *Inventory) RegistryOption {
	return func(r *Registry) {
		r.inventory = inv
	}
}

// WithCollector exports the metrics of every SCPI session opened by the
// registry through c.
func WithCollector(c *scpi.Collector) RegistryOption {
	return func(r *Registry) {
		r.collector = c
	}
}

// WithRetryPolicy makes Do reconnect and retry on transport faults.
func WithRetryPolicy(p RetryPolicy) RegistryOption {
	return func(r *Registry) {
		r.retry = &p
	}
}

// WithSessionOptions passes opts to every SCPI session.
func WithSessionOptions(opts ...scpi.Option) RegistryOption {
	return func(r *Registry) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		devices: xsync.NewMapOf[string, *device](),
		names:   xsync.NewMapOf[string, string](),
		slices:  xsync.NewMapOf[string, *slice](),
		logger:  logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DeviceAddress returns the registry key of config: host:port with the
// default SCPI port filled in.
func DeviceAddress(config *types.EquipmentConfig) string {
	host := config.Address
	if host == "" {
		host = "127.0.0.1"
	}
	port := config.Port
	if port == 0 {
		port = types.DefaultSCPIPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Open registers the device described by config and synchronizes its
// session. Opening an address twice returns the same handle. A device
// that fails to synchronize stays registered; its session is retried on
// the next call.
func (r *Registry) Open(ctx context.Context, config *types.EquipmentConfig) (OXC, error) {
	h, err := r.register(config)
	if err != nil {
		return nil, err
	}
	if err := h.Open(ctx); err != nil {
		return nil, fmt.Errorf("open %s: %w", h.Address(), err)
	}
	return h, nil
}

func (r *Registry) register(config *types.EquipmentConfig) (*Handle, error) {
	if r.closed.Load() {
		return nil, types.ErrClosed
	}
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.Address == "" && config.Vendor != types.VendorMock {
		return nil, fmt.Errorf("address is required")
	}

	c := *config
	if c.Port == 0 {
		c.Port = types.DefaultSCPIPort
	}
	address := DeviceAddress(&c)
	if d, ok := r.devices.Load(address); ok {
		return d.handle, nil
	}

	opts := append([]scpi.Option{scpi.WithLogger(r.logger)}, r.sessionOpts...)
	dev, session, err := newDevice(c.Vendor, c.Protocol, &c, opts...)
	if err != nil {
		return nil, err
	}
	d := &device{
		config:  &c,
		handle:  NewHandle(address, dev),
		session: session,
	}
	if snmp.Enabled(&c) {
		if d.prober, err = snmp.NewProber(&c); err != nil {
			return nil, err
		}
	}

	actual, loaded := r.devices.LoadOrStore(address, d)
	if loaded {
		_ = dev.Close()
		return actual.handle, nil
	}
	if c.Name != "" {
		r.names.Store(c.Name, address)
	}
	if session != nil && r.collector != nil {
		r.collector.Add(session)
	}
	r.logger.Info("device registered", "address", address, "name", c.Name,
		"vendor", string(c.Vendor), "protocol", string(c.Protocol))
	return d.handle, nil
}

// Lookup returns the device registered at address. A bare host matches
// the default SCPI port.
func (r *Registry) Lookup(address string) (OXC, bool) {
	d, ok := r.lookupDevice(address)
	if !ok {
		return nil, false
	}
	return d.handle, true
}

func (r *Registry) lookupDevice(key string) (*device, bool) {
	if d, ok := r.devices.Load(key); ok {
		return d, true
	}
	if address, ok := r.names.Load(key); ok {
		return r.devices.Load(address)
	}
	if _, _, err := net.SplitHostPort(key); err != nil {
		return r.devices.Load(net.JoinHostPort(key, strconv.Itoa(types.DefaultSCPIPort)))
	}
	return nil, false
}

// Get resolves a slice name, a device name or a device address. Entries of
// the inventory are opened on first use.
func (r *Registry) Get(ctx context.Context, key string) (OXC, error) {
	if r.closed.Load() {
		return nil, types.ErrClosed
	}
	if s, ok := r.slices.Load(key); ok {
		return s.dev, nil
	}
	if d, ok := r.lookupDevice(key); ok {
		return d.handle, nil
	}

	if sc, ok := r.inventory.Slice(key); ok {
		return r.Slice(ctx, sc.Name, sc.Device, sc.Inputs, sc.Outputs)
	}
	if cfg, ok := r.inventory.Device(key); ok {
		return r.register(cfg)
	}
	return nil, fmt.Errorf("%w: %s", types.ErrUnknownDevice, key)
}

// Slice defines a virtual device named name over the given physical ports
// of parent, itself a device or another slice. The inputs must be inputs
// of parent and the outputs its outputs. Sibling slices of one parent may
// not share ports. Defining the same slice twice returns the existing one.
func (r *Registry) Slice(ctx context.Context, name, parent string, inputs, outputs []int) (OXC, error) {
	if name == "" {
		return nil, fmt.Errorf("slice name is required")
	}
	underlay, err := r.Get(ctx, parent)
	if err != nil {
		return nil, err
	}
	parentKey := parent
	if h, ok := underlay.(*Handle); ok {
		parentKey = h.Address()
	}
	ports, err := underlay.Ports(ctx)
	if err != nil {
		return nil, fmt.Errorf("slice %s: %w", name, err)
	}

	r.sliceMu.Lock()
	defer r.sliceMu.Unlock()

	if s, ok := r.slices.Load(name); ok {
		if s.parent == parentKey && slices.Equal(s.inputs, inputs) && slices.Equal(s.outputs, outputs) {
			return s.dev, nil
		}
		return nil, fmt.Errorf("slice %q already defined as %s", name, s.dev)
	}
	if _, ok := r.lookupDevice(name); ok {
		return nil, fmt.Errorf("slice %q: name used by a device", name)
	}

	taken := make(map[int]string)
	r.slices.Range(func(_ string, s *slice) bool {
		if s.parent != parentKey {
			return true
		}
		for _, p := range append(append([]int(nil), s.inputs...), s.outputs...) {
			taken[p] = s.name
		}
		return true
	})
	for _, p := range append(append([]int(nil), inputs...), outputs...) {
		if owner, ok := taken[p]; ok {
			return nil, fmt.Errorf("%w: port %d of %s already belongs to slice %s",
				types.ErrInvalidMapping, p, parent, owner)
		}
	}

	vd, err := slicing.NewVirtualDevice(underlay, inputs, outputs, slicing.WithLogger(r.logger))
	if err != nil {
		return nil, fmt.Errorf("slice %s: %w", name, err)
	}
	if err := vd.Mapping().Within(*ports); err != nil {
		return nil, fmt.Errorf("slice %s of %s: %w", name, parent, err)
	}
	r.slices.Store(name, &slice{
		name:    name,
		parent:  parentKey,
		dev:     vd,
		inputs:  append([]int(nil), inputs...),
		outputs: append([]int(nil), outputs...),
	})
	r.logger.Info("slice defined", "name", name, "device", vd.String())
	return vd, nil
}

// Do runs fn on the device found by key and tags the outcome. With a
// retry policy, transport faults reconnect the device and run fn again.
func (r *Registry) Do(ctx context.Context, key string, fn func(context.Context, OXC) (any, error)) types.Result {
	dev, err := r.Get(ctx, key)
	if err != nil {
		return types.NewResult(nil, err)
	}

	var data any
	op := func(ctx context.Context, d OXC) error {
		v, err := fn(ctx, d)
		data = v
		return err
	}
	if r.retry != nil {
		err = Retry(ctx, dev, *r.retry, op)
	} else {
		err = op(ctx, dev)
	}
	if err != nil {
		r.logger.Error("device operation failed", "device", key, "err", err)
	}
	return types.NewResult(data, err)
}

// Devices returns the registered device addresses, sorted.
func (r *Registry) Devices() []string {
	out := make([]string, 0, r.devices.Size())
	r.devices.Range(func(address string, _ *device) bool {
		out = append(out, address)
		return true
	})
	slices.Sort(out)
	return out
}

// Slices returns the defined slice names, sorted.
func (r *Registry) Slices() []string {
	out := make([]string, 0, r.slices.Size())
	r.slices.Range(func(name string, _ *slice) bool {
		out = append(out, name)
		return true
	})
	slices.Sort(out)
	return out
}

// Close closes every slice and device. The registry cannot be used
// afterwards.
func (r *Registry) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	var errs []error
	r.slices.Range(func(name string, s *slice) bool {
		_ = s.dev.Close()
		r.slices.Delete(name)
		return true
	})
	r.devices.Range(func(address string, d *device) bool {
		if err := d.handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", address, err))
		}
		if d.prober != nil {
			_ = d.prober.Close()
		}
		if r.collector != nil {
			r.collector.Remove(address)
		}
		r.devices.Delete(address)
		return true
	})
	r.names.Clear()
	return errors.Join(errs...)
}
