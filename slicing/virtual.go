package slicing

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nanoncore/nano-oxc/logger"
	"github.com/nanoncore/nano-oxc/types"
)

// VirtualDevice exposes a slice of an underlying cross-connect as an
// independent device with its own contiguous port numbering. It never
// reports or touches connections outside the slice.
type VirtualDevice struct {
	underlay types.OXC
	mapping  *PortMapping
	logger   logger.Logger
	closed   atomic.Bool
}

var _ types.OXC = (*VirtualDevice)(nil)

// Option configures a VirtualDevice.
type Option func(*VirtualDevice)

// WithLogger sets the logger for real-vs-virtual translations.
func WithLogger(l logger.Logger) Option {
	return func(v *VirtualDevice) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewVirtualDevice slices underlay to the given physical inputs and outputs.
func NewVirtualDevice(underlay types.OXC, inputs, outputs []int, opts ...Option) (*VirtualDevice, error) {
	if underlay == nil {
		return nil, fmt.Errorf("underlay is required")
	}
	mapping, err := NewPortMapping(inputs, outputs)
	if err != nil {
		return nil, err
	}
	v := &VirtualDevice{
		underlay: underlay,
		mapping:  mapping,
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With("node", v.String())
	return v, nil
}

// Mapping returns the port mapping of the slice.
func (v *VirtualDevice) Mapping() *PortMapping { return v.mapping }

// Underlay returns the wrapped device.
func (v *VirtualDevice) Underlay() types.OXC { return v.underlay }

// Address returns the address of the physical device.
func (v *VirtualDevice) Address() string {
	if a, ok := v.underlay.(interface{ Address() string }); ok {
		return a.Address()
	}
	return "-"
}

// String describes the slice as <VirtualDevice://host:port/i1,i2|o1,o2>.
func (v *VirtualDevice) String() string {
	return fmt.Sprintf("<VirtualDevice://%s/%s>", v.Address(), v.mapping)
}

// Open opens the underlying device.
func (v *VirtualDevice) Open(ctx context.Context) error {
	if v.closed.Load() {
		return types.ErrClosed
	}
	return v.underlay.Open(ctx)
}

// Close detaches the slice. The underlying device stays open for the
// other slices sharing it.
func (v *VirtualDevice) Close() error {
	v.closed.Store(true)
	return nil
}

func (v *VirtualDevice) IsOpen() bool {
	return !v.closed.Load() && v.underlay.IsOpen()
}

func (v *VirtualDevice) Reconnect(ctx context.Context) error {
	if v.closed.Load() {
		return types.ErrClosed
	}
	return v.underlay.Reconnect(ctx)
}

func (v *VirtualDevice) HealthCheck(ctx context.Context) error {
	if v.closed.Load() {
		return types.ErrClosed
	}
	return v.underlay.HealthCheck(ctx)
}

// Identify tags the underlying identification with this slice.
func (v *VirtualDevice) Identify(ctx context.Context) (*types.Identity, error) {
	if v.closed.Load() {
		return nil, types.ErrClosed
	}
	parent, err := v.underlay.Identify(ctx)
	if err != nil {
		return nil, err
	}
	return parent.Sliced(v.String()), nil
}

// Ports returns the virtual port range.
func (v *VirtualDevice) Ports(ctx context.Context) (*types.PortRange, error) {
	if v.closed.Load() {
		return nil, types.ErrClosed
	}
	r := v.mapping.Range()
	return &r, nil
}

// Connections returns the slice's connections in virtual numbering.
func (v *VirtualDevice) Connections(ctx context.Context) (types.ConnectionMap, error) {
	if v.closed.Load() {
		return nil, types.ErrClosed
	}
	phys, err := v.underlay.Connections(ctx)
	if err != nil {
		return nil, err
	}
	virtual, err := v.mapping.VirtualConnections(phys)
	if err != nil {
		return nil, err
	}
	v.logger.Debug("connections", "real", phys.String(), "virtual", virtual.String())
	return virtual, nil
}

// SetConnections makes the slice's connections equal conns. Only the
// difference is applied: pairs to remove are disconnected, then the
// missing pairs connected. A failure between the two steps leaves the
// removals applied.
func (v *VirtualDevice) SetConnections(ctx context.Context, conns types.ConnectionMap) error {
	if v.closed.Load() {
		return types.ErrClosed
	}
	want, err := conns.Normalize()
	if err != nil {
		return err
	}
	// Reject ports outside the slice before touching the device.
	if _, err := v.mapping.RealConnections(want); err != nil {
		return err
	}
	current, err := v.Connections(ctx)
	if err != nil {
		return err
	}

	wantSet, curSet := want.Set(), current.Set()
	var remove, add []types.Pair
	for p := range curSet {
		if _, ok := wantSet[p]; !ok {
			remove = append(remove, p)
		}
	}
	for p := range wantSet {
		if _, ok := curSet[p]; !ok {
			add = append(add, p)
		}
	}

	if err := v.Disconnect(ctx, types.FromPairs(remove)); err != nil {
		return err
	}
	return v.Connect(ctx, types.FromPairs(add))
}

// Connect adds virtual conns.
func (v *VirtualDevice) Connect(ctx context.Context, conns types.ConnectionMap) error {
	if v.closed.Load() {
		return types.ErrClosed
	}
	if len(conns) == 0 {
		return nil
	}
	phys, err := v.translate(conns)
	if err != nil {
		return err
	}
	v.logger.Debug("connect", "real", phys.String(), "virtual", conns.String())
	return v.underlay.Connect(ctx, phys)
}

// Disconnect removes virtual conns.
func (v *VirtualDevice) Disconnect(ctx context.Context, conns types.ConnectionMap) error {
	if v.closed.Load() {
		return types.ErrClosed
	}
	if len(conns) == 0 {
		return nil
	}
	phys, err := v.translate(conns)
	if err != nil {
		return err
	}
	v.logger.Debug("disconnect", "real", phys.String(), "virtual", conns.String())
	return v.underlay.Disconnect(ctx, phys)
}

// DisconnectAll removes every connection visible to the slice.
func (v *VirtualDevice) DisconnectAll(ctx context.Context) error {
	current, err := v.Connections(ctx)
	if err != nil {
		return err
	}
	return v.Disconnect(ctx, current)
}

// GetPower reads the power of virtual ports.
func (v *VirtualDevice) GetPower(ctx context.Context, ports []int) (types.PowerReading, error) {
	if v.closed.Load() {
		return nil, types.ErrClosed
	}
	phys := make([]int, len(ports))
	for i, p := range ports {
		rp, err := v.mapping.RealPort(p)
		if err != nil {
			return nil, err
		}
		phys[i] = rp
	}

	levels, err := v.underlay.GetPower(ctx, phys)
	if err != nil {
		return nil, err
	}
	return v.virtualReading(levels)
}

// Power reads every port of the slice the underlying device reports.
func (v *VirtualDevice) Power(ctx context.Context) (types.PowerReading, error) {
	if v.closed.Load() {
		return nil, types.ErrClosed
	}
	levels, err := v.underlay.Power(ctx)
	if err != nil {
		return nil, err
	}
	owned := make(types.PowerReading)
	for _, p := range v.mapping.FilterRealPorts(levels.Ports()) {
		owned[p] = levels[p]
	}
	return v.virtualReading(owned)
}

func (v *VirtualDevice) virtualReading(phys types.PowerReading) (types.PowerReading, error) {
	virtual := make(types.PowerReading, len(phys))
	for p, level := range phys {
		vp, err := v.mapping.VirtualPort(p)
		if err != nil {
			return nil, err
		}
		virtual[vp] = level
	}
	v.logger.Debug("power", "real", phys, "virtual", virtual)
	return virtual, nil
}

// translate normalizes virtual conns and maps them to physical numbering.
func (v *VirtualDevice) translate(conns types.ConnectionMap) (types.ConnectionMap, error) {
	norm, err := conns.Normalize()
	if err != nil {
		return nil, err
	}
	return v.mapping.RealConnections(norm)
}
