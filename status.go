package oxc

import (
	"context"
	"errors"

	"github.com/nanoncore/nano-oxc/slicing"
	"github.com/nanoncore/nano-oxc/types"
)

// Status reports reachability, identity and fabric occupancy of the device
// or slice found by key. An unreachable device is reported, not returned as
// an error; only an unknown key fails.
func (r *Registry) Status(ctx context.Context, key string) (*types.EquipmentStatus, error) {
	dev, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	status := &types.EquipmentStatus{
		Metadata: make(map[string]interface{}),
	}
	var d *device
	switch v := dev.(type) {
	case *Handle:
		status.Address = v.Address()
		d, _ = r.devices.Load(v.Address())
		if d != nil {
			status.Name = d.config.Name
		}
	case *slicing.VirtualDevice:
		status.Name = key
		status.Address = v.Address()
		status.Metadata["slice"] = v.String()
	}
	if d != nil && d.session != nil {
		status.Metadata["session_state"] = d.session.State().String()
	}

	if err := r.fill(ctx, dev, status); err != nil {
		m := types.Classify(err)
		status.Metadata["error"] = err.Error()
		status.Metadata["code"] = string(m.Code)
		r.logger.Warn("device status incomplete", "device", key, "err", err)
	}

	if d != nil && d.prober != nil {
		if err := d.prober.Fill(ctx, status); err != nil {
			r.logger.Warn("snmp probe failed", "device", key, "err", err)
		}
	}
	return status, nil
}

func (r *Registry) fill(ctx context.Context, dev OXC, status *types.EquipmentStatus) error {
	id, err := dev.Identify(ctx)
	if err != nil {
		return err
	}
	status.IsReachable = true
	status.Identity = id

	ports, err := dev.Ports(ctx)
	if err != nil {
		return err
	}
	status.Inputs, status.Outputs = ports.Inputs, ports.Outputs

	conns, err := dev.Connections(ctx)
	if err != nil {
		return err
	}
	status.ActiveConnections = len(conns)

	if nc, ok := dev.(NetworkConfigurer); ok {
		settings, err := nc.NetworkConfig(ctx)
		if err != nil && !errors.Is(err, types.ErrNotSupported) {
			return err
		}
		for k, v := range settings {
			status.Metadata["net_"+k] = v
		}
	}
	return nil
}
