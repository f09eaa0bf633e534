package oxc

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nanoncore/nano-oxc/types"
)

// Environment variables overriding inventory values.
const (
	EnvTimeout  = "OXC_TIMEOUT"
	EnvPort     = "OXC_PORT"
	EnvProtocol = "OXC_PROTOCOL"
	EnvUsername = "OXC_USERNAME"
	EnvPassword = "OXC_PASSWORD"
)

// SliceConfig names a virtual device over a subset of a device's ports.
type SliceConfig struct {
	Name    string `yaml:"name"`
	Device  string `yaml:"device"`
	Inputs  []int  `yaml:"inputs"`
	Outputs []int  `yaml:"outputs"`
}

// Inventory lists the known devices and slices.
//
//	defaults:
//	  timeout: 5s
//	devices:
//	  - name: lab-1
//	    vendor: polatis
//	    address: 10.0.0.5
//	slices:
//	  - name: tenant-a
//	    device: lab-1
//	    inputs: [1, 2]
//	    outputs: [97, 98]
type Inventory struct {
	Defaults types.EquipmentConfig   `yaml:"defaults"`
	Devices  []types.EquipmentConfig `yaml:"devices"`
	Slices   []SliceConfig           `yaml:"slices"`
}

// LoadInventory reads an inventory file and applies the OXC_* environment
// overlay.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	inv, err := ParseInventory(data)
	if err != nil {
		return nil, fmt.Errorf("inventory %s: %w", path, err)
	}
	for i := range inv.Devices {
		if err := ApplyEnv(&inv.Devices[i], os.LookupEnv); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// ParseInventory decodes and validates an inventory document. Device
// fields left empty are taken from defaults.
func ParseInventory(data []byte) (*Inventory, error) {
	inv := &Inventory{}
	if err := yaml.Unmarshal(data, inv); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}

	names := make(map[string]bool)
	for i := range inv.Devices {
		d := &inv.Devices[i]
		mergeDefaults(d, &inv.Defaults)
		if d.Address == "" {
			return nil, fmt.Errorf("device %d (%s): address is required", i, d.Name)
		}
		if d.Name != "" {
			if names[d.Name] {
				return nil, fmt.Errorf("duplicate name %q", d.Name)
			}
			names[d.Name] = true
		}
	}
	for i, s := range inv.Slices {
		if s.Name == "" {
			return nil, fmt.Errorf("slice %d: name is required", i)
		}
		if names[s.Name] {
			return nil, fmt.Errorf("duplicate name %q", s.Name)
		}
		names[s.Name] = true
		if _, ok := inv.Device(s.Device); !ok {
			if _, nested := inv.Slice(s.Device); !nested {
				return nil, fmt.Errorf("slice %s: %w: %s", s.Name, types.ErrUnknownDevice, s.Device)
			}
		}
	}
	return inv, nil
}

// Device finds a device by name or address.
func (inv *Inventory) Device(key string) (*types.EquipmentConfig, bool) {
	if inv == nil {
		return nil, false
	}
	for i := range inv.Devices {
		if inv.Devices[i].Name == key || inv.Devices[i].Address == key {
			return &inv.Devices[i], true
		}
	}
	return nil, false
}

// Slice finds a slice by name.
func (inv *Inventory) Slice(name string) (*SliceConfig, bool) {
	if inv == nil {
		return nil, false
	}
	for i := range inv.Slices {
		if inv.Slices[i].Name == name {
			return &inv.Slices[i], true
		}
	}
	return nil, false
}

// ApplyEnv overrides config with the OXC_* variables found by lookup.
func ApplyEnv(config *types.EquipmentConfig, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		config.Timeout = d
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		config.Port = p
	}
	if v, ok := lookup(EnvProtocol); ok && v != "" {
		config.Protocol = types.Protocol(v)
	}
	if v, ok := lookup(EnvUsername); ok && v != "" {
		config.Username = v
	}
	if v, ok := lookup(EnvPassword); ok && v != "" {
		config.Password = v
	}
	return nil
}

func mergeDefaults(d, def *types.EquipmentConfig) {
	if d.Vendor == "" {
		d.Vendor = def.Vendor
	}
	if d.Port == 0 {
		d.Port = def.Port
	}
	if d.Protocol == "" {
		d.Protocol = def.Protocol
	}
	if d.Username == "" {
		d.Username = def.Username
	}
	if d.Password == "" {
		d.Password = def.Password
	}
	if d.Timeout == 0 {
		d.Timeout = def.Timeout
	}
	if d.InputPhotodetectorModels == nil {
		d.InputPhotodetectorModels = def.InputPhotodetectorModels
	}
	for k, v := range def.Metadata {
		if d.Metadata == nil {
			d.Metadata = make(map[string]string)
		}
		if _, ok := d.Metadata[k]; !ok {
			d.Metadata[k] = v
		}
	}
}
