package oxc

import (
	"fmt"
	"slices"

	"github.com/nanoncore/nano-oxc/drivers/mock"
	"github.com/nanoncore/nano-oxc/drivers/scpi"
	"github.com/nanoncore/nano-oxc/vendors/polatis"
)

// CapabilityMatrix defines what each vendor supports
var CapabilityMatrix = map[Vendor]VendorCapabilities{
	VendorPolatis: {
		PrimaryProtocol: ProtocolSCPI,
		SupportedProtocols: []Protocol{
			ProtocolSCPI,
			ProtocolSSH,
			ProtocolMock, // adapter over the in-process fabric
		},
		ConfigMethod:    ProtocolSCPI,
		TelemetryMethod: ProtocolSNMP,
		SupportsPower:   true,
	},
	VendorMock: {
		PrimaryProtocol: ProtocolMock,
		SupportedProtocols: []Protocol{
			ProtocolMock,
		},
		ConfigMethod:    ProtocolMock,
		TelemetryMethod: ProtocolMock,
		SupportsPower:   true,
	},
}

// VendorCapabilities defines what protocols and features a vendor supports
type VendorCapabilities struct {
	PrimaryProtocol    Protocol
	SupportedProtocols []Protocol
	ConfigMethod       Protocol
	TelemetryMethod    Protocol
	SupportsPower      bool
}

// NewDriver creates a cross-connect driver based on vendor and protocol.
// The session is opened lazily on first use.
func NewDriver(vendor Vendor, protocol Protocol, config *EquipmentConfig, opts ...scpi.Option) (OXC, error) {
	dev, _, err := newDevice(vendor, protocol, config, opts...)
	return dev, err
}

// newDevice also returns the SCPI session backing the device, nil for
// simulated devices.
func newDevice(vendor Vendor, protocol Protocol, config *EquipmentConfig, opts ...scpi.Option) (OXC, *scpi.Session, error) {
	if config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	if vendor == "" {
		vendor = VendorPolatis
	}

	// Validate vendor capabilities
	caps, ok := CapabilityMatrix[vendor]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported vendor: %s", vendor)
	}

	// If protocol not specified, use primary
	if protocol == "" {
		protocol = caps.PrimaryProtocol
	}
	if !slices.Contains(caps.SupportedProtocols, protocol) {
		return nil, nil, fmt.Errorf("vendor %s does not support protocol %s", vendor, protocol)
	}
	config.Vendor = vendor
	config.Protocol = protocol

	// Mock vendor uses the fabric directly, it needs no vendor adapter
	if vendor == VendorMock {
		dev, err := mock.NewDriver(config)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create mock driver: %w", err)
		}
		return dev, nil, nil
	}

	// Create protocol driver
	var baseDriver Driver
	var session *scpi.Session
	switch protocol {
	case ProtocolSCPI, ProtocolSSH:
		d, err := scpi.NewDriver(config, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s driver: %w", protocol, err)
		}
		baseDriver, session = d, d.Session()
	case ProtocolMock:
		fabric, err := mock.NewDriver(config)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create mock driver: %w", err)
		}
		baseDriver = mock.NewExecutor(fabric)
	default:
		return nil, nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}

	// Wrap with vendor-specific adapter
	switch vendor {
	case VendorPolatis:
		return polatis.NewAdapter(baseDriver, config), session, nil
	default:
		return nil, nil, fmt.Errorf("vendor adapter not implemented: %s", vendor)
	}
}

// GetSupportedVendors returns a list of all supported vendors
func GetSupportedVendors() []Vendor {
	vendors := make([]Vendor, 0, len(CapabilityMatrix))
	for v := range CapabilityMatrix {
		vendors = append(vendors, v)
	}
	slices.Sort(vendors)
	return vendors
}

// GetVendorCapabilities returns the capabilities for a vendor
func GetVendorCapabilities(vendor Vendor) (VendorCapabilities, bool) {
	caps, ok := CapabilityMatrix[vendor]
	return caps, ok
}
