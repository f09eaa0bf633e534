package oxc

// Re-export types from the types sub-package so callers can use oxc.OXC,
// oxc.EquipmentConfig and friends directly.

import (
	"github.com/nanoncore/nano-oxc/types"
)

// Type aliases
type (
	Protocol          = types.Protocol
	Vendor            = types.Vendor
	EquipmentConfig   = types.EquipmentConfig
	Driver            = types.Driver
	OXC               = types.OXC
	SCPIExecutor      = types.SCPIExecutor
	NetworkConfigurer = types.NetworkConfigurer
	EquipmentStatus   = types.EquipmentStatus
	ConnectionMap     = types.ConnectionMap
	PortRange         = types.PortRange
	Identity          = types.Identity
	PowerReading      = types.PowerReading
	Result            = types.Result
)

// Re-export constants
const (
	ProtocolSCPI = types.ProtocolSCPI
	ProtocolSSH  = types.ProtocolSSH
	ProtocolSNMP = types.ProtocolSNMP
	ProtocolMock = types.ProtocolMock

	VendorPolatis = types.VendorPolatis
	VendorMock    = types.VendorMock
)
