package types

import (
	"context"
	"time"
)

// Protocol selects how a device is reached
type Protocol string

const (
	ProtocolSCPI Protocol = "scpi" // SCPI over a raw TCP socket
	ProtocolSSH  Protocol = "ssh"  // SCPI over an SSH channel
	ProtocolSNMP Protocol = "snmp"
	ProtocolMock Protocol = "mock"
)

// Vendor represents the cross-connect vendor
type Vendor string

const (
	VendorPolatis Vendor = "polatis"
	VendorMock    Vendor = "mock" // For testing/simulation
)

// DefaultSCPIPort is the TCP port SCPI instruments listen on.
const DefaultSCPIPort = 5025

// DefaultTimeout is the maximum wait for a response from the device.
const DefaultTimeout = 5 * time.Second

// DefaultInputPhotodetectorModels lists product codes known to carry
// photodetectors on their input side.
var DefaultInputPhotodetectorModels = []string{"N-VST-192x192-LU1-DMHNV-801"}

// EquipmentConfig contains configuration for a cross-connect instance
type EquipmentConfig struct {
	// Name is a unique identifier for this equipment
	Name string `yaml:"name"`

	// Vendor is the equipment vendor
	Vendor Vendor `yaml:"vendor"`

	// Address is the management IP/hostname
	Address string `yaml:"address"`

	// Port is the management port (if not default)
	Port int `yaml:"port"`

	// Protocol is the primary management protocol
	Protocol Protocol `yaml:"protocol"`

	// Username for SSH authentication
	Username string `yaml:"username"`

	// Password for SSH authentication
	Password string `yaml:"password"`

	// Timeout bounds the wait for the synchronization marker on every call
	Timeout time.Duration `yaml:"timeout"`

	// InputPhotodetectorModels overrides DefaultInputPhotodetectorModels
	InputPhotodetectorModels []string `yaml:"input_photodetector_models"`

	// Metadata contains vendor-specific configuration
	Metadata map[string]string `yaml:"metadata"`
}

// Driver is the lifecycle contract every device driver implements.
// Sessions are opened lazily, so calling Open is optional.
type Driver interface {
	// Open establishes and synchronizes the session
	Open(ctx context.Context) error

	// Close releases the session; a closed driver cannot be reopened
	Close() error

	// IsOpen returns true if a synchronized session is held
	IsOpen() bool

	// Reconnect tears the session down; the next call reopens it
	Reconnect(ctx context.Context) error

	// HealthCheck performs a round-trip on the session
	HealthCheck(ctx context.Context) error
}

// OXC is the capability set of an optical cross-connect, real or sliced.
type OXC interface {
	Driver

	// Identify returns the device identification
	Identify(ctx context.Context) (*Identity, error)

	// Ports returns the input and output port numbers of the device
	Ports(ctx context.Context) (*PortRange, error)

	// Connections retrieves all active cross-connects
	Connections(ctx context.Context) (ConnectionMap, error)

	// SetConnections replaces all active cross-connects with conns
	SetConnections(ctx context.Context, conns ConnectionMap) error

	// Connect adds conns to the active cross-connects
	Connect(ctx context.Context, conns ConnectionMap) error

	// Disconnect removes conns from the active cross-connects
	Disconnect(ctx context.Context, conns ConnectionMap) error

	// DisconnectAll removes every active cross-connect
	DisconnectAll(ctx context.Context) error

	// GetPower reads the power level of the given ports
	GetPower(ctx context.Context, ports []int) (PowerReading, error)

	// Power reads every power level the device can report
	Power(ctx context.Context) (PowerReading, error)
}

// SCPIExecutor is an optional interface for drivers that speak SCPI.
// Vendor adapters use it to send vendor-specific messages.
type SCPIExecutor interface {
	// Query sends a message that produces a single-line response
	Query(ctx context.Context, message string) (string, error)

	// Command sends a message that only triggers a side-effect
	Command(ctx context.Context, message string) error
}

// NetworkConfigurer is an optional interface for devices that report their
// management network settings.
type NetworkConfigurer interface {
	NetworkConfig(ctx context.Context) (map[string]string, error)
}

// EquipmentStatus represents the status of the equipment itself
type EquipmentStatus struct {
	// Name and Address identify the equipment
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`

	// IsReachable indicates if the SCPI session answered
	IsReachable bool `json:"is_reachable"`

	// Identity as reported by *idn?
	Identity *Identity `json:"identity,omitempty"`

	// Inputs and Outputs are the port counts
	Inputs  int `json:"inputs"`
	Outputs int `json:"outputs"`

	// ActiveConnections is the number of active cross-connects
	ActiveConnections int `json:"active_connections"`

	// SysName, SysDescr and Uptime come from the SNMP system group, when enabled
	SysName  string        `json:"sys_name,omitempty"`
	SysDescr string        `json:"sys_descr,omitempty"`
	Uptime   time.Duration `json:"uptime,omitempty"`

	// Metadata contains vendor-specific status
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
