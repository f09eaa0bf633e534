package types

import (
	"context"
	"errors"
)

var (
	// ErrTimeout indicates the synchronization marker did not arrive in time.
	ErrTimeout = errors.New("timeout when communicating with device")

	// ErrDisconnected indicates the stream to the device was reset or closed.
	ErrDisconnected = errors.New("communication channel with device suddenly disconnected")

	// ErrClosed indicates the driver was closed by its owner.
	ErrClosed = errors.New("driver closed")

	// ErrNotConnected indicates no session could be established.
	ErrNotConnected = errors.New("not connected to device")
)

var (
	// ErrNotAnOXC indicates the identification lacks the <in>x<out> port token.
	ErrNotAnOXC = errors.New("device does not seem to be an optical cross-connect")

	// ErrNotSupported indicates the operation is unavailable for the product family.
	ErrNotSupported = errors.New("operation not supported by device")

	// ErrPortOutOfRange indicates a virtual port outside the slice.
	ErrPortOutOfRange = errors.New("port out of range")

	// ErrPortNotMapped indicates a physical port that does not belong to the slice.
	ErrPortNotMapped = errors.New("port not mapped")

	// ErrDecode indicates a malformed response from the device.
	ErrDecode = errors.New("malformed device response")

	// ErrInvalidConnection indicates a connection map that cannot be encoded.
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrInvalidMapping indicates a slice port list with duplicates or overlap.
	ErrInvalidMapping = errors.New("invalid port mapping")

	// ErrUnknownDevice indicates a lookup for a device that is not registered.
	ErrUnknownDevice = errors.New("unknown device")
)

// ErrorCode is a stable identifier for an error class
type ErrorCode string

const (
	CodeOK                ErrorCode = "OK"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeDisconnected      ErrorCode = "DISCONNECTED"
	CodeClosed            ErrorCode = "CLOSED"
	CodeNotConnected      ErrorCode = "NOT_CONNECTED"
	CodeNotAnOXC          ErrorCode = "NOT_AN_OXC"
	CodeNotSupported      ErrorCode = "NOT_SUPPORTED"
	CodePortOutOfRange    ErrorCode = "PORT_OUT_OF_RANGE"
	CodePortNotMapped     ErrorCode = "PORT_NOT_MAPPED"
	CodeDecode            ErrorCode = "DECODE"
	CodeInvalidConnection ErrorCode = "INVALID_CONNECTION"
	CodeInvalidMapping    ErrorCode = "INVALID_MAPPING"
	CodeUnknownDevice     ErrorCode = "UNKNOWN_DEVICE"
	CodeCanceled          ErrorCode = "CANCELED"
	CodeUnknown           ErrorCode = "UNKNOWN"
)

// ErrorMapping describes an error class for human consumption
type ErrorMapping struct {
	Code        ErrorCode
	Human       string
	Action      string
	Recoverable bool
}

// errorMappings is ordered: transport faults first so wrapped chains
// classify by their outermost meaningful cause.
var errorMappings = []struct {
	target  error
	mapping ErrorMapping
}{
	{ErrTimeout, ErrorMapping{
		Code:        CodeTimeout,
		Human:       "Device did not finish processing the request in time",
		Action:      "Reconnect and retry the operation",
		Recoverable: true,
	}},
	{ErrDisconnected, ErrorMapping{
		Code:        CodeDisconnected,
		Human:       "Connection to the device was lost",
		Action:      "Reconnect and retry the operation",
		Recoverable: true,
	}},
	{ErrNotConnected, ErrorMapping{
		Code:        CodeNotConnected,
		Human:       "Could not connect to the device",
		Action:      "Check address, port and network reachability",
		Recoverable: true,
	}},
	{ErrClosed, ErrorMapping{
		Code:   CodeClosed,
		Human:  "Driver was closed",
		Action: "Open a new driver for the device",
	}},
	{ErrNotAnOXC, ErrorMapping{
		Code:   CodeNotAnOXC,
		Human:  "Device identification has no port count",
		Action: "Verify the address points to an optical cross-connect",
	}},
	{ErrNotSupported, ErrorMapping{
		Code:   CodeNotSupported,
		Human:  "Operation unavailable for this product family",
		Action: "Use a device with the required hardware",
	}},
	{ErrPortOutOfRange, ErrorMapping{
		Code:   CodePortOutOfRange,
		Human:  "Port outside the device port range",
		Action: "Use ports listed by the ports operation",
	}},
	{ErrPortNotMapped, ErrorMapping{
		Code:   CodePortNotMapped,
		Human:  "Physical port does not belong to this slice",
		Action: "Check the slice input and output port lists",
	}},
	{ErrDecode, ErrorMapping{
		Code:   CodeDecode,
		Human:  "Device answered with an unexpected format",
		Action: "Check device firmware compatibility",
	}},
	{ErrInvalidConnection, ErrorMapping{
		Code:   CodeInvalidConnection,
		Human:  "Connection map is invalid",
		Action: "Pair each input with exactly one distinct output",
	}},
	{ErrInvalidMapping, ErrorMapping{
		Code:   CodeInvalidMapping,
		Human:  "Slice port lists are invalid",
		Action: "Use distinct positive ports for slice inputs and outputs",
	}},
	{ErrUnknownDevice, ErrorMapping{
		Code:   CodeUnknownDevice,
		Human:  "Device is not registered",
		Action: "Register the device or add it to the inventory",
	}},
	{context.Canceled, ErrorMapping{
		Code:  CodeCanceled,
		Human: "Request canceled",
	}},
	{context.DeadlineExceeded, ErrorMapping{
		Code:        CodeCanceled,
		Human:       "Request deadline exceeded",
		Recoverable: true,
	}},
}

// Classify maps err to its ErrorMapping. A nil error maps to CodeOK.
func Classify(err error) ErrorMapping {
	if err == nil {
		return ErrorMapping{Code: CodeOK}
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.mapping
		}
	}
	return ErrorMapping{
		Code:  CodeUnknown,
		Human: "Unexpected error",
	}
}

// IsRecoverable reports whether reconnecting may clear err.
func IsRecoverable(err error) bool {
	return Classify(err).Recoverable
}

// IsTransport reports whether err is a session level fault.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrDisconnected)
}

// Result is the tagged outcome handed to northbound layers.
type Result struct {
	OK          bool        `json:"ok"`
	Code        ErrorCode   `json:"code"`
	Message     string      `json:"message,omitempty"`
	Action      string      `json:"action,omitempty"`
	Recoverable bool        `json:"recoverable,omitempty"`
	Data        interface{} `json:"data,omitempty"`
}

// NewResult builds a Result from an operation outcome.
func NewResult(data interface{}, err error) Result {
	if err == nil {
		return Result{OK: true, Code: CodeOK, Data: data}
	}
	m := Classify(err)
	return Result{
		Code:        m.Code,
		Message:     err.Error(),
		Action:      m.Action,
		Recoverable: m.Recoverable,
	}
}
