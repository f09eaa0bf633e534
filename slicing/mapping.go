// Package slicing carves independent virtual cross-connects out of a
// physical one.
//
// A PortMapping renumbers a subset of physical ports as a contiguous virtual
// range: inputs become 1..len(inputs) and outputs follow. A VirtualDevice
// applies the mapping to every operation of an underlying types.OXC, which
// may itself be a VirtualDevice.
package slicing

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nanoncore/nano-oxc/types"
)

// PortMapping maps virtual ports to physical ports and back.
type PortMapping struct {
	inputs   []int
	outputs  []int
	inIndex  map[int]int
	outIndex map[int]int
}

// NewPortMapping creates the mapping for the given physical inputs and
// outputs. Ports must be positive and unique. Every input must be numbered
// below every output: the device reports each connection with its lower
// port first, so a pair running the other way would never be seen again.
func NewPortMapping(inputs, outputs []int) (*PortMapping, error) {
	m := &PortMapping{
		inputs:   append([]int(nil), inputs...),
		outputs:  append([]int(nil), outputs...),
		inIndex:  make(map[int]int, len(inputs)),
		outIndex: make(map[int]int, len(outputs)),
	}
	for i, p := range m.inputs {
		if p <= 0 {
			return nil, fmt.Errorf("%w: input port %d", types.ErrInvalidMapping, p)
		}
		if _, dup := m.inIndex[p]; dup {
			return nil, fmt.Errorf("%w: input port %d listed twice", types.ErrInvalidMapping, p)
		}
		m.inIndex[p] = i
	}
	for i, p := range m.outputs {
		if p <= 0 {
			return nil, fmt.Errorf("%w: output port %d", types.ErrInvalidMapping, p)
		}
		if _, dup := m.outIndex[p]; dup {
			return nil, fmt.Errorf("%w: output port %d listed twice", types.ErrInvalidMapping, p)
		}
		if _, both := m.inIndex[p]; both {
			return nil, fmt.Errorf("%w: port %d is both input and output", types.ErrInvalidMapping, p)
		}
		m.outIndex[p] = i
	}
	if len(m.inputs) > 0 && len(m.outputs) > 0 {
		if hi, lo := slices.Max(m.inputs), slices.Min(m.outputs); hi > lo {
			return nil, fmt.Errorf("%w: input port %d above output port %d", types.ErrInvalidMapping, hi, lo)
		}
	}
	return m, nil
}

// Within checks that the physical inputs and outputs are inputs and
// outputs of r.
func (m *PortMapping) Within(r types.PortRange) error {
	for _, p := range m.inputs {
		if !r.IsInput(p) {
			return fmt.Errorf("%w: port %d is not an input (inputs 1..%d)", types.ErrInvalidMapping, p, r.Inputs)
		}
	}
	for _, p := range m.outputs {
		if !r.IsOutput(p) {
			return fmt.Errorf("%w: port %d is not an output (outputs %d..%d)", types.ErrInvalidMapping, p, r.Inputs+1, r.Total())
		}
	}
	return nil
}

// Inputs returns the physical input ports.
func (m *PortMapping) Inputs() []int { return append([]int(nil), m.inputs...) }

// Outputs returns the physical output ports.
func (m *PortMapping) Outputs() []int { return append([]int(nil), m.outputs...) }

func (m *PortMapping) InputNumber() int  { return len(m.inputs) }
func (m *PortMapping) OutputNumber() int { return len(m.outputs) }
func (m *PortMapping) PortNumber() int   { return len(m.inputs) + len(m.outputs) }
func (m *PortMapping) LastInput() int    { return len(m.inputs) }
func (m *PortMapping) FirstOutput() int  { return len(m.inputs) + 1 }
func (m *PortMapping) LastOutput() int   { return len(m.inputs) + len(m.outputs) }

// Range returns the virtual port range.
func (m *PortMapping) Range() types.PortRange {
	return types.PortRange{Inputs: len(m.inputs), Outputs: len(m.outputs)}
}

// RealInput maps virtual input v to its physical port.
func (m *PortMapping) RealInput(v int) (int, error) {
	if v < 1 || v > m.LastInput() {
		return 0, fmt.Errorf("%w: expecting 1 <= input <= %d, found %d", types.ErrPortOutOfRange, m.LastInput(), v)
	}
	return m.inputs[v-1], nil
}

// RealOutput maps virtual output v to its physical port.
func (m *PortMapping) RealOutput(v int) (int, error) {
	if v < m.FirstOutput() || v > m.LastOutput() {
		return 0, fmt.Errorf("%w: expecting %d <= output <= %d, found %d",
			types.ErrPortOutOfRange, m.FirstOutput(), m.LastOutput(), v)
	}
	return m.outputs[v-m.FirstOutput()], nil
}

// RealPort maps virtual port v, input or output, to its physical port.
func (m *PortMapping) RealPort(v int) (int, error) {
	if v >= 1 && v <= m.LastInput() {
		return m.RealInput(v)
	}
	return m.RealOutput(v)
}

// VirtualInput maps physical input p to its virtual port.
func (m *PortMapping) VirtualInput(p int) (int, error) {
	i, ok := m.inIndex[p]
	if !ok {
		return 0, fmt.Errorf("%w: input %d not in %v", types.ErrPortNotMapped, p, m.inputs)
	}
	return i + 1, nil
}

// VirtualOutput maps physical output p to its virtual port.
func (m *PortMapping) VirtualOutput(p int) (int, error) {
	i, ok := m.outIndex[p]
	if !ok {
		return 0, fmt.Errorf("%w: output %d not in %v", types.ErrPortNotMapped, p, m.outputs)
	}
	return i + m.FirstOutput(), nil
}

// VirtualPort maps physical port p, input or output, to its virtual port.
func (m *PortMapping) VirtualPort(p int) (int, error) {
	if _, ok := m.inIndex[p]; ok {
		return m.VirtualInput(p)
	}
	return m.VirtualOutput(p)
}

// HasPair reports whether in is a mapped input and out a mapped output.
func (m *PortMapping) HasPair(in, out int) bool {
	_, okIn := m.inIndex[in]
	_, okOut := m.outIndex[out]
	return okIn && okOut
}

// FilterConnections splits physical conns into the pairs owned by this
// mapping and the remainder.
func (m *PortMapping) FilterConnections(conns types.ConnectionMap) (own, others types.ConnectionMap) {
	return conns.Partition(m.HasPair)
}

// FilterRealPorts keeps the physical ports that belong to this mapping.
func (m *PortMapping) FilterRealPorts(ports []int) []int {
	out := make([]int, 0, len(ports))
	for _, p := range ports {
		_, in := m.inIndex[p]
		_, o := m.outIndex[p]
		if in || o {
			out = append(out, p)
		}
	}
	return out
}

// VirtualConnections translates the owned part of physical conns to
// virtual numbering. Pairs outside the mapping are dropped.
func (m *PortMapping) VirtualConnections(conns types.ConnectionMap) (types.ConnectionMap, error) {
	own, _ := m.FilterConnections(conns)
	out := make(types.ConnectionMap, len(own))
	for in, o := range own {
		vin, err := m.VirtualInput(in)
		if err != nil {
			return nil, err
		}
		vout, err := m.VirtualOutput(o)
		if err != nil {
			return nil, err
		}
		out[vin] = vout
	}
	return out, nil
}

// RealConnections translates virtual conns to physical numbering.
func (m *PortMapping) RealConnections(conns types.ConnectionMap) (types.ConnectionMap, error) {
	out := make(types.ConnectionMap, len(conns))
	for in, o := range conns {
		rin, err := m.RealInput(in)
		if err != nil {
			return nil, err
		}
		rout, err := m.RealOutput(o)
		if err != nil {
			return nil, err
		}
		out[rin] = rout
	}
	return out, nil
}

// String renders the physical ports as "i1,i2|o1,o2".
func (m *PortMapping) String() string {
	return joinPorts(m.inputs) + "|" + joinPorts(m.outputs)
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
