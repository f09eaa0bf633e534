package types

import (
	"fmt"
	"sort"
	"strings"
)

// Pair is a single cross-connect between an input and an output port.
type Pair struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// Sorted returns the pair with the lower port number as input.
func (p Pair) Sorted() Pair {
	if p.In > p.Out {
		return Pair{In: p.Out, Out: p.In}
	}
	return p
}

func (p Pair) String() string {
	return fmt.Sprintf("%d:%d", p.In, p.Out)
}

// ConnectionMap maps input port numbers to output port numbers.
type ConnectionMap map[int]int

// FromPairs builds a ConnectionMap out of pairs, last pair wins on
// duplicated inputs.
func FromPairs(pairs []Pair) ConnectionMap {
	m := make(ConnectionMap, len(pairs))
	for _, p := range pairs {
		m[p.In] = p.Out
	}
	return m
}

// Pairs returns the connections ordered by input port.
func (m ConnectionMap) Pairs() []Pair {
	pairs := make([]Pair, 0, len(m))
	for in, out := range m {
		pairs = append(pairs, Pair{In: in, Out: out})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].In == pairs[j].In {
			return pairs[i].Out < pairs[j].Out
		}
		return pairs[i].In < pairs[j].In
	})
	return pairs
}

// Set returns the connections as a set of pairs.
func (m ConnectionMap) Set() map[Pair]struct{} {
	set := make(map[Pair]struct{}, len(m))
	for in, out := range m {
		set[Pair{In: in, Out: out}] = struct{}{}
	}
	return set
}

// Normalize returns a copy where every pair satisfies input < output.
// Callers may hand pairs in either orientation. Ports must be positive and
// each port may appear in one connection only.
func (m ConnectionMap) Normalize() (ConnectionMap, error) {
	norm := make(ConnectionMap, len(m))
	used := make(map[int]struct{}, 2*len(m))
	for _, p := range m.Pairs() {
		if p.In <= 0 || p.Out <= 0 {
			return nil, fmt.Errorf("%w: port numbers must be positive, got %s", ErrInvalidConnection, p)
		}
		if p.In == p.Out {
			return nil, fmt.Errorf("%w: port %d connected to itself", ErrInvalidConnection, p.In)
		}
		s := p.Sorted()
		if prev, ok := norm[s.In]; ok && prev == s.Out {
			continue
		}
		for _, port := range []int{s.In, s.Out} {
			if _, ok := used[port]; ok {
				return nil, fmt.Errorf("%w: port %d used by more than one connection", ErrInvalidConnection, port)
			}
			used[port] = struct{}{}
		}
		norm[s.In] = s.Out
	}
	return norm, nil
}

// Partition splits m into the pairs accepted by keep and the remainder.
func (m ConnectionMap) Partition(keep func(in, out int) bool) (ConnectionMap, ConnectionMap) {
	own := make(ConnectionMap)
	others := make(ConnectionMap)
	for in, out := range m {
		if keep(in, out) {
			own[in] = out
		} else {
			others[in] = out
		}
	}
	return own, others
}

func (m ConnectionMap) String() string {
	parts := make([]string, 0, len(m))
	for _, p := range m.Pairs() {
		parts = append(parts, p.String())
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// PortRange describes a device with inputs {1..Inputs} and outputs
// {Inputs+1..Inputs+Outputs}.
type PortRange struct {
	Inputs  int `json:"inputs"`
	Outputs int `json:"outputs"`
}

// InputPorts lists the input port numbers.
func (r PortRange) InputPorts() []int {
	return portSpan(1, r.Inputs)
}

// OutputPorts lists the output port numbers.
func (r PortRange) OutputPorts() []int {
	return portSpan(r.Inputs+1, r.Inputs+r.Outputs)
}

// Total returns the number of ports of the device.
func (r PortRange) Total() int {
	return r.Inputs + r.Outputs
}

// IsInput reports whether port is an input port.
func (r PortRange) IsInput(port int) bool {
	return port >= 1 && port <= r.Inputs
}

// IsOutput reports whether port is an output port.
func (r PortRange) IsOutput(port int) bool {
	return port > r.Inputs && port <= r.Inputs+r.Outputs
}

func portSpan(first, last int) []int {
	if last < first {
		return []int{}
	}
	ports := make([]int, 0, last-first+1)
	for p := first; p <= last; p++ {
		ports = append(ports, p)
	}
	return ports
}

// SlicedTag prefixes the identification fields of a virtual device.
const SlicedTag = "Sliced"

// Identity is the parsed answer to *idn?.
type Identity struct {
	Vendor   string   `json:"vendor"`
	Model    string   `json:"model"`
	Serial   string   `json:"serial"`
	Firmware string   `json:"firmware"`
	Extra    []string `json:"extra,omitempty"`

	// Slices holds one descriptor per virtual layer, innermost first.
	Slices []string `json:"slices,omitempty"`
}

// ParseIdentity splits a comma separated identification string.
func ParseIdentity(response string) *Identity {
	fields := strings.Split(response, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	id := &Identity{}
	targets := []*string{&id.Vendor, &id.Model, &id.Serial, &id.Firmware}
	for i, f := range fields {
		if i < len(targets) {
			*targets[i] = f
			continue
		}
		id.Extra = append(id.Extra, f)
	}
	return id
}

// Sliced returns a copy of the identity tagged with one more virtual layer.
func (id *Identity) Sliced(descriptor string) *Identity {
	out := *id
	out.Extra = append([]string(nil), id.Extra...)
	out.Slices = append(append([]string(nil), id.Slices...), descriptor)
	return &out
}

// IsSliced reports whether the identity went through a virtual device.
func (id *Identity) IsSliced() bool {
	return len(id.Slices) > 0
}

// Fields returns the identification tuple: one SlicedTag per virtual layer,
// the device fields, then the slice descriptors.
func (id *Identity) Fields() []string {
	fields := make([]string, 0, 2*len(id.Slices)+4+len(id.Extra))
	for range id.Slices {
		fields = append(fields, SlicedTag)
	}
	fields = append(fields, id.Vendor, id.Model, id.Serial, id.Firmware)
	fields = append(fields, id.Extra...)
	fields = append(fields, id.Slices...)
	return fields
}

func (id *Identity) String() string {
	return strings.Join(id.Fields(), ",")
}

// PowerReading maps port numbers to power levels in dBm.
type PowerReading map[int]float64

// Ports returns the ports present in the reading, ascending.
func (r PowerReading) Ports() []int {
	ports := make([]int, 0, len(r))
	for p := range r {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}
