// Package codec translates connection maps and port lists to and from the
// bracketed SCPI channel list syntax, e.g. "(@1,2),(@97,98)".
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nanoncore/nano-oxc/types"
)

// EncodeConnections renders m as "(@i1,...,iN),(@o1,...,oN)". Pairs are
// normalized so the lower port is the input, and emitted by ascending input.
func EncodeConnections(m types.ConnectionMap) (string, error) {
	norm, err := m.Normalize()
	if err != nil {
		return "", err
	}
	pairs := norm.Pairs()
	ins := make([]int, len(pairs))
	outs := make([]int, len(pairs))
	for i, p := range pairs {
		ins[i], outs[i] = p.In, p.Out
	}
	return EncodePortList(ins) + "," + EncodePortList(outs), nil
}

// DecodeConnections parses "(@i1,...),(@o1,...)" pairing the lists positionally.
func DecodeConnections(s string) (types.ConnectionMap, error) {
	s = strings.Join(strings.Fields(s), "")
	sides := strings.Split(s, "),(")
	if len(sides) != 2 {
		return nil, fmt.Errorf("%w: connection list %q", types.ErrDecode, s)
	}
	ins, err := parseInts(sides[0])
	if err != nil {
		return nil, err
	}
	outs, err := parseInts(sides[1])
	if err != nil {
		return nil, err
	}
	if len(ins) != len(outs) {
		return nil, fmt.Errorf("%w: %d inputs for %d outputs in %q", types.ErrDecode, len(ins), len(outs), s)
	}

	m := make(types.ConnectionMap, len(ins))
	for i, in := range ins {
		if _, dup := m[in]; dup {
			return nil, fmt.Errorf("%w: input %d listed twice in %q", types.ErrDecode, in, s)
		}
		m[in] = outs[i]
	}
	return m, nil
}

// EncodePortList renders ports as "(@p1,...,pN)".
func EncodePortList(ports []int) string {
	var b strings.Builder
	b.WriteString("(@")
	for i, p := range ports {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(p))
	}
	b.WriteByte(')')
	return b.String()
}

// DecodePortList parses "(@p1,...,pN)".
func DecodePortList(s string) ([]int, error) {
	return parseInts(strings.TrimSpace(s))
}

// EncodeLevels renders power levels as "(v1,...,vN)".
func EncodeLevels(levels []float64) string {
	parts := make([]string, len(levels))
	for i, v := range levels {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// DecodeLevels parses a power query response "(v1,...,vN)".
func DecodeLevels(s string) ([]float64, error) {
	var out []float64
	for _, tok := range tokens(s) {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: power level %q", types.ErrDecode, tok)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, tok := range tokens(s) {
		v, err := strconv.Atoi(tok)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: port %q", types.ErrDecode, tok)
		}
		out = append(out, v)
	}
	return out, nil
}

// tokens strips bracket and @ decoration and splits on commas.
func tokens(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "(@)")
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
