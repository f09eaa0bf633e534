package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/nano-oxc/types"
)

func TestEncodeConnections(t *testing.T) {
	tests := []struct {
		name string
		in   types.ConnectionMap
		want string
	}{
		{"reversed pair normalized", types.ConnectionMap{1: 97, 98: 2}, "(@1,2),(@97,98)"},
		{"ordered by input", types.ConnectionMap{3: 10, 1: 12}, "(@1,3),(@12,10)"},
		{"single", types.ConnectionMap{5: 50}, "(@5),(@50)"},
		{"empty", types.ConnectionMap{}, "(@),(@)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeConnections(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeConnectionsInvalid(t *testing.T) {
	_, err := EncodeConnections(types.ConnectionMap{4: 4})
	require.ErrorIs(t, err, types.ErrInvalidConnection)
}

func TestDecodeConnections(t *testing.T) {
	got, err := DecodeConnections("(@1,2,3),(@97,98,99)")
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionMap{1: 97, 2: 98, 3: 99}, got)

	got, err = DecodeConnections(" (@1, 2), (@97, 98)\r\n")
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionMap{1: 97, 2: 98}, got)

	got, err = DecodeConnections("(@),(@)")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeConnectionsMalformed(t *testing.T) {
	for _, s := range []string{
		"(@1,2),(@97)",
		"(@1,x),(@97,98)",
		"(@1,2)",
		"",
		"(@1,1),(@97,98)",
		"(@0),(@5)",
		"(@-3),(@5)",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := DecodeConnections(s)
			require.ErrorIs(t, err, types.ErrDecode)
		})
	}
}

func TestConnectionsRoundTrip(t *testing.T) {
	maps := []types.ConnectionMap{
		{1: 97},
		{1: 97, 98: 2, 3: 150},
		{10: 5, 20: 15, 30: 25},
		{192: 1},
	}
	for _, m := range maps {
		t.Run(m.String(), func(t *testing.T) {
			wire, err := EncodeConnections(m)
			require.NoError(t, err)
			got, err := DecodeConnections(wire)
			require.NoError(t, err)
			want, err := m.Normalize()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestPortList(t *testing.T) {
	assert.Equal(t, "(@1,5,200)", EncodePortList([]int{1, 5, 200}))
	assert.Equal(t, "(@)", EncodePortList(nil))

	ports, err := DecodePortList("(@1,5,200)")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 200}, ports)
}

func TestLevels(t *testing.T) {
	levels, err := DecodeLevels("(-3.25,-60,1.5)")
	require.NoError(t, err)
	assert.Equal(t, []float64{-3.25, -60, 1.5}, levels)
	assert.Equal(t, "(-3.25,-60,1.5)", EncodeLevels(levels))

	_, err = DecodeLevels("(-3.25,abc)")
	require.ErrorIs(t, err, types.ErrDecode)
}
