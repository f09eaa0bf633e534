package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/nano-oxc/types"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), args, &out)
	return out.String(), err
}

func TestExecuteVersionAndHelp(t *testing.T) {
	out, err := runCLI(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "oxcctl ")

	for _, args := range [][]string{{"--help"}, {}} {
		_, err := runCLI(t, args...)
		require.NoError(t, err)
	}
}

func TestExecuteArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"--nonexistent-flag"}, "unknown flag"},
		{"no command", []string{"-a", "192.0.2.1"}, "command required"},
		{"unknown command", []string{"-a", "192.0.2.1", "frobnicate"}, "unknown command"},
		{"half slice", []string{"-a", "192.0.2.1", "--slice-in", "1", "ports"}, "go together"},
		{"no target", []string{"ports"}, "required"},
		{"device without inventory", []string{"-d", "lab", "ports"}, "needs --inventory"},
		{"bad pair", []string{"--simulate", "connect", "1-9"}, "expected in:out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestExecuteSimulated(t *testing.T) {
	out, err := runCLI(t, "--simulate", "--size", "8", "connect", "1:9", "2:10")
	require.NoError(t, err)
	assert.Equal(t, "1 -> 9\n2 -> 10\n", out)

	out, err = runCLI(t, "--simulate", "--size", "8", "ports")
	require.NoError(t, err)
	assert.Equal(t, "inputs:  1..8 (8)\noutputs: 9..16 (8)\n", out)

	out, err = runCLI(t, "--simulate", "idn")
	require.NoError(t, err)
	assert.Contains(t, out, "N-SIM-16x16-LU1")

	_, err = runCLI(t, "--simulate", "--size", "8", "--slice-in", "1", "--slice-out", "9", "connect", "1:5")
	require.ErrorContains(t, err, "out of range")
}

func TestExecuteSimulatedSlice(t *testing.T) {
	out, err := runCLI(t, "--simulate", "--size", "32",
		"--slice-in", "5,6", "--slice-out", "50,51", "connect", "1:3")
	require.NoError(t, err)
	assert.Equal(t, "1 -> 3\n", out)

	out, err = runCLI(t, "--simulate", "--size", "32",
		"--slice-in", "5,6", "--slice-out", "50,51", "ports")
	require.NoError(t, err)
	assert.Equal(t, "inputs:  1..2 (2)\noutputs: 3..4 (2)\n", out)

	// On a 64x64 fabric ports 50 and 51 are inputs.
	_, err = runCLI(t, "--simulate", "--size", "64",
		"--slice-in", "5,6", "--slice-out", "50,51", "connect", "1:3")
	require.ErrorContains(t, err, "port 50 is not an output")
}

func TestExecuteRejectsPortsOffTheFabric(t *testing.T) {
	for _, pair := range []string{"1:20", "1:2", "9:10"} {
		t.Run(pair, func(t *testing.T) {
			out, err := runCLI(t, "--simulate", "--size", "8", "connect", pair)
			require.ErrorContains(t, err, "out of range")
			assert.Empty(t, out)
		})
	}

	out, err := runCLI(t, "--simulate", "--size", "8", "connect", "12:3")
	require.NoError(t, err)
	assert.Equal(t, "3 -> 12\n", out)
}

func TestExecuteJSON(t *testing.T) {
	out, err := runCLI(t, "--simulate", "--size", "8", "--json", "power", "1", "9")
	require.NoError(t, err)

	var res struct {
		OK   bool               `json:"ok"`
		Code types.ErrorCode    `json:"code"`
		Data map[string]float64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.OK)
	assert.Equal(t, types.CodeOK, res.Code)
	assert.Len(t, res.Data, 2)
}

func TestExecuteInventory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
devices:
  - name: lab
    vendor: mock
    address: 192.0.2.9
    metadata:
      inputs: "8"
slices:
  - name: tenant
    device: lab
    inputs: [1, 2]
    outputs: [9, 10]
`), 0o600))

	out, err := runCLI(t, "--inventory", path, "-d", "lab", "ports")
	require.NoError(t, err)
	assert.Equal(t, "inputs:  1..8 (8)\noutputs: 9..16 (8)\n", out)

	out, err = runCLI(t, "--inventory", path, "-d", "tenant", "set", "1:4,2:3")
	require.NoError(t, err)
	assert.Equal(t, "1 -> 4\n2 -> 3\n", out)

	out, err = runCLI(t, "--inventory", path, "-d", "lab", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"is_reachable": true`)
}

func TestParsePairs(t *testing.T) {
	conns, err := parsePairs([]string{"1:97", "2:98,3:99"})
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionMap{1: 97, 2: 98, 3: 99}, conns)

	_, err = parsePairs([]string{"1:97", "1:98"})
	require.ErrorIs(t, err, types.ErrInvalidConnection)
	_, err = parsePairs([]string{"x:1"})
	require.Error(t, err)

	ports, err := parsePorts([]string{"1,2", "9"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 9}, ports)
}
