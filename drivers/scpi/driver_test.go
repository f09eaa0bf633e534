package scpi

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/nano-oxc/logger"
	"github.com/nanoncore/nano-oxc/types"
)

func TestNewDriverDefaults(t *testing.T) {
	_, err := NewDriver(nil)
	require.Error(t, err)

	_, err = NewDriver(&types.EquipmentConfig{})
	require.Error(t, err)

	_, err = NewDriver(&types.EquipmentConfig{Address: "10.0.0.1", Protocol: types.ProtocolSNMP})
	require.Error(t, err)

	cfg := &types.EquipmentConfig{Address: "10.0.0.1"}
	d, err := NewDriver(cfg, WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultSCPIPort, cfg.Port)
	assert.Equal(t, types.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, types.ProtocolSCPI, cfg.Protocol)
	assert.Equal(t, "10.0.0.1:5025", d.Address())
	assert.IsType(t, &TCPDialer{}, d.Session().dialer)
	assert.False(t, d.IsOpen())

	d, err = NewDriver(&types.EquipmentConfig{Address: "10.0.0.1", Protocol: types.ProtocolSSH, Port: 22})
	require.NoError(t, err)
	assert.IsType(t, &SSHDialer{}, d.Session().dialer)
}

func TestDriverIdentify(t *testing.T) {
	srv := startDevice(t)
	host, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	d, err := NewDriver(&types.EquipmentConfig{
		Address: host,
		Port:    port,
		Timeout: testTimeout,
	}, WithLogger(logger.Discard()))
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	require.NoError(t, d.Open(ctx))
	assert.True(t, d.IsOpen())

	id, err := d.Identify(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mock", id.Vendor)
	assert.Equal(t, "N-VST-96x96-LU1-MOCK", id.Model)
	assert.Equal(t, "MOCK-SIM-001", id.Serial)
	assert.Equal(t, "1.0.0", id.Firmware)

	require.NoError(t, d.HealthCheck(ctx))
	require.NoError(t, d.Reconnect(ctx))
	assert.False(t, d.IsOpen())

	require.NoError(t, d.Close())
	_, err = d.Identify(ctx)
	require.ErrorIs(t, err, types.ErrClosed)
}
