package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/nano-oxc/types"
)

func newTestDriver(t *testing.T, metadata map[string]string) *Driver {
	t.Helper()
	d, err := NewDriver(&types.EquipmentConfig{Name: "mock", Metadata: metadata})
	require.NoError(t, err)
	return d
}

func TestNewDriverFabricSize(t *testing.T) {
	d := newTestDriver(t, map[string]string{"inputs": "8", "outputs": "4"})
	ctx := context.Background()

	r, err := d.Ports(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.PortRange{Inputs: 8, Outputs: 4}, *r)

	id, err := d.Identify(ctx)
	require.NoError(t, err)
	assert.Equal(t, "N-MCK-8x4-SIM", id.Model)

	_, err = NewDriver(nil)
	require.Error(t, err)
}

func TestConnectDisconnect(t *testing.T) {
	d := newTestDriver(t, nil)
	ctx := context.Background()

	require.NoError(t, d.Connect(ctx, types.ConnectionMap{1: 17, 18: 2}))
	conns, err := d.Connections(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionMap{1: 17, 2: 18}, conns)

	err = d.Connect(ctx, types.ConnectionMap{3: 17})
	require.ErrorIs(t, err, types.ErrInvalidConnection, "output 17 is busy")

	err = d.Connect(ctx, types.ConnectionMap{3: 4})
	require.ErrorIs(t, err, types.ErrPortOutOfRange, "4 is an input")

	require.NoError(t, d.Disconnect(ctx, types.ConnectionMap{1: 17}))
	err = d.Disconnect(ctx, types.ConnectionMap{1: 17})
	require.ErrorIs(t, err, types.ErrInvalidConnection)

	require.NoError(t, d.DisconnectAll(ctx))
	conns, err = d.Connections(ctx)
	require.NoError(t, err)
	assert.Empty(t, conns)

	assert.Equal(t, []string{
		"connect {1:17,2:18}",
		"connections",
		"connect {3:17}",
		"disconnect {1:17}",
		"disconnect {1:17}",
		"disconnect-all",
		"connections",
	}, d.GetCommandHistory())
}

func TestPower(t *testing.T) {
	d := newTestDriver(t, map[string]string{"inputs": "4"})
	ctx := context.Background()

	require.NoError(t, d.Connect(ctx, types.ConnectionMap{1: 5}))
	d.SetPower(6, -7.5)

	reading, err := d.GetPower(ctx, []int{1, 5, 6, 7})
	require.NoError(t, err)
	assert.Equal(t, -1.5, reading[1])
	assert.Equal(t, -3.0-float64(5%8)*0.25, reading[5])
	assert.Equal(t, -7.5, reading[6])
	assert.Equal(t, DarkLevel, reading[7])

	_, err = d.GetPower(ctx, []int{9})
	require.ErrorIs(t, err, types.ErrPortOutOfRange)

	all, err := d.Power(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 8)
}

func TestInjectFailureAndClose(t *testing.T) {
	d := newTestDriver(t, nil)
	ctx := context.Background()

	d.InjectFailure(types.ErrTimeout)
	_, err := d.Connections(ctx)
	require.ErrorIs(t, err, types.ErrTimeout)
	_, err = d.Connections(ctx)
	require.NoError(t, err)

	require.NoError(t, d.Close())
	assert.False(t, d.IsOpen())
	_, err = d.Identify(ctx)
	require.True(t, errors.Is(err, types.ErrClosed))
	require.ErrorIs(t, d.Open(ctx), types.ErrClosed)
}

func TestExec(t *testing.T) {
	d := newTestDriver(t, map[string]string{"inputs": "96", "outputs": "96", "model": "N-VST-96x96-LU1-MOCK"})
	ctx := context.Background()

	resp, err := d.Exec(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "Mock,N-VST-96x96-LU1-MOCK,MOCK-SIM-001,1.0.0", resp)

	_, err = d.Exec(ctx, "oxc:swit:conn:add (@1,2),(@97,98)")
	require.NoError(t, err)
	resp, err = d.Exec(ctx, "oxc:swit:conn:stat?")
	require.NoError(t, err)
	assert.Equal(t, "(@1,2),(@97,98)", resp)

	_, err = d.Exec(ctx, "oxc:swit:conn:sub (@1),(@97)")
	require.NoError(t, err)
	_, err = d.Exec(ctx, "oxc:swit:conn:only (@3),(@99)")
	require.NoError(t, err)
	resp, err = d.Exec(ctx, "oxc:swit:conn:stat?")
	require.NoError(t, err)
	assert.Equal(t, "(@3),(@99)", resp)

	resp, err = d.Exec(ctx, ":pmon:pow? (@3,10)")
	require.NoError(t, err)
	assert.Equal(t, "(-1.5,-99.99)", resp)

	resp, err = d.Exec(ctx, ":syst:comm:netw:addr?")
	require.NoError(t, err)
	assert.Equal(t, `GATEWAY="0.0.0.0" IPADDR="127.0.0.1" NETMASK="255.255.255.0"`, resp)

	_, err = d.Exec(ctx, "oxc:swit:disc:all")
	require.NoError(t, err)
	resp, err = d.Exec(ctx, "oxc:swit:conn:stat?")
	require.NoError(t, err)
	assert.Equal(t, "(@),(@)", resp)

	_, err = d.Exec(ctx, "bogus:cmd")
	require.Error(t, err)
}
