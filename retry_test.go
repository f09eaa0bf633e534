package oxc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/nano-oxc/drivers/mock"
	"github.com/nanoncore/nano-oxc/types"
)

var fastRetry = RetryPolicy{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func newMockDevice(t *testing.T) *mock.Driver {
	t.Helper()
	dev, err := mock.NewDriver(&types.EquipmentConfig{Address: "192.0.2.1"})
	require.NoError(t, err)
	return dev
}

func readConnections(ctx context.Context, dev OXC) error {
	_, err := dev.Connections(ctx)
	return err
}

func TestRetryReconnectsOnTransportFault(t *testing.T) {
	dev := newMockDevice(t)
	dev.InjectFailure(fmt.Errorf("query: %w", types.ErrTimeout))

	require.NoError(t, Retry(context.Background(), dev, fastRetry, readConnections))
	assert.Equal(t, []string{"connections", "reconnect", "connections"}, dev.GetCommandHistory())
}

func TestRetryDomainErrorIsPermanent(t *testing.T) {
	dev := newMockDevice(t)
	dev.InjectFailure(types.ErrPortOutOfRange)

	err := Retry(context.Background(), dev, fastRetry, readConnections)
	require.ErrorIs(t, err, types.ErrPortOutOfRange)
	assert.Equal(t, []string{"connections"}, dev.GetCommandHistory())
}

func TestRetryGivesUp(t *testing.T) {
	dev := newMockDevice(t)
	dev.InjectFailure(types.ErrDisconnected, types.ErrDisconnected, types.ErrDisconnected)

	err := Retry(context.Background(), dev, fastRetry, readConnections)
	require.ErrorIs(t, err, types.ErrDisconnected)
	assert.Equal(t, []string{
		"connections", "reconnect", "connections", "reconnect", "connections",
	}, dev.GetCommandHistory())
}

func TestRetryClosedDevice(t *testing.T) {
	dev := newMockDevice(t)
	dev.InjectFailure(types.ErrTimeout)
	require.NoError(t, dev.Close())

	err := Retry(context.Background(), dev, fastRetry, readConnections)
	require.ErrorIs(t, err, types.ErrClosed)
}
