package scpi

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/nano-oxc/drivers/mock"
	"github.com/nanoncore/nano-oxc/logger"
	"github.com/nanoncore/nano-oxc/types"
)

const testTimeout = 200 * time.Millisecond

const testIdentity = "Mock,N-VST-96x96-LU1-MOCK,MOCK-SIM-001,1.0.0"

func startDevice(t *testing.T) *mock.Server {
	t.Helper()

	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	dev, err := mock.NewDriver(&types.EquipmentConfig{
		Name:     "fake",
		Metadata: map[string]string{"inputs": "96", "outputs": "96", "model": "N-VST-96x96-LU1-MOCK"},
	})
	require.NoError(t, err)

	srv := mock.NewServer(dev, logger.Discard())
	require.NoError(t, srv.Listen(fmt.Sprintf("127.0.0.1:%d", port)))
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func newTestSession(t *testing.T, address string) *Session {
	t.Helper()
	s := NewSession(address, testTimeout, WithLogger(logger.Discard()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionOpenSynchronizes(t *testing.T) {
	srv := startDevice(t)
	s := newTestSession(t, srv.Addr())

	assert.Equal(t, StateDisconnected, s.State())
	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, StateSynchronized, s.State())
	assert.EqualValues(t, 1, srv.Syncs())
	assert.EqualValues(t, 1, s.Metrics().SyncCount.Load())

	// Already open: no second round trip.
	require.NoError(t, s.Open(context.Background()))
	assert.EqualValues(t, 1, srv.Syncs())
}

func TestSessionQueryAndCommand(t *testing.T) {
	srv := startDevice(t)
	s := newTestSession(t, srv.Addr())
	ctx := context.Background()

	// Opened lazily by the first call.
	resp, err := s.Query(ctx, "*idn?")
	require.NoError(t, err)
	assert.Equal(t, testIdentity, resp)
	assert.Equal(t, StateServing, s.State())
	assert.EqualValues(t, 1, srv.Syncs())

	require.NoError(t, s.Command(ctx, "oxc:swit:conn:add (@1,2),(@97,98)"))
	resp, err = s.Query(ctx, "oxc:swit:conn:stat?")
	require.NoError(t, err)
	assert.Equal(t, "(@1,2),(@97,98)", resp)

	require.NoError(t, s.Sync(ctx))
	assert.EqualValues(t, 2, srv.Syncs())
	assert.EqualValues(t, 2, s.Metrics().QueryCount.Load())
	assert.EqualValues(t, 1, s.Metrics().CommandCount.Load())
}

func TestSessionRelaxedMarker(t *testing.T) {
	srv := startDevice(t)
	srv.SetBareMarker(true)
	s := newTestSession(t, srv.Addr())

	resp, err := s.Query(context.Background(), "*idn?")
	require.NoError(t, err)
	assert.Equal(t, testIdentity, resp)
	assert.Equal(t, StateServing, s.State())
}

func TestSessionTimeoutThenReconnect(t *testing.T) {
	srv := startDevice(t)
	s := newTestSession(t, srv.Addr())
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))
	srv.SetSilent(true)

	_, err := s.Query(ctx, "*idn?")
	require.ErrorIs(t, err, types.ErrTimeout)
	assert.Equal(t, StateReconnecting, s.State())
	assert.EqualValues(t, 1, s.Metrics().TimeoutCount.Load())

	srv.SetSilent(false)
	require.NoError(t, s.Reconnect(ctx))
	syncs := srv.Syncs()

	resp, err := s.Query(ctx, "*idn?")
	require.NoError(t, err)
	assert.Equal(t, testIdentity, resp)
	assert.Equal(t, syncs+1, srv.Syncs(), "a fresh session synchronizes once before answering")
	assert.EqualValues(t, 2, srv.Accepts())
}

func TestSessionTimeoutDespiteChatter(t *testing.T) {
	srv := startDevice(t)
	s := newTestSession(t, srv.Addr())
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))
	srv.SetChatter(true)

	start := time.Now()
	_, err := s.Query(ctx, "*idn?")
	require.ErrorIs(t, err, types.ErrTimeout)
	assert.Less(t, time.Since(start), 2*testTimeout+time.Second)
	assert.Equal(t, StateReconnecting, s.State())

	srv.SetChatter(false)
	resp, err := s.Query(ctx, "*idn?")
	require.NoError(t, err)
	assert.Equal(t, testIdentity, resp)
}

func TestSessionExplicitReconnect(t *testing.T) {
	srv := startDevice(t)
	s := newTestSession(t, srv.Addr())
	ctx := context.Background()

	_, err := s.Query(ctx, "*idn?")
	require.NoError(t, err)

	require.NoError(t, s.Reconnect(ctx))
	assert.Equal(t, StateReconnecting, s.State())
	assert.EqualValues(t, 1, s.Metrics().ReconnectCount.Load())

	_, err = s.Query(ctx, "*idn?")
	require.NoError(t, err)
	assert.EqualValues(t, 2, srv.Syncs())
	assert.EqualValues(t, 2, srv.Accepts())
}

func TestSessionDisconnected(t *testing.T) {
	srv := startDevice(t)
	s := newTestSession(t, srv.Addr())
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))
	srv.DropConnections()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.stream != nil && !s.stream.alive()
	}, time.Second, 10*time.Millisecond)

	_, err := s.Query(ctx, "*idn?")
	require.ErrorIs(t, err, types.ErrDisconnected)
	assert.Equal(t, StateReconnecting, s.State())
	assert.True(t, types.IsRecoverable(err))

	// The next call reopens on its own.
	resp, err := s.Query(ctx, "*idn?")
	require.NoError(t, err)
	assert.Equal(t, testIdentity, resp)
}

func TestSessionDialFailure(t *testing.T) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	s := newTestSession(t, fmt.Sprintf("127.0.0.1:%d", port))

	err = s.Open(context.Background())
	require.ErrorIs(t, err, types.ErrNotConnected)
	assert.Equal(t, StateDisconnected, s.State())

	// A later attempt dials again.
	err = s.Open(context.Background())
	require.ErrorIs(t, err, types.ErrNotConnected)
}

func TestSessionClosed(t *testing.T) {
	srv := startDevice(t)
	s := newTestSession(t, srv.Addr())
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())

	_, err := s.Query(ctx, "*idn?")
	require.ErrorIs(t, err, types.ErrClosed)
	require.ErrorIs(t, s.Reconnect(ctx), types.ErrClosed)
}

func TestSessionCanceledContext(t *testing.T) {
	srv := startDevice(t)
	s := newTestSession(t, srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Query(ctx, "*idn?")
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, srv.Accepts())
}

func TestCollector(t *testing.T) {
	srv := startDevice(t)
	s := newTestSession(t, srv.Addr())
	ctx := context.Background()

	c := NewCollector()
	c.Add(s)

	for i := 0; i < 3; i++ {
		_, err := s.Query(ctx, "*idn?")
		require.NoError(t, err)
	}

	expected := fmt.Sprintf(`
# HELP oxc_scpi_queries_total Queries answered by the device.
# TYPE oxc_scpi_queries_total counter
oxc_scpi_queries_total{address=%q} 3
`, srv.Addr())
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "oxc_scpi_queries_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(c, "oxc_scpi_session_state"))

	c.Remove(srv.Addr())
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}
