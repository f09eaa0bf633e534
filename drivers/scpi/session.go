package scpi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	expect "github.com/google/goexpect"

	"github.com/nanoncore/nano-oxc/logger"
	"github.com/nanoncore/nano-oxc/types"
)

const (
	// SyncCommand asks the device to answer 1 once every pending operation completed.
	SyncCommand = "*opc?"
	// Terminator ends every message on the wire.
	Terminator = "\r\n"

	checkDuration = 100 * time.Millisecond
)

var (
	// queryMarker follows the response text of a query.
	queryMarker = regexp.MustCompile(`\r\n1\r\n`)
	// commandMarker answers a command or a bare *opc?, and is the relaxed
	// form of queryMarker.
	commandMarker = regexp.MustCompile(`1\r\n`)
)

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the default TCP dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStateHandler registers h for every state change.
func WithStateHandler(h StateChangeHandler) Option {
	return func(s *Session) {
		if h != nil {
			s.state.addHandler(h)
		}
	}
}

// Session is one synchronized SCPI conversation with a device.
//
// Every message is followed by *opc? and the call returns only after the
// completion marker arrived, so the device has finished processing it.
// A call waits at most one timeout for a command marker and two for a
// query marker, however much unrelated output the device sends meanwhile.
// The session is opened lazily on first use. A timeout or a stream failure
// tears the stream down, and the next call opens a fresh one. Calls are
// serialized: the marker protocol relies on strict request/response
// alternation.
type Session struct {
	address string
	timeout time.Duration
	dialer  Dialer
	logger  logger.Logger
	metrics SessionMetrics

	mu     sync.Mutex
	state  stateMgr
	exp    *expect.GExpect
	stream *stream
}

// NewSession creates a session for address (host:port). Nothing is dialed
// until Open or the first call.
func NewSession(address string, timeout time.Duration, opts ...Option) *Session {
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	s := &Session{
		address: address,
		timeout: timeout,
		dialer:  &TCPDialer{Timeout: timeout},
		logger:  logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("address", address)
	return s
}

// Address returns the device address.
func (s *Session) Address() string { return s.address }

// Timeout returns the per-call marker timeout.
func (s *Session) Timeout() time.Duration { return s.timeout }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state.load() }

// Metrics returns the session counters.
func (s *Session) Metrics() *SessionMetrics { return &s.metrics }

// Open dials and synchronizes the session if it is not already.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.ensure(ctx)
	return err
}

// Query sends message and returns the response text preceding the marker.
func (s *Session) Query(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, err := s.ensure(ctx)
	if err != nil {
		return "", err
	}

	s.logger.Debug("scpi query", "message", message)
	if err := s.send(exp, message+Terminator+SyncCommand+Terminator); err != nil {
		return "", s.fault("query", message, err)
	}
	resp, err := s.await(exp, queryMarker)
	if err != nil {
		return "", s.fault("query", message, err)
	}

	s.serving()
	s.metrics.incQueryCount()
	s.logger.Debug("scpi response", "message", message, "response", resp)
	return resp, nil
}

// Command sends message and waits for the completion marker.
func (s *Session) Command(ctx context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, err := s.ensure(ctx)
	if err != nil {
		return err
	}

	s.logger.Debug("scpi command", "message", message)
	if err := s.send(exp, message+Terminator+SyncCommand+Terminator); err != nil {
		return s.fault("command", message, err)
	}
	if _, err := s.await(exp, commandMarker); err != nil {
		return s.fault("command", message, err)
	}

	s.serving()
	s.metrics.incCommandCount()
	return nil
}

// Sync performs a bare *opc? round trip.
func (s *Session) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, err := s.ensure(ctx)
	if err != nil {
		return err
	}
	if err := s.sync(exp); err != nil {
		return s.fault("sync", SyncCommand, err)
	}
	s.serving()
	return nil
}

// Reconnect discards the current stream. The next call opens and
// synchronizes a new one.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.load() == StateClosed {
		return types.ErrClosed
	}
	if s.exp == nil {
		return nil
	}
	s.teardown()
	s.metrics.incReconnectCount()
	s.logger.Info("session reset for reconnection")
	return s.state.to(StateReconnecting)
}

// Close releases the stream. A closed session cannot be reopened.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardown()
	return s.state.to(StateClosed)
}

// ensure returns the live expecter, opening and synchronizing a new one
// when the session is disconnected or awaiting reconnection.
func (s *Session) ensure(ctx context.Context) (*expect.GExpect, error) {
	switch s.state.load() {
	case StateClosed:
		return nil, types.ErrClosed
	case StateSynchronized, StateServing:
		return s.exp, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.state.to(StateConnecting); err != nil {
		return nil, err
	}

	rwc, err := s.dialer.Dial(ctx, s.address)
	if err != nil {
		_ = s.state.to(StateDisconnected)
		s.logger.Error("dial failed", "err", err)
		return nil, fmt.Errorf("%w: %s: %w", types.ErrNotConnected, s.address, err)
	}

	st := newStream(rwc)
	exp, _, err := expect.SpawnGeneric(&expect.GenOptions{
		In:    st,
		Out:   st,
		Wait:  st.wait,
		Close: st.Close,
		Check: st.alive,
	}, s.timeout,
		expect.Verbose(false),
		expect.PartialMatch(true),
		expect.SendTimeout(s.timeout),
		expect.CheckDuration(checkDuration),
	)
	if err != nil {
		_ = st.Close()
		_ = s.state.to(StateDisconnected)
		return nil, fmt.Errorf("%w: %s: %w", types.ErrNotConnected, s.address, err)
	}
	s.exp, s.stream = exp, st

	// A fresh session is handed out only once the device answered *opc?.
	if err := s.sync(exp); err != nil {
		err = s.translate(err)
		s.teardown()
		_ = s.state.to(StateDisconnected)
		s.logger.Error("initial synchronization failed", "err", err)
		return nil, fmt.Errorf("synchronize %s: %w", s.address, err)
	}

	if err := s.state.to(StateSynchronized); err != nil {
		return nil, err
	}
	s.logger.Info("session synchronized")
	return exp, nil
}

func (s *Session) sync(exp *expect.GExpect) error {
	if err := s.send(exp, SyncCommand+Terminator); err != nil {
		return err
	}
	if _, err := s.await(exp, commandMarker); err != nil {
		return err
	}
	s.metrics.incSyncCount()
	return nil
}

func (s *Session) send(exp *expect.GExpect, msg string) error {
	if err := exp.Send(msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// await waits for marker and returns the text before it. The expecter
// restarts its timer on every byte received, so the whole wait is bounded
// by a watchdog that ends the stream: one timeout for a command and two
// for a query, which may fall back to the relaxed marker.
func (s *Session) await(exp *expect.GExpect, marker *regexp.Regexp) (string, error) {
	budget := s.timeout
	if marker == queryMarker {
		budget *= 2
	}
	st := s.stream
	var expired atomic.Bool
	watchdog := time.AfterFunc(budget, func() {
		expired.Store(true)
		if st != nil {
			st.fail(errDeadline)
			_ = st.rwc.Close()
		}
	})
	defer watchdog.Stop()

	out, err := s.awaitMarker(exp, marker)
	if err != nil && expired.Load() {
		return "", expect.TimeoutError(budget)
	}
	return out, err
}

// awaitMarker repeats a timed out query wait once with the relaxed command
// marker, carrying over the text already received.
func (s *Session) awaitMarker(exp *expect.GExpect, marker *regexp.Regexp) (string, error) {
	out, match, err := exp.Expect(marker, s.timeout)
	if err == nil {
		return payload(out, match[0]), nil
	}
	if marker != queryMarker || !isTimeout(err) {
		return "", err
	}

	s.logger.Debug("retrying with relaxed marker", "received", out)
	if loc := commandMarker.FindStringIndex(out); loc != nil {
		return strings.TrimSpace(out[:loc[0]]), nil
	}
	more, match, rerr := exp.Expect(commandMarker, s.timeout)
	if rerr != nil {
		return "", rerr
	}
	return payload(out+more, match[0]), nil
}

func payload(out, marker string) string {
	return strings.TrimSpace(strings.TrimSuffix(out, marker))
}

func isTimeout(err error) bool {
	var te expect.TimeoutError
	return errors.As(err, &te)
}

// translate maps expecter and stream failures onto the session error taxonomy.
func (s *Session) translate(err error) error {
	if isTimeout(err) {
		s.metrics.incTimeoutCount()
		return fmt.Errorf("%w after %s", types.ErrTimeout, s.timeout)
	}
	s.metrics.incDisconnectCount()
	if s.stream != nil {
		if serr := s.stream.Err(); serr != nil && !errors.Is(serr, errStreamClosed) {
			return fmt.Errorf("%w: %w", types.ErrDisconnected, serr)
		}
	}
	return fmt.Errorf("%w: %v", types.ErrDisconnected, err)
}

// fault translates err, tears the stream down and leaves the session
// awaiting reconnection: after a timeout the read position is unknown.
func (s *Session) fault(op, message string, err error) error {
	err = s.translate(err)
	s.logger.Error("scpi "+op+" failed", "op", op, "message", message, "err", err)
	s.teardown()
	_ = s.state.to(StateReconnecting)
	return fmt.Errorf("%s %q: %w", op, message, err)
}

func (s *Session) serving() {
	if s.state.load() == StateSynchronized {
		_ = s.state.to(StateServing)
	}
}

// teardown closes the stream, suppressing errors.
func (s *Session) teardown() {
	if s.exp != nil {
		_ = s.exp.Close()
	}
	s.exp = nil
	s.stream = nil
}
