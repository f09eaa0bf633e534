package scpi

import (
	"errors"
	"io"
	"sync"
)

var (
	errStreamClosed = errors.New("stream closed")
	errDeadline     = errors.New("marker deadline exceeded")
)

// stream adapts a device connection to the generic expect spawner. The
// first read or write failure ends the stream; Check and Wait observe it.
type stream struct {
	rwc  io.ReadWriteCloser
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	err  error
}

func newStream(rwc io.ReadWriteCloser) *stream {
	return &stream{rwc: rwc, done: make(chan struct{})}
}

func (s *stream) Read(p []byte) (int, error) {
	n, err := s.rwc.Read(p)
	if err != nil {
		// Hand over the bytes first, the next Read reports the failure.
		if n > 0 {
			return n, nil
		}
		s.fail(err)
	}
	return n, err
}

func (s *stream) Write(p []byte) (int, error) {
	n, err := s.rwc.Write(p)
	if err != nil {
		s.fail(err)
	}
	return n, err
}

func (s *stream) Close() error {
	s.fail(errStreamClosed)
	return s.rwc.Close()
}

func (s *stream) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// alive reports whether the stream is still usable.
func (s *stream) alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// wait blocks until the stream ends.
func (s *stream) wait() error {
	<-s.done
	return s.Err()
}

// Err returns the failure that ended the stream, if any.
func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
