// Package device manages the transport link to a physical receipt
// printer: address resolution, connection lifetime, and retried delivery
// of encoded command streams over TCP, USB, serial, or a character
// device node.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrSendExhausted reports that a job could not be delivered within the
// session's configured attempt limit.
var ErrSendExhausted = errors.New("device: send attempts exhausted")

// State describes where a session is in its connection lifecycle.
type State string

const (
	StateClosed  State = "closed"
	StateOpening State = "opening"
	StateOpen    State = "open"
	StateFailed  State = "failed"
)

// Options tunes a session. Zero values select the defaults noted on each
// field.
type Options struct {
	// MaxAttempts bounds open+write tries per send. Default 3.
	MaxAttempts int
	// RetryDelay is slept between attempts. Default 0, retry immediately.
	RetryDelay time.Duration
	// DialTimeout bounds network connection establishment. Zero waits
	// indefinitely.
	DialTimeout time.Duration
	// WriteTimeout bounds each network write. Zero disables the deadline.
	WriteTimeout time.Duration
	// Baud is the serial line rate. Default 9600.
	Baud int
	// Logger receives connection lifecycle events. The zero Logger is
	// silent.
	Logger zerolog.Logger
}

// Session owns the single connection to one printer endpoint. The
// connection opens lazily on first send, persists across jobs, and is
// rebuilt on failure. All methods are safe for concurrent use; sends are
// serialized so jobs never interleave bytes on the wire.
type Session struct {
	endpoint Endpoint
	opts     Options
	log      zerolog.Logger

	// dial is swapped out in tests.
	dial func(Endpoint, ConnectOptions) (Connection, error)

	mu    sync.Mutex
	conn  Connection
	state State
}

// NewSession creates a session for the endpoint. No connection is opened
// until the first Send.
func NewSession(endpoint Endpoint, opts Options) *Session {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Session{
		endpoint: endpoint,
		opts:     opts,
		log:      opts.Logger,
		dial:     Connect,
		state:    StateClosed,
	}
}

// Endpoint returns the printer address this session delivers to.
func (s *Session) Endpoint() Endpoint {
	return s.endpoint
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send delivers one encoded command stream to the printer. A connection
// is opened if none is live; on open or write failure the connection is
// discarded and the attempt repeated, up to the configured limit. After
// the final failure Send returns ErrSendExhausted wrapping the last
// cause and the session is left closed, so the next job starts from a
// fresh open.
func (s *Session) Send(ctx context.Context, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			s.dropLocked()
			s.state = StateClosed
			return err
		}
		if attempt > 1 && s.opts.RetryDelay > 0 {
			time.Sleep(s.opts.RetryDelay)
		}

		if s.conn == nil {
			s.state = StateOpening
			conn, err := s.dial(s.endpoint, ConnectOptions{
				DialTimeout:  s.opts.DialTimeout,
				WriteTimeout: s.opts.WriteTimeout,
				Baud:         s.opts.Baud,
			})
			if err != nil {
				lastErr = err
				s.state = StateFailed
				s.log.Warn().Err(err).
					Stringer("printer", s.endpoint).
					Int("attempt", attempt).
					Msg("printer connection failed")
				continue
			}
			s.conn = conn
			s.state = StateOpen
			s.log.Debug().
				Stringer("printer", s.endpoint).
				Int("attempt", attempt).
				Msg("printer connection opened")
		}

		if _, err := s.conn.Write(payload); err != nil {
			lastErr = err
			s.dropLocked()
			s.state = StateFailed
			s.log.Warn().Err(err).
				Stringer("printer", s.endpoint).
				Int("attempt", attempt).
				Msg("printer write failed")
			continue
		}

		s.state = StateOpen
		return nil
	}

	s.state = StateClosed
	return fmt.Errorf("%w after %d attempts: %w", ErrSendExhausted, s.opts.MaxAttempts, lastErr)
}

// Close tears down any live connection. The session remains usable; the
// next Send reopens.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	s.state = StateClosed
	return err
}

// dropLocked discards the live connection without caring whether the
// close succeeds; the transport is already suspect.
func (s *Session) dropLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
