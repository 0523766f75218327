package master

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/user/gridpulse/internal/dnp3"
	"github.com/user/gridpulse/internal/model"
)

// session is one logical master→outstation connection. It is owned by a
// single poll loop and never shared.
type session struct {
	outstation     model.Outstation
	connectTimeout time.Duration
	pollTimeout    time.Duration

	conn net.Conn
	r    *bufio.Reader
	seq  int
}

func newSession(o model.Outstation, connectTimeout, pollTimeout time.Duration) *session {
	return &session{
		outstation:     o,
		connectTimeout: connectTimeout,
		pollTimeout:    pollTimeout,
	}
}

func (s *session) connected() bool {
	return s.conn != nil
}

// connect dials the outstation. The timeout is bounded well under the poll
// interval so a hung peer cannot starve its own next cycle.
func (s *session) connect(ctx context.Context) error {
	d := net.Dialer{Timeout: s.connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.outstation.Addr())
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.outstation.Addr(), err)
	}
	s.conn = conn
	s.r = bufio.NewReader(conn)
	return nil
}

// poll issues one integrity poll and returns the outstation's sample.
func (s *session) poll() (model.Sample, error) {
	req := dnp3.NewRead(s.seq, s.outstation.Address)
	s.seq = (s.seq + 1) % dnp3.SeqMod

	if err := s.conn.SetDeadline(time.Now().Add(s.pollTimeout)); err != nil {
		return model.Sample{}, err
	}
	defer s.conn.SetDeadline(time.Time{})

	if err := dnp3.WriteFrame(s.conn, req); err != nil {
		return model.Sample{}, fmt.Errorf("poll write: %w", err)
	}

	resp, err := dnp3.ReadResponse(s.r)
	if err != nil {
		return model.Sample{}, fmt.Errorf("poll read: %w", err)
	}
	if err := resp.Matches(req, s.outstation.Address); err != nil {
		return model.Sample{}, err
	}

	return resp.Sample, nil
}

// close discards the connection, forcing a reconnect on the next cycle.
func (s *session) close() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		s.r = nil
	}
}
