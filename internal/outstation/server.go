// Package outstation runs a simulated RTU: a background loop refreshing the
// current electrical sample and a TCP session server answering master polls
// with an atomic snapshot of it.
package outstation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/user/gridpulse/internal/dnp3"
	"github.com/user/gridpulse/internal/model"
	"github.com/user/gridpulse/internal/telemetry"
	"github.com/user/gridpulse/internal/util"
)

// Server is one simulated outstation.
type Server struct {
	identity model.Outstation
	gen      *telemetry.Generator
	refresh  time.Duration

	ln net.Listener
	wg sync.WaitGroup

	mu     sync.RWMutex
	latest model.Sample
	conns  map[net.Conn]struct{}
}

// New creates an outstation server for one configured RTU. The generator is
// seeded from rng; pass a fixed-seed source for reproducible runs.
func New(cfg util.OutstationConfig, sigmaPct float64, refresh time.Duration, rng *rand.Rand) *Server {
	gen := telemetry.New(telemetry.Params{
		VoltageMin:     cfg.MinVoltage,
		VoltageMax:     cfg.MaxVoltage,
		CurrentMin:     cfg.MinCurrent,
		CurrentMax:     cfg.MaxCurrent,
		FrequencyMin:   cfg.MinFrequency,
		FrequencyMax:   cfg.MaxFrequency,
		TemperatureMin: cfg.MinTemperature,
		TemperatureMax: cfg.MaxTemperature,
		SigmaPct:       sigmaPct,
	}, rng)

	if refresh <= 0 {
		refresh = time.Second
	}

	return &Server{
		identity: cfg.Identity(),
		gen:      gen,
		refresh:  refresh,
		latest:   gen.Next(), // a sample exists before the first poll arrives
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and launches the refresh and accept loops. It
// returns once listening; loops run until ctx is cancelled.
func (s *Server) Start(ctx context.Context, bind string) error {
	if bind == "" {
		bind = fmt.Sprintf(":%d", s.identity.Port)
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("outstation %d listen: %w", s.identity.ID, err)
	}
	s.ln = ln

	util.Info("RTU %d (%s) listening on %s", s.identity.ID, s.identity.Name, ln.Addr())

	s.wg.Add(2)
	go s.refreshLoop(ctx)
	go s.acceptLoop(ctx)

	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Latest returns a copy of the current sample.
func (s *Server) Latest() model.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Wait blocks until both loops have exited after cancellation.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample := s.gen.Next()
			s.mu.Lock()
			s.latest = sample
			s.mu.Unlock()
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	// Unblock Accept when the context ends.
	go func() {
		<-ctx.Done()
		s.ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			util.Warn("RTU %d accept: %v", s.identity.ID, err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

// serve answers polls on one master session until it closes or misbehaves.
func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	r := bufio.NewReader(conn)
	for {
		req, err := dnp3.ReadRequest(r)
		if err != nil {
			if errors.Is(err, dnp3.ErrProtocol) {
				util.Warn("RTU %d: bad request from %s: %v", s.identity.ID, conn.RemoteAddr(), err)
			}
			return
		}

		if req.Destination != s.identity.Address {
			util.Warn("RTU %d: poll for address %d, not us (%d)",
				s.identity.ID, req.Destination, s.identity.Address)
			return
		}

		resp := dnp3.Response{
			Function: dnp3.FuncResponse,
			Seq:      req.Seq,
			Source:   s.identity.Address,
			Sample:   s.Latest(),
		}
		if err := dnp3.WriteFrame(conn, resp); err != nil {
			return
		}
	}
}
