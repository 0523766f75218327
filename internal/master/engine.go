// Package master implements the poll engine: one independent timer loop per
// configured outstation, each maintaining its own session and connection
// state and feeding successful polls into the measurement store.
package master

import (
	"context"
	"sync"
	"time"

	"github.com/user/gridpulse/internal/model"
	"github.com/user/gridpulse/internal/store"
	"github.com/user/gridpulse/internal/util"
)

// Sink receives every successfully recorded measurement. Publishing must not
// block the poll path; implementations drop on backpressure.
type Sink interface {
	Publish(model.Measurement)
}

// MultiSink fans one measurement out to several sinks.
type MultiSink []Sink

// Publish forwards the measurement to every sink.
func (m MultiSink) Publish(x model.Measurement) {
	for _, s := range m {
		s.Publish(x)
	}
}

// Engine polls all configured outstations.
type Engine struct {
	cfg   *util.Config
	store *store.Store
	sink  Sink

	states map[int]*sessionState
	wg     sync.WaitGroup
}

// sessionState is the master's view of one outstation link. Each cell has
// exactly one writer (its poll loop) and many readers (the query interface).
type sessionState struct {
	mu          sync.RWMutex
	status      model.ConnectionStatus
	lastSuccess time.Time
	failures    int
}

// New creates a poll engine over the given store. sink may be nil when no
// persistence collaborator is attached.
func New(cfg *util.Config, st *store.Store, sink Sink) *Engine {
	states := make(map[int]*sessionState, len(cfg.Outstations))
	for _, o := range cfg.Outstations {
		states[o.ID] = &sessionState{status: model.StatusDisconnected}
	}
	return &Engine{
		cfg:    cfg,
		store:  st,
		sink:   sink,
		states: states,
	}
}

// Start launches one poll loop per outstation. Loops run until ctx is
// cancelled; use Wait to block on their shutdown.
func (e *Engine) Start(ctx context.Context) {
	util.Info("Poll engine starting: %d outstations, interval %s",
		len(e.cfg.Outstations), e.cfg.PollInterval)

	for _, o := range e.cfg.Outstations {
		e.wg.Add(1)
		go e.pollLoop(ctx, o.Identity())
	}
}

// Wait blocks until all poll loops have stopped.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) pollLoop(ctx context.Context, o model.Outstation) {
	defer e.wg.Done()

	sess := newSession(o, e.cfg.ConnectTimeout, e.cfg.PollTimeout)
	defer sess.close()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	// First cycle runs immediately rather than one interval late.
	e.cycle(ctx, o, sess)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.cycle(ctx, o, sess)
		}
	}
}

// cycle is one fetch-and-record attempt for one outstation. Failures are
// recorded in the session state and retried next tick, never propagated.
func (e *Engine) cycle(ctx context.Context, o model.Outstation, sess *session) {
	st := e.states[o.ID]

	if !sess.connected() {
		st.set(model.StatusConnecting)
		if err := sess.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			n := st.fail(e.cfg.FailureThreshold)
			util.Warn("Outstation %d (%s): connect failed (%d consecutive): %v",
				o.ID, o.Name, n, err)
			return
		}
		st.connected()
		util.Info("Outstation %d (%s): session established", o.ID, o.Name)
	}

	sample, err := sess.poll()
	if err != nil {
		n := st.fail(e.cfg.FailureThreshold)
		util.Warn("Outstation %d (%s): poll failed (%d consecutive): %v",
			o.ID, o.Name, n, err)
		if n >= e.cfg.FailureThreshold {
			sess.close()
		}
		return
	}

	m, err := e.store.Record(o.ID, sample)
	if err != nil {
		// Only possible with an id missing from the store, which config
		// validation rules out.
		util.Error("Outstation %d: record: %v", o.ID, err)
		return
	}

	st.success()
	if e.sink != nil {
		e.sink.Publish(m)
	}

	util.Debug("Outstation %d: V=%.2fV I=%.2fA F=%.3fHz T=%.2f°C load=%.1f%%",
		o.ID, m.Voltage, m.Current, m.Frequency, m.Temperature, m.LoadPercentage)
}

// set transitions the link to a non-terminal status.
func (s *sessionState) set(status model.ConnectionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// connected marks a successful connect, which resets the failure count.
func (s *sessionState) connected() {
	s.mu.Lock()
	s.status = model.StatusConnected
	s.failures = 0
	s.mu.Unlock()
}

// fail counts one failed connect/poll and degrades the status once the
// consecutive-failure threshold is reached. It returns the new count.
func (s *sessionState) fail(threshold int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	if s.failures >= threshold {
		s.status = model.StatusError
	} else if s.status == model.StatusConnecting {
		s.status = model.StatusError
	}
	return s.failures
}

// success marks a completed poll, resetting the failure count.
func (s *sessionState) success() {
	s.mu.Lock()
	s.status = model.StatusConnected
	s.lastSuccess = time.Now()
	s.failures = 0
	s.mu.Unlock()
}

// Status returns the query-interface view of one outstation, or
// store.ErrNotFound for an unknown id. A degraded link keeps reporting its
// stale latest measurement so callers can tell "stale" from "never seen".
func (e *Engine) Status(id int) (model.OutstationStatus, error) {
	st, ok := e.states[id]
	if !ok {
		return model.OutstationStatus{}, store.ErrNotFound
	}

	o, _ := e.cfg.FindOutstation(id)

	st.mu.RLock()
	status := st.status
	failures := st.failures
	lastSuccess := st.lastSuccess
	st.mu.RUnlock()

	out := model.OutstationStatus{
		Outstation:       o.Identity(),
		ConnectionStatus: status,
		FailureCount:     failures,
	}
	if !lastSuccess.IsZero() {
		t := lastSuccess
		out.LastUpdate = &t
	}
	if m, ok, err := e.store.Latest(id); err == nil && ok {
		out.Latest = &m
	}
	return out, nil
}

// SystemStatus returns the aggregate snapshot across all outstations. Every
// configured outstation is listed, reachable or not.
func (e *Engine) SystemStatus() model.SystemStatus {
	status := model.SystemStatus{
		MasterID:    e.cfg.MasterID,
		Timestamp:   time.Now(),
		Outstations: make(map[int]model.OutstationStatus, len(e.states)),
	}
	for id := range e.states {
		if s, err := e.Status(id); err == nil {
			status.Outstations[id] = s
		}
	}
	return status
}
