// Package store holds the bounded per-outstation measurement history, the
// latest snapshot, and derived-metric computation. The poll engine is the only
// writer; the query interface and persistence read concurrently.
package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/user/gridpulse/internal/model"
	"github.com/user/gridpulse/internal/util"
)

// ErrNotFound is returned for queries naming an unknown outstation id.
var ErrNotFound = errors.New("outstation not found")

// Store is the measurement store for all configured outstations. The set of
// outstations is fixed at construction, so the map itself is never mutated
// and needs no lock; each cell has its own.
type Store struct {
	cells map[int]*cell
}

// cell owns one outstation's ring buffer and latest snapshot.
type cell struct {
	mu     sync.RWMutex
	buf    []model.Measurement
	head   int // next write position
	size   int
	latest *model.Measurement

	powerFactor float64
	ratedKVA    float64
}

// New creates a store with one bounded history per configured outstation.
func New(capacity int, powerFactor float64, outstations []util.OutstationConfig) *Store {
	if capacity <= 0 {
		capacity = 1000
	}

	cells := make(map[int]*cell, len(outstations))
	for _, o := range outstations {
		cells[o.ID] = &cell{
			buf:         make([]model.Measurement, capacity),
			powerFactor: powerFactor,
			ratedKVA:    o.RatedCapacityKVA,
		}
	}

	return &Store{cells: cells}
}

// IDs returns the configured outstation ids in ascending order.
func (s *Store) IDs() []int {
	ids := make([]int, 0, len(s.cells))
	for id := range s.cells {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Record computes derived metrics for the sample, appends it to the history
// (evicting the oldest entry beyond capacity) and updates the latest
// snapshot atomically. It returns the stored measurement.
func (s *Store) Record(id int, sample model.Sample) (model.Measurement, error) {
	c, ok := s.cells[id]
	if !ok {
		return model.Measurement{}, ErrNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m := model.Measurement{
		OutstationID: id,
		Sample:       sample,
		Derived:      model.ComputeDerived(sample, c.powerFactor, c.ratedKVA),
	}

	c.buf[c.head] = m
	c.head = (c.head + 1) % len(c.buf)
	if c.size < len(c.buf) {
		c.size++
	}
	c.latest = &m

	return m, nil
}

// Latest returns the most recent measurement. ok is false before the first
// successful poll for that outstation.
func (s *Store) Latest(id int) (m model.Measurement, ok bool, err error) {
	c, found := s.cells[id]
	if !found {
		return model.Measurement{}, false, ErrNotFound
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.latest == nil {
		return model.Measurement{}, false, nil
	}
	return *c.latest, true, nil
}

// Count returns how many measurements the history currently holds.
func (s *Store) Count(id int) (int, error) {
	c, ok := s.cells[id]
	if !ok {
		return 0, ErrNotFound
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size, nil
}

// History returns up to limit measurements, newest first, skipping offset
// entries from the newest end. Out-of-range limit/offset values are
// normalized to an empty or truncated result, never an error.
func (s *Store) History(id, limit, offset int) ([]model.Measurement, error) {
	c, ok := s.cells[id]
	if !ok {
		return nil, ErrNotFound
	}

	if offset < 0 {
		offset = 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || offset >= c.size {
		return []model.Measurement{}, nil
	}
	if offset+limit > c.size {
		limit = c.size - offset
	}

	out := make([]model.Measurement, limit)
	n := len(c.buf)
	for i := 0; i < limit; i++ {
		// newest entry sits just behind head
		idx := (c.head - 1 - offset - i + 2*n) % n
		out[i] = c.buf[idx]
	}
	return out, nil
}

// Stats returns min/max/avg per numeric field over the current history
// window. An empty history yields zero-valued stats.
func (s *Store) Stats(id int) (model.Stats, error) {
	c, ok := s.cells[id]
	if !ok {
		return model.Stats{}, ErrNotFound
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := model.Stats{Samples: c.size}
	if c.size == 0 {
		return stats, nil
	}

	var voltage, current, frequency, temperature, power fieldAcc
	n := len(c.buf)
	start := (c.head - c.size + n) % n
	for i := 0; i < c.size; i++ {
		m := c.buf[(start+i)%n]
		voltage.add(m.Voltage)
		current.add(m.Current)
		frequency.add(m.Frequency)
		temperature.add(m.Temperature)
		power.add(m.RealPowerKW)
	}

	stats.Voltage = voltage.stats()
	stats.Current = current.stats()
	stats.Frequency = frequency.stats()
	stats.Temperature = temperature.stats()
	stats.RealPowerKW = power.stats()
	return stats, nil
}

type fieldAcc struct {
	min, max, sum float64
	n             int
}

func (f *fieldAcc) add(v float64) {
	if f.n == 0 || v < f.min {
		f.min = v
	}
	if f.n == 0 || v > f.max {
		f.max = v
	}
	f.sum += v
	f.n++
}

func (f *fieldAcc) stats() model.FieldStats {
	if f.n == 0 {
		return model.FieldStats{}
	}
	return model.FieldStats{Min: f.min, Max: f.max, Avg: f.sum / float64(f.n)}
}
