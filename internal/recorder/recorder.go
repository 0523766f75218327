// Package recorder is the persistence collaborator: it appends one JSON line
// per successful poll to a measurement log. A bounded channel decouples it
// from the poll engine; when the writer falls behind, records are dropped and
// counted rather than ever blocking a poll cycle.
package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/gridpulse/internal/model"
	"github.com/user/gridpulse/internal/util"
)

const flushInterval = time.Second

// Recorder writes measurement records to an append-only JSONL file.
type Recorder struct {
	ch      chan model.Measurement
	file    *os.File
	w       *bufio.Writer
	wg      sync.WaitGroup
	dropped atomic.Int64
	written atomic.Int64
}

// New opens (or creates) the record file in append mode.
func New(path string) (*Recorder, error) {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("recorder dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("recorder open: %w", err)
	}
	return &Recorder{
		ch:   make(chan model.Measurement, 256),
		file: f,
		w:    bufio.NewWriter(f),
	}, nil
}

// Start launches the writer loop. It drains and flushes on cancellation.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.shutdown()

		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case m := <-r.ch:
				r.write(m)
			case <-ticker.C:
				if err := r.w.Flush(); err != nil {
					util.Warn("Recorder flush: %v", err)
				}
			}
		}
	}()
}

// Publish queues a record without blocking. Full buffer means the record is
// dropped; the poll path never waits on persistence.
func (r *Recorder) Publish(m model.Measurement) {
	select {
	case r.ch <- m:
	default:
		r.dropped.Add(1)
	}
}

// Wait blocks until the writer loop has flushed and closed the file.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// Written returns how many records reached the file.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Dropped returns how many records were discarded under backpressure.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) write(m model.Measurement) {
	data, err := json.Marshal(m)
	if err != nil {
		util.Warn("Recorder marshal: %v", err)
		return
	}
	data = append(data, '\n')
	if _, err := r.w.Write(data); err != nil {
		util.Warn("Recorder write: %v", err)
		return
	}
	r.written.Add(1)
}

func (r *Recorder) shutdown() {
	// Drain whatever was queued before cancellation.
	for {
		select {
		case m := <-r.ch:
			r.write(m)
		default:
			if err := r.w.Flush(); err != nil {
				util.Warn("Recorder final flush: %v", err)
			}
			if err := r.file.Close(); err != nil {
				util.Warn("Recorder close: %v", err)
			}
			if n := r.dropped.Load(); n > 0 {
				util.Warn("Recorder dropped %d records under backpressure", n)
			}
			return
		}
	}
}
