// Package datalogger implements the monitoring collaborator: it polls the
// master's status endpoint on an interval and archives the stream as both a
// JSONL status log and SQLite measurement rows.
package datalogger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/user/gridpulse/internal/client"
	"github.com/user/gridpulse/internal/model"
	"github.com/user/gridpulse/internal/storage"
	"github.com/user/gridpulse/internal/util"
)

// Logger polls the master and persists what it sees. Failures are counted
// and retried on the next tick; the logger never takes the master down.
type Logger struct {
	api      *client.Client
	db       *storage.DB
	file     *os.File
	interval time.Duration

	// newest archived sample time per outstation, so repeated status
	// snapshots of the same measurement archive only one row
	lastSeen map[int]time.Time

	records int64
	errors  int64
}

// statusLine is one entry in the JSONL status log.
type statusLine struct {
	Timestamp time.Time          `json:"timestamp"`
	Data      model.SystemStatus `json:"data"`
}

// New creates a data logger writing under cfg.DataDir.
func New(cfg *util.Config, api *client.Client, db *storage.DB) (*Logger, error) {
	path := filepath.Join(cfg.DataDir, "scada_status.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open status log: %w", err)
	}

	return &Logger{
		api:      api,
		db:       db,
		file:     f,
		interval: cfg.LogInterval,
		lastSeen: make(map[int]time.Time),
	}, nil
}

// Run polls until ctx is cancelled.
func (l *Logger) Run(ctx context.Context) {
	util.Info("Data logger polling every %s", l.interval)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			l.file.Close()
			util.Info("Data logger stopped: %d records archived, %d errors", l.records, l.errors)
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Logger) tick(ctx context.Context) {
	status, err := l.api.Status(ctx)
	if err != nil {
		l.errors++
		util.Warn("Data logger: %v", err)
		return
	}

	if err := l.appendStatus(status); err != nil {
		l.errors++
		util.Warn("Data logger: status log: %v", err)
	}

	now := time.Now()
	for id, o := range status.Outstations {
		if err := l.db.SaveStatus(o, now); err != nil {
			l.errors++
			util.Warn("Data logger: archive status %d: %v", id, err)
		}

		m := o.Latest
		if m == nil || !m.Timestamp.After(l.lastSeen[id]) {
			continue
		}
		if err := l.db.SaveMeasurement(*m); err != nil {
			l.errors++
			util.Warn("Data logger: archive measurement %d: %v", id, err)
			continue
		}
		l.lastSeen[id] = m.Timestamp
		l.records++
	}

	util.Debug("Data logger: archived snapshot of %d outstations", len(status.Outstations))
}

func (l *Logger) appendStatus(status model.SystemStatus) error {
	data, err := json.Marshal(statusLine{Timestamp: time.Now(), Data: status})
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}
