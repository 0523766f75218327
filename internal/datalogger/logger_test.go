package datalogger

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/gridpulse/internal/client"
	"github.com/user/gridpulse/internal/model"
	"github.com/user/gridpulse/internal/storage"
	"github.com/user/gridpulse/internal/util"
)

// fakeMaster serves a fixed status snapshot, so every tick sees the same
// latest measurement.
func fakeMaster(t *testing.T, sampleTime time.Time) *httptest.Server {
	t.Helper()

	latest := &model.Measurement{
		OutstationID: 1,
		Sample: model.Sample{
			Timestamp: sampleTime,
			Voltage:   401.5, Current: 412, Frequency: 60.01, Temperature: 44,
		},
		Derived: model.ComputeDerived(model.Sample{Voltage: 401.5, Current: 412}, 0.95, 500),
	}
	status := model.SystemStatus{
		MasterID:  1,
		Timestamp: time.Now(),
		Outstations: map[int]model.OutstationStatus{
			1: {
				Outstation:       model.Outstation{ID: 1, Name: "Substation_1"},
				ConnectionStatus: model.StatusConnected,
				Latest:           latest,
			},
			2: {
				Outstation:       model.Outstation{ID: 2, Name: "Substation_2"},
				ConnectionStatus: model.StatusError,
				FailureCount:     3,
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func countStatusLines(t *testing.T, dir string) int {
	t.Helper()

	f, err := os.Open(filepath.Join(dir, "scada_status.jsonl"))
	if err != nil {
		t.Fatalf("open status log: %v", err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var line statusLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("bad status line: %v", err)
		}
		if len(line.Data.Outstations) != 2 {
			t.Fatalf("status line lists %d outstations, want 2", len(line.Data.Outstations))
		}
		n++
	}
	return n
}

func TestLoggerArchivesStatusAndDeduplicatesMeasurements(t *testing.T) {
	dir := t.TempDir()
	sampleTime := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	srv := fakeMaster(t, sampleTime)

	db, err := storage.Open(dir)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	cfg := &util.Config{DataDir: dir, LogInterval: 20 * time.Millisecond}
	l, err := New(cfg, client.New(srv.URL), db)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("logger did not stop")
	}

	// Several ticks ran; the unchanged measurement must be archived once.
	n, err := db.CountMeasurements(1)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("archived %d measurement rows for one unchanged sample, want 1", n)
	}

	ts, err := db.LatestMeasurementTime(1)
	if err != nil {
		t.Fatalf("latest time: %v", err)
	}
	if !ts.Equal(sampleTime) {
		t.Fatalf("archived timestamp %v, want %v", ts, sampleTime)
	}

	// The errored outstation has no measurement but still gets status rows.
	if n, _ := db.CountMeasurements(2); n != 0 {
		t.Fatalf("outstation 2 has %d measurement rows, want 0", n)
	}

	if lines := countStatusLines(t, dir); lines < 2 {
		t.Fatalf("status log holds %d lines, want at least 2", lines)
	}
}
