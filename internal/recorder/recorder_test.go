package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/gridpulse/internal/model"
)

func measurement(id int, voltage float64) model.Measurement {
	return model.Measurement{
		OutstationID: id,
		Sample: model.Sample{
			Timestamp:   time.Unix(int64(id), 0),
			Voltage:     voltage,
			Current:     400,
			Frequency:   60,
			Temperature: 45,
		},
	}
}

func readLines(t *testing.T, path string) []model.Measurement {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var out []model.Measurement
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m model.Measurement
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestRecorderWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measurements.jsonl")

	r, err := New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	for i := 1; i <= 5; i++ {
		r.Publish(measurement(i, float64(400+i)))
	}
	cancel()
	r.Wait()

	if r.Written() != 5 {
		t.Fatalf("written = %d, want 5", r.Written())
	}
	if r.Dropped() != 0 {
		t.Fatalf("dropped = %d, want 0", r.Dropped())
	}

	lines := readLines(t, path)
	if len(lines) != 5 {
		t.Fatalf("file holds %d records, want 5", len(lines))
	}
	for i, m := range lines {
		if m.OutstationID != i+1 || m.Voltage != float64(401+i) {
			t.Fatalf("record %d mismatch: %+v", i, m)
		}
	}
}

func TestRecorderAppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measurements.jsonl")

	for run := 0; run < 2; run++ {
		r, err := New(path)
		if err != nil {
			t.Fatalf("run %d new: %v", run, err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		r.Start(ctx)
		r.Publish(measurement(run+1, 400))
		cancel()
		r.Wait()
	}

	if lines := readLines(t, path); len(lines) != 2 {
		t.Fatalf("file holds %d records after two runs, want 2", len(lines))
	}
}

func TestRecorderDropsWhenNotStarted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measurements.jsonl")

	r, err := New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// No writer running: the buffer absorbs up to its capacity, then drops.
	for i := 0; i < 300; i++ {
		r.Publish(measurement(1, 400))
	}
	if r.Dropped() == 0 {
		t.Fatal("expected drops once the buffer filled")
	}
	if r.Dropped() != 300-int64(cap(r.ch)) {
		t.Fatalf("dropped = %d, want %d", r.Dropped(), 300-cap(r.ch))
	}
}

func TestRecorderDrainsQueueOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measurements.jsonl")

	r, err := New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// Queue before starting, then cancel immediately: the shutdown drain must
	// still land every queued record in the file.
	for i := 1; i <= 10; i++ {
		r.Publish(measurement(i, 400))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Start(ctx)
	r.Wait()

	if lines := readLines(t, path); len(lines) != 10 {
		t.Fatalf("file holds %d records, want 10", len(lines))
	}
}
