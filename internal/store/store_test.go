package store

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/user/gridpulse/internal/model"
	"github.com/user/gridpulse/internal/util"
)

func testOutstations() []util.OutstationConfig {
	return []util.OutstationConfig{
		{ID: 1, Name: "Substation_1", RatedCapacityKVA: 500},
		{ID: 2, Name: "Substation_2", RatedCapacityKVA: 500},
	}
}

func sampleAt(voltage float64, n int) model.Sample {
	return model.Sample{
		Timestamp:   time.Unix(int64(n), 0),
		Voltage:     voltage,
		Current:     400,
		Frequency:   60,
		Temperature: 45,
	}
}

func TestRecordThenLatest(t *testing.T) {
	s := New(10, 0.95, testOutstations())

	in := sampleAt(400, 1)
	if _, err := s.Record(1, in); err != nil {
		t.Fatalf("record: %v", err)
	}

	m, ok, err := s.Latest(1)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if m.Voltage != 400 || !m.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("latest returned wrong sample: %+v", m)
	}
	if m.OutstationID != 1 {
		t.Fatalf("latest outstation id = %d, want 1", m.OutstationID)
	}
}

func TestLatestAbsentBeforeFirstRecord(t *testing.T) {
	s := New(10, 0.95, testOutstations())

	if _, ok, err := s.Latest(1); err != nil || ok {
		t.Fatalf("expected absent latest, got ok=%v err=%v", ok, err)
	}
}

func TestUnknownOutstation(t *testing.T) {
	s := New(10, 0.95, testOutstations())

	if _, err := s.Record(99, sampleAt(400, 1)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record unknown id: %v", err)
	}
	if _, _, err := s.Latest(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("latest unknown id: %v", err)
	}
	if _, err := s.History(99, 10, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("history unknown id: %v", err)
	}
	if _, err := s.Stats(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stats unknown id: %v", err)
	}
}

func TestHistoryCapacityEviction(t *testing.T) {
	const capacity = 5
	s := New(capacity, 0.95, testOutstations())

	// capacity+3 records: the first 3 must be evicted, the rest kept in order
	for i := 1; i <= capacity+3; i++ {
		if _, err := s.Record(1, sampleAt(float64(380+i), i)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	count, err := s.Count(1)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != capacity {
		t.Fatalf("count = %d, want %d", count, capacity)
	}

	hist, err := s.History(1, capacity, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != capacity {
		t.Fatalf("history length = %d, want %d", len(hist), capacity)
	}
	// newest first: voltages 388, 387, 386, 385, 384
	for i, m := range hist {
		want := float64(380 + capacity + 3 - i)
		if m.Voltage != want {
			t.Fatalf("history[%d].Voltage = %f, want %f", i, m.Voltage, want)
		}
	}
}

func TestHistoryPagination(t *testing.T) {
	s := New(10, 0.95, testOutstations())
	for i := 1; i <= 6; i++ {
		s.Record(1, sampleAt(float64(400+i), i))
	}

	hist, err := s.History(1, 2, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].Voltage != 404 || hist[1].Voltage != 403 {
		t.Fatalf("unexpected page: %+v", hist)
	}
}

func TestHistoryNormalizesOutOfRange(t *testing.T) {
	s := New(10, 0.95, testOutstations())
	for i := 1; i <= 3; i++ {
		s.Record(1, sampleAt(400, i))
	}

	cases := []struct {
		name          string
		limit, offset int
		want          int
	}{
		{"offset beyond size", 10, 5, 0},
		{"zero limit", 0, 0, 0},
		{"negative limit", -1, 0, 0},
		{"negative offset", 2, -4, 2},
		{"limit past end", 10, 1, 2},
	}
	for _, tc := range cases {
		hist, err := s.History(1, tc.limit, tc.offset)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if len(hist) != tc.want {
			t.Fatalf("%s: got %d records, want %d", tc.name, len(hist), tc.want)
		}
	}
}

func TestDerivedMetricIdentity(t *testing.T) {
	s := New(100, 0.95, testOutstations())
	for i := 1; i <= 50; i++ {
		s.Record(1, sampleAt(float64(380+i%40), i))
	}

	hist, err := s.History(1, 50, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for i, m := range hist {
		want := math.Sqrt(m.RealPowerKW*m.RealPowerKW + m.ReactivePowerKVAR*m.ReactivePowerKVAR)
		if math.Abs(m.ApparentPowerKVA-want) > 1e-9 {
			t.Fatalf("record %d: apparent %f, want sqrt(real²+reactive²) = %f", i, m.ApparentPowerKVA, want)
		}
	}
}

func TestDerivedLoadCappedAtHundred(t *testing.T) {
	// 800 A at 420 V blows far past a 100 kVA rating; the reported load must
	// cap at 100 while the power values stay uncapped.
	outs := []util.OutstationConfig{{ID: 1, Name: "small", RatedCapacityKVA: 100}}
	s := New(10, 0.95, outs)

	m, err := s.Record(1, model.Sample{Voltage: 420, Current: 800, Frequency: 60, Temperature: 40})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if m.LoadPercentage != 100 {
		t.Fatalf("load = %f, want capped 100", m.LoadPercentage)
	}
	if m.ApparentPowerKVA <= 100 {
		t.Fatalf("apparent power %f should exceed the 100 kVA rating", m.ApparentPowerKVA)
	}
}

func TestStats(t *testing.T) {
	s := New(10, 0.95, testOutstations())
	for _, v := range []float64{390, 400, 410} {
		s.Record(1, model.Sample{Voltage: v, Current: 400, Frequency: 60, Temperature: 45})
	}

	stats, err := s.Stats(1)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Samples != 3 {
		t.Fatalf("samples = %d, want 3", stats.Samples)
	}
	if stats.Voltage.Min != 390 || stats.Voltage.Max != 410 {
		t.Fatalf("voltage min/max = %f/%f, want 390/410", stats.Voltage.Min, stats.Voltage.Max)
	}
	if math.Abs(stats.Voltage.Avg-400) > 1e-9 {
		t.Fatalf("voltage avg = %f, want 400", stats.Voltage.Avg)
	}
}

func TestStatsEmptyHistory(t *testing.T) {
	s := New(10, 0.95, testOutstations())

	stats, err := s.Stats(1)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Samples != 0 || stats.Voltage.Min != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	s := New(100, 0.95, testOutstations())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				s.Record(1, sampleAt(float64(380+i%40), i))
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.Latest(1)
				s.History(1, 10, 0)
				s.Stats(1)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent access deadlocked")
	}
}
