package poller

import (
	"context"
	"testing"
	"time"

	"github.com/iisquazar/qdt-bms/internal/bms"
)

// scriptPort replays one canned response per query write; nil entries
// simulate a silent device.
type scriptPort struct {
	responses [][]byte
	next      []byte
}

func (s *scriptPort) Write(p []byte) (int, error) {
	if len(s.responses) > 0 {
		s.next = s.responses[0]
		s.responses = s.responses[1:]
	} else {
		s.next = nil
	}
	return len(p), nil
}

func (s *scriptPort) Read(p []byte) (int, error) {
	if len(s.next) == 0 {
		return 0, nil
	}
	n := copy(p, s.next)
	s.next = s.next[n:]
	return n, nil
}

type capturePublisher struct {
	results []Result
}

func (c *capturePublisher) Publish(_ context.Context, res Result) error {
	c.results = append(c.results, res)
	return nil
}

func TestRunFixedCycleCount(t *testing.T) {
	valid := bms.BuildResponse(bms.Reading{Voltage: 52.40, Current: -1.25, SOC: 76})
	port := &scriptPort{responses: [][]byte{
		valid,
		nil, // silent cycle
		valid,
		{0x01, 0x02}, // too short to parse
		valid,
	}}
	sink := &capturePublisher{}

	p, err := New(Config{Measurements: 5, Interval: time.Millisecond}, port, sink)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run err = %v", err)
	}

	if len(sink.results) != 5 {
		t.Fatalf("published %d results, want 5", len(sink.results))
	}
	wantReading := []bool{true, false, true, false, true}
	for i, res := range sink.results {
		if (res.Reading != nil) != wantReading[i] {
			t.Fatalf("cycle %d: reading present = %v, want %v", i, res.Reading != nil, wantReading[i])
		}
		if res.At.IsZero() {
			t.Fatalf("cycle %d: missing timestamp", i)
		}
	}
	if got := *sink.results[0].Reading; got != (bms.Reading{Voltage: 52.40, Current: -1.25, SOC: 76}) {
		t.Fatalf("cycle 0 reading = %+v", got)
	}
}

func TestRunOnceIncompleteResponse(t *testing.T) {
	port := &scriptPort{responses: [][]byte{make([]byte, bms.OffsetSOC)}} // one byte short
	sink := &capturePublisher{}
	p, err := New(Config{Measurements: 1}, port, sink)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}

	res := p.RunOnce(context.Background())
	if res.Reading != nil {
		t.Fatalf("short response parsed to %+v, want nil", res.Reading)
	}
	if len(sink.results) != 1 {
		t.Fatalf("published %d results, want 1", len(sink.results))
	}
}

func TestRunCancelledBetweenCycles(t *testing.T) {
	port := &scriptPort{}
	sink := &capturePublisher{}
	p, err := New(Config{Measurements: 3, Interval: time.Hour}, port, sink)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := p.Run(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(sink.results) != 1 {
		t.Fatalf("published %d results before cancel, want 1", len(sink.results))
	}
}

func TestNewValidation(t *testing.T) {
	port := &scriptPort{}
	sink := &capturePublisher{}

	if _, err := New(Config{Measurements: 0}, port, sink); err == nil {
		t.Fatal("zero measurements accepted")
	}
	if _, err := New(Config{Measurements: 5}, nil, sink); err == nil {
		t.Fatal("nil transport accepted")
	}
	if _, err := New(Config{Measurements: 5}, port); err == nil {
		t.Fatal("no publishers accepted")
	}
}
