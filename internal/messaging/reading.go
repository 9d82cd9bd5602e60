package messaging

import (
	"context"
	"time"

	"github.com/iisquazar/qdt-bms/internal/poller"
)

// ReadingPayload is the wire form of one poll result.
type ReadingPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"` // "ok" | "no_data"
	Voltage   float64   `json:"voltage,omitempty"`
	Current   float64   `json:"current,omitempty"`
	SOC       uint8     `json:"soc,omitempty"`
}

// ReadingPublisher publishes poll results to <prefix>/<name>/reading.
// Unchanged readings are suppressed until the heartbeat interval has
// elapsed, so a stable battery does not flood the broker. Single owner
// (the poll loop); not safe for concurrent use.
type ReadingPublisher struct {
	broker    JSONPublisher
	topic     string
	heartbeat time.Duration // 0 disables heartbeats

	last     ReadingPayload
	lastSent time.Time
	hasPrev  bool
}

func NewReadingPublisher(broker JSONPublisher, name string, heartbeat time.Duration) *ReadingPublisher {
	return &ReadingPublisher{
		broker:    broker,
		topic:     broker.Topic(name, "reading"),
		heartbeat: heartbeat,
	}
}

// Publish implements poller.Publisher.
func (p *ReadingPublisher) Publish(ctx context.Context, res poller.Result) error {
	payload := ReadingPayload{
		Timestamp: res.At,
		Status:    "no_data",
	}
	if res.Reading != nil {
		payload.Status = "ok"
		payload.Voltage = res.Reading.Voltage
		payload.Current = res.Reading.Current
		payload.SOC = res.Reading.SOC
	}

	if !p.shouldSend(payload) {
		return nil
	}

	if err := p.broker.PublishJSON(ctx, p.topic, AtMostOnce, true, payload); err != nil {
		return err
	}
	p.last = payload
	p.lastSent = time.Now()
	p.hasPrev = true
	return nil
}

func (p *ReadingPublisher) shouldSend(payload ReadingPayload) bool {
	if !p.hasPrev || !payloadEqual(p.last, payload) {
		return true
	}
	return p.heartbeat > 0 && time.Since(p.lastSent) > p.heartbeat
}

// payloadEqual ignores the timestamp; only the measured values count as
// a change.
func payloadEqual(a, b ReadingPayload) bool {
	return a.Status == b.Status &&
		a.Voltage == b.Voltage &&
		a.Current == b.Current &&
		a.SOC == b.SOC
}
