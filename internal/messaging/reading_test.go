package messaging

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/iisquazar/qdt-bms/internal/bms"
	"github.com/iisquazar/qdt-bms/internal/poller"
)

type fakeJSONPublisher struct {
	published []ReadingPayload
	topics    []string
}

func (f *fakeJSONPublisher) PublishJSON(_ context.Context, topic string, _ QoS, _ bool, v interface{}) error {
	f.published = append(f.published, v.(ReadingPayload))
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeJSONPublisher) Topic(parts ...string) string {
	return strings.Join(append([]string{"bms"}, parts...), "/")
}

func result(r *bms.Reading) poller.Result {
	return poller.Result{At: time.Now(), Reading: r}
}

func TestReadingPublisherTopic(t *testing.T) {
	broker := &fakeJSONPublisher{}
	p := NewReadingPublisher(broker, "edge1", 0)

	if err := p.Publish(context.Background(), result(&bms.Reading{Voltage: 50, SOC: 80})); err != nil {
		t.Fatalf("Publish err = %v", err)
	}
	if len(broker.topics) != 1 || broker.topics[0] != "bms/edge1/reading" {
		t.Fatalf("topics = %v", broker.topics)
	}
	if broker.published[0].Status != "ok" {
		t.Fatalf("status = %s", broker.published[0].Status)
	}
}

func TestReadingPublisherSuppressesUnchanged(t *testing.T) {
	broker := &fakeJSONPublisher{}
	p := NewReadingPublisher(broker, "edge1", time.Hour)

	same := &bms.Reading{Voltage: 52.4, Current: -1.25, SOC: 76}
	changed := &bms.Reading{Voltage: 52.4, Current: -1.25, SOC: 75}

	for _, r := range []*bms.Reading{same, same, same, changed, nil} {
		if err := p.Publish(context.Background(), result(r)); err != nil {
			t.Fatalf("Publish err = %v", err)
		}
	}

	// first, soc change, no-data transition
	if len(broker.published) != 3 {
		t.Fatalf("published %d payloads, want 3", len(broker.published))
	}
	if broker.published[1].SOC != 75 {
		t.Fatalf("second payload = %+v", broker.published[1])
	}
	if broker.published[2].Status != "no_data" {
		t.Fatalf("third payload = %+v", broker.published[2])
	}
}

func TestReadingPublisherHeartbeat(t *testing.T) {
	broker := &fakeJSONPublisher{}
	p := NewReadingPublisher(broker, "edge1", 10*time.Millisecond)

	r := &bms.Reading{Voltage: 48, SOC: 60}
	if err := p.Publish(context.Background(), result(r)); err != nil {
		t.Fatalf("Publish err = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := p.Publish(context.Background(), result(r)); err != nil {
		t.Fatalf("Publish err = %v", err)
	}

	if len(broker.published) != 2 {
		t.Fatalf("published %d payloads, want heartbeat republish", len(broker.published))
	}
}
