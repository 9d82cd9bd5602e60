package messaging

import "context"

type QoS byte

// AtMostOnce is the only delivery level the reading stream needs; a
// missed sample is replaced by the next poll cycle anyway.
const AtMostOnce QoS = 0

// JSONPublisher is the slice of Broker the reading publisher needs.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, topic string, qos QoS, retain bool, v interface{}) error
	Topic(parts ...string) string
}
