package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type BrokerConfig struct {
	BrokerURL      string
	ClientName     string
	TopicPrefix    string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Broker is a thin publish-side wrapper around the paho client with
// context and timeout discipline on every call.
type Broker struct {
	config BrokerConfig
	client mqtt.Client
}

func NewBroker(cfg BrokerConfig) *Broker {
	return &Broker{config: cfg}
}

func (b *Broker) Connect(ctx context.Context) error {
	if b.client == nil {
		b.client = mqtt.NewClient(b.optionsFromConfig())
	}
	if b.client.IsConnected() {
		return nil
	}

	t := b.client.Connect()
	done := make(chan struct{})
	go func() {
		t.Wait()
		close(done)
	}()

	timeout := b.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	select {
	case <-done:
		return t.Error()
	case <-time.After(timeout):
		b.client.Disconnect(250)
		return fmt.Errorf("connect timeout after %v", timeout)
	case <-ctx.Done():
		b.client.Disconnect(250)
		return ctx.Err()
	}
}

func (b *Broker) optionsFromConfig() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().AddBroker(b.config.BrokerURL)
	opts.SetClientID("qdt-" + b.config.ClientName)
	opts.SetAutoReconnect(true)
	return opts
}

func (b *Broker) IsConnected() bool {
	if b.client == nil {
		return false
	}
	return b.client.IsConnected()
}

func (b *Broker) Close(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	// Graceful disconnect with short timeout
	done := make(chan struct{})
	go func() {
		// 250 ms quiesce period
		b.client.Disconnect(250)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Broker) Publish(ctx context.Context, topic string, qos QoS, retain bool, payload []byte) error {
	if b.client == nil {
		return errors.New("client not initialized")
	}
	token := b.client.Publish(topic, byte(qos), retain, payload)

	timeout := b.config.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-time.After(timeout):
		return fmt.Errorf("publish timeout after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Broker) PublishJSON(ctx context.Context, topic string, qos QoS, retain bool, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Publish(ctx, topic, qos, retain, data)
}

// Topic joins parts under the configured prefix.
func (b *Broker) Topic(parts ...string) string {
	all := append([]string{b.config.TopicPrefix}, parts...)
	return strings.Join(all, "/")
}
