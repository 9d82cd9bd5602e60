package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iisquazar/qdt-bms/internal/bms"
	"github.com/iisquazar/qdt-bms/internal/config"
	"github.com/iisquazar/qdt-bms/internal/display"
	"github.com/iisquazar/qdt-bms/internal/logging"
	"github.com/iisquazar/qdt-bms/internal/messaging"
	"github.com/iisquazar/qdt-bms/internal/poller"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	logging.Init()

	path := getenv("BMS_CONFIG_PATH", "")
	cfg, err := config.Load(path)
	if err != nil {
		logging.Fatal("config error", "path", path, "error", err)
	}
	logging.Info("config loaded",
		"prefix", cfg.Serial.PathPrefix,
		"baud", cfg.Serial.Baud,
		"measurements", cfg.Poll.Measurements,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := display.NewConsole(os.Stdout)
	console.Started()

	locator := &bms.Locator{
		PathPrefix:  cfg.Serial.PathPrefix,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout(),
		Settle:      cfg.Serial.SettleBeforeRead(),
	}
	port, portPath, err := locator.Locate(ctx)
	if err != nil {
		if errors.Is(err, bms.ErrNoPortFound) {
			console.NoPortFound()
			return
		}
		logging.Fatal("port scan failed", "error", err)
	}
	defer port.Close()
	logging.Info("port found", "port", portPath)

	// Control-line setup the adapter expects before polling.
	if err := port.SetRTS(true); err != nil {
		logging.Warn("set RTS", "error", err)
	}
	if err := port.SetDTR(false); err != nil {
		logging.Warn("set DTR", "error", err)
	}

	pubs := []poller.Publisher{console}
	if cfg.MQTT.Enabled() {
		broker := messaging.NewBroker(messaging.BrokerConfig{
			BrokerURL:      cfg.MQTT.BrokerURL,
			ClientName:     cfg.MQTT.ClientName,
			TopicPrefix:    cfg.MQTT.TopicPrefix,
			ConnectTimeout: cfg.MQTT.ConnectTimeout(),
			PublishTimeout: cfg.MQTT.PublishTimeout(),
		})
		if err := broker.Connect(ctx); err != nil {
			logging.Warn("mqtt connect failed, readings stay local", "broker", cfg.MQTT.BrokerURL, "error", err)
		} else {
			defer broker.Close(context.Background())
			pubs = append(pubs, messaging.NewReadingPublisher(broker, cfg.MQTT.ClientName, cfg.MQTT.Heartbeat()))
			logging.Info("publishing readings", "broker", cfg.MQTT.BrokerURL)
		}
	}

	p, err := poller.New(poller.Config{
		Measurements: cfg.Poll.Measurements,
		Interval:     cfg.Poll.Interval(),
		Settle:       cfg.Serial.SettleBeforeRead(),
	}, port, pubs...)
	if err != nil {
		logging.Error("poller init", "error", err)
		return
	}

	if err := p.Run(ctx); err != nil {
		logging.Info("polling stopped early", "reason", err)
	}
}
