// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

/* =========================
   Types
   ========================= */

type Config struct {
	Serial SerialConfig `json:"serial"`
	Poll   PollConfig   `json:"poll"`
	MQTT   MQTTConfig   `json:"mqtt"`
}

type SerialConfig struct {
	PathPrefix         string `json:"pathPrefix"` // candidate filter, e.g. /dev/ttyUSB
	Baud               int    `json:"baud"`
	ReadTimeoutMs      int    `json:"readTimeoutMs"`
	SettleBeforeReadMs int    `json:"settleBeforeReadMs"` // pause between query write and response read
}

type PollConfig struct {
	Measurements int `json:"measurements"`
	IntervalMs   int `json:"intervalMs"`
}

// MQTTConfig is optional; an empty brokerUrl disables publishing entirely.
type MQTTConfig struct {
	BrokerURL        string `json:"brokerUrl"`
	ClientName       string `json:"clientName"`
	TopicPrefix      string `json:"topicPrefix"`
	ConnectTimeoutMs int    `json:"connectTimeoutMs"`
	PublishTimeoutMs int    `json:"publishTimeoutMs"`
	HeartbeatSec     int    `json:"heartbeatSec"` // republish unchanged readings after this many seconds; 0 disables
}

/* =========================
   Helpers
   ========================= */

func (s SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}
func (s SerialConfig) SettleBeforeRead() time.Duration {
	return time.Duration(s.SettleBeforeReadMs) * time.Millisecond
}

func (p PollConfig) Interval() time.Duration { return time.Duration(p.IntervalMs) * time.Millisecond }

func (m MQTTConfig) Enabled() bool { return strings.TrimSpace(m.BrokerURL) != "" }
func (m MQTTConfig) ConnectTimeout() time.Duration {
	return time.Duration(m.ConnectTimeoutMs) * time.Millisecond
}
func (m MQTTConfig) PublishTimeout() time.Duration {
	return time.Duration(m.PublishTimeoutMs) * time.Millisecond
}
func (m MQTTConfig) Heartbeat() time.Duration { return time.Duration(m.HeartbeatSec) * time.Second }

/* =========================
   Defaults
   ========================= */

// Default mirrors the fixed parameters of the original reader, so the
// program is fully functional without any config file.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			PathPrefix:         "/dev/ttyUSB",
			Baud:               115200,
			ReadTimeoutMs:      1000,
			SettleBeforeReadMs: 100,
		},
		Poll: PollConfig{
			Measurements: 5,
			IntervalMs:   2000,
		},
		MQTT: MQTTConfig{
			ClientName:       "bms-edge",
			TopicPrefix:      "bms",
			ConnectTimeoutMs: 10000,
			PublishTimeoutMs: 5000,
			HeartbeatSec:     60,
		},
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.Serial.PathPrefix) == "" {
		c.Serial.PathPrefix = def.Serial.PathPrefix
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}
	if c.Serial.ReadTimeoutMs == 0 {
		c.Serial.ReadTimeoutMs = def.Serial.ReadTimeoutMs
	}
	if c.Serial.SettleBeforeReadMs == 0 {
		c.Serial.SettleBeforeReadMs = def.Serial.SettleBeforeReadMs
	}
	if c.Poll.Measurements == 0 {
		c.Poll.Measurements = def.Poll.Measurements
	}
	if c.Poll.IntervalMs == 0 {
		c.Poll.IntervalMs = def.Poll.IntervalMs
	}
	if c.MQTT.ClientName == "" {
		c.MQTT.ClientName = def.MQTT.ClientName
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	if c.MQTT.ConnectTimeoutMs == 0 {
		c.MQTT.ConnectTimeoutMs = def.MQTT.ConnectTimeoutMs
	}
	if c.MQTT.PublishTimeoutMs == 0 {
		c.MQTT.PublishTimeoutMs = def.MQTT.PublishTimeoutMs
	}
	if c.MQTT.HeartbeatSec == 0 {
		c.MQTT.HeartbeatSec = def.MQTT.HeartbeatSec
	}
}

/* =========================
   Strict load + validate
   ========================= */

// Load reads a commented-JSON config file. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(raw)
}

func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parse(raw)
}

func parse(raw []byte) (*Config, error) {
	clean := stripJSONComments(raw)

	dec := json.NewDecoder(strings.NewReader(string(clean)))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs multiErr

	/* Serial */
	if strings.TrimSpace(c.Serial.PathPrefix) == "" {
		errs.add("serial.pathPrefix is required")
	}
	if c.Serial.Baud <= 0 {
		errs.add("serial.baud must be > 0")
	}
	if c.Serial.ReadTimeoutMs <= 0 {
		errs.add("serial.readTimeoutMs must be > 0")
	}
	if c.Serial.SettleBeforeReadMs < 0 {
		errs.add("serial.settleBeforeReadMs cannot be negative")
	}

	/* Poll */
	if c.Poll.Measurements <= 0 {
		errs.add("poll.measurements must be > 0")
	}
	if c.Poll.IntervalMs < 0 {
		errs.add("poll.intervalMs cannot be negative")
	}

	/* MQTT (only when enabled) */
	if c.MQTT.Enabled() {
		if strings.TrimSpace(c.MQTT.ClientName) == "" {
			errs.add("mqtt.clientName is required when mqtt.brokerUrl is set")
		}
		if strings.TrimSpace(c.MQTT.TopicPrefix) == "" {
			errs.add("mqtt.topicPrefix is required when mqtt.brokerUrl is set")
		}
		if c.MQTT.HeartbeatSec < 0 {
			errs.addf("mqtt.heartbeatSec cannot be negative (got %d)", c.MQTT.HeartbeatSec)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

/* =========================
   Comment stripping + utils
   ========================= */

var (
	lineComments  = regexp.MustCompile(`(?m)//[^\n\r]*`)
	blockComments = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

func stripJSONComments(in []byte) []byte {
	text := string(in)
	text = blockComments.ReplaceAllString(text, "")
	text = lineComments.ReplaceAllString(text, "")
	return []byte(text)
}

// small multi-error
type multiErr []string

func (m *multiErr) add(s string)            { *m = append(*m, s) }
func (m *multiErr) addf(f string, a ...any) { *m = append(*m, fmt.Sprintf(f, a...)) }
func (m multiErr) Error() string            { return "validation errors: " + strings.Join(m, "; ") }
