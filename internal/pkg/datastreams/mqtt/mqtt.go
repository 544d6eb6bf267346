// Package mqtt publishes run events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/ohowland/fuchur_core/internal/pkg/datastreams"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
)

const (
	DefaultTopic = "fuchur/run"
	timeout      = 5 * time.Second
)

type Config struct {
	Broker string `json:"Broker"`
	Topic  string `json:"Topic"`
	QoS    byte   `json:"QoS"`
}

// ReadConfig loads the broker settings at configPath.
func ReadConfig(configPath string) (Config, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Broker == "" {
		return Config{}, fmt.Errorf("%s: Broker is empty", configPath)
	}
	if cfg.QoS > 2 {
		return Config{}, fmt.Errorf("%s: QoS %d is not 0, 1 or 2", configPath, cfg.QoS)
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return cfg, nil
}

type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config Config
	logger log.Logger
	stop   chan bool
	done   chan struct{}
}

// New subscribes a handler to every run topic of system.
func New(cfg Config, system msg.Publisher, logger log.Logger) (*Handler, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	inbox, err := msg.SubscribeAll(system, pid)
	if err != nil {
		return nil, err
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return &Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		logger: log.With(logger, "component", "mqtt"),
		stop:   make(chan bool, 1),
		done:   make(chan struct{}),
	}, nil
}

// ClientOptions connects as the handler's PID.
func (h *Handler) ClientOptions() *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(h.config.Broker).
		SetClientID("fuchur-" + h.pid.String()).
		SetConnectTimeout(timeout)
}

func (h *Handler) Stop() {
	h.stop <- true
	<-h.done
}

// Process publishes every event until stopped or the inbox closes.
func (h *Handler) Process() {
	defer close(h.done)
	c := mqtt.NewClient(h.ClientOptions())
	if token := c.Connect(); token.WaitTimeout(timeout) && token.Error() != nil {
		level.Error(h.logger).Log("msg", "broker unavailable", "broker", h.config.Broker, "err", token.Error())
		datastreams.Pump(h.inbox, h.stop, func(msg.Msg) error { return nil }, nil)
		return
	}
	defer c.Disconnect(250)

	datastreams.Pump(h.inbox, h.stop, func(m msg.Msg) error {
		payload, ok := datastreams.Encode(m)
		if !ok {
			return nil
		}
		token := c.Publish(datastreams.Subject(h.config.Topic, "/", m), h.config.QoS, false, payload)
		if !token.WaitTimeout(timeout) {
			return fmt.Errorf("publish timed out")
		}
		return token.Error()
	}, h.logger)
	level.Debug(h.logger).Log("msg", "process shutdown")
}
