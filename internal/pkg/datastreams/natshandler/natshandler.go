// Package natshandler publishes run events on NATS subjects.
package natshandler

import (
	"encoding/json"
	"io/ioutil"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/ohowland/fuchur_core/internal/pkg/datastreams"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"

	nats "github.com/nats-io/nats.go"
)

// DefaultSubject prefixes every published subject.
const DefaultSubject = "fuchur.run"

type Config struct {
	Server  string `json:"Server"`
	Subject string `json:"Subject"`
}

// ReadConfig loads the server settings at configPath.
func ReadConfig(configPath string) (Config, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Config{}, err
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.Server == "" {
		c.Server = nats.DefaultURL
	}
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	return c
}

type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config Config
	logger log.Logger
	stop   chan bool
	done   chan struct{}
}

func (h *Handler) PID() uuid.UUID {
	return h.pid
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
	return &Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg.withDefaults(),
		logger: log.With(logger, "component", "nats"),
		stop:   make(chan bool, 1),
		done:   make(chan struct{}),
	}, nil
}

// Stop ends Process and waits for it to flush.
func (h *Handler) Stop() {
	h.stop <- true
	<-h.done
}

// Process publishes every event until stopped or the inbox closes.
func (h *Handler) Process() {
	defer close(h.done)
	level.Debug(h.logger).Log("msg", "process started", "server", h.config.Server)
	nc, err := nats.Connect(h.config.Server, nats.Name("fuchur "+h.pid.String()))
	if err != nil {
		level.Error(h.logger).Log("msg", "server unavailable", "err", err)
		datastreams.Pump(h.inbox, h.stop, func(msg.Msg) error { return nil }, nil)
		return
	}
	defer nc.Close()

	datastreams.Pump(h.inbox, h.stop, func(m msg.Msg) error {
		data, ok := datastreams.Encode(m)
		if !ok {
			return nil
		}
		return nc.Publish(datastreams.Subject(h.config.Subject, ".", m), data)
	}, h.logger)

	if err := nc.Flush(); err != nil {
		level.Warn(h.logger).Log("msg", "flush failed", "err", err)
	}
	level.Debug(h.logger).Log("msg", "process shutdown")
}
