// Package kafkahandler writes run events to a Kafka topic keyed by run id.
package kafkahandler

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/ohowland/fuchur_core/internal/pkg/datastreams"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "fuchur-run-events"

type Config struct {
	Brokers []string `json:"Brokers"`
	Topic   string   `json:"Topic"`
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
	if len(cfg.Brokers) == 0 {
		return Config{}, fmt.Errorf("%s: Brokers is empty", configPath)
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return cfg, nil
}

// Message keys the event by run id so one run stays on one partition.
func Message(m msg.Msg) (kafka.Message, bool) {
	ev, ok := m.Payload().(msg.Event)
	if !ok {
		return kafka.Message{}, false
	}
	value, ok := datastreams.Encode(m)
	if !ok {
		return kafka.Message{}, false
	}
	return kafka.Message{
		Key:   []byte(ev.RunID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "topic", Value: []byte(m.Topic().String())},
		},
		Time: ev.Time,
	}, true
}

type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	writer *kafka.Writer
	logger log.Logger
	stop   chan bool
	done   chan struct{}
}

// New subscribes a handler to every run topic of system.
func New(cfg Config, system msg.Publisher, logger log.Logger) (*Handler, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
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
		inbox: inbox,
		pid:   pid,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
		logger: log.With(logger, "component", "kafka"),
		stop:   make(chan bool, 1),
		done:   make(chan struct{}),
	}, nil
}

func (h *Handler) Stop() {
	h.stop <- true
	<-h.done
}

// Process writes every event until stopped or the inbox closes.
func (h *Handler) Process(ctx context.Context) {
	defer close(h.done)
	defer func() {
		if err := h.writer.Close(); err != nil {
			level.Warn(h.logger).Log("msg", "close writer", "err", err)
		}
	}()
	datastreams.Pump(h.inbox, h.stop, func(m msg.Msg) error {
		km, ok := Message(m)
		if !ok {
			return nil
		}
		return h.writer.WriteMessages(ctx, km)
	}, h.logger)
	level.Debug(h.logger).Log("msg", "process shutdown")
}
