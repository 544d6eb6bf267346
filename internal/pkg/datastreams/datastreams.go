// Package datastreams forwards run events from the in-process broker to
// external message systems.
package datastreams

import (
	"encoding/json"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
)

// Record is the wire form of one run event.
type Record struct {
	msg.Event
	Topic string `json:"topic"`
	PID   string `json:"pid"`
}

// Encode renders m as a JSON record. Messages not carrying an event are
// skipped.
func Encode(m msg.Msg) ([]byte, bool) {
	ev, ok := m.Payload().(msg.Event)
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(Record{Event: ev, Topic: m.Topic().String(), PID: m.PID().String()})
	if err != nil {
		return nil, false
	}
	return data, true
}

// Subject joins the prefix and the message topic with sep, e.g.
// fuchur.run.progress or fuchur/run/progress.
func Subject(prefix, sep string, m msg.Msg) string {
	parts := []string{}
	if prefix != "" {
		parts = append(parts, strings.Trim(prefix, sep))
	}
	return strings.Join(append(parts, m.Topic().String()), sep)
}

// Pump hands every message of inbox to send until the inbox closes or stop
// fires. Delivery errors are logged and the message is dropped.
func Pump(inbox <-chan msg.Msg, stop <-chan bool, send func(msg.Msg) error, logger log.Logger) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	for {
		select {
		case m, ok := <-inbox:
			if !ok {
				return
			}
			if err := send(m); err != nil {
				level.Warn(logger).Log("msg", "event not delivered", "topic", m.Topic(), "err", err)
			}
		case <-stop:
			return
		}
	}
}
