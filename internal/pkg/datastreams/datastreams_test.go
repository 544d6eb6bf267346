package datastreams

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
	"gotest.tools/v3/assert"
)

func TestEncode(t *testing.T) {
	pid := uuid.New()
	m := msg.New(pid, msg.Warning, msg.Event{RunID: "run-1", Stage: "fallback", Detail: "inflow-dk-zero"})
	data, ok := Encode(m)
	assert.Assert(t, ok)

	var rec map[string]interface{}
	assert.NilError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, rec["run_id"], "run-1")
	assert.Equal(t, rec["topic"], "warning")
	assert.Equal(t, rec["pid"], pid.String())
	assert.Equal(t, rec["detail"], "inflow-dk-zero")

	_, ok = Encode(msg.New(pid, msg.Progress, "not an event"))
	assert.Assert(t, !ok)
}

func TestSubject(t *testing.T) {
	m := msg.New(uuid.New(), msg.Finished, msg.Event{})
	assert.Equal(t, Subject("fuchur.run.", ".", m), "fuchur.run.finished")
	assert.Equal(t, Subject("fuchur/run", "/", m), "fuchur/run/finished")
	assert.Equal(t, Subject("", ".", m), "finished")
}

func TestPump(t *testing.T) {
	inbox := make(chan msg.Msg, 3)
	inbox <- msg.New(uuid.New(), msg.Progress, msg.Event{Stage: "buses"})
	inbox <- msg.New(uuid.New(), msg.Progress, msg.Event{Stage: "links"})
	inbox <- msg.New(uuid.New(), msg.Finished, msg.Event{Stage: "write"})
	close(inbox)

	var stages []string
	Pump(inbox, nil, func(m msg.Msg) error {
		ev := m.Payload().(msg.Event)
		stages = append(stages, ev.Stage)
		if ev.Stage == "links" {
			return errors.New("broker down")
		}
		return nil
	}, nil)
	assert.DeepEqual(t, stages, []string{"buses", "links", "write"})
}

func TestPumpStops(t *testing.T) {
	stop := make(chan bool, 1)
	done := make(chan struct{})
	go func() {
		Pump(make(chan msg.Msg), stop, func(msg.Msg) error { return nil }, nil)
		close(done)
	}()
	stop <- true
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop")
	}
}
