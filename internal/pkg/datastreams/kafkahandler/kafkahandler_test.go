package kafkahandler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
	"gotest.tools/v3/assert"
)

func TestReadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kafka.json")
	assert.NilError(t, os.WriteFile(p, []byte(`{"Brokers": ["localhost:9092"]}`), 0o644))
	cfg, err := ReadConfig(p)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Topic, DefaultTopic)

	assert.NilError(t, os.WriteFile(p, []byte(`{}`), 0o644))
	_, err = ReadConfig(p)
	assert.ErrorContains(t, err, "Brokers")
}

func TestMessage(t *testing.T) {
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	km, ok := Message(msg.New(uuid.New(), msg.Failed, msg.Event{RunID: "run-7", Stage: "assemble", Time: at}))
	assert.Assert(t, ok)
	assert.Equal(t, string(km.Key), "run-7")
	assert.Equal(t, string(km.Headers[0].Value), "failed")
	assert.Equal(t, km.Time, at)

	_, ok = Message(msg.New(uuid.New(), msg.Failed, 1))
	assert.Assert(t, !ok)
}
