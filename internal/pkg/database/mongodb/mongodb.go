// Package mongodb archives datasets and run events in MongoDB.
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"regexp"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collections written by the archive.
const (
	FilesCollection  = "datasetFiles"
	EventsCollection = "runEvents"
)

// Config is read from a JSON file.
type Config struct {
	URI      string `json:"URI"`
	Database string `json:"Database"`
	Port     string `json:"Port"`
	// Dataset scopes the stored files, so one database holds many datasets.
	Dataset string `json:"Dataset"`
}

// ReadConfig loads the connection settings at configPath.
func ReadConfig(configPath string) (Config, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Database == "" {
		return Config{}, fmt.Errorf("%s: Database is empty", configPath)
	}
	return cfg, nil
}

func (c Config) address() string {
	if c.Port == "" {
		return c.URI
	}
	return c.URI + ":" + c.Port
}

func connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.address()))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.address(), err)
	}
	return client, nil
}

type file struct {
	Dataset string    `bson:"dataset"`
	Path    string    `bson:"path"`
	Data    []byte    `bson:"data"`
	RunID   string    `bson:"run_id,omitempty"`
	Updated time.Time `bson:"updated"`
}

// Store keeps dataset files as documents keyed by dataset and path.
type Store struct {
	client  *mongo.Client
	files   *mongo.Collection
	dataset string
	// RunID is stamped into every written document.
	RunID string
}

// Open connects to the archive described by cfg.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		client:  client,
		files:   client.Database(cfg.Database).Collection(FilesCollection),
		dataset: cfg.Dataset,
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) filter(p string) bson.M {
	return bson.M{"dataset": s.dataset, "path": p}
}

// Put upserts the document at p.
func (s *Store) Put(ctx context.Context, p string, data []byte) error {
	doc := file{Dataset: s.dataset, Path: p, Data: data, RunID: s.RunID, Updated: time.Now().UTC()}
	opts := options.Update().SetUpsert(true)
	_, err := s.files.UpdateOne(ctx, s.filter(p), bson.M{"$set": doc}, opts)
	return err
}

func (s *Store) Get(ctx context.Context, p string) ([]byte, error) {
	var doc file
	err := s.files.FindOne(ctx, s.filter(p)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", datapackage.ErrNotFound, p)
	}
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	opts := options.Find().SetSort(bson.D{{Key: "path", Value: 1}}).SetProjection(bson.M{"path": 1})
	cur, err := s.files.Find(ctx, PrefixFilter(s.dataset, prefix), opts)
	if err != nil {
		return nil, err
	}
	var docs []file
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Path
	}
	return out, nil
}

// Clean deletes the managed files of the dataset.
func (s *Store) Clean(ctx context.Context) error {
	_, err := s.files.DeleteMany(ctx, bson.M{"dataset": s.dataset, "$or": bson.A{
		bson.M{"path": datapackage.Descriptor},
		bson.M{"path": bson.M{"$regex": "^data/"}},
		bson.M{"path": bson.M{"$regex": "^resources/"}},
	}})
	return err
}

// PrefixFilter selects the files of dataset below prefix.
func PrefixFilter(dataset, prefix string) bson.M {
	f := bson.M{"dataset": dataset}
	if prefix != "" {
		f["path"] = bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}
	}
	return f
}

// Handler upserts the latest event of every run stage.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config Config
	logger log.Logger
	stop   chan bool
	done   chan struct{}
}

// NewHandler subscribes a new handler to every run topic of system.
func NewHandler(cfg Config, system msg.Publisher, logger log.Logger) (*Handler, error) {
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
		config: cfg,
		logger: log.With(logger, "component", "mongo"),
		stop:   make(chan bool, 1),
		done:   make(chan struct{}),
	}, nil
}

// EventDocument is the update applied for one message.
func EventDocument(m msg.Msg) (bson.M, bson.M, bool) {
	ev, ok := m.Payload().(msg.Event)
	if !ok {
		return nil, nil, false
	}
	filter := bson.M{"run_id": ev.RunID, "stage": ev.Stage}
	update := bson.M{"$set": bson.M{
		"pid":      m.PID().String(),
		"topic":    m.Topic().String(),
		"scenario": ev.Scenario,
		"detail":   ev.Detail,
		"count":    ev.Count,
		"time":     ev.Time,
	}}
	return filter, update, true
}

// StopProcess ends Process once the inbox is drained or closed.
func (h *Handler) StopProcess() {
	h.stop <- true
	<-h.done
}

// Process writes every received event until stopped or the inbox closes.
func (h *Handler) Process(ctx context.Context) {
	defer close(h.done)
	client, err := connect(ctx, h.config)
	if err != nil {
		level.Error(h.logger).Log("msg", "archive unavailable", "err", err)
		h.drain()
		return
	}
	defer client.Disconnect(ctx)
	events := client.Database(h.config.Database).Collection(EventsCollection)

loop:
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				break loop
			}
			filter, update, ok := EventDocument(m)
			if !ok {
				continue
			}
			opts := options.Update().SetUpsert(true)
			if _, err := events.UpdateOne(ctx, filter, update, opts); err != nil {
				level.Warn(h.logger).Log("msg", "event not archived", "topic", m.Topic(), "err", err)
			}
		case <-h.stop:
			break loop
		}
	}
	level.Debug(h.logger).Log("msg", "process shutdown")
}

func (h *Handler) drain() {
	for {
		select {
		case _, ok := <-h.inbox:
			if !ok {
				return
			}
		case <-h.stop:
			return
		}
	}
}
