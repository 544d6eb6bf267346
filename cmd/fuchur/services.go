package main

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/database/mongodb"
	"github.com/ohowland/fuchur_core/internal/pkg/database/objectstore"
	"github.com/ohowland/fuchur_core/internal/pkg/database/sqldb"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/datastreams/kafkahandler"
	"github.com/ohowland/fuchur_core/internal/pkg/datastreams/mqtt"
	"github.com/ohowland/fuchur_core/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
)

// serviceConfig holds the JSON config paths of the optional archives and
// event sinks. Empty paths are not linked.
type serviceConfig struct {
	Mongo  string
	SQL    string
	Object string
	NATS   string
	MQTT   string
	Kafka  string
}

// service is a running event sink.
type service struct {
	name string
	stop func()
}

// services are the archives and event sinks linked to one run.
type services struct {
	archives []datapackage.Store
	running  []service
	closers  []func()
	wg       sync.WaitGroup
	logger   log.Logger
}

func (s *services) start(name string, process func(), stop func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		process()
	}()
	s.running = append(s.running, service{name: name, stop: stop})
	level.Info(s.logger).Log("msg", "linked service", "service", name)
}

// shutdown stops every sink, waits for them to drain and closes the
// archives.
func (s *services) shutdown() {
	for _, svc := range s.running {
		svc.stop()
		level.Debug(s.logger).Log("msg", "stopped service", "service", svc.name)
	}
	s.wg.Wait()
	for _, c := range s.closers {
		c()
	}
}

// linkServices opens the configured archives and subscribes the configured
// event sinks to system. A sink that cannot reach its server logs the
// failure and drains its inbox, so a run never blocks on one.
func linkServices(ctx context.Context, cfg serviceConfig, system *msg.PubSub, logger log.Logger) (*services, error) {
	s := &services{logger: logger}

	if cfg.Mongo != "" {
		mcfg, err := mongodb.ReadConfig(cfg.Mongo)
		if err != nil {
			return s, err
		}
		store, err := mongodb.Open(ctx, mcfg)
		if err != nil {
			return s, err
		}
		s.archives = append(s.archives, store)
		s.closers = append(s.closers, func() { store.Close(context.Background()) })

		h, err := mongodb.NewHandler(mcfg, system, logger)
		if err != nil {
			return s, err
		}
		s.start("mongo", func() { h.Process(ctx) }, h.StopProcess)
	}

	if cfg.SQL != "" {
		scfg, err := sqldb.ReadConfig(cfg.SQL)
		if err != nil {
			return s, err
		}
		store, err := sqldb.Open(ctx, scfg)
		if err != nil {
			return s, err
		}
		s.archives = append(s.archives, store)
		s.closers = append(s.closers, func() { store.Close() })
	}

	if cfg.Object != "" {
		ocfg, err := objectstore.ReadConfig(cfg.Object)
		if err != nil {
			return s, err
		}
		store, err := objectstore.Open(ctx, ocfg)
		if err != nil {
			return s, err
		}
		s.archives = append(s.archives, store)
	}

	if cfg.NATS != "" {
		ncfg, err := natshandler.ReadConfig(cfg.NATS)
		if err != nil {
			return s, err
		}
		h, err := natshandler.New(ncfg, system, logger)
		if err != nil {
			return s, err
		}
		s.start("nats", h.Process, h.Stop)
	}

	if cfg.MQTT != "" {
		qcfg, err := mqtt.ReadConfig(cfg.MQTT)
		if err != nil {
			return s, err
		}
		h, err := mqtt.New(qcfg, system, logger)
		if err != nil {
			return s, err
		}
		s.start("mqtt", h.Process, h.Stop)
	}

	if cfg.Kafka != "" {
		kcfg, err := kafkahandler.ReadConfig(cfg.Kafka)
		if err != nil {
			return s, err
		}
		h, err := kafkahandler.New(kcfg, system, logger)
		if err != nil {
			return s, err
		}
		s.start("kafka", func() { h.Process(ctx) }, h.Stop)
	}

	return s, nil
}
