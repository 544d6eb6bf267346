package main

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"os"

	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/logging"
	"github.com/ohowland/fuchur_core/internal/pkg/metrics"
	"github.com/ohowland/fuchur_core/internal/pkg/webservice"
	flag "github.com/spf13/pflag"
)

func readConfig(path string) (webservice.Config, error) {
	cfg := webservice.Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = json.Unmarshal(data, &cfg)
	return cfg, err
}

func main() {
	dir := flag.String("datapackage-dir", ".", "dataset to serve")
	configPath := flag.String("config", "", "JSON file with URL and Port")
	port := flag.String("port", "", "listen port, overrides the config file")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logLevel)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	logger = logging.Component(logger, "webservice")

	cfg, err := readConfig(*configPath)
	if err != nil {
		level.Error(logger).Log("msg", "read config", "err", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}

	app := &webservice.App{
		Store:   datapackage.NewDirStore(*dir),
		Metrics: metrics.New(),
		Logger:  logger,
	}
	level.Info(logger).Log("msg", "starting server", "addr", cfg.Addr(), "dir", *dir)
	if err := http.ListenAndServe(cfg.Addr(), app.Handler()); err != nil {
		level.Error(logger).Log("msg", "server stopped", "err", err)
		os.Exit(1)
	}
}
