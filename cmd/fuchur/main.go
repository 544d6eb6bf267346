package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/ohowland/fuchur_core/internal/pkg/compute"
	"github.com/ohowland/fuchur_core/internal/pkg/config"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/hmi"
	"github.com/ohowland/fuchur_core/internal/pkg/logging"
	"github.com/ohowland/fuchur_core/internal/pkg/metrics"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
	"github.com/ohowland/fuchur_core/internal/pkg/pipeline"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const version = "0.1.0"

// options are the persistent flags shared by every command.
type options struct {
	Solver             string
	DatapackageDir     string
	ResultsDir         string
	TemporalResolution int
	EmissionLimit      float64
	Safe               bool
	RawDataPath        string
	Offline            bool
	LogLevel           string
	SolverCommand      string
	Services           serviceConfig

	logger log.Logger
}

func defaultRawDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fuchur-raw-data"
	}
	return filepath.Join(home, "fuchur-raw-data")
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	fs.StringVar(&o.Solver, "solver", "gurobi", "solver handed to the solver command")
	fs.StringVar(&o.DatapackageDir, "datapackage-dir", cwd, "directory of the dataset")
	fs.StringVar(&o.ResultsDir, "results-dir", filepath.Join(cwd, "results"), "directory receiving compute results")
	fs.IntVar(&o.TemporalResolution, "temporal-resolution", 1, "keep every n-th hour when computing")
	fs.Float64Var(&o.EmissionLimit, "emission-limit", 0, "emission cap handed to the solver, unconstrained when unset")
	fs.BoolVar(&o.Safe, "safe", true, "refuse to overwrite existing results")
	fs.StringVar(&o.RawDataPath, "raw-data-path", defaultRawDataPath(), "directory of the raw input data")
	fs.BoolVar(&o.Offline, "offline", false, "never download missing raw data")
	fs.StringVar(&o.LogLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&o.SolverCommand, "solver-command", "", "solver invocation with {input}, {output}, {solver} and {emission_limit} placeholders")

	fs.StringVar(&o.Services.Mongo, "mongo-config", "", "JSON config of the MongoDB archive")
	fs.StringVar(&o.Services.SQL, "sql-config", "", "JSON config of the SQL archive")
	fs.StringVar(&o.Services.Object, "object-config", "", "JSON config of the object store archive")
	fs.StringVar(&o.Services.NATS, "nats-config", "", "JSON config of the NATS event stream")
	fs.StringVar(&o.Services.MQTT, "mqtt-config", "", "JSON config of the MQTT event stream")
	fs.StringVar(&o.Services.Kafka, "kafka-config", "", "JSON config of the Kafka event stream")
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "fuchur",
		Short:         "Build and compute European energy system datasets",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(os.Stderr, o.LogLevel)
			if err != nil {
				return err
			}
			o.logger = logging.Component(logger, "main")
			return nil
		},
	}
	bindFlags(root.PersistentFlags(), o)

	root.AddCommand(
		constructCmd(o, pipeline.Construct, "Build a dataset with expandable investment options"),
		constructCmd(o, pipeline.ConstructTYNDP, "Build a dataset from the TYNDP vision"),
		computeCmd(o),
		downloadCmd(o),
		inspectCmd(o),
		scenariosCmd(),
	)
	return root
}

func constructCmd(o *options, flow pipeline.Flow, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(flow) + " [config]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			return construct(cmd.Context(), o, flow, ref)
		},
	}
}

func construct(ctx context.Context, o *options, flow pipeline.Flow, ref string) error {
	level.Info(o.logger).Log("msg", "resolving scenario", "config", ref)
	s, err := config.Resolve(ref)
	if err != nil {
		return err
	}

	level.Info(o.logger).Log("msg", "linking services")
	pid, err := uuid.NewUUID()
	if err != nil {
		return err
	}
	system := msg.NewPublisher(pid)
	svcs, err := linkServices(ctx, o.Services, system, o.logger)
	defer func() {
		system.Close()
		svcs.shutdown()
	}()
	if err != nil {
		return err
	}

	level.Info(o.logger).Log("msg", "building dataset", "scenario", s.Name, "flow", flow)
	report, err := pipeline.Run(ctx, s, flow, pipeline.Options{
		DatapackageDir: o.DatapackageDir,
		RawDataPath:    o.RawDataPath,
		Offline:        o.Offline,
		Archives:       svcs.archives,
		Events:         system,
		Metrics:        metrics.New(),
	}, o.logger)
	if err != nil {
		return err
	}
	level.Info(o.logger).Log("msg", "dataset written", "run", report.RunID, "dir", o.DatapackageDir)
	return nil
}

func computeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compute",
		Short: "Solve the dataset with the external solver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := compute.Options{
				DatapackageDir:     o.DatapackageDir,
				ResultsDir:         o.ResultsDir,
				Solver:             o.Solver,
				TemporalResolution: o.TemporalResolution,
				Command:            o.SolverCommand,
				Safe:               o.Safe,
			}
			if cmd.Flags().Changed("emission-limit") {
				limit := o.EmissionLimit
				opts.EmissionLimit = &limit
			}
			res, err := compute.Run(cmd.Context(), opts, o.logger)
			if err != nil {
				return err
			}
			level.Info(o.logger).Log("msg", "results written", "dir", res.ScenarioPath)
			return nil
		},
	}
}

func downloadCmd(o *options) *cobra.Command {
	var bundleURL, strip string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch the raw data into the raw data path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archive := source.NewArchive(o.RawDataPath, false, o.logger)
			archive.Progress = os.Stderr
			if bundleURL != "" {
				if err := archive.FetchBundle(cmd.Context(), bundleURL, strip); err != nil {
					return err
				}
			}
			for _, k := range source.Known {
				if _, err := archive.Require(cmd.Context(), k.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bundleURL, "bundle-url", "", "zipped raw data bundle fetched before the individual files")
	cmd.Flags().StringVar(&strip, "bundle-strip", "fuchur-raw-data/", "prefix removed from every bundle entry")
	return cmd
}

func inspectCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Browse the dataset in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := hmi.Summarize(cmd.Context(), datapackage.NewDirStore(o.DatapackageDir))
			if err != nil {
				return err
			}
			return hmi.Run(sum)
		},
	}
}

func scenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the built-in scenarios",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.Builtins() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		level.Error(logger).Log("msg", "fuchur failed", "err", err)
		stop()
		os.Exit(1)
	}
}
