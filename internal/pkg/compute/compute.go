// Package compute prepares a solver input from an assembled dataset, runs the
// external solver and post-processes what it writes.
package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
)

// Files and directories below <results>/<name>.
const (
	InputDir       = "input"
	OutputDir      = "output"
	ModelStatsFile = "modelstats.json"
	SummaryFile    = "summary.csv"
	SupplyFile     = "supply.csv"
)

// ErrResultsExist is returned in safe mode when a scenario already has output.
var ErrResultsExist = errors.New("results exist")

// Options control a compute run.
type Options struct {
	DatapackageDir     string
	ResultsDir         string
	Solver             string
	TemporalResolution int
	// EmissionLimit is nil when emissions are unconstrained.
	EmissionLimit *float64
	// Command is the solver invocation. The placeholders {input}, {output},
	// {solver} and {emission_limit} are substituted per argument. An empty
	// command only prepares the input.
	Command string
	Safe    bool
}

// Result locates what a run wrote.
type Result struct {
	ScenarioPath string
	InputPath    string
	OutputPath   string
	Summary      *datapackage.Table
}

// Run computes the dataset at opts.DatapackageDir.
func Run(ctx context.Context, opts Options, logger log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if opts.TemporalResolution < 1 {
		opts.TemporalResolution = 1
	}
	src := datapackage.NewDirStore(opts.DatapackageDir)
	pkg, err := datapackage.ReadDescriptor(ctx, src)
	if err != nil {
		return nil, err
	}

	res := &Result{ScenarioPath: filepath.Join(opts.ResultsDir, pkg.Name)}
	res.InputPath = filepath.Join(res.ScenarioPath, InputDir)
	res.OutputPath = filepath.Join(res.ScenarioPath, OutputDir)
	if opts.Safe && hasFiles(res.OutputPath) {
		return nil, fmt.Errorf("%w: %s", ErrResultsExist, res.OutputPath)
	}
	if err := os.MkdirAll(res.OutputPath, 0o755); err != nil {
		return nil, err
	}

	dst := datapackage.NewDirStore(res.InputPath)
	if err := dst.Clean(ctx); err != nil {
		return nil, err
	}
	if opts.TemporalResolution > 1 {
		level.Info(logger).Log("msg", "aggregating for temporal resolution", "resolution", opts.TemporalResolution)
		err = TemporalSkip(ctx, src, dst, opts.TemporalResolution)
	} else {
		err = Copy(ctx, src, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("prepare input: %w", err)
	}

	if opts.Command == "" {
		level.Warn(logger).Log("msg", "no solver command, input prepared only", "input", res.InputPath)
	} else if err := solve(ctx, opts, res, logger); err != nil {
		return nil, err
	}

	if err := writeModelStats(res, opts); err != nil {
		return nil, err
	}

	supply, err := os.ReadFile(filepath.Join(res.OutputPath, SupplyFile))
	if errors.Is(err, os.ErrNotExist) {
		level.Warn(logger).Log("msg", "solver wrote no supply results, summary skipped")
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	long, err := datapackage.DecodeCSV(supply)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SupplyFile, err)
	}
	if res.Summary, err = Summary(long, opts.TemporalResolution); err != nil {
		return nil, err
	}
	data, err := datapackage.EncodeCSV(res.Summary)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(res.ScenarioPath, SummaryFile), data, 0o644); err != nil {
		return nil, err
	}
	level.Info(logger).Log("msg", "summary written", "buses", len(res.Summary.Rows))
	return res, nil
}

// Args expands the solver command template. When no emission limit is set,
// the {emission_limit} argument is dropped together with a flag right before
// it.
func Args(opts Options, input, output string) []string {
	limit := ""
	if opts.EmissionLimit != nil {
		limit = strconv.FormatFloat(*opts.EmissionLimit, 'g', -1, 64)
	}
	r := strings.NewReplacer(
		"{input}", input,
		"{output}", output,
		"{solver}", opts.Solver,
		"{emission_limit}", limit,
	)
	var args []string
	for _, f := range strings.Fields(opts.Command) {
		if f == "{emission_limit}" && opts.EmissionLimit == nil {
			if n := len(args); n > 0 && strings.HasPrefix(args[n-1], "-") {
				args = args[:n-1]
			}
			continue
		}
		args = append(args, r.Replace(f))
	}
	return args
}

func solve(ctx context.Context, opts Options, res *Result, logger log.Logger) error {
	args := Args(opts, res.InputPath, res.OutputPath)
	if len(args) == 0 {
		return fmt.Errorf("solver command %q is empty", opts.Command)
	}
	level.Info(logger).Log("msg", "running solver", "cmd", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = log.NewStdlibAdapter(level.Info(log.With(logger, "stream", "stdout")))
	cmd.Stderr = log.NewStdlibAdapter(level.Warn(log.With(logger, "stream", "stderr")))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("solver %s: %w", args[0], err)
	}
	return nil
}

// writeModelStats merges the solver's own statistics, when present, with the
// run settings.
func writeModelStats(res *Result, opts Options) error {
	stats := map[string]interface{}{}
	data, err := os.ReadFile(filepath.Join(res.OutputPath, ModelStatsFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &stats); err != nil {
			return fmt.Errorf("solver %s: %w", ModelStatsFile, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	delete(stats, "solver")
	if problem, ok := stats["problem"].(map[string]interface{}); ok {
		delete(problem, "Sense")
	}
	stats["temporal_resolution"] = opts.TemporalResolution
	stats["emission_limit"] = opts.EmissionLimit

	out, err := json.MarshalIndent(stats, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(res.ScenarioPath, ModelStatsFile), append(out, '\n'), 0o644)
}

func hasFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
