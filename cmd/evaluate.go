package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simforcing/forcing/forcing"
	"github.com/simforcing/forcing/forcing/outputdir"

	// Register the NetCDF reader and the resamplers
	_ "github.com/simforcing/forcing/forcing/ncsource"
	_ "github.com/simforcing/forcing/forcing/regrid"
)

const valuesFile = "values.csv"

var (
	configPath  string    // Path to the YAML run configuration
	evalTimes   []float64 // Explicit evaluation times in seconds
	evalFrom    float64   // First time of a regular schedule
	evalTo      float64   // Last time of a regular schedule
	evalStep    float64   // Step of a regular schedule
	outBase     string    // Base directory for versioned output folders
	dataDir     string    // Overrides data_dir of the run config
	analyticArg float64   // Scaling argument forwarded to analytic inputs
	removeStale bool      // Remove the base directory instead of versioning
)

var evaluateCmd = &cobra.Command{
	Use:          "evaluate",
	Short:        "Evaluate every input of a run configuration at a list of times",
	SilenceUsage: true,
	RunE:         runEvaluate,
}

// runEvaluate returns errors instead of exiting so the output file and inputs are
// closed on every path.
func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := forcing.LoadRunConfig(configPath)
	if err != nil {
		return err
	}
	if dir := envOr(envDataDir, ""); dir != "" && !cmd.Flags().Changed("data-dir") && cfg.DataDir == "" {
		cfg.DataDir = dir
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = dataDir
	}

	times, err := evaluationTimes(evalTimes, evalFrom, evalTo, evalStep)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	base := outBase
	if base == "" {
		base = envOr(envOutputDir, "")
	}
	if base != "" {
		style := outputdir.ActiveLink
		if removeStale {
			style = outputdir.RemovePreexisting
		}
		dir, err := outputdir.Generate(base, style)
		if err != nil {
			return err
		}
		f, err := os.Create(filepath.Join(dir, valuesFile))
		if err != nil {
			return fmt.Errorf("creating %s: %w", valuesFile, err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				logrus.Errorf("closing %s: %v", f.Name(), err)
			}
		}()
		out = f
		logrus.Infof("writing values to %s", f.Name())
	}

	var extra []any
	if cmd.Flags().Changed("arg") {
		extra = append(extra, analyticArg)
	}
	return evaluateRun(cfg, times, out, extra...)
}

// evaluationTimes returns explicit when given, else from, from+step, ... up to to.
func evaluationTimes(explicit []float64, from, to, step float64) ([]float64, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	if step <= 0 {
		return nil, fmt.Errorf("--step must be > 0, got %g", step)
	}
	if to < from {
		return nil, fmt.Errorf("--to (%g) must not be before --from (%g)", to, from)
	}
	n := int(math.Floor((to-from)/step+1e-9)) + 1
	times := make([]float64, n)
	for i := range times {
		times[i] = from + float64(i)*step
	}
	return times, nil
}

// evaluateRun builds every input of cfg, evaluates them at times and writes one CSV row
// per (time, input) with one column per target point.
func evaluateRun(cfg *forcing.RunConfig, times []float64, w io.Writer, args ...any) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ref, err := forcing.ParseDate(cfg.ReferenceDate)
	if err != nil {
		return err
	}

	env := forcing.BuildEnv{
		ReferenceDate: ref,
		TStart:        cfg.TStart,
		CacheCapacity: cfg.CacheCapacity,
		DataDir:       cfg.DataDir,
		Functions:     resolveFunction,
	}
	if forcing.OpenSourceFunc != nil {
		env.Registry = forcing.NewSourceRegistry(forcing.OpenSourceFunc)
	}
	if len(cfg.Target) > 0 && forcing.NewResamplerFunc != nil {
		if env.Resampler, err = forcing.NewResamplerFunc(cfg.Regridder, cfg.Target); err != nil {
			return err
		}
	}

	inputs := make([]forcing.TimeVaryingInput, 0, len(cfg.Inputs))
	defer func() {
		for i, in := range inputs {
			if err := in.Close(); err != nil {
				logrus.Warnf("closing input %q: %v", cfg.Inputs[i].Name, err)
			}
		}
	}()
	for _, ic := range cfg.Inputs {
		in, err := forcing.BuildInput(ic, env)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
	}

	width := len(cfg.Target)
	if width == 0 {
		width = 1
	}
	cw := csv.NewWriter(w)
	header := []string{"time", "date", "input"}
	for i := 0; i < width; i++ {
		header = append(header, "p"+strconv.Itoa(i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	dest := make([]float64, width)
	row := make([]string, 0, len(header))
	for _, t := range times {
		date := ref.Add(secondsToDuration(cfg.TStart + t))
		for i, in := range inputs {
			if err := in.Evaluate(dest, t, args...); err != nil {
				return fmt.Errorf("input %q at t=%g: %w", cfg.Inputs[i].Name, t, err)
			}
			row = row[:0]
			row = append(row,
				strconv.FormatFloat(t, 'f', -1, 64),
				date.Format("2006-01-02T15:04:05Z07:00"),
				cfg.Inputs[i].Name)
			for _, v := range dest {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func init() {
	evaluateCmd.Flags().StringVar(&configPath, "config", "run.yaml", "Path to the YAML run configuration")
	evaluateCmd.Flags().Float64SliceVar(&evalTimes, "times", nil, "Comma-separated evaluation times in seconds (overrides --from/--to/--step)")
	evaluateCmd.Flags().Float64Var(&evalFrom, "from", 0, "First evaluation time in seconds")
	evaluateCmd.Flags().Float64Var(&evalTo, "to", 0, "Last evaluation time in seconds")
	evaluateCmd.Flags().Float64Var(&evalStep, "step", 3600, "Step between evaluation times in seconds")
	evaluateCmd.Flags().StringVar(&outBase, "out", "", "Base directory for versioned output folders (default: $"+envOutputDir+", else stdout)")
	evaluateCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory relative input files resolve against (default: data_dir of the config, else $"+envDataDir+")")
	evaluateCmd.Flags().Float64Var(&analyticArg, "arg", 1, "Scaling argument passed to analytic inputs")
	evaluateCmd.Flags().BoolVar(&removeStale, "remove-preexisting", false, "Delete the output base directory instead of adding a new version")
}
