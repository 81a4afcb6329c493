package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-incomplete-ldl/dataset"
	"github.com/n0madic/go-incomplete-ldl/telemetry"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	cfg        Config
	logger     zerolog.Logger
	collector  *telemetry.Collector
	runID      string

	// Flag overrides, applied only when set on the command line.
	algorithm     string
	maxIterations int
	logLevel      string
	metricsFile   string
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return newRootCmd(os.Stdout).ExecuteContext(ctx)
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ldlfit",
		Short:         "Incomplete label distribution learning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.flushMetrics()
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&a.algorithm, "algorithm", "a", "", "incomldl, winldl or aaknn (overrides config)")
	flags.IntVar(&a.maxIterations, "max-iterations", 0, "ADMM iteration budget (overrides config)")
	flags.StringVar(&a.logLevel, "log-level", "", "trace, debug, info, warn or error (overrides config)")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(fitCmd(a), predictCmd(a), evalCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("algorithm") {
		cfg.Algorithm = a.algorithm
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = a.maxIterations
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File = a.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	var w io.Writer = os.Stderr
	switch cfg.Log.Format {
	case "console":
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	case "auto":
		if term.IsTerminal(int(os.Stderr.Fd())) {
			w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		}
	}

	a.runID = uuid.NewString()
	a.logger = zerolog.New(w).Level(level).With().
		Timestamp().
		Str("run_id", a.runID).
		Str("command", cmd.Name()).
		Logger()
	log.Logger = a.logger
	a.collector = telemetry.NewCollector(cfg.Metrics.Namespace)
	return nil
}

func (a *app) flushMetrics() error {
	if a.collector == nil || a.cfg.Metrics.File == "" {
		return nil
	}
	if err := a.collector.WriteTextfile(a.cfg.Metrics.File); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	a.logger.Debug().Str("path", a.cfg.Metrics.File).Msg("metrics written")
	return nil
}

func (a *app) rng() *rand.Rand {
	return rand.New(rand.NewSource(a.cfg.Data.Seed))
}

// readLabels reads features and labels and derives the mask from blank cells
// and the optional mask file, then hides a further random share of entries if
// data.missing_rate is set.
func (a *app) readLabels(featuresPath, labelsPath, maskPath string, rng *rand.Rand) (x, y, mask *mat.Dense, err error) {
	x, _, err = dataset.ReadCSVFile(featuresPath, a.cfg.Data.Header)
	if err != nil {
		return nil, nil, nil, err
	}
	raw, _, err := dataset.ReadCSVFile(labelsPath, a.cfg.Data.Header)
	if err != nil {
		return nil, nil, nil, err
	}
	y, mask = dataset.MaskFromLabels(raw)

	if maskPath != "" {
		m, _, err := dataset.ReadCSVFile(maskPath, a.cfg.Data.Header)
		if err != nil {
			return nil, nil, nil, err
		}
		mr, mc := m.Dims()
		yr, yc := y.Dims()
		if mr != yr || mc != yc {
			return nil, nil, nil, fmt.Errorf("mask is %dx%d, labels are %dx%d", mr, mc, yr, yc)
		}
		mask.MulElem(mask, m)
	}

	if rate := a.cfg.Data.MissingRate; rate > 0 {
		n, c := y.Dims()
		hide, err := dataset.RandomMask(rng, n, c, rate)
		if err != nil {
			return nil, nil, nil, err
		}
		mask.MulElem(mask, hide)
	}

	n, c := y.Dims()
	a.logger.Info().
		Str("features", featuresPath).
		Str("labels", labelsPath).
		Int("samples", n).
		Int("labels_count", c).
		Float64("observed_fraction", mat.Sum(mask)/float64(n*c)).
		Msg("data loaded")
	return x, y, mask, nil
}
