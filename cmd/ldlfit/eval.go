package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/n0madic/go-incomplete-ldl/aaknn"
	"github.com/n0madic/go-incomplete-ldl/dataset"
	"github.com/n0madic/go-incomplete-ldl/incomldl"
	"github.com/n0madic/go-incomplete-ldl/metrics"
	"github.com/n0madic/go-incomplete-ldl/prox"
	"github.com/n0madic/go-incomplete-ldl/winldl"
)

func evalCmd(a *app) *cobra.Command {
	var (
		featuresPath string
		labelsPath   string
		maskPath     string
		algorithms   []string
		measures     []string
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Compare learners on a held-out split",
		Long: `Eval splits the samples into train and test sets, fits every requested
learner on the masked training labels and scores its predictions against the
fully observed test labels.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng := a.rng()
			x, y, mask, err := a.readLabels(featuresPath, labelsPath, maskPath, rng)
			if err != nil {
				return err
			}
			n, _ := x.Dims()
			train, test, err := dataset.Split(rng, n, a.cfg.Data.TestFraction)
			if err != nil {
				return err
			}
			// The random mask only hides training labels; test labels keep
			// every value present in the file.
			yTest := dataset.Rows(y, test)

			xTrain, yTrain, mTrain := dataset.Rows(x, train), dataset.Rows(y, train), dataset.Rows(mask, train)
			xTest := dataset.Rows(x, test)

			if len(measures) == 0 {
				measures = metrics.Names()
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprint(tw, "algorithm")
			for _, name := range measures {
				fmt.Fprintf(tw, "\t%s", name)
			}
			fmt.Fprintln(tw)

			for _, algorithm := range algorithms {
				l, err := newLearner(a.cfg, algorithm, a.logger, a.collector)
				if err != nil {
					return err
				}
				if err := fit(cmd.Context(), l, xTrain, yTrain, mTrain); err != nil {
					return fmt.Errorf("%s fit: %w", algorithm, err)
				}
				pred, err := l.Predict(xTest)
				if err != nil {
					return err
				}
				// Raw low-rank scores are projected so every learner is
				// scored on distributions.
				if algorithm == incomldl.Algorithm {
					if pred, err = prox.SimplexRows(pred); err != nil {
						return err
					}
				}

				scores, err := metrics.Evaluate(yTest, pred, measures...)
				if err != nil {
					return err
				}
				ev := a.logger.Info().Str("algorithm", algorithm)
				fmt.Fprint(tw, algorithm)
				for _, name := range measures {
					fmt.Fprintf(tw, "\t%.4f", scores[name])
					ev = ev.Float64(name, scores[name])
				}
				fmt.Fprintln(tw)
				ev.Msg("evaluation done")
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&featuresPath, "features", "x", "", "feature CSV (n×d)")
	cmd.Flags().StringVarP(&labelsPath, "labels", "y", "", "label distribution CSV (n×c)")
	cmd.Flags().StringVarP(&maskPath, "mask", "m", "", "optional 0/1 observation mask CSV (n×c)")
	cmd.Flags().StringSliceVar(&algorithms, "algorithms",
		[]string{incomldl.Algorithm, winldl.Algorithm, aaknn.Algorithm}, "learners to compare")
	cmd.Flags().StringSliceVar(&measures, "measures", nil, "measures to report (default all)")
	_ = cmd.MarkFlagRequired("features")
	_ = cmd.MarkFlagRequired("labels")
	return cmd
}
