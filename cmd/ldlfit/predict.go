package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-incomplete-ldl/dataset"
	"github.com/n0madic/go-incomplete-ldl/ldl"
)

func predictCmd(a *app) *cobra.Command {
	var (
		featuresPath string
		modelPath    string
		outPath      string
		topK         int
		threshold    float64
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict label distributions with a saved model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if topK > 0 && threshold > 0 {
				return fmt.Errorf("--top-k and --threshold are mutually exclusive")
			}

			f, err := os.Open(modelPath)
			if err != nil {
				return err
			}
			l, err := loadLearner(f, a.cfg.Algorithm, a.logger)
			f.Close()
			if err != nil {
				return fmt.Errorf("load %s: %w", modelPath, err)
			}

			x, _, err := dataset.ReadCSVFile(featuresPath, a.cfg.Data.Header)
			if err != nil {
				return err
			}
			pred, err := l.Predict(x)
			if err != nil {
				return err
			}

			var out mat.Matrix = pred
			switch {
			case topK > 0:
				out, err = ldl.BinarizeTopK(pred, topK)
			case threshold > 0:
				out, err = ldl.BinarizeThreshold(pred, threshold)
			}
			if err != nil {
				return err
			}

			n, _ := pred.Dims()
			a.logger.Info().Int("samples", n).Str("model", modelPath).Msg("prediction done")
			if outPath == "" {
				return dataset.WriteCSV(cmd.OutOrStdout(), out, nil)
			}
			return dataset.WriteCSVFile(outPath, out, nil)
		},
	}

	cmd.Flags().StringVarP(&featuresPath, "features", "x", "", "feature CSV (m×d)")
	cmd.Flags().StringVarP(&modelPath, "model", "i", "", "model written by fit")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "prediction CSV (default stdout)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "emit 0/1 labels marking the k most described labels")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "emit 0/1 labels covering this cumulative description mass")
	_ = cmd.MarkFlagRequired("features")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
