package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func fitCmd(a *app) *cobra.Command {
	var (
		featuresPath string
		labelsPath   string
		maskPath     string
		modelPath    string
	)
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a learner and save its mapping",
		Long: `Fit reads a feature CSV and a label-distribution CSV. Blank or "?" label
cells are treated as unobserved; --mask adds an explicit 0/1 mask.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			x, y, mask, err := a.readLabels(featuresPath, labelsPath, maskPath, a.rng())
			if err != nil {
				return err
			}

			l, err := newLearner(a.cfg, a.cfg.Algorithm, a.logger, a.collector)
			if err != nil {
				return err
			}
			if err := fit(cmd.Context(), l, x, y, mask); err != nil {
				return fmt.Errorf("%s fit: %w", a.cfg.Algorithm, err)
			}

			if modelPath != "" {
				s, ok := l.(saver)
				if !ok {
					return fmt.Errorf("%s models cannot be saved", a.cfg.Algorithm)
				}
				if err := saveModel(modelPath, s); err != nil {
					return err
				}
				a.logger.Info().Str("path", modelPath).Msg("model saved")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(l.GetStats())
		},
	}

	cmd.Flags().StringVarP(&featuresPath, "features", "x", "", "feature CSV (n×d)")
	cmd.Flags().StringVarP(&labelsPath, "labels", "y", "", "label distribution CSV (n×c)")
	cmd.Flags().StringVarP(&maskPath, "mask", "m", "", "optional 0/1 observation mask CSV (n×c)")
	cmd.Flags().StringVarP(&modelPath, "model", "o", "", "write the fitted model here")
	_ = cmd.MarkFlagRequired("features")
	_ = cmd.MarkFlagRequired("labels")
	return cmd
}

func saveModel(path string, s saver) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return s.Save(f)
}
