package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bubblemap/server/internal/config"
	"github.com/bubblemap/server/internal/demo"
)

var (
	demoOutput   string
	demoFeatures int
	demoExamples int
	demoSeed     int64
)

func init() {
	defaults := demo.DefaultOptions()
	demoCmd.Flags().StringVarP(&demoOutput, "out", "o", "./feature_viz", "Output directory")
	demoCmd.Flags().IntVar(&demoFeatures, "features", defaults.Features, "Number of features")
	demoCmd.Flags().IntVar(&demoExamples, "examples", defaults.Examples, "Number of examples")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", defaults.Seed, "Random seed")
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Write a synthetic dataset",
	Long: `Write synthetic texts, activations, labels and coordinates in the formats
that serve and export read, so the viewer can be tried without real data.

Coordinates are written in bubble order and carry a feature index, so both
positional and keyed binding line up. The aggregation settings of the loaded
configuration are used to compute that order.

Examples:
  bubblemap demo
  bubblemap demo --out /tmp/viz --features 800 --examples 5000 --seed 7`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(demoOutput, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	ds := config.DefaultDatasetConfig()
	ds.Dir = demoOutput

	opts := demo.DefaultOptions()
	opts.Features = demoFeatures
	opts.Examples = demoExamples
	opts.Seed = demoSeed
	opts.Aggregate = aggregateOptions(cfg)

	res, err := demo.Generate(datasetPaths(ds), opts)
	if err != nil {
		return fmt.Errorf("generating demo dataset: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d examples x %d features (%d nonzeros, %d labels, %d bubbles) to %s\n",
		res.Examples, res.Features, res.Nonzeros, res.Labels, res.Bubbles, demoOutput)
	return nil
}
