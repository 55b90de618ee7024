package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bubblemap/server/internal/view"
)

var (
	exportDataset string
	exportOutput  string
)

func init() {
	exportCmd.Flags().StringVar(&exportDataset, "dataset", "", "Dataset ID (default: the configured default dataset)")
	exportCmd.Flags().StringVarP(&exportOutput, "out", "o", "", "Output file path (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the interactive page of a dataset as a standalone HTML file",
	Long: `Build one dataset and write its interactive page. The page embeds the
bubble table and needs no server; filtering, zoom and selection run in the browser.

Examples:
  bubblemap export --out bubbles.html
  bubblemap export --dataset questions --out questions.html`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	datasetID := exportDataset
	if datasetID == "" {
		datasetID = cfg.Data.DefaultDataset
	}

	dataset, err := buildDataset(cfg, datasetID)
	if err != nil {
		return err
	}

	opts := pageOptions(cfg, datasetID)
	opts.APIBase = ""
	page, err := view.GeneratePage(dataset, opts)
	if err != nil {
		return fmt.Errorf("generating HTML: %w", err)
	}

	if exportOutput == "" {
		_, err := cmd.OutOrStdout().Write(page)
		return err
	}
	if err := os.WriteFile(exportOutput, page, 0644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bubbles to %s\n", dataset.Len(), exportOutput)
	return nil
}
