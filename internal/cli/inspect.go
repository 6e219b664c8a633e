package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"istechat/answerer/answerer"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print what the configured artifacts contain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logger.Sync()

		svc, err := loadService(cfg, logger)
		if err != nil {
			return fmt.Errorf("load answer engine: %w", err)
		}
		defer svc.Close()

		info := svc.Info()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "model:       %s (%s)\n", info.ModelID, cfg.Model.Dir)
		fmt.Fprintf(w, "labels:      %d\n", info.Labels)
		if svc.HasIndex() {
			fmt.Fprintf(w, "index rows:  %d\n", info.IndexedQuestions)
			fmt.Fprintf(w, "vocabulary:  %d\n", info.Vocabulary)
		} else {
			fmt.Fprintln(w, "index:       disabled")
		}
		fmt.Fprintf(w, "top-k:       %d (threshold %.2f)\n", cfg.Search.TopK, cfg.Search.ScoreThreshold)
		if inspectLabels {
			printLabels(w, svc.Catalog())
		}
		return nil
	},
}

var inspectLabels bool

func init() {
	inspectCmd.Flags().BoolVar(&inspectLabels, "labels", false, "List every label with its category")
	rootCmd.AddCommand(inspectCmd)
}

func printLabels(w io.Writer, catalog *answerer.LabelCatalog) {
	for _, id := range catalog.IDs() {
		entry, err := catalog.Resolve(id)
		if err != nil {
			continue
		}
		category := deref(entry.Category)
		if sub := deref(entry.Subcategory); sub != "" {
			category += " / " + sub
		}
		fmt.Fprintf(w, "%4d  %-24s %s\n", id, entry.Label, category)
	}
}
