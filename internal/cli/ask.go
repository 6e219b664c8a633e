package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"istechat/answerer/answerer"
)

var (
	askTopK int
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
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

		question := strings.Join(args, " ")
		answer, err := svc.Predict(cmd.Context(), question, askTopK)
		if err != nil {
			return err
		}
		if askJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(answer)
		}
		printAnswer(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "Maximum similar questions (default: search.topK)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func printAnswer(w io.Writer, a answerer.GeneratedAnswer) {
	fmt.Fprintln(w, a.Text)
	fmt.Fprintln(w)
	if a.Category != nil {
		category := *a.Category
		if a.Subcategory != nil {
			category += " / " + *a.Subcategory
		}
		fmt.Fprintf(w, "Kategori: %s\n", category)
	}
	fmt.Fprintf(w, "Güven:    %.3f\n", a.Confidence)
	if len(a.SimilarQuestions) > 0 {
		fmt.Fprintln(w, "Benzer sorular:")
		for _, q := range a.SimilarQuestions {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}
	if len(a.SuggestedLinks) > 0 {
		fmt.Fprintln(w, "Bağlantılar:")
		for _, l := range a.SuggestedLinks {
			fmt.Fprintf(w, "  - %s\n", l)
		}
	}
}
