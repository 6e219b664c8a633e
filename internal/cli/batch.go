package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"istechat/answerer/answerer"
)

type batchOptions struct {
	inputPath  string
	outputPath string
	outputDir  string
	inputOpts  answerer.InputParseOptions
	stdout     bool
}

var batchOpts batchOptions

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Answer every question in a CSV/TSV/text file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := batchOpts
		opts.inputPath = strings.TrimSpace(opts.inputPath)
		opts.outputPath = strings.TrimSpace(opts.outputPath)
		opts.outputDir = strings.TrimSpace(opts.outputDir)
		if opts.inputPath == "" {
			return errors.New("missing required --input file")
		}

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logger.Sync()

		records, err := answerer.ParseInputRecordsWithOptions(opts.inputPath, opts.inputOpts)
		if err != nil {
			return fmt.Errorf("read input records: %w", err)
		}
		if len(records) == 0 {
			return errors.New("input file does not contain any questions")
		}

		svc, err := loadService(cfg, logger)
		if err != nil {
			return fmt.Errorf("load answer engine: %w", err)
		}
		defer svc.Close()

		texts := make([]string, len(records))
		for i, rec := range records {
			texts[i] = rec.Question
		}
		start := time.Now()
		answers, err := svc.PredictAll(cmd.Context(), texts)
		if err != nil {
			return fmt.Errorf("answer: %w", err)
		}
		logger.Info("batch finished", zap.Int("questions", len(records)), zap.Duration("elapsed", time.Since(start)))

		outputPath, err := resolveOutputPath(opts.outputPath, opts.outputDir)
		if err != nil {
			return err
		}
		if err := writeResultCSV(outputPath, records, answers); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sonuçlar %s dosyasına kaydedildi\n", outputPath)

		if opts.stdout {
			printSummary(cmd.OutOrStdout(), records, answers)
		}
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchOpts.inputPath, "input", "", "CSV/TSV/text file containing questions")
	f.StringVar(&batchOpts.outputPath, "output", "", "CSV file to write results (default uses --output-dir/result_*.csv)")
	f.StringVar(&batchOpts.outputDir, "output-dir", "csv", "Directory where result CSVs are written when --output is omitted")
	f.StringVar(&batchOpts.inputOpts.QuestionColumn, "question-column", "", "Column name or #index holding the questions")
	f.StringVar(&batchOpts.inputOpts.IndexColumn, "index-column", "", "Column name or #index holding the row id")
	f.BoolVar(&batchOpts.stdout, "stdout", false, "Print a summary of the answers to STDOUT")
	rootCmd.AddCommand(batchCmd)
}

func resolveOutputPath(path, dir string) (string, error) {
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve output path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		return absPath, nil
	}
	if dir == "" {
		dir = "csv"
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	filename := fmt.Sprintf("result_%s.csv", time.Now().Format("20060102150405"))
	return filepath.Join(absDir, filename), nil
}

func writeResultCSV(path string, records []answerer.InputRecord, answers []answerer.GeneratedAnswer) error {
	if len(records) != len(answers) {
		return fmt.Errorf("records/answers length mismatch: %d vs %d", len(records), len(answers))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	header := []string{"Sıra", "Soru", "Cevap", "Kategori", "Alt kategori", "Güven", "Benzer sorular", "Bağlantılar"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		a := answers[i]
		row := []string{
			rec.Index,
			rec.Question,
			a.Text,
			deref(a.Category),
			deref(a.Subcategory),
			fmt.Sprintf("%.3f", a.Confidence),
			strings.Join(a.SimilarQuestions, " | "),
			strings.Join(a.SuggestedLinks, " | "),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush result: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, records []answerer.InputRecord, answers []answerer.GeneratedAnswer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "==== Cevap önizlemesi ====")
	for i, rec := range records {
		a := answers[i]
		fmt.Fprintf(w, "%d. %s\n", i+1, summarizeRecord(rec))
		fmt.Fprintf(w, "    %s (güven=%.3f)\n", summarizeText(a.Text), a.Confidence)
		if len(a.SimilarQuestions) > 0 {
			fmt.Fprintf(w, "    benzer: %s\n", strings.Join(a.SimilarQuestions, "; "))
		}
	}
}

func summarizeRecord(rec answerer.InputRecord) string {
	text := summarizeText(rec.Question)
	if idx := strings.TrimSpace(rec.Index); idx != "" {
		return "#" + idx + " " + text
	}
	return text
}

func summarizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "(boş metin)"
	}
	runeText := []rune(text)
	if len(runeText) > 60 {
		return string(runeText[:60]) + "…"
	}
	return text
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
