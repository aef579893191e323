package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/factbot/internal/model"
	"github.com/ppiankov/factbot/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Rank the sources of many files in parallel",
	Long: `Batch ranks the sources cited in many text files concurrently:
- Read each file (answers, articles, exported chats)
- Extract and score every cited URL
- Print a one-line summary per file
- Optionally write a JSON report per file

Example:
  factbot batch answers/*.txt
  factbot batch answers/*.txt --concurrency 8 --output-dir ./reports`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "write a JSON report per file to this directory")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), batchTimeout)
	defer cancel()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Factbot Batch Source Ranking\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Files:        %d\n", len(args))
	fmt.Fprintf(stderr, "  Workers:      %d\n", concurrency)
	if outputDir != "" {
		fmt.Fprintf(stderr, "  Output dir:   %s\n", outputDir)
	}
	fmt.Fprintf(stderr, "\n")

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	processor := worker.NewBatchProcessor(newRanker(cfg.Sources), concurrency)
	results := processor.ProcessFiles(ctx, args)

	var failures int
	var totals model.BucketCounts
	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		report := result.Report
		totals.High += report.Counts.High
		totals.Medium += report.Counts.Medium
		totals.Biased += report.Counts.Biased
		totals.Low += report.Counts.Low

		fmt.Fprintln(cmd.OutOrStdout(), summaryLine(result.Path, *report))

		if outputDir != "" {
			path := filepath.Join(outputDir, sanitizeFilename(result.Path)+".json")
			if err := writeJSON(path, report); err != nil {
				fmt.Fprintf(stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			}
		}
	}

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Batch Complete\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Files:     %d\n", len(results))
	fmt.Fprintf(stderr, "  Success:   %d\n", len(results)-failures)
	fmt.Fprintf(stderr, "  Failures:  %d\n", failures)
	fmt.Fprintf(stderr, "  Sources:   %d high, %d medium, %d biased, %d low\n", totals.High, totals.Medium, totals.Biased, totals.Low)
	fmt.Fprintf(stderr, "\n")

	if failures > 0 && failures == len(results) {
		return fmt.Errorf("all %d files failed", failures)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func summaryLine(path string, r model.SourceReport) string {
	return fmt.Sprintf("✓ %s: %d sources (%d high, %d medium, %d biased, %d low)",
		path, r.TotalFound, r.Counts.High, r.Counts.Medium, r.Counts.Biased, r.Counts.Low)
}

func writeJSON(path string, v interface{}) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return encodeJSON(f, v)
}

func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename turns a path into a flat file name
func sanitizeFilename(s string) string {
	s = filepath.Clean(s)
	s = strings.TrimPrefix(s, "."+string(filepath.Separator))
	s = strings.TrimLeft(s, `./\`)
	s = filenameReplacer.Replace(s)

	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	if s == "" {
		s = "report"
	}
	return s
}
