package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/factbot/internal/model"
	"github.com/ppiankov/factbot/internal/render"
	"github.com/ppiankov/factbot/internal/score"
	"github.com/ppiankov/factbot/internal/validate"
)

var (
	outFormat string
	maxListed int
)

// sourcesCmd represents the sources command
var sourcesCmd = &cobra.Command{
	Use:   "sources [file]",
	Short: "Rank the sources cited in a text",
	Long: `Sources extracts every URL from a text and ranks it by the
reliability of its domain, without calling any external service:
- High: encyclopedias, journals, agencies, wire services
- Medium: mainstream news
- Biased: state media and partisan outlets
- Low: social networks and tabloids

The text is read from the file argument, or from stdin when the
argument is "-" or omitted.

Example:
  factbot sources answer.txt
  pbpaste | factbot sources --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)

	sourcesCmd.Flags().StringVar(&outFormat, "format", "text", "output format (text, json, yaml)")
	sourcesCmd.Flags().IntVar(&maxListed, "max-listed", 0, "max sources listed in text output (0 = all)")
}

func runSources(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	report := newRanker(cfg.Sources).Analyze(text)
	return writeReport(cmd.OutOrStdout(), report, outFormat, maxListed)
}

func newRanker(extra model.SourcesConfig) *score.Ranker {
	table := validate.NewDefaultReputationTable(extra)
	return score.NewRanker(validate.NewReliabilityScorer(table))
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, 10<<20))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}

func writeReport(w io.Writer, report model.SourceReport, format string, listed int) error {
	switch strings.ToLower(format) {
	case "", "text":
		_, err := fmt.Fprintln(w, render.NewFormatter(listed).FormatSourceReport(report))
		return err
	case "json":
		return encodeJSON(w, report)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(report)
	default:
		return fmt.Errorf("unknown format: %s (supported: text, json, yaml)", format)
	}
}
