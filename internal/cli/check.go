package cli

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/factbot/internal/llm"
	"github.com/ppiankov/factbot/internal/logging"
	"github.com/ppiankov/factbot/internal/pipeline"
	"github.com/ppiankov/factbot/internal/usage"
)

// cliUser is the ledger account used for one-shot requests
const cliUser = "cli"

var (
	checkMode    string
	checkTimeout time.Duration
	checkJSON    bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <statement|url>...",
	Short: "Run a single fact check from the command line",
	Long: `Check sends one request to the search model, the same way the bot
does, and prints the answer followed by the source reliability report.

Modes:
  auto     links are analyzed as articles, anything else as a statement
  fact     check a single statement
  article  analyze the article behind a link
  text     analyze pasted article text
  deep     run a deep research on the topic

Example:
  factbot check "The Great Wall of China is visible from space"
  factbot check https://example.com/story
  factbot check --mode deep "microplastics in drinking water"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkMode, "mode", "auto", "request mode (auto, fact, article, text, deep)")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 15*time.Minute, "overall request timeout")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the source report as JSON instead of the answer")
}

func runCheck(cmd *cobra.Command, args []string) error {
	input := strings.Join(args, " ")

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if cfg.Perplexity.APIKey == "" {
		return fmt.Errorf("perplexity API key is not set (PERPLEXITY_API_KEY)")
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	searcher, err := llm.NewSearcher(cfg.Perplexity)
	if err != nil {
		return err
	}

	// No quota for the operator
	cfg.Usage.DailyLimit = math.MaxInt32
	ledger := usage.NewLedger(cfg.Usage)
	ledger.Credit(cliUser, math.MaxInt32/2)

	service := pipeline.NewService(cfg, searcher, ledger, nil, &logger)

	ctx, cancel := context.WithTimeout(commandContext(cmd), checkTimeout)
	defer cancel()

	var result *pipeline.Result
	switch strings.ToLower(checkMode) {
	case "auto", "":
		if pipeline.IsArticleLink(input) {
			result, err = service.AnalyzeArticle(ctx, cliUser, input)
		} else {
			result, err = service.CheckFact(ctx, cliUser, input)
		}
	case "fact":
		result, err = service.CheckFact(ctx, cliUser, input)
	case "article":
		result, err = service.AnalyzeArticle(ctx, cliUser, input)
	case "text":
		result, err = service.AnalyzeText(ctx, cliUser, input)
	case "deep":
		result, err = service.DeepResearch(ctx, cliUser, input, "")
	default:
		return fmt.Errorf("unknown mode: %s (supported: auto, fact, article, text, deep)", checkMode)
	}
	if err != nil {
		return err
	}

	if checkJSON {
		return encodeJSON(cmd.OutOrStdout(), result.Report)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Text)
	return err
}
