package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/factbot/internal/bot"
	"github.com/ppiankov/factbot/internal/cache"
	"github.com/ppiankov/factbot/internal/discord"
	"github.com/ppiankov/factbot/internal/llm"
	"github.com/ppiankov/factbot/internal/logging"
	"github.com/ppiankov/factbot/internal/metrics"
	"github.com/ppiankov/factbot/internal/model"
	"github.com/ppiankov/factbot/internal/payment"
	"github.com/ppiankov/factbot/internal/pipeline"
	"github.com/ppiankov/factbot/internal/server"
	"github.com/ppiankov/factbot/internal/usage"
	"github.com/ppiankov/factbot/internal/util"
)

const shutdownTimeout = 15 * time.Second

var (
	httpAddr  string
	noHTTP    bool
	logLevel  string
	paymentID string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Discord bot",
	Long: `Serve connects to Discord and answers users:
- Analyze articles by link or pasted text
- Check single statements
- Run deep research on the last topic
- Track daily quotas, balances, promo codes and payments

Health, metrics and the payment webhook are served over HTTP.

Example:
  DISCORD_TOKEN=... PERPLEXITY_API_KEY=... factbot serve
  factbot serve --http-addr :9090 --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides http.addr)")
	serveCmd.Flags().BoolVar(&noHTTP, "no-http", false, "disable the health/metrics/webhook server")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&paymentID, "payment-provider", "", "payment provider (stub, yookassa)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyServeFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, &logger)
	if err != nil {
		return err
	}
	return a.run(ctx)
}

func applyServeFlags(cfg *model.Config) {
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if noHTTP {
		cfg.HTTP.Enabled = false
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if paymentID != "" {
		cfg.Payment.Provider = paymentID
	}
}

// app holds the wired components of a running bot
type app struct {
	logger  *zerolog.Logger
	ledger  *usage.Ledger
	discord *discord.Client
	server  *server.Server
	cron    *cron.Cron
}

func newApp(cfg *model.Config, logger *zerolog.Logger) (*app, error) {
	m := metrics.New()
	ledger := usage.NewLedger(cfg.Usage)

	searcher, err := llm.NewSearcher(cfg.Perplexity)
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.Perplexity.HTTPProxy, cfg.Perplexity.HTTPSProxy, cfg.Perplexity.NoProxy)
	httpClient := &http.Client{Timeout: 30 * time.Second, Transport: transport}
	gateway, err := payment.NewGateway(cfg.Payment, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create payment gateway: %w", err)
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return nil, err
	}

	service := pipeline.NewService(cfg, searcher, ledger, m, logger)
	sessions := bot.NewSessionStore(cache.NewMemoryCache(cfg.Bot.SessionTTL, 10*time.Minute), cfg.Bot.SessionTTL)
	b := bot.New(bot.ConfigFromModel(cfg), service, ledger, gateway, sessions, discord.NewMessenger(session), logger)

	// Only a real provider can confirm payments, so the stub gets no webhook
	var webhook http.Handler
	if verifier, ok := gateway.(payment.Verifier); ok {
		payments := payment.NewNotificationHandler(verifier, ledger, cache.NewMemoryCache(0, time.Hour), m, logger)
		payments.OnCredit = func(userID string, requests int, acc model.Account) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			b.NotifyCredit(ctx, userID, requests, acc)
		}
		webhook = payments
	}

	a := &app{
		logger:  logger,
		ledger:  ledger,
		discord: discord.NewClient(session, b, logger),
		cron:    cron.New(),
	}

	if cfg.HTTP.Enabled {
		a.server = server.New(cfg.HTTP.Addr, server.Options{
			Metrics: m,
			Webhook: webhook,
			Users:   ledger.Len,
			Logger:  logger,
		})
	}

	if err := a.scheduleReset(cfg.Usage.ResetSchedule); err != nil {
		return nil, err
	}

	logger.Info().
		Str("search_model", cfg.Perplexity.Model).
		Str("payment_provider", gateway.Name()).
		Str("discord_token", util.MaskSecret(cfg.Discord.Token)).
		Msg("factbot configured")

	return a, nil
}

// scheduleReset zeroes the daily counters on schedule. The ledger also
// resets lazily, so a missed run only delays the reset until next use.
func (a *app) scheduleReset(spec string) error {
	if spec == "" {
		return nil
	}
	_, err := a.cron.AddFunc(spec, func() {
		n := a.ledger.ResetDaily()
		a.logger.Info().Int("users", n).Msg("daily limits reset")
	})
	if err != nil {
		return fmt.Errorf("invalid reset schedule %q: %w", spec, err)
	}
	return nil
}

func (a *app) run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.server != nil {
		go func() {
			if err := a.server.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	a.cron.Start()

	if err := a.discord.Start(ctx); err != nil {
		a.stop()
		return err
	}
	a.logger.Info().Msg("bot is running, press Ctrl+C to stop")

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down")
	case runErr = <-errCh:
		a.logger.Error().Err(runErr).Msg("http server stopped")
	}

	if err := a.discord.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close Discord connection")
	}
	a.stop()
	return runErr
}

func (a *app) stop() {
	<-a.cron.Stop().Done()

	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn().Err(err).Msg("http server shutdown")
	}
}
