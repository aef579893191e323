package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ppiankov/factbot/internal/model"
	"github.com/ppiankov/factbot/internal/payment"
	"github.com/ppiankov/factbot/internal/pipeline"
	"github.com/ppiankov/factbot/internal/render"
	"github.com/ppiankov/factbot/internal/usage"
)

// Config holds the dispatcher settings
type Config struct {
	MessageLimit     int
	ProgressInterval time.Duration
	Packages         []model.Package
	Currency         string
	DailyLimit       int
}

// ConfigFromModel extracts the dispatcher settings from the full config
func ConfigFromModel(c *model.Config) Config {
	return Config{
		MessageLimit:     c.Discord.MessageLimit,
		ProgressInterval: c.Bot.ProgressInterval,
		Packages:         c.Payment.Packages,
		Currency:         c.Payment.Currency,
		DailyLimit:       c.Usage.DailyLimit,
	}
}

// Bot dispatches commands, typed messages and button presses.
// It does not depend on a particular chat transport.
type Bot struct {
	service   *pipeline.Service
	ledger    *usage.Ledger
	gateway   payment.Gateway
	sessions  *SessionStore
	messenger Messenger
	config    Config
	logger    *zerolog.Logger
}

// New creates a dispatcher
func New(config Config, service *pipeline.Service, ledger *usage.Ledger, gateway payment.Gateway, sessions *SessionStore, messenger Messenger, logger *zerolog.Logger) *Bot {
	if config.MessageLimit <= 0 {
		config.MessageLimit = 2000
	}
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = 30 * time.Second
	}
	if len(config.Packages) == 0 {
		config.Packages = model.DefaultPackages()
	}
	if config.Currency == "" {
		config.Currency = "RUB"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Bot{
		service:   service,
		ledger:    ledger,
		gateway:   gateway,
		sessions:  sessions,
		messenger: messenger,
		config:    config,
		logger:    logger,
	}
}

// HandleText handles a typed message. Messages starting with "/" are commands.
func (b *Bot) HandleText(ctx context.Context, conv Conversation, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	b.touch(conv)

	if strings.HasPrefix(text, "/") {
		command, _, _ := strings.Cut(text, " ")
		return b.HandleCommand(ctx, conv, strings.ToLower(strings.TrimPrefix(command, "/")))
	}

	b.logger.Debug().Str("user_id", conv.User.ID).Str("text", truncate(text, 100)).Msg("message received")

	sess := b.sessions.Get(conv.User.ID)
	switch {
	case sess.WaitingPromo:
		return b.applyPromo(ctx, conv, text)
	case sess.Mode == ModeAnalyzeArticle:
		return b.analyze(ctx, conv, text)
	case sess.Mode == ModeCheckFact:
		return b.checkFact(ctx, conv, text)
	case pipeline.IsArticleLink(text):
		return b.analyze(ctx, conv, text)
	default:
		return b.showMainMenu(ctx, conv)
	}
}

// HandleCommand handles /start, /help and /promo
func (b *Bot) HandleCommand(ctx context.Context, conv Conversation, command string) error {
	switch command {
	case "start":
		acc := b.ledger.Register(conv.User.ID, conv.User.Name)
		b.logger.Info().Str("user_id", conv.User.ID).Str("username", conv.User.Name).Msg("user started the bot")
		return b.reply(ctx, conv, welcomeMessage(conv.User.Name, acc))
	case "help":
		return b.reply(ctx, conv, b.helpMessage())
	case "promo":
		return b.startPromo(ctx, conv)
	default:
		return b.reply(ctx, conv, errorMessage("Unknown command"))
	}
}

// HandleAction handles a button press
func (b *Bot) HandleAction(ctx context.Context, conv Conversation, action string) error {
	b.touch(conv)
	b.logger.Debug().Str("user_id", conv.User.ID).Str("action", action).Msg("button pressed")

	switch action {
	case ActionAnalyzeArticle:
		b.setMode(conv.User.ID, ModeAnalyzeArticle)
		return b.reply(ctx, conv, articlePrompt())
	case ActionCheckFact:
		b.setMode(conv.User.ID, ModeCheckFact)
		return b.reply(ctx, conv, factPrompt())
	case ActionUserStats:
		return b.reply(ctx, conv, statsMessage(b.ledger.Stats(conv.User.ID)))
	case ActionBuyRequests:
		return b.reply(ctx, conv, packagesMenu(b.config.Packages, b.config.Currency))
	case ActionPromoCode:
		return b.startPromo(ctx, conv)
	case ActionHelp:
		return b.reply(ctx, conv, b.helpMessage())
	case ActionMainMenu:
		return b.showMainMenu(ctx, conv)
	case ActionDeepResearch:
		return b.offerDeepResearch(ctx, conv)
	case ActionConfirmDeepResearch:
		return b.runDeepResearch(ctx, conv)
	}

	if strings.HasPrefix(action, ActionBuyPrefix) {
		return b.buy(ctx, conv, action)
	}
	return b.reply(ctx, conv, errorMessage("Unknown command"))
}

// NotifyCredit tells the user that purchased requests were added
func (b *Bot) NotifyCredit(ctx context.Context, userID string, requests int, acc model.Account) {
	sess := b.sessions.Get(userID)
	if sess.ChannelID == "" {
		b.logger.Debug().Str("user_id", userID).Msg("no channel known for payment notice")
		return
	}

	msg := Message{
		Text:     fmt.Sprintf("✅ **Payment received**\n\n%d requests added.\n💰 Balance: %d requests", requests, acc.Balance),
		Keyboard: [][]Button{{mainMenuButton}},
	}
	if _, err := b.messenger.Send(ctx, sess.ChannelID, msg); err != nil {
		b.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to send payment notice")
	}
}

func (b *Bot) helpMessage() Message {
	cost := b.ledger.DeepResearchCost()
	return Message{
		Text:     fmt.Sprintf(helpText, cost, b.config.DailyLimit),
		Keyboard: [][]Button{{mainMenuButton}},
	}
}

func (b *Bot) showMainMenu(ctx context.Context, conv Conversation) error {
	b.sessions.Update(conv.User.ID, func(s *Session) {
		s.Mode = ModeNone
		s.WaitingPromo = false
	})
	acc := b.ledger.Register(conv.User.ID, conv.User.Name)
	return b.reply(ctx, conv, welcomeMessage(conv.User.Name, acc))
}

func (b *Bot) startPromo(ctx context.Context, conv Conversation) error {
	b.sessions.Update(conv.User.ID, func(s *Session) { s.WaitingPromo = true })
	return b.reply(ctx, conv, promoPrompt())
}

func (b *Bot) applyPromo(ctx context.Context, conv Conversation, code string) error {
	b.sessions.Update(conv.User.ID, func(s *Session) { s.WaitingPromo = false })

	added, err := b.ledger.ApplyPromo(conv.User.ID, code)
	if err != nil {
		b.logger.Info().Str("user_id", conv.User.ID).Msg("invalid promo code")
		return b.reply(ctx, conv, errorMessage("**Could not apply promo code**\n\nPromo code not found."))
	}

	acc := b.ledger.Stats(conv.User.ID)
	b.logger.Info().Str("user_id", conv.User.ID).Int("added", added).Msg("promo code applied")

	return b.reply(ctx, conv, Message{
		Text:     fmt.Sprintf("🎉 **Promo code applied!**\n\n✅ Requests added: %d\n📊 Current balance: %d requests", added, acc.Balance),
		Keyboard: [][]Button{{mainMenuButton}},
	})
}

func (b *Bot) analyze(ctx context.Context, conv Conversation, input string) error {
	if err := b.ledger.Allow(conv.User.ID); err != nil {
		return b.reply(ctx, conv, limitReached())
	}
	b.setMode(conv.User.ID, ModeNone)

	loading := b.sendLoading(ctx, conv, "🔍 Analyzing the article...")
	result, err := b.service.Analyze(ctx, conv.User.ID, input)
	b.deleteLoading(ctx, loading)

	if err != nil {
		return b.replyError(ctx, conv, err, "Something went wrong while analyzing the article. Please try again.")
	}

	b.sessions.Update(conv.User.ID, func(s *Session) {
		s.LastTopic = input
		s.LastAnalysis = result.Text
	})

	if err := b.sendLong(ctx, conv.ChannelID, result.Text); err != nil {
		return err
	}

	free := b.ledger.CanUseFreeDeepResearch(conv.User.ID)
	_, err = b.messenger.Send(ctx, conv.ChannelID, afterAnalysisMenu(free, b.ledger.DeepResearchCost()))
	return err
}

func (b *Bot) checkFact(ctx context.Context, conv Conversation, statement string) error {
	if err := b.ledger.Allow(conv.User.ID); err != nil {
		return b.reply(ctx, conv, limitReached())
	}
	b.setMode(conv.User.ID, ModeNone)

	loading := b.sendLoading(ctx, conv, "🔍 Checking the statement...")
	result, err := b.service.CheckFact(ctx, conv.User.ID, statement)
	b.deleteLoading(ctx, loading)

	if err != nil {
		return b.replyError(ctx, conv, err, "Something went wrong while checking the statement. Please try again.")
	}

	b.sessions.Update(conv.User.ID, func(s *Session) {
		s.LastTopic = "Fact check of the statement: " + truncate(statement, 200)
		s.LastAnalysis = result.Text
	})

	if err := b.sendLong(ctx, conv.ChannelID, result.Text); err != nil {
		return err
	}

	free := b.ledger.CanUseFreeDeepResearch(conv.User.ID)
	_, err = b.messenger.Send(ctx, conv.ChannelID, afterFactMenu(free, b.ledger.DeepResearchCost()))
	return err
}

func (b *Bot) buy(ctx context.Context, conv Conversation, action string) error {
	pkg, err := payment.FindPackage(b.config.Packages, action)
	if err != nil {
		return b.reply(ctx, conv, errorMessage("Invalid request package"))
	}

	p, err := b.gateway.CreatePayment(ctx, conv.User.ID, pkg)
	if err != nil {
		b.logger.Error().Err(err).Str("user_id", conv.User.ID).Str("package", pkg.ID).Msg("failed to create payment")
		return b.reply(ctx, conv, errorMessage("Could not create the payment. Please try again later."))
	}

	b.logger.Info().Str("user_id", conv.User.ID).Str("payment_id", p.ID).Str("package", pkg.ID).Msg("payment created")

	return b.reply(ctx, conv, Message{
		Text: fmt.Sprintf(`💳 **Payment created**

Amount: %d %s
Requests: %d

Payment link:
%s

Requests are added to your balance automatically after payment.`, pkg.Price, b.config.Currency, pkg.Requests, p.ConfirmationURL),
		Keyboard: [][]Button{{mainMenuButton}},
	})
}

// replyError maps pipeline errors to user-facing messages
func (b *Bot) replyError(ctx context.Context, conv Conversation, err error, fallback string) error {
	switch {
	case errors.Is(err, usage.ErrDailyLimit):
		return b.reply(ctx, conv, limitReached())
	case errors.Is(err, pipeline.ErrEmptyInput):
		return b.reply(ctx, conv, errorMessage("Please send some text to check."))
	default:
		b.logger.Error().Err(err).Str("user_id", conv.User.ID).Msg("request failed")
		return b.reply(ctx, conv, errorMessage(fallback))
	}
}

// reply edits the pressed message for button actions and sends a new one otherwise
func (b *Bot) reply(ctx context.Context, conv Conversation, msg Message) error {
	if conv.Origin != nil {
		return b.messenger.Edit(ctx, *conv.Origin, msg)
	}
	_, err := b.messenger.Send(ctx, conv.ChannelID, msg)
	return err
}

// sendLong sends text split into transport-sized chunks
func (b *Bot) sendLong(ctx context.Context, channelID, text string) error {
	for _, part := range render.SplitMessage(text, b.config.MessageLimit) {
		if _, err := b.messenger.Send(ctx, channelID, Message{Text: part}); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (b *Bot) sendLoading(ctx context.Context, conv Conversation, text string) *MessageRef {
	ref, err := b.messenger.Send(ctx, conv.ChannelID, Message{Text: text})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to send loading message")
		return nil
	}
	return &ref
}

func (b *Bot) deleteLoading(ctx context.Context, ref *MessageRef) {
	if ref == nil {
		return
	}
	if err := b.messenger.Delete(ctx, *ref); err != nil {
		b.logger.Debug().Err(err).Msg("failed to delete loading message")
	}
}

func (b *Bot) setMode(userID, mode string) {
	b.sessions.Update(userID, func(s *Session) { s.Mode = mode })
}

// touch remembers where the user can be reached
func (b *Bot) touch(conv Conversation) {
	if conv.ChannelID == "" {
		return
	}
	b.sessions.Update(conv.User.ID, func(s *Session) { s.ChannelID = conv.ChannelID })
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
