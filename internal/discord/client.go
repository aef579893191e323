package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ppiankov/factbot/internal/bot"
)

// Handler receives typed messages and button presses
type Handler interface {
	HandleText(ctx context.Context, conv bot.Conversation, text string) error
	HandleAction(ctx context.Context, conv bot.Conversation, action string) error
}

// NewSession creates a Discord session with the intents the bot needs
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is required")
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return s, nil
}

// Client routes Discord gateway events to the bot
type Client struct {
	session *discordgo.Session
	handler Handler
	logger  *zerolog.Logger
	ctx     context.Context
	remove  []func()
}

// NewClient creates a client for an existing session
func NewClient(s *discordgo.Session, handler Handler, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		session: s,
		handler: handler,
		logger:  logger,
		ctx:     context.Background(),
	}
}

// Start registers event handlers and opens the gateway connection.
// Handlers run with ctx, so cancelling it aborts in-flight requests.
func (c *Client) Start(ctx context.Context) error {
	c.ctx = ctx
	c.remove = append(c.remove,
		c.session.AddHandler(c.onReady),
		c.session.AddHandler(c.onMessageCreate),
		c.session.AddHandler(c.onInteractionCreate),
	)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

// Close removes the handlers and closes the gateway connection
func (c *Client) Close() error {
	for _, remove := range c.remove {
		remove()
	}
	c.remove = nil
	return c.session.Close()
}

func (c *Client) onReady(s *discordgo.Session, r *discordgo.Ready) {
	c.logger.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("connected to Discord")
}

func (c *Client) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	var selfID string
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}

	conv, text, ok := messageConversation(m, selfID)
	if !ok {
		return
	}

	if err := c.handler.HandleText(c.ctx, conv, text); err != nil {
		c.logger.Error().Err(err).Str("user_id", conv.User.ID).Msg("failed to handle message")
	}
}

func (c *Client) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	conv, action, ok := interactionConversation(i)
	if !ok {
		return
	}

	// Acknowledge within Discord's 3 second window; the bot edits the message later
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(c.ctx))
	if err != nil {
		c.logger.Warn().Err(err).Str("action", action).Msg("failed to acknowledge interaction")
	}

	if err := c.handler.HandleAction(c.ctx, conv, action); err != nil {
		c.logger.Error().Err(err).Str("user_id", conv.User.ID).Str("action", action).Msg("failed to handle action")
	}
}

// messageConversation extracts the conversation and text of a message.
// Direct messages are always handled; guild messages only when they
// mention the bot.
func messageConversation(m *discordgo.MessageCreate, selfID string) (bot.Conversation, string, bool) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return bot.Conversation{}, "", false
	}

	text := m.Content
	if m.GuildID != "" {
		if selfID == "" || !mentions(m.Mentions, selfID) {
			return bot.Conversation{}, "", false
		}
		text = stripMention(text, selfID)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return bot.Conversation{}, "", false
	}

	return bot.Conversation{
		ChannelID: m.ChannelID,
		User:      bot.User{ID: m.Author.ID, Name: m.Author.Username},
	}, text, true
}

// interactionConversation extracts the conversation and action of a button press
func interactionConversation(i *discordgo.InteractionCreate) (bot.Conversation, string, bool) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return bot.Conversation{}, "", false
	}
	data, ok := i.Data.(discordgo.MessageComponentInteractionData)
	if !ok || data.CustomID == "" {
		return bot.Conversation{}, "", false
	}

	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil {
		return bot.Conversation{}, "", false
	}

	conv := bot.Conversation{
		ChannelID: i.ChannelID,
		User:      bot.User{ID: user.ID, Name: user.Username},
	}
	if i.Message != nil {
		conv.Origin = &bot.MessageRef{ChannelID: i.ChannelID, MessageID: i.Message.ID}
	}

	return conv, data.CustomID, true
}

func mentions(users []*discordgo.User, id string) bool {
	for _, u := range users {
		if u != nil && u.ID == id {
			return true
		}
	}
	return false
}

func stripMention(text, id string) string {
	text = strings.ReplaceAll(text, "<@"+id+">", "")
	return strings.ReplaceAll(text, "<@!"+id+">", "")
}
