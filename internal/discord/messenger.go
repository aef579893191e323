package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/ppiankov/factbot/internal/bot"
)

// Discord component limits
const (
	maxRows       = 5
	maxRowButtons = 5
	maxLabel      = 80
)

// session is the subset of *discordgo.Session used to deliver messages
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Messenger delivers bot messages to Discord channels
type Messenger struct {
	session session
}

// NewMessenger wraps a Discord session
func NewMessenger(s session) *Messenger {
	return &Messenger{session: s}
}

// Send posts a new message with its keyboard
func (m *Messenger) Send(ctx context.Context, channelID string, msg bot.Message) (bot.MessageRef, error) {
	sent, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    msg.Text,
		Components: Components(msg.Keyboard),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return bot.MessageRef{}, fmt.Errorf("discord send: %w", err)
	}
	return bot.MessageRef{ChannelID: sent.ChannelID, MessageID: sent.ID}, nil
}

// Edit replaces the text and keyboard of an existing message.
// A message without keyboard loses its buttons.
func (m *Messenger) Edit(ctx context.Context, ref bot.MessageRef, msg bot.Message) error {
	edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID).SetContent(msg.Text)
	edit.Components = Components(msg.Keyboard)
	if edit.Components == nil {
		edit.Components = []discordgo.MessageComponent{}
	}

	if _, err := m.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord edit: %w", err)
	}
	return nil
}

// Delete removes a message
func (m *Messenger) Delete(ctx context.Context, ref bot.MessageRef) error {
	if err := m.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord delete: %w", err)
	}
	return nil
}

// Components converts a keyboard to Discord action rows. Rows and buttons
// beyond the Discord limits are dropped.
func Components(keyboard [][]bot.Button) []discordgo.MessageComponent {
	if len(keyboard) == 0 {
		return nil
	}

	var rows []discordgo.MessageComponent
	for _, row := range keyboard {
		if len(rows) == maxRows {
			break
		}

		var buttons []discordgo.MessageComponent
		for _, b := range row {
			if len(buttons) == maxRowButtons {
				break
			}
			buttons = append(buttons, discordgo.Button{
				Label:    label(b.Label),
				Style:    style(b.Action),
				CustomID: b.Action,
			})
		}
		if len(buttons) > 0 {
			rows = append(rows, discordgo.ActionsRow{Components: buttons})
		}
	}
	return rows
}

func style(action string) discordgo.ButtonStyle {
	switch action {
	case bot.ActionMainMenu:
		return discordgo.SecondaryButton
	case bot.ActionConfirmDeepResearch:
		return discordgo.SuccessButton
	default:
		return discordgo.PrimaryButton
	}
}

func label(s string) string {
	r := []rune(s)
	if len(r) <= maxLabel {
		return s
	}
	return string(r[:maxLabel-1]) + "…"
}
