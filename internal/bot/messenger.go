package bot

import "context"

// Button is an inline button that triggers an action when pressed
type Button struct {
	Label  string
	Action string
}

// Message is an outgoing chat message with an optional keyboard.
// Keyboard rows are rendered top to bottom.
type Message struct {
	Text     string
	Keyboard [][]Button
}

// MessageRef identifies a sent message so it can be edited or deleted
type MessageRef struct {
	ChannelID string
	MessageID string
}

// Messenger is the chat transport
type Messenger interface {
	Send(ctx context.Context, channelID string, msg Message) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, msg Message) error
	Delete(ctx context.Context, ref MessageRef) error
}

// User is the author of an incoming message or button press
type User struct {
	ID   string
	Name string
}

// Conversation is the context of one incoming event
type Conversation struct {
	ChannelID string
	User      User

	// Origin is the message whose button was pressed; nil for typed messages
	Origin *MessageRef
}
