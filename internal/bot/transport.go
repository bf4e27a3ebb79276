// Package bot connects the game engines to the chat transport: the
// websocket gateway client, the prefix command router, and the outbound
// announcement surface.
package bot

import "github.com/rs/zerolog"

// Message is one inbound chat message.
type Message struct {
	ID            string
	GuildID       string // empty for direct messages
	ChannelID     string
	AuthorID      string
	AuthorName    string
	AuthorIsAdmin bool
	IsBot         bool
	Content       string
	HasAttachment bool
	Mentions      []string // mentioned user IDs, in order
}

// Interaction is one inbound component or modal interaction.
type Interaction struct {
	Kind      string // "component" or "modal"
	GuildID   string
	ChannelID string
	UserID    string
}

// Transport delivers outbound text to the chat service. Implemented by
// the gateway client; faked in tests.
type Transport interface {
	Send(channelID, text string) error
	Reply(m Message, text string) error
}

// TransportMessenger adapts a Transport to the word-chain Messenger,
// which treats sends as best-effort and carries no error.
type TransportMessenger struct {
	tr  Transport
	log zerolog.Logger
}

// NewTransportMessenger wraps a transport for the word-chain manager.
func NewTransportMessenger(tr Transport, log zerolog.Logger) *TransportMessenger {
	return &TransportMessenger{tr: tr, log: log.With().Str("component", "game_messenger").Logger()}
}

// Send delivers text, logging delivery failures.
func (t *TransportMessenger) Send(channelID, text string) {
	if err := t.tr.Send(channelID, text); err != nil {
		t.log.Warn().Err(err).Str("channel", channelID).Msg("Game message send failed")
	}
}
