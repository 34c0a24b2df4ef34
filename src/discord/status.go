package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// StatusNotifier maintains the status message that mirrors the current
// count and vote listing below the native poll.
type StatusNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewStatusNotifier(session *discordgo.Session, channelID string) *StatusNotifier {
	return &StatusNotifier{session: session, channelID: channelID}
}

// SendStatus posts a fresh status message and returns its ID.
func (n *StatusNotifier) SendStatus(content string) (string, error) {
	msg, err := n.session.ChannelMessageSend(n.channelID, content)
	if err != nil {
		return "", fmt.Errorf("send status message: %w", err)
	}
	return msg.ID, nil
}

// UpdateStatus edits the status message in place.
func (n *StatusNotifier) UpdateStatus(ref, content string) error {
	if _, err := n.session.ChannelMessageEdit(n.channelID, ref, content); err != nil {
		return fmt.Errorf("edit status message %s: %w", ref, err)
	}
	return nil
}

// SendCompletion announces that the target was reached.
func (n *StatusNotifier) SendCompletion(content string) error {
	if _, err := n.session.ChannelMessageSend(n.channelID, content); err != nil {
		return fmt.Errorf("send completion message: %w", err)
	}
	return nil
}

// Reply answers a command message in its channel.
func (n *StatusNotifier) Reply(channelID, content string) error {
	if _, err := n.session.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
