// Package discord adapts the poll core to Discord: posting and expiring
// native polls, and keeping a live status message in the channel.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// pollDurationHours is the native poll lifetime. Polls are stopped
// explicitly well before this; the duration is only the platform's
// upper bound.
const pollDurationHours = 7 * 24

// PollChannel posts and stops native polls in the configured channel.
type PollChannel struct {
	session   *discordgo.Session
	channelID string
}

func NewPollChannel(session *discordgo.Session, channelID string) *PollChannel {
	return &PollChannel{session: session, channelID: channelID}
}

// PostPoll sends a native two-answer poll and returns its message ID.
// Answer order matters: vote events carry 1-based answer IDs, so answer
// 1 is always FOR and answer 2 AGAINST.
func (c *PollChannel) PostPoll(question, forLabel, againstLabel string) (string, error) {
	msg, err := c.session.ChannelMessageSendComplex(c.channelID, &discordgo.MessageSend{
		Poll: &discordgo.Poll{
			Question: discordgo.PollMedia{Text: question},
			Answers: []discordgo.PollAnswer{
				{Media: &discordgo.PollMedia{Text: forLabel}},
				{Media: &discordgo.PollMedia{Text: againstLabel}},
			},
			Duration: pollDurationHours,
		},
	})
	if err != nil {
		return "", fmt.Errorf("send poll message: %w", err)
	}
	return msg.ID, nil
}

// StopPoll immediately expires the native poll.
func (c *PollChannel) StopPoll(ref string) error {
	if _, err := c.session.PollExpire(c.channelID, ref); err != nil {
		return fmt.Errorf("expire poll %s: %w", ref, err)
	}
	return nil
}
