package bot

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/matchday-bot/matchday/src/command"
	"github.com/matchday-bot/matchday/src/config"
	"github.com/matchday-bot/matchday/src/data"
	"github.com/matchday-bot/matchday/src/discord"
	"github.com/matchday-bot/matchday/src/poll"
)

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("logged in as %s#%s", r.User.Username, r.User.Discriminator)
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID != b.cfg.GuildID || m.ChannelID != b.cfg.PollChannelID {
		return
	}
	content := strings.TrimSpace(m.Content)
	switch {
	case strings.HasPrefix(content, command.AddPrefix):
		b.handleAddCommand(m, content)
	case strings.HasPrefix(content, command.RevokePrefix):
		b.handleRevokeCommand(m, content)
	case strings.HasPrefix(content, "!poll"):
		b.handleAdminCommand(s, m, content)
	}
}

func (b *Bot) handleAddCommand(m *discordgo.MessageCreate, content string) {
	req, err := command.ParseVote(content, b.cfg.MaxVoteCount)
	if err != nil {
		b.reply(m.ChannelID, discord.UserMessage(err, b.cfg.MaxVoteCount))
		return
	}
	err = b.polls.AddExternalVotes(m.Author.ID, messageDisplayName(m), req.Names, req.Count)
	if err != nil {
		b.reply(m.ChannelID, discord.UserMessage(err, b.cfg.MaxVoteCount))
	}
}

func (b *Bot) handleRevokeCommand(m *discordgo.MessageCreate, content string) {
	number, err := command.ParseRevoke(content)
	if err != nil {
		b.reply(m.ChannelID, discord.UserMessage(err, b.cfg.MaxVoteCount))
		return
	}
	v, err := b.polls.RevokeExternalVoteByNumber(number, m.Author.ID, b.isAdmin(m))
	if err != nil {
		b.reply(m.ChannelID, discord.UserMessage(err, b.cfg.MaxVoteCount))
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf("Removed %s's vote.", v.Name()))
}

func (b *Bot) handleAdminCommand(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	args := strings.Fields(content)[1:]
	if len(args) == 0 {
		return
	}
	if args[0] == "status" {
		b.reply(m.ChannelID, discord.RenderStatus(b.polls.Snapshot()))
		return
	}
	if !b.isAdmin(m) {
		b.reply(m.ChannelID, "Admin only.")
		return
	}

	switch args[0] {
	case "start":
		if err := b.StartInstantPoll(); err != nil {
			log.Printf("start instant poll: %v", err)
			b.reply(m.ChannelID, "Could not start the poll.")
		}
	case "close":
		if err := b.polls.ForceClose(); err != nil {
			log.Printf("force close: %v", err)
			b.reply(m.ChannelID, "Could not close the poll.")
			return
		}
		b.reply(m.ChannelID, "Poll closed.")
	case "weekly":
		b.handleWeeklyCommand(m, args[1:])
	case "instant":
		b.handleInstantCommand(m, args[1:])
	default:
		b.reply(m.ChannelID, "Commands: `!poll status|start|close|weekly|instant`.")
	}
}

func (b *Bot) handleWeeklyCommand(m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		cfg := b.scheduler.Config()
		state := "off"
		if cfg.Enabled {
			state = "on"
		}
		next := "not scheduled"
		if cfg.NextFireAt != nil {
			next = cfg.NextFireAt.In(b.cfg.Location()).Format("Mon Jan 2 15:04")
		}
		b.reply(m.ChannelID, fmt.Sprintf(
			"Weekly poll is %s: %q, target %d, day %d at %02d:00 (window %d min). Next: %s.",
			state, cfg.Question, cfg.Target, cfg.DayOfWeek, cfg.StartHour, cfg.RandomWindowMinutes, next))
		return
	}
	switch args[0] {
	case "on", "off":
		cfg := b.scheduler.Config()
		cfg.Enabled = args[0] == "on"
		if err := b.scheduler.UpdateConfig(cfg); err != nil {
			log.Printf("update weekly config: %v", err)
			b.reply(m.ChannelID, "Could not update the schedule.")
			return
		}
		b.reply(m.ChannelID, fmt.Sprintf("Weekly poll turned %s.", args[0]))
	case "set":
		if len(args) < 3 {
			b.reply(m.ChannelID, "Usage: `!poll weekly set <field> <value>`.")
			return
		}
		cfg := b.scheduler.Config()
		if err := applyWeeklySetting(&cfg, args[1], strings.Join(args[2:], " ")); err != nil {
			b.reply(m.ChannelID, err.Error())
			return
		}
		if err := b.scheduler.UpdateConfig(cfg); err != nil {
			log.Printf("update weekly config: %v", err)
			b.reply(m.ChannelID, "Could not update the schedule.")
			return
		}
		b.reply(m.ChannelID, fmt.Sprintf("Weekly %s updated.", args[1]))
	default:
		b.reply(m.ChannelID, "Usage: `!poll weekly [on|off|set <field> <value>]`.")
	}
}

func (b *Bot) handleInstantCommand(m *discordgo.MessageCreate, args []string) {
	if len(args) < 3 || args[0] != "set" {
		b.reply(m.ChannelID, "Usage: `!poll instant set <field> <value>`.")
		return
	}
	ic := b.InstantConfig()
	if err := applyInstantSetting(&ic, args[1], strings.Join(args[2:], " ")); err != nil {
		b.reply(m.ChannelID, err.Error())
		return
	}
	if err := b.SetInstantConfig(ic); err != nil {
		log.Printf("save instant config: %v", err)
		b.reply(m.ChannelID, "Could not save the template.")
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf("Instant %s updated.", args[1]))
}

func applyWeeklySetting(cfg *config.WeeklyConfig, field, value string) error {
	switch field {
	case "question":
		if n := len([]rune(value)); n < 3 || n > 300 {
			return fmt.Errorf("question must be 3 to 300 characters")
		}
		cfg.Question = value
	case "forlabel":
		if n := len([]rune(value)); n < 1 || n > 100 {
			return fmt.Errorf("label must be 1 to 100 characters")
		}
		cfg.ForLabel = value
	case "againstlabel":
		if n := len([]rune(value)); n < 1 || n > 100 {
			return fmt.Errorf("label must be 1 to 100 characters")
		}
		cfg.AgainstLabel = value
	case "target":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 30 {
			return fmt.Errorf("target must be 1 to 30")
		}
		cfg.Target = n
	case "day":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 6 {
			return fmt.Errorf("day must be 0 (Sunday) to 6 (Saturday)")
		}
		cfg.DayOfWeek = n
	case "hour":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 23 {
			return fmt.Errorf("hour must be 0 to 23")
		}
		cfg.StartHour = n
	case "window":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 59 {
			return fmt.Errorf("window must be 0 to 59 minutes")
		}
		cfg.RandomWindowMinutes = n
	default:
		return fmt.Errorf("unknown field %q (question, forlabel, againstlabel, target, day, hour, window)", field)
	}
	return nil
}

func applyInstantSetting(ic *config.InstantConfig, field, value string) error {
	switch field {
	case "question":
		if n := len([]rune(value)); n < 3 || n > 300 {
			return fmt.Errorf("question must be 3 to 300 characters")
		}
		ic.Question = value
	case "forlabel":
		if n := len([]rune(value)); n < 1 || n > 100 {
			return fmt.Errorf("label must be 1 to 100 characters")
		}
		ic.ForLabel = value
	case "againstlabel":
		if n := len([]rune(value)); n < 1 || n > 100 {
			return fmt.Errorf("label must be 1 to 100 characters")
		}
		ic.AgainstLabel = value
	case "target":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 30 {
			return fmt.Errorf("target must be 1 to 30")
		}
		ic.Target = n
	default:
		return fmt.Errorf("unknown field %q (question, forlabel, againstlabel, target)", field)
	}
	return nil
}

func (b *Bot) handlePollVoteAdd(s *discordgo.Session, ev *discordgo.MessagePollVoteAdd) {
	if !b.isCurrentPoll(ev.MessageID) {
		return
	}
	opt, ok := answerOption(ev.AnswerID)
	if !ok {
		return
	}
	name := b.voterDisplayName(s, ev.GuildID, ev.UserID)
	if err := b.polls.CastDirectVote(ev.UserID, name, opt); err != nil {
		log.Printf("cast direct vote from %s: %v", ev.UserID, err)
	}
}

func (b *Bot) handlePollVoteRemove(s *discordgo.Session, ev *discordgo.MessagePollVoteRemove) {
	if !b.isCurrentPoll(ev.MessageID) {
		return
	}
	if err := b.polls.RevokeDirectVote(ev.UserID); err != nil {
		log.Printf("revoke direct vote from %s: %v", ev.UserID, err)
	}
}

func (b *Bot) isCurrentPoll(messageID string) bool {
	return messageID != "" && messageID == b.polls.Snapshot().PollRef
}

// answerOption maps a native 1-based answer ID: the poll is always posted
// with FOR first.
func answerOption(answerID int) (poll.Option, bool) {
	switch answerID {
	case 1:
		return poll.For, true
	case 2:
		return poll.Against, true
	default:
		return 0, false
	}
}

func (b *Bot) voterDisplayName(s *discordgo.Session, guildID, userID string) string {
	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		log.Printf("lookup member %s: %v", userID, err)
		return ""
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User != nil {
		if member.User.GlobalName != "" {
			return member.User.GlobalName
		}
		return member.User.Username
	}
	return ""
}

func messageDisplayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func (b *Bot) isAdmin(m *discordgo.MessageCreate) bool {
	if b.cfg.IsAdminUser(m.Author.ID) {
		return true
	}
	if b.cfg.AdminRoleID == "" || m.Member == nil {
		return false
	}
	for _, role := range m.Member.Roles {
		if role == b.cfg.AdminRoleID {
			return true
		}
	}
	return false
}

func (b *Bot) reply(channelID, content string) {
	if err := b.notifier.Reply(channelID, content); err != nil {
		log.Printf("reply: %v", err)
	}
}

// handleEvent reacts to core state changes. It runs while the manager
// lock is held, so anything that calls back into the manager or touches
// the network is enqueued for the notify loop. The schedule reschedule on
// completion stays synchronous: it only takes the scheduler's own lock.
func (b *Bot) handleEvent(ev poll.Event) {
	switch e := ev.(type) {
	case poll.PollStarted:
		b.enqueue(b.ensureStatusMessage)
		b.publish("poll_started", map[string]interface{}{
			"question": e.State.Question,
			"target":   e.State.Target,
		})
	case poll.VoteAdded:
		b.enqueue(b.refreshStatus)
		b.publish("vote_added", map[string]interface{}{
			"count":  len(e.Votes),
			"total":  e.State.CountFor(),
			"target": e.State.Target,
		})
	case poll.VoteRevoked:
		b.enqueue(b.refreshStatus)
		b.publish("vote_revoked", map[string]interface{}{
			"name":   e.Vote.Name(),
			"total":  e.State.CountFor(),
			"target": e.State.Target,
		})
	case poll.PollCompleted:
		b.scheduler.HandleCompleted()
		b.enqueue(func() {
			b.refreshStatus()
			st := b.polls.Snapshot()
			if err := b.notifier.SendCompletion(discord.RenderCompletion(st)); err != nil {
				log.Printf("send completion: %v", err)
			}
		})
		b.publish("poll_completed", map[string]interface{}{
			"question": e.State.Question,
			"total":    e.State.CountFor(),
		})
	case poll.PollClosed:
		b.enqueue(b.refreshStatus)
		b.publish("poll_closed", map[string]interface{}{
			"question": e.State.Question,
			"total":    e.State.CountFor(),
		})
	case poll.ScheduleUpdated:
		b.publish("schedule_updated", map[string]interface{}{
			"nextFireAt": e.NextFireAt.Format(time.RFC3339),
		})
	}
}

// ensureStatusMessage posts the status message for a new poll and records
// its reference.
func (b *Bot) ensureStatusMessage() {
	st := b.polls.Snapshot()
	if !st.Open {
		return
	}
	ref, err := b.notifier.SendStatus(discord.RenderStatus(st))
	if err != nil {
		log.Printf("send status: %v", err)
		return
	}
	if err := b.polls.SetStatusRef(ref); err != nil {
		log.Printf("record status ref: %v", err)
	}
}

// refreshStatus re-renders the status message from the latest snapshot.
// Tasks coalesce naturally: each one renders current state, so stale
// intermediate updates only cost an extra edit.
func (b *Bot) refreshStatus() {
	st := b.polls.Snapshot()
	if st.StatusRef == "" {
		if st.Open {
			b.ensureStatusMessage()
		}
		return
	}
	if err := b.notifier.UpdateStatus(st.StatusRef, discord.RenderStatus(st)); err != nil {
		log.Printf("update status: %v", err)
	}
}

func (b *Bot) publish(kind string, values map[string]interface{}) {
	if b.rdb == nil {
		return
	}
	values["type"] = kind
	b.enqueue(func() {
		if err := data.PublishEvent(b.ctx, b.rdb, values); err != nil {
			log.Printf("publish %s: %v", kind, err)
		}
	})
}
