// Package bot wires the Discord gateway to the poll core: it routes
// messages and native poll vote events into manager operations, and
// mirrors state changes back into the channel and onto the redis stream.
package bot

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/matchday-bot/matchday/src/config"
	"github.com/matchday-bot/matchday/src/data"
	"github.com/matchday-bot/matchday/src/discord"
	"github.com/matchday-bot/matchday/src/poll"
	"github.com/matchday-bot/matchday/src/schedule"
)

// InstantKey is the logical name the instant poll template persists under.
const InstantKey = "instant-poll-config"

type Bot struct {
	session *discordgo.Session
	db      *gorm.DB
	rdb     *redis.Client
	cfg     config.Config

	store     *data.Store
	polls     *poll.Manager
	scheduler *schedule.Scheduler
	notifier  *discord.StatusNotifier

	instantMu sync.Mutex
	instant   config.InstantConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// tasks carries side-effect work produced by event listeners. Events
	// are emitted while the manager lock is held; tasks run on their own
	// goroutine so a listener can call back into the manager.
	tasks chan func()
}

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentGuildMessagePolls

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		session: session,
		db:      db,
		rdb:     rdb,
		cfg:     cfg,
		store:   data.NewStore(db),
		instant: config.DefaultInstant(),
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(chan func(), 64),
	}

	events := &poll.Dispatcher{}
	channel := discord.NewPollChannel(session, cfg.PollChannelID)
	b.notifier = discord.NewStatusNotifier(session, cfg.PollChannelID)
	b.polls = poll.NewManager(poll.Config{AdminRevokesDirect: cfg.AdminRevokesDirect}, channel, b.store, events)
	b.scheduler = schedule.New(b.store, b.polls, events, cfg.Location())

	if err := b.polls.LoadPersisted(); err != nil {
		cancel()
		return nil, err
	}
	if err := b.scheduler.LoadPersisted(); err != nil {
		cancel()
		return nil, err
	}
	if err := b.loadInstantConfig(); err != nil {
		cancel()
		return nil, err
	}

	events.Subscribe(b.handleEvent)

	session.AddHandler(b.handleReady)
	session.AddHandler(b.handleMessageCreate)
	session.AddHandler(b.handlePollVoteAdd)
	session.AddHandler(b.handlePollVoteRemove)

	return b, nil
}

func (b *Bot) loadInstantConfig() error {
	var instant config.InstantConfig
	found, err := b.store.Load(InstantKey, &instant)
	if err != nil {
		return fmt.Errorf("load instant config: %w", err)
	}
	if found {
		b.instant = instant
	}
	return nil
}

// Start opens the gateway connection and begins the schedule loop. The
// startup reconcile catches triggers missed while the process was down.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	if err := b.scheduler.Reconcile(); err != nil {
		log.Printf("startup reconcile: %v", err)
	}

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		b.notifyLoop()
	}()
	go func() {
		defer b.wg.Done()
		b.scheduler.Run(b.ctx, b.cfg.TickInterval)
	}()
	return nil
}

func (b *Bot) Stop() {
	b.cancel()
	if err := b.session.Close(); err != nil {
		log.Printf("close discord session: %v", err)
	}
	b.wg.Wait()
}

// Polls exposes the manager for the web server.
func (b *Bot) Polls() *poll.Manager { return b.polls }

// Scheduler exposes the schedule for the web server.
func (b *Bot) Scheduler() *schedule.Scheduler { return b.scheduler }

// InstantConfig returns the current one-off poll template.
func (b *Bot) InstantConfig() config.InstantConfig {
	b.instantMu.Lock()
	defer b.instantMu.Unlock()
	return b.instant
}

// SetInstantConfig replaces and persists the one-off poll template.
func (b *Bot) SetInstantConfig(ic config.InstantConfig) error {
	b.instantMu.Lock()
	defer b.instantMu.Unlock()
	b.instant = ic
	return b.store.Save(InstantKey, ic)
}

// StartInstantPoll opens a poll from the instant template. Used by the
// admin command and the HTTP API.
func (b *Bot) StartInstantPoll() error {
	ic := b.InstantConfig()
	return b.polls.Start(ic.Question, ic.ForLabel, ic.AgainstLabel, ic.Target)
}

func (b *Bot) enqueue(task func()) {
	select {
	case b.tasks <- task:
	default:
		log.Printf("notify queue full, dropping task")
	}
}

func (b *Bot) notifyLoop() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case task := <-b.tasks:
			task()
		}
	}
}
