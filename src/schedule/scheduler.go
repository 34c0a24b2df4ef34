// Package schedule maintains the weekly recurrence: it computes the next
// firing time, detects due triggers across coarse ticks and process
// restarts, and drives poll creation exactly once per trigger.
package schedule

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/matchday-bot/matchday/src/config"
	"github.com/matchday-bot/matchday/src/poll"
)

// ConfigKey is the logical name the weekly config persists under.
const ConfigKey = "weekly-config"

// slotInterval is the minute granularity of firing slots. The periodic
// check tick is no finer than this, so firing time never needs
// reconsidering between slots.
const slotInterval = 10

// PollControl is the slice of the poll manager the scheduler drives.
type PollControl interface {
	IsOpen() bool
	Start(question, forLabel, againstLabel string, target int) error
	Reset() error
}

type Scheduler struct {
	// tickMu serializes Reconcile end to end, so a tick arriving while a
	// previous tick is still firing cannot double-fire.
	tickMu sync.Mutex
	// mu guards cfg. Never held across poll manager calls: the manager
	// emits events whose listeners may call back into the scheduler.
	mu sync.Mutex

	store  poll.Store
	polls  PollControl
	events *poll.Dispatcher
	loc    *time.Location

	cfg config.WeeklyConfig

	now  func() time.Time
	pick func(n int) int
}

func New(store poll.Store, polls PollControl, events *poll.Dispatcher, loc *time.Location) *Scheduler {
	if events == nil {
		events = &poll.Dispatcher{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		store:  store,
		polls:  polls,
		events: events,
		loc:    loc,
		cfg:    config.DefaultWeekly(),
		now:    time.Now,
		pick:   rand.Intn,
	}
}

// LoadPersisted restores the weekly config document, if present.
func (s *Scheduler) LoadPersisted() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg config.WeeklyConfig
	found, err := s.store.Load(ConfigKey, &cfg)
	if err != nil {
		return fmt.Errorf("load weekly config: %w", err)
	}
	if found {
		s.cfg = cfg
	}
	return nil
}

// minuteSlots lists the coarse offsets within the random window: window
// 59 yields :00 through :50, window 0 always fires on the hour.
func minuteSlots(window int) []int {
	if window < 0 {
		window = 0
	}
	if window > 59 {
		window = 59
	}
	slots := make([]int, 0, 6)
	for m := 0; m <= window; m += slotInterval {
		slots = append(slots, m)
	}
	return slots
}

// ComputeNextFire returns the next occurrence of the configured weekly
// slot, always strictly after ref. The minute is drawn pseudo-randomly
// from the coarse slots so distinct deployments spread within the hour.
// The wall-clock slot is fixed in loc, so the result shifts across DST
// transitions the way "every Thursday at 13:00 local" should.
// forceNextWeek skips an occurrence that would land today again, used
// right after a poll fired or completed.
func ComputeNextFire(cfg config.WeeklyConfig, ref time.Time, forceNextWeek bool, loc *time.Location, pick func(int) int) time.Time {
	slots := minuteSlots(cfg.RandomWindowMinutes)
	minute := slots[pick(len(slots))]
	base := ref.In(loc)
	dayDelta := cfg.DayOfWeek - int(base.Weekday())
	cand := time.Date(base.Year(), base.Month(), base.Day()+dayDelta, cfg.StartHour, minute, 0, 0, loc)
	if forceNextWeek || !cand.After(ref) {
		cand = cand.AddDate(0, 0, 7)
	}
	return cand.UTC()
}

// Reconcile runs the due-trigger check. It is called once at startup and
// then from the periodic tick. An unset NextFireAt schedules forward
// without firing (first enable never backfills). A due trigger fires
// exactly once no matter how many ticks land after it: the reschedule
// moves NextFireAt into the future before the next tick can observe it.
func (s *Scheduler) Reconcile() error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	enabled := s.cfg.Enabled
	next := s.cfg.NextFireAt
	s.mu.Unlock()

	if !enabled {
		return nil
	}
	now := s.now()
	if next == nil {
		return s.reschedule(now, false)
	}
	if now.Before(*next) {
		return nil
	}

	log.Printf("weekly poll due (scheduled %s), firing", next.UTC().Format(time.RFC3339))
	if err := s.fire(); err != nil {
		return err
	}
	// Anchor to the scheduled slot, not wall clock, so a late tick does
	// not accumulate drift week over week.
	return s.reschedule(*next, true)
}

func (s *Scheduler) fire() error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if s.polls.IsOpen() {
		if err := s.polls.Reset(); err != nil {
			return fmt.Errorf("replace open poll: %w", err)
		}
	}
	if err := s.polls.Start(cfg.Question, cfg.ForLabel, cfg.AgainstLabel, cfg.Target); err != nil {
		return fmt.Errorf("start weekly poll: %w", err)
	}
	return nil
}

func (s *Scheduler) reschedule(ref time.Time, forceNextWeek bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rescheduleLocked(ref, forceNextWeek)
}

func (s *Scheduler) rescheduleLocked(ref time.Time, forceNextWeek bool) error {
	next := ComputeNextFire(s.cfg, ref, forceNextWeek, s.loc, s.pick)
	s.cfg.NextFireAt = &next
	if err := s.store.Save(ConfigKey, s.cfg); err != nil {
		return fmt.Errorf("save weekly config: %w", err)
	}
	s.events.Emit(poll.ScheduleUpdated{NextFireAt: next})
	log.Printf("next weekly poll scheduled for %s (%s local)",
		next.Format(time.RFC3339), next.In(s.loc).Format("Mon 15:04"))
	return nil
}

// HandleCompleted reschedules right after a poll reaches its target,
// guaranteeing the next occurrence without waiting for a tick. Safe to
// call from event listeners.
func (s *Scheduler) HandleCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		return
	}
	if err := s.rescheduleLocked(s.now(), true); err != nil {
		log.Printf("reschedule after completion: %v", err)
	}
}

// UpdateConfig applies a new weekly template. Enabling the schedule or
// changing a timing field while enabled recomputes NextFireAt before the
// next tick. Disabling only stops future auto-firing; it never closes an
// already-open poll.
func (s *Scheduler) UpdateConfig(next config.WeeklyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cfg
	next.NextFireAt = prev.NextFireAt
	s.cfg = next

	recompute := next.Enabled &&
		(!prev.Enabled || timingChanged(prev, next) || next.NextFireAt == nil)
	if recompute {
		return s.rescheduleLocked(s.now(), false)
	}
	if err := s.store.Save(ConfigKey, s.cfg); err != nil {
		return fmt.Errorf("save weekly config: %w", err)
	}
	return nil
}

func timingChanged(a, b config.WeeklyConfig) bool {
	return a.DayOfWeek != b.DayOfWeek ||
		a.StartHour != b.StartHour ||
		a.RandomWindowMinutes != b.RandomWindowMinutes
}

// Config returns a copy of the current weekly config.
func (s *Scheduler) Config() config.WeeklyConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Run drives reconciliation on a coarse tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reconcile(); err != nil {
				log.Printf("schedule reconcile: %v", err)
			}
		}
	}
}
