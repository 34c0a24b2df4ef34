package poll

import "time"

// Event is a state-change notification. Events are emitted synchronously,
// before the mutating operation returns, so a caller observing success can
// rely on listeners having seen the updated state.
type Event interface{ event() }

type PollStarted struct{ State State }

// VoteAdded covers a whole external batch with a single notification.
type VoteAdded struct {
	State State
	Votes []Vote
}

type VoteRevoked struct {
	State State
	Vote  Vote
}

// PollCompleted fires exactly once, on the transition into target-reached.
type PollCompleted struct{ State State }

type PollClosed struct{ State State }

type ScheduleUpdated struct{ NextFireAt time.Time }

func (PollStarted) event()     {}
func (VoteAdded) event()       {}
func (VoteRevoked) event()     {}
func (PollCompleted) event()   {}
func (PollClosed) event()      {}
func (ScheduleUpdated) event() {}

// Dispatcher is an explicit observer list. Subscriptions happen at wiring
// time, before any events flow.
type Dispatcher struct {
	listeners []func(Event)
}

func (d *Dispatcher) Subscribe(fn func(Event)) {
	d.listeners = append(d.listeners, fn)
}

func (d *Dispatcher) Emit(ev Event) {
	for _, fn := range d.listeners {
		fn(ev)
	}
}
