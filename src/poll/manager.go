// Package poll owns the vote ledger and the poll lifecycle: open, target
// reached, closed. All mutations are serialized behind one lock because
// several operations (capacity check then append, duplicate check then
// append) are check-then-act and must be atomic with respect to each
// other.
package poll

import (
	"fmt"
	"log"
	"sync"
)

// StateKey is the logical name the poll state persists under.
const StateKey = "poll-state"

// Channel posts and stops the platform-side poll object.
type Channel interface {
	PostPoll(question, forLabel, againstLabel string) (string, error)
	StopPoll(ref string) error
}

// Store is durable key-value persistence for core state, keyed by fixed
// logical names.
type Store interface {
	Load(name string, v any) (bool, error)
	Save(name string, v any) error
}

// State is the single active or most recently closed poll.
type State struct {
	Open          bool   `json:"open"`
	TargetReached bool   `json:"targetReached"`
	Question      string `json:"question"`
	ForLabel      string `json:"forLabel"`
	AgainstLabel  string `json:"againstLabel"`
	Target        int    `json:"target"`
	PollRef       string `json:"pollRef,omitempty"`
	StatusRef     string `json:"statusRef,omitempty"`
	Votes         []Vote `json:"votes"`
}

func (s State) ledger() Ledger { return Ledger{votes: s.Votes} }

// CountFor counts FOR votes in the snapshot.
func (s State) CountFor() int {
	l := s.ledger()
	return l.CountFor()
}

// Positive lists the snapshot's FOR votes with display numbers.
func (s State) Positive() []NumberedVote {
	l := s.ledger()
	return l.Positive()
}

// Config carries the revocation policy.
type Config struct {
	// AdminRevokesDirect lets admins revoke direct votes through the
	// command path. Non-admins never can; direct voters remove their own
	// votes by unselecting the native poll answer.
	AdminRevokesDirect bool
}

// Manager owns the poll state.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	channel Channel
	store   Store
	events  *Dispatcher

	state  State
	ledger Ledger
}

func NewManager(cfg Config, channel Channel, store Store, events *Dispatcher) *Manager {
	if events == nil {
		events = &Dispatcher{}
	}
	return &Manager{cfg: cfg, channel: channel, store: store, events: events}
}

// LoadPersisted restores the previous poll state, if any.
func (m *Manager) LoadPersisted() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var st State
	found, err := m.store.Load(StateKey, &st)
	if err != nil {
		return fmt.Errorf("load poll state: %w", err)
	}
	if found {
		m.state = st
		m.ledger = st.ledger()
	}
	return nil
}

func (m *Manager) persistLocked() error {
	m.state.Votes = m.ledger.Votes()
	if err := m.store.Save(StateKey, m.state); err != nil {
		return fmt.Errorf("save poll state: %w", err)
	}
	return nil
}

func (m *Manager) snapshotLocked() State {
	st := m.state
	st.Votes = m.ledger.Votes()
	return st
}

// closeLocked ends the open poll and tells the platform to stop its poll
// object. Platform failures are logged, not fatal: the ledger is closed
// either way.
func (m *Manager) closeLocked() {
	m.state.Open = false
	if m.state.PollRef != "" {
		if err := m.channel.StopPoll(m.state.PollRef); err != nil {
			log.Printf("stop poll %s: %v", m.state.PollRef, err)
		}
	}
	m.events.Emit(PollClosed{State: m.snapshotLocked()})
}

// completeLocked transitions into target-reached when the count allows
// and stops the platform poll, so the native UI cannot keep collecting
// votes the ledger would reject. The caller emits PollCompleted after
// persisting.
func (m *Manager) completeLocked() bool {
	if !m.state.Open || m.ledger.CountFor() < m.state.Target {
		return false
	}
	m.state.Open = false
	m.state.TargetReached = true
	if m.state.PollRef != "" {
		if err := m.channel.StopPoll(m.state.PollRef); err != nil {
			log.Printf("stop poll %s: %v", m.state.PollRef, err)
		}
	}
	return true
}

// Start opens a new poll, implicitly closing any open one first: two open
// polls never overlap.
func (m *Manager) Start(question, forLabel, againstLabel string, target int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Open {
		m.closeLocked()
	}
	ref, err := m.channel.PostPoll(question, forLabel, againstLabel)
	if err != nil {
		return fmt.Errorf("post poll: %w", err)
	}
	m.state = State{
		Open:         true,
		Question:     question,
		ForLabel:     forLabel,
		AgainstLabel: againstLabel,
		Target:       target,
		PollRef:      ref,
	}
	m.ledger = Ledger{}
	if err := m.persistLocked(); err != nil {
		return err
	}
	m.events.Emit(PollStarted{State: m.snapshotLocked()})
	return nil
}

// CastDirectVote records a native poll answer. A duplicate FOR from the
// same voter is ignored (the platform already enforces single choice, the
// ledger re-checks against duplicate delivery). A FOR vote that would
// exceed the target is dropped silently: the slots are taken, the voter
// stays unregistered rather than erroring the platform flow. In normal
// operation completion closes the poll at exactly the target, so the
// capacity guard only matters for state restored from a crash between
// append and completion.
func (m *Manager) CastDirectVote(voterID, displayName string, opt Option) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Open {
		return ErrPollClosed
	}
	if opt == For {
		if m.ledger.HasDirectFor(voterID) {
			return nil
		}
		if m.state.Target-m.ledger.CountFor() <= 0 {
			return nil
		}
	}
	v := newVote(opt, voterID, displayName, "", "")
	m.ledger.Append(v)
	completed := m.completeLocked()
	if err := m.persistLocked(); err != nil {
		return err
	}
	m.events.Emit(VoteAdded{State: m.snapshotLocked(), Votes: []Vote{v}})
	if completed {
		m.events.Emit(PollCompleted{State: m.snapshotLocked()})
	}
	return nil
}

// RevokeDirectVote removes the voter's most recent vote. A voter without
// a vote is a silent no-op: it models unselecting a never-counted answer.
func (m *Manager) RevokeDirectVote(voterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Open {
		return ErrPollClosed
	}
	i, ok := m.ledger.LastByVoter(voterID)
	if !ok {
		return nil
	}
	v, err := m.ledger.RemoveAt(i)
	if err != nil {
		return err
	}
	if err := m.persistLocked(); err != nil {
		return err
	}
	m.events.Emit(VoteRevoked{State: m.snapshotLocked(), Vote: v})
	return nil
}

// AddExternalVotes credits a batch of FOR votes: one per name, or count
// anonymous votes, or a single anonymous vote when neither is given. The
// batch is all-or-nothing against the remaining capacity.
func (m *Manager) AddExternalVotes(requesterID, requesterName string, names []string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Open {
		return ErrPollClosed
	}
	var batch []Vote
	switch {
	case len(names) > 0:
		for _, name := range names {
			batch = append(batch, newVote(For, "", name, requesterID, requesterName))
		}
	case count > 0:
		for i := 0; i < count; i++ {
			batch = append(batch, newVote(For, "", "", requesterID, requesterName))
		}
	default:
		batch = append(batch, newVote(For, "", "", requesterID, requesterName))
	}
	remaining := m.state.Target - m.ledger.CountFor()
	if len(batch) > remaining {
		return &CapacityError{Requested: len(batch), Remaining: remaining}
	}
	m.ledger.Append(batch...)
	completed := m.completeLocked()
	if err := m.persistLocked(); err != nil {
		return err
	}
	m.events.Emit(VoteAdded{State: m.snapshotLocked(), Votes: batch})
	if completed {
		m.events.Emit(PollCompleted{State: m.snapshotLocked()})
	}
	return nil
}

// RevokeExternalVoteByNumber removes the FOR vote at the given display
// number. Only the requester who credited the vote, or an admin, may
// remove it; direct votes stay (admins may override when the policy
// allows).
func (m *Manager) RevokeExternalVoteByNumber(number int, requesterID string, isAdmin bool) (Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Open {
		return Vote{}, ErrPollClosed
	}
	var target *NumberedVote
	for _, nv := range m.ledger.Positive() {
		if nv.Number == number {
			nv := nv
			target = &nv
			break
		}
	}
	if target == nil {
		return Vote{}, ErrNotFound
	}
	switch target.Vote.Kind() {
	case KindDirect:
		if !isAdmin || !m.cfg.AdminRevokesDirect {
			return Vote{}, ErrDirectVoteNotRevocable
		}
	default:
		if target.Vote.RequesterID != requesterID && !isAdmin {
			return Vote{}, ErrPermissionDenied
		}
	}
	v, err := m.ledger.RemoveAt(target.Index)
	if err != nil {
		return Vote{}, err
	}
	if err := m.persistLocked(); err != nil {
		return Vote{}, err
	}
	m.events.Emit(VoteRevoked{State: m.snapshotLocked(), Vote: v})
	return v, nil
}

// ForceClose ends the poll regardless of the count. Idempotent.
func (m *Manager) ForceClose() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Open {
		return nil
	}
	m.closeLocked()
	return m.persistLocked()
}

// Reset returns to the idle state, clearing poll metadata. Template
// configs are untouched.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Open {
		m.closeLocked()
	}
	m.state = State{}
	m.ledger = Ledger{}
	return m.persistLocked()
}

// SetStatusRef records the live status message reference.
func (m *Manager) SetStatusRef(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.StatusRef = ref
	return m.persistLocked()
}

func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Open
}

// Snapshot returns a copy of the current state for rendering.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}
