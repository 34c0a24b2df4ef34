package poll

import (
	"encoding/json"
	"errors"
	"testing"
)

type fakeChannel struct {
	posted  int
	stopped []string
	failure error
}

func (c *fakeChannel) PostPoll(question, forLabel, againstLabel string) (string, error) {
	if c.failure != nil {
		return "", c.failure
	}
	c.posted++
	return "msg-1", nil
}

func (c *fakeChannel) StopPoll(ref string) error {
	c.stopped = append(c.stopped, ref)
	return nil
}

// memStore round-trips through JSON the way the real store does, so
// persistence bugs in the state types show up here.
type memStore struct {
	docs map[string]string
}

func newMemStore() *memStore { return &memStore{docs: map[string]string{}} }

func (s *memStore) Load(name string, v any) (bool, error) {
	raw, ok := s.docs[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), v)
}

func (s *memStore) Save(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.docs[name] = string(raw)
	return nil
}

type recorder struct {
	events []Event
}

func (r *recorder) record(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(match func(Event) bool) int {
	n := 0
	for _, ev := range r.events {
		if match(ev) {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T, target int) (*Manager, *fakeChannel, *memStore, *recorder) {
	t.Helper()
	ch := &fakeChannel{}
	st := newMemStore()
	rec := &recorder{}
	events := &Dispatcher{}
	events.Subscribe(rec.record)
	m := NewManager(Config{AdminRevokesDirect: true}, ch, st, events)
	if err := m.Start("Playing?", "Yes", "No", target); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return m, ch, st, rec
}

func TestStartReplacesOpenPoll(t *testing.T) {
	m, ch, _, _ := newTestManager(t, 5)

	if err := m.Start("Again?", "Yes", "No", 5); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if ch.posted != 2 {
		t.Errorf("posted = %d, want 2", ch.posted)
	}
	if len(ch.stopped) != 1 || ch.stopped[0] != "msg-1" {
		t.Errorf("stopped = %v, want [msg-1]", ch.stopped)
	}
	st := m.Snapshot()
	if !st.Open || st.Question != "Again?" || len(st.Votes) != 0 {
		t.Errorf("state after restart = %+v", st)
	}
}

func TestDuplicateDirectForIgnored(t *testing.T) {
	m, _, _, rec := newTestManager(t, 5)

	if err := m.CastDirectVote("u1", "Ann", For); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if err := m.CastDirectVote("u1", "Ann", For); err != nil {
		t.Fatalf("duplicate vote: %v", err)
	}
	if got := m.Snapshot().CountFor(); got != 1 {
		t.Errorf("CountFor = %d, want 1", got)
	}
	added := rec.count(func(ev Event) bool { _, ok := ev.(VoteAdded); return ok })
	if added != 1 {
		t.Errorf("VoteAdded events = %d, want 1", added)
	}
}

func TestAgainstVotesDoNotCountTowardTarget(t *testing.T) {
	m, _, _, rec := newTestManager(t, 2)

	if err := m.CastDirectVote("u1", "Ann", Against); err != nil {
		t.Fatalf("against vote: %v", err)
	}
	if err := m.CastDirectVote("u2", "Bob", Against); err != nil {
		t.Fatalf("against vote: %v", err)
	}
	st := m.Snapshot()
	if !st.Open || st.CountFor() != 0 {
		t.Errorf("state = open %v countFor %d, want open with 0", st.Open, st.CountFor())
	}
	completed := rec.count(func(ev Event) bool { _, ok := ev.(PollCompleted); return ok })
	if completed != 0 {
		t.Errorf("PollCompleted events = %d, want 0", completed)
	}
}

func TestCompletionStopsNativePoll(t *testing.T) {
	m, ch, _, _ := newTestManager(t, 1)

	if err := m.CastDirectVote("u1", "Ann", For); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if len(ch.stopped) != 1 || ch.stopped[0] != "msg-1" {
		t.Fatalf("stopped = %v, want [msg-1]: native poll must stop on completion", ch.stopped)
	}
	// ForceClose after completion must not stop it a second time.
	if err := m.ForceClose(); err != nil {
		t.Fatalf("ForceClose: %v", err)
	}
	if len(ch.stopped) != 1 {
		t.Errorf("stopped = %v, want a single stop", ch.stopped)
	}
}

func TestCompletionEmittedExactlyOnce(t *testing.T) {
	m, ch, _, rec := newTestManager(t, 2)

	if err := m.CastDirectVote("u1", "Ann", For); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := m.AddExternalVotes("req", "Req", nil, 1); err != nil {
		t.Fatalf("external vote: %v", err)
	}

	completed := rec.count(func(ev Event) bool { _, ok := ev.(PollCompleted); return ok })
	if completed != 1 {
		t.Fatalf("PollCompleted events = %d, want 1", completed)
	}
	st := m.Snapshot()
	if st.Open || !st.TargetReached {
		t.Errorf("state = open %v targetReached %v, want closed and reached", st.Open, st.TargetReached)
	}
	if len(ch.stopped) != 1 || ch.stopped[0] != "msg-1" {
		t.Errorf("stopped = %v, want [msg-1]", ch.stopped)
	}
	if err := m.CastDirectVote("u2", "Bob", For); !errors.Is(err, ErrPollClosed) {
		t.Errorf("vote after completion err = %v, want ErrPollClosed", err)
	}
}

func TestExternalBatchAllOrNothing(t *testing.T) {
	m, _, _, rec := newTestManager(t, 3)

	if err := m.AddExternalVotes("req", "Req", []string{"Ann", "Bob"}, 0); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	err := m.AddExternalVotes("req", "Req", []string{"Cid", "Dee"}, 0)
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want CapacityError", err)
	}
	if capErr.Requested != 2 || capErr.Remaining != 1 {
		t.Errorf("CapacityError = %+v, want Requested 2 Remaining 1", capErr)
	}
	// Nothing from the rejected batch landed.
	if got := m.Snapshot().CountFor(); got != 2 {
		t.Errorf("CountFor = %d, want 2", got)
	}
	added := rec.count(func(ev Event) bool { _, ok := ev.(VoteAdded); return ok })
	if added != 1 {
		t.Errorf("VoteAdded events = %d, want 1", added)
	}

	// A batch that fits the remaining slot lands and completes the poll.
	if err := m.AddExternalVotes("req", "Req", nil, 1); err != nil {
		t.Fatalf("final vote: %v", err)
	}
	if got := m.Snapshot().CountFor(); got != 3 {
		t.Errorf("CountFor = %d, want 3", got)
	}
	completed := rec.count(func(ev Event) bool { _, ok := ev.(PollCompleted); return ok })
	if completed != 1 {
		t.Errorf("PollCompleted events = %d, want 1", completed)
	}
}

func TestExternalBatchVariants(t *testing.T) {
	tests := []struct {
		name      string
		names     []string
		count     int
		wantFor   int
		wantKinds []VoteKind
	}{
		{"named", []string{"Ann", "Bob"}, 0, 2, []VoteKind{KindExternal, KindExternal}},
		{"counted", nil, 3, 3, []VoteKind{KindExternal, KindExternal, KindExternal}},
		{"bare", nil, 0, 1, []VoteKind{KindExternal}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _, _ := newTestManager(t, 10)
			if err := m.AddExternalVotes("req", "Req", tt.names, tt.count); err != nil {
				t.Fatalf("AddExternalVotes: %v", err)
			}
			st := m.Snapshot()
			if got := st.CountFor(); got != tt.wantFor {
				t.Fatalf("CountFor = %d, want %d", got, tt.wantFor)
			}
			for i, nv := range st.Positive() {
				if nv.Vote.Kind() != tt.wantKinds[i] {
					t.Errorf("vote %d kind = %v, want %v", i, nv.Vote.Kind(), tt.wantKinds[i])
				}
				if nv.Vote.RequesterID != "req" {
					t.Errorf("vote %d requester = %q, want req", i, nv.Vote.RequesterID)
				}
			}
		})
	}
}

func TestRevokeExternalByNumber(t *testing.T) {
	m, _, _, _ := newTestManager(t, 10)
	if err := m.AddExternalVotes("req", "Req", []string{"Ann", "Bob", "Cid"}, 0); err != nil {
		t.Fatalf("AddExternalVotes: %v", err)
	}

	v, err := m.RevokeExternalVoteByNumber(2, "req", false)
	if err != nil {
		t.Fatalf("RevokeExternalVoteByNumber: %v", err)
	}
	if v.Name() != "Bob" {
		t.Errorf("removed %q, want Bob", v.Name())
	}
	// Numbers shift down: Cid is #2 now.
	v, err = m.RevokeExternalVoteByNumber(2, "req", false)
	if err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if v.Name() != "Cid" {
		t.Errorf("removed %q, want Cid", v.Name())
	}
	if _, err := m.RevokeExternalVoteByNumber(5, "req", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing number err = %v, want ErrNotFound", err)
	}
}

func TestRevokePermissions(t *testing.T) {
	m, _, _, _ := newTestManager(t, 10)
	if err := m.AddExternalVotes("owner", "Owner", []string{"Ann"}, 0); err != nil {
		t.Fatalf("AddExternalVotes: %v", err)
	}
	if err := m.CastDirectVote("u1", "Bob", For); err != nil {
		t.Fatalf("CastDirectVote: %v", err)
	}

	if _, err := m.RevokeExternalVoteByNumber(1, "stranger", false); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("stranger revoke err = %v, want ErrPermissionDenied", err)
	}
	if _, err := m.RevokeExternalVoteByNumber(1, "stranger", true); err != nil {
		t.Errorf("admin revoke of external vote: %v", err)
	}
	// Bob's direct vote is #1 now; admins may remove it because the
	// manager was configured with AdminRevokesDirect.
	if _, err := m.RevokeExternalVoteByNumber(1, "u1", false); !errors.Is(err, ErrDirectVoteNotRevocable) {
		t.Errorf("non-admin direct revoke err = %v, want ErrDirectVoteNotRevocable", err)
	}
	if _, err := m.RevokeExternalVoteByNumber(1, "someone", true); err != nil {
		t.Errorf("admin direct revoke: %v", err)
	}
}

func TestRevokeDirectPolicyDisabled(t *testing.T) {
	ch := &fakeChannel{}
	events := &Dispatcher{}
	m := NewManager(Config{AdminRevokesDirect: false}, ch, newMemStore(), events)
	if err := m.Start("Playing?", "Yes", "No", 10); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.CastDirectVote("u1", "Ann", For); err != nil {
		t.Fatalf("CastDirectVote: %v", err)
	}
	if _, err := m.RevokeExternalVoteByNumber(1, "admin", true); !errors.Is(err, ErrDirectVoteNotRevocable) {
		t.Errorf("admin revoke with policy off err = %v, want ErrDirectVoteNotRevocable", err)
	}
}

func TestRevokeDirectVote(t *testing.T) {
	m, _, _, rec := newTestManager(t, 10)
	if err := m.CastDirectVote("u1", "Ann", For); err != nil {
		t.Fatalf("CastDirectVote: %v", err)
	}
	if err := m.RevokeDirectVote("u1"); err != nil {
		t.Fatalf("RevokeDirectVote: %v", err)
	}
	if got := m.Snapshot().CountFor(); got != 0 {
		t.Errorf("CountFor = %d, want 0", got)
	}
	// Unknown voter is a silent no-op.
	if err := m.RevokeDirectVote("u9"); err != nil {
		t.Errorf("RevokeDirectVote(u9) = %v, want nil", err)
	}
	revoked := rec.count(func(ev Event) bool { _, ok := ev.(VoteRevoked); return ok })
	if revoked != 1 {
		t.Errorf("VoteRevoked events = %d, want 1", revoked)
	}
}

func TestDirectForDroppedWhenNoCapacity(t *testing.T) {
	// A state persisted between the vote append and the completion
	// transition can come back open with the target already met. A FOR
	// vote against it must be dropped without an error or a ledger entry.
	store := newMemStore()
	full := State{
		Open:     true,
		Question: "Playing?",
		Target:   1,
		PollRef:  "msg-1",
		Votes:    []Vote{newVote(For, "u1", "Ann", "", "")},
	}
	if err := store.Save(StateKey, full); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	rec := &recorder{}
	events := &Dispatcher{}
	events.Subscribe(rec.record)
	m := NewManager(Config{}, &fakeChannel{}, store, events)
	if err := m.LoadPersisted(); err != nil {
		t.Fatalf("LoadPersisted: %v", err)
	}

	if err := m.CastDirectVote("u2", "Bob", For); err != nil {
		t.Fatalf("over-capacity vote returned error: %v", err)
	}
	st := m.Snapshot()
	if got := st.CountFor(); got != 1 {
		t.Errorf("CountFor = %d, want 1", got)
	}
	if len(st.Votes) != 1 {
		t.Errorf("ledger has %d votes, want 1", len(st.Votes))
	}
	added := rec.count(func(ev Event) bool { _, ok := ev.(VoteAdded); return ok })
	if added != 0 {
		t.Errorf("VoteAdded events = %d, want 0", added)
	}
}

func TestForceCloseIdempotent(t *testing.T) {
	m, ch, _, rec := newTestManager(t, 10)

	if err := m.ForceClose(); err != nil {
		t.Fatalf("ForceClose: %v", err)
	}
	if err := m.ForceClose(); err != nil {
		t.Fatalf("second ForceClose: %v", err)
	}
	if len(ch.stopped) != 1 {
		t.Errorf("stopped %d polls, want 1", len(ch.stopped))
	}
	closed := rec.count(func(ev Event) bool { _, ok := ev.(PollClosed); return ok })
	if closed != 1 {
		t.Errorf("PollClosed events = %d, want 1", closed)
	}
	if err := m.CastDirectVote("u1", "Ann", For); !errors.Is(err, ErrPollClosed) {
		t.Errorf("vote after close err = %v, want ErrPollClosed", err)
	}
}

func TestClosedPollRejectsMutations(t *testing.T) {
	m, _, _, _ := newTestManager(t, 10)
	if err := m.ForceClose(); err != nil {
		t.Fatalf("ForceClose: %v", err)
	}

	if err := m.AddExternalVotes("req", "Req", nil, 1); !errors.Is(err, ErrPollClosed) {
		t.Errorf("AddExternalVotes err = %v, want ErrPollClosed", err)
	}
	if _, err := m.RevokeExternalVoteByNumber(1, "req", true); !errors.Is(err, ErrPollClosed) {
		t.Errorf("RevokeExternalVoteByNumber err = %v, want ErrPollClosed", err)
	}
	if err := m.RevokeDirectVote("u1"); !errors.Is(err, ErrPollClosed) {
		t.Errorf("RevokeDirectVote err = %v, want ErrPollClosed", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	m, _, store, _ := newTestManager(t, 5)
	if err := m.CastDirectVote("u1", "Ann", For); err != nil {
		t.Fatalf("CastDirectVote: %v", err)
	}
	if err := m.AddExternalVotes("req", "Req", []string{"Bob"}, 0); err != nil {
		t.Fatalf("AddExternalVotes: %v", err)
	}

	restored := NewManager(Config{AdminRevokesDirect: true}, &fakeChannel{}, store, &Dispatcher{})
	if err := restored.LoadPersisted(); err != nil {
		t.Fatalf("LoadPersisted: %v", err)
	}
	st := restored.Snapshot()
	if !st.Open || st.CountFor() != 2 || st.Target != 5 {
		t.Errorf("restored state = %+v", st)
	}
	// The restored ledger keeps working.
	if err := restored.CastDirectVote("u2", "Cid", For); err != nil {
		t.Fatalf("vote on restored manager: %v", err)
	}
	if got := restored.Snapshot().CountFor(); got != 3 {
		t.Errorf("CountFor = %d, want 3", got)
	}
}

func TestResetClearsState(t *testing.T) {
	m, ch, _, _ := newTestManager(t, 5)
	if err := m.CastDirectVote("u1", "Ann", For); err != nil {
		t.Fatalf("CastDirectVote: %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st := m.Snapshot()
	if st.Open || st.Question != "" || len(st.Votes) != 0 {
		t.Errorf("state after reset = %+v", st)
	}
	if len(ch.stopped) != 1 {
		t.Errorf("stopped %d polls, want 1", len(ch.stopped))
	}
}

func TestStartFailurePropagates(t *testing.T) {
	ch := &fakeChannel{failure: errors.New("discord down")}
	m := NewManager(Config{}, ch, newMemStore(), &Dispatcher{})
	if err := m.Start("Playing?", "Yes", "No", 5); err == nil {
		t.Fatal("Start with failing channel succeeded")
	}
	if m.IsOpen() {
		t.Error("poll open after failed Start")
	}
}
