package poll

import (
	"time"

	"github.com/google/uuid"
)

// Option is a poll answer choice.
type Option int

const (
	For Option = iota
	Against
)

// VoteKind discriminates how a vote entered the ledger.
type VoteKind int

const (
	// KindDirect is a vote cast by a platform user answering the native poll.
	KindDirect VoteKind = iota
	// KindExternal is a vote credited to someone without an account,
	// recorded by a requester on their behalf.
	KindExternal
	// KindAnonymous is a single uncredited vote added without a name.
	KindAnonymous
)

// AnonymousName is the listing placeholder for votes without a name.
const AnonymousName = "Anonymous"

// Vote is one cast or credited vote. Exactly one of VoterID (direct) or
// RequesterID (external) is set; neither for the bare anonymous case.
type Vote struct {
	ID            string    `json:"id"`
	Option        Option    `json:"option"`
	VoterID       string    `json:"voterId,omitempty"`
	DisplayName   string    `json:"displayName,omitempty"`
	RequesterID   string    `json:"requesterId,omitempty"`
	RequesterName string    `json:"requesterName,omitempty"`
	CastAt        time.Time `json:"castAt"`
}

func newVote(opt Option, voterID, displayName, requesterID, requesterName string) Vote {
	return Vote{
		ID:            uuid.NewString(),
		Option:        opt,
		VoterID:       voterID,
		DisplayName:   displayName,
		RequesterID:   requesterID,
		RequesterName: requesterName,
		CastAt:        time.Now().UTC(),
	}
}

func (v Vote) Kind() VoteKind {
	switch {
	case v.VoterID != "":
		return KindDirect
	case v.RequesterID != "":
		return KindExternal
	default:
		return KindAnonymous
	}
}

// Name returns the display name with the anonymous fallback.
func (v Vote) Name() string {
	if v.DisplayName == "" {
		return AnonymousName
	}
	return v.DisplayName
}
