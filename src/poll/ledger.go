package poll

// NumberedVote pairs a FOR vote with its 1-based display number. Numbers
// are recomputed on every listing, so revoking vote #3 shifts the numbers
// after it down by one: they index current FOR votes in order, they are
// not permanent IDs.
type NumberedVote struct {
	Number int
	Index  int // position in the ledger
	Vote   Vote
}

// Ledger is the ordered vote sequence. Insertion order defines external
// vote numbering. Callers enforce the business rules; the ledger only
// stores and queries.
type Ledger struct {
	votes []Vote
}

func (l *Ledger) Len() int { return len(l.votes) }

// CountFor counts FOR votes.
func (l *Ledger) CountFor() int {
	n := 0
	for _, v := range l.votes {
		if v.Option == For {
			n++
		}
	}
	return n
}

func (l *Ledger) Append(votes ...Vote) {
	l.votes = append(l.votes, votes...)
}

// RemoveAt removes the vote at position i.
func (l *Ledger) RemoveAt(i int) (Vote, error) {
	if i < 0 || i >= len(l.votes) {
		return Vote{}, ErrNotFound
	}
	v := l.votes[i]
	l.votes = append(l.votes[:i], l.votes[i+1:]...)
	return v, nil
}

// Positive lists FOR votes in ledger order with display numbers.
func (l *Ledger) Positive() []NumberedVote {
	var out []NumberedVote
	num := 1
	for i, v := range l.votes {
		if v.Option != For {
			continue
		}
		out = append(out, NumberedVote{Number: num, Index: i, Vote: v})
		num++
	}
	return out
}

// LastByRequester returns the most recent vote credited by requesterID,
// scanning from the end.
func (l *Ledger) LastByRequester(requesterID string) (int, Vote, bool) {
	if requesterID == "" {
		return 0, Vote{}, false
	}
	for i := len(l.votes) - 1; i >= 0; i-- {
		if l.votes[i].RequesterID == requesterID {
			return i, l.votes[i], true
		}
	}
	return 0, Vote{}, false
}

// LastByVoter returns the position of the most recent direct vote by
// voterID.
func (l *Ledger) LastByVoter(voterID string) (int, bool) {
	if voterID == "" {
		return 0, false
	}
	for i := len(l.votes) - 1; i >= 0; i-- {
		if l.votes[i].VoterID == voterID {
			return i, true
		}
	}
	return 0, false
}

// HasDirectFor reports whether voterID already has a FOR vote recorded.
func (l *Ledger) HasDirectFor(voterID string) bool {
	if voterID == "" {
		return false
	}
	for _, v := range l.votes {
		if v.VoterID == voterID && v.Option == For {
			return true
		}
	}
	return false
}

// Votes returns a copy of the sequence.
func (l *Ledger) Votes() []Vote {
	out := make([]Vote, len(l.votes))
	copy(out, l.votes)
	return out
}
