package poll

import (
	"errors"
	"fmt"
)

var (
	ErrPollClosed             = errors.New("no poll is open")
	ErrNotFound               = errors.New("vote not found")
	ErrDirectVoteNotRevocable = errors.New("direct votes are revoked by unselecting the poll answer")
	ErrPermissionDenied       = errors.New("only the original requester or an admin may revoke this vote")
)

// CapacityError rejects an external vote batch that would overshoot the
// target. The batch is rejected whole, never truncated.
type CapacityError struct {
	Requested int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("requested %d votes but only %d slots remain", e.Requested, e.Remaining)
}
