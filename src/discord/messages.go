package discord

import (
	"errors"
	"fmt"

	"github.com/matchday-bot/matchday/src/command"
	"github.com/matchday-bot/matchday/src/poll"
)

// UserMessage translates a core or parse error into a reply suitable for
// the channel. Unknown errors get a generic line; details stay in logs.
func UserMessage(err error, maxCount int) string {
	var capErr *poll.CapacityError
	if errors.As(err, &capErr) {
		if capErr.Remaining <= 0 {
			return "All slots are taken already."
		}
		return fmt.Sprintf("Only %d slot(s) left, can't add %d votes.", capErr.Remaining, capErr.Requested)
	}

	switch {
	case errors.Is(err, poll.ErrPollClosed):
		return "There is no open poll right now."
	case errors.Is(err, poll.ErrNotFound):
		return "No vote with that number. Check the list and try again."
	case errors.Is(err, poll.ErrDirectVoteNotRevocable):
		return "That vote was cast in the poll directly. The voter can remove it by unselecting their answer."
	case errors.Is(err, poll.ErrPermissionDenied):
		return "You can only remove votes you added yourself."
	case errors.Is(err, command.ErrInvalidVoteCount):
		return fmt.Sprintf("Vote count must be between 1 and %d.", maxCount)
	case errors.Is(err, command.ErrEmptyNames):
		return "Give at least one name, e.g. `/+ Alex, Sam`."
	case errors.Is(err, command.ErrTooManyNames):
		return fmt.Sprintf("At most %d names per command.", command.MaxNames)
	case errors.Is(err, command.ErrNameTooLong):
		return fmt.Sprintf("Names are limited to %d characters.", command.MaxNameLength)
	case errors.Is(err, command.ErrInvalidNameChars):
		return "Names may only contain letters, digits, spaces, dots, underscores and dashes."
	case errors.Is(err, command.ErrVoteNumberNotProvided):
		return "Which vote? Use the number from the list, e.g. `/- 2`."
	case errors.Is(err, command.ErrInvalidVoteNumberFormat), errors.Is(err, command.ErrInvalidVoteNumber):
		return "The vote number must be a positive number, e.g. `/- 2`."
	default:
		return "Something went wrong, try again in a moment."
	}
}
