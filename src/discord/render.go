package discord

import (
	"fmt"
	"strings"

	"github.com/matchday-bot/matchday/src/poll"
)

// RenderStatus builds the status message body from a poll snapshot.
func RenderStatus(st poll.State) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%s**\n", st.Question)
	count := st.CountFor()
	switch {
	case st.TargetReached:
		b.WriteString("We have enough players, see you on the field!\n")
	case st.Open:
		fmt.Fprintf(&b, "Confirmed %d of %d, %d more to go.\n", count, st.Target, st.Target-count)
	default:
		fmt.Fprintf(&b, "Poll closed with %d of %d confirmed.\n", count, st.Target)
	}

	if st.Open {
		b.WriteString("\nVote in the poll above, or add friends without Discord:\n")
		b.WriteString("`/+` one anonymous vote, `/+ 3` three votes, `/+ Alex, Sam` named votes, `/- 2` remove vote #2.\n")
	}

	positive := st.Positive()
	if len(positive) > 0 {
		b.WriteString("\nGoing:\n")
		for _, nv := range positive {
			fmt.Fprintf(&b, "%d. %s", nv.Number, nv.Vote.Name())
			if nv.Vote.Kind() != poll.KindDirect && nv.Vote.RequesterName != "" {
				fmt.Fprintf(&b, " (added by %s)", nv.Vote.RequesterName)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderCompletion builds the target-reached announcement.
func RenderCompletion(st poll.State) string {
	return fmt.Sprintf("**%s**: target reached, %d confirmed. Game on!", st.Question, st.CountFor())
}
