package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matchday-bot/matchday/src/poll"
)

type Status struct {
	polls PollService
	sched ScheduleService
}

func NewStatus(polls PollService, sched ScheduleService) Status {
	return Status{polls: polls, sched: sched}
}

func (h Status) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Poll returns the current poll snapshot with the numbered FOR listing.
func (h Status) Poll(c *gin.Context) {
	st := h.polls.Snapshot()

	type entry struct {
		Number  int    `json:"number"`
		Name    string `json:"name"`
		Direct  bool   `json:"direct"`
		AddedBy string `json:"addedBy,omitempty"`
	}
	var going []entry
	for _, nv := range st.Positive() {
		e := entry{
			Number: nv.Number,
			Name:   nv.Vote.Name(),
			Direct: nv.Vote.Kind() == poll.KindDirect,
		}
		if !e.Direct {
			e.AddedBy = nv.Vote.RequesterName
		}
		going = append(going, e)
	}

	c.JSON(http.StatusOK, gin.H{
		"open":          st.Open,
		"targetReached": st.TargetReached,
		"question":      st.Question,
		"target":        st.Target,
		"confirmed":     st.CountFor(),
		"going":         going,
	})
}

func (h Status) Schedule(c *gin.Context) {
	cfg := h.sched.Config()
	c.JSON(http.StatusOK, gin.H{
		"enabled":             cfg.Enabled,
		"question":            cfg.Question,
		"forLabel":            cfg.ForLabel,
		"againstLabel":        cfg.AgainstLabel,
		"target":              cfg.Target,
		"dayOfWeek":           cfg.DayOfWeek,
		"startHour":           cfg.StartHour,
		"randomWindowMinutes": cfg.RandomWindowMinutes,
		"nextFireAt":          cfg.NextFireAt,
	})
}
