package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Admin struct {
	polls   PollService
	sched   ScheduleService
	instant InstantService
}

func NewAdmin(polls PollService, sched ScheduleService, instant InstantService) Admin {
	return Admin{polls: polls, sched: sched, instant: instant}
}

// StartPoll opens a poll from the instant template; body fields override
// individual template values for this poll only.
func (h Admin) StartPoll(c *gin.Context) {
	var req struct {
		Question     *string `json:"question" binding:"omitempty,min=3,max=300"`
		ForLabel     *string `json:"forLabel" binding:"omitempty,min=1,max=100"`
		AgainstLabel *string `json:"againstLabel" binding:"omitempty,min=1,max=100"`
		Target       *int    `json:"target" binding:"omitempty,min=1,max=30"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
			return
		}
	}

	ic := h.instant.InstantConfig()
	if req.Question != nil {
		ic.Question = *req.Question
	}
	if req.ForLabel != nil {
		ic.ForLabel = *req.ForLabel
	}
	if req.AgainstLabel != nil {
		ic.AgainstLabel = *req.AgainstLabel
	}
	if req.Target != nil {
		ic.Target = *req.Target
	}

	if err := h.polls.Start(ic.Question, ic.ForLabel, ic.AgainstLabel, ic.Target); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.Status(http.StatusCreated)
}

func (h Admin) ClosePoll(c *gin.Context) {
	if err := h.polls.ForceClose(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateSchedule applies a partial weekly config update. Only the fields
// present in the body change.
func (h Admin) UpdateSchedule(c *gin.Context) {
	var req struct {
		Enabled             *bool   `json:"enabled"`
		Question            *string `json:"question" binding:"omitempty,min=3,max=300"`
		ForLabel            *string `json:"forLabel" binding:"omitempty,min=1,max=100"`
		AgainstLabel        *string `json:"againstLabel" binding:"omitempty,min=1,max=100"`
		Target              *int    `json:"target" binding:"omitempty,min=1,max=30"`
		DayOfWeek           *int    `json:"dayOfWeek" binding:"omitempty,min=0,max=6"`
		StartHour           *int    `json:"startHour" binding:"omitempty,min=0,max=23"`
		RandomWindowMinutes *int    `json:"randomWindowMinutes" binding:"omitempty,min=0,max=59"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	cfg := h.sched.Config()
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Question != nil {
		cfg.Question = *req.Question
	}
	if req.ForLabel != nil {
		cfg.ForLabel = *req.ForLabel
	}
	if req.AgainstLabel != nil {
		cfg.AgainstLabel = *req.AgainstLabel
	}
	if req.Target != nil {
		cfg.Target = *req.Target
	}
	if req.DayOfWeek != nil {
		cfg.DayOfWeek = *req.DayOfWeek
	}
	if req.StartHour != nil {
		cfg.StartHour = *req.StartHour
	}
	if req.RandomWindowMinutes != nil {
		cfg.RandomWindowMinutes = *req.RandomWindowMinutes
	}

	if err := h.sched.UpdateConfig(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nextFireAt": h.sched.Config().NextFireAt})
}
