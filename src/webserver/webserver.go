// Package webserver exposes poll status and admin control over HTTP. Read
// endpoints are public; mutating endpoints sit behind a JWT issued against
// the deployment admin key.
package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/matchday-bot/matchday/src/config"
	"github.com/matchday-bot/matchday/src/poll"
)

// PollService is the slice of the poll manager the API uses.
type PollService interface {
	Snapshot() poll.State
	Start(question, forLabel, againstLabel string, target int) error
	ForceClose() error
}

// ScheduleService is the slice of the scheduler the API uses.
type ScheduleService interface {
	Config() config.WeeklyConfig
	UpdateConfig(config.WeeklyConfig) error
}

// InstantService reads and replaces the one-off poll template.
type InstantService interface {
	InstantConfig() config.InstantConfig
	SetInstantConfig(config.InstantConfig) error
}

func New(cfg config.Config, polls PollService, sched ScheduleService, instant InstantService) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, polls, sched, instant)
	return g
}

func attachRoutes(r *gin.Engine, cfg config.Config, polls PollService, sched ScheduleService, instant InstantService) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	authH := NewAuth(cfg)
	statusH := NewStatus(polls, sched)
	adminH := NewAdmin(polls, sched, instant)

	v1 := r.Group("/v1")
	{
		v1.GET("/healthz", statusH.Health)
		v1.GET("/status", statusH.Poll)
		v1.GET("/schedule", statusH.Schedule)
		v1.POST("/auth/login", authH.Login)

		secured := v1.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
		secured.POST("/poll", adminH.StartPoll)
		secured.POST("/poll/close", adminH.ClosePoll)
		secured.PUT("/schedule", adminH.UpdateSchedule)
	}
}
