package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matchday-bot/matchday/src/bot"
	"github.com/matchday-bot/matchday/src/config"
	"github.com/matchday-bot/matchday/src/data"
	"github.com/matchday-bot/matchday/src/webserver"
)

func main() {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "matchday:matchday@tcp(127.0.0.1:3306)/matchday"
	}
	db := data.MustMySQL(mysqlDSN)

	cfg := config.Load(db)
	rdb := data.MustRedis(cfg.RedisURL)

	b, err := bot.New(cfg, db, rdb)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}
	if err := b.Start(); err != nil {
		log.Fatalf("bot: %v", err)
	}
	log.Printf("matchday bot running, poll channel %s", cfg.PollChannelID)

	router := webserver.New(cfg, b.Polls(), b.Scheduler(), b)
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
	b.Stop()
	log.Printf("shutdown complete")
}
