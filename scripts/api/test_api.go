// Minimal end-to-end smoke test for the matchday HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	baseURL  = getenv("API_URL", "http://localhost:8080/v1")
	redisURL = getenv("REDIS_URL", "redis://127.0.0.1:6379/0")
	adminKey = getenv("ADMIN_KEY", "")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	if adminKey == "" {
		log.Fatal("ADMIN_KEY not set")
	}

	checkHealth()
	token := login()

	startPoll(token)
	checkStatus(true)
	closePoll(token)
	checkStatus(false)
	checkSchedule()
	checkEventStream()

	fmt.Println("✓ all endpoints passed")
}

func login() string {
	var resp struct{ Token string }
	doJSON("POST", "/auth/login", map[string]any{"key": adminKey}, &resp, http.StatusOK)
	if resp.Token == "" {
		log.Fatal("login: empty token")
	}
	return resp.Token
}

func checkHealth() {
	doJSON("GET", "/healthz", nil, nil, http.StatusOK)
}

func startPoll(token string) {
	doAuthed("POST", "/poll", token, map[string]any{
		"question": "Smoke test: playing this week?",
		"target":   3,
	}, nil, http.StatusCreated)
}

func closePoll(token string) {
	doAuthed("POST", "/poll/close", token, nil, nil, http.StatusNoContent)
}

func checkStatus(wantOpen bool) {
	var resp struct {
		Open      bool `json:"open"`
		Confirmed int  `json:"confirmed"`
	}
	doJSON("GET", "/status", nil, &resp, http.StatusOK)
	if resp.Open != wantOpen {
		log.Fatalf("status: open = %v, want %v", resp.Open, wantOpen)
	}
}

func checkSchedule() {
	var resp struct {
		Enabled   bool `json:"enabled"`
		DayOfWeek int  `json:"dayOfWeek"`
	}
	doJSON("GET", "/schedule", nil, &resp, http.StatusOK)
	fmt.Printf("schedule: enabled=%v day=%d\n", resp.Enabled, resp.DayOfWeek)
}

func checkEventStream() {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := rdb.XRevRangeN(ctx, "matchday.events", "+", "-", 5).Result()
	if err != nil {
		log.Fatalf("read event stream: %v", err)
	}
	if len(entries) == 0 {
		log.Fatal("event stream empty after poll start/close")
	}
	fmt.Printf("last event: %v\n", entries[0].Values["type"])
}

func doJSON(method, path string, body, out any, wantStatus int) {
	doAuthed(method, path, "", body, out, wantStatus)
}

func doAuthed(method, path, token string, body, out any, wantStatus int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, baseURL+path, &buf)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}
