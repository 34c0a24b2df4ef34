// Package config loads deployment configuration the same way across all
// components: settings table first, environment second, defaults last.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/matchday-bot/matchday/src/data"
	"gorm.io/gorm"
)

type Config struct {
	Token         string
	GuildID       string
	PollChannelID string
	AdminRoleID   string
	AdminUserIDs  []string

	Timezone     string
	TickInterval time.Duration
	MaxVoteCount int
	// AdminRevokesDirect lets admins remove direct votes through the
	// revoke command.
	AdminRevokesDirect bool

	RedisURL  string
	Port      string
	JWTSecret string
	AdminKey  string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// setting retrieves a value with env and default fallback.
func setting(name, envKey, def string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = def
	}
	return val
}

func splitIDs(csv string) []string {
	var ids []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

// Load reads the bot configuration. Required fields are fatal when
// missing: the bot cannot run without a token and a target channel.
func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("load settings: %v", err)
	}

	tick, err := strconv.Atoi(setting("tick_interval", "TICK_INTERVAL", "600"))
	if err != nil || tick <= 0 {
		tick = 600
	}
	maxVotes, err := strconv.Atoi(setting("max_vote_count", "MAX_VOTE_COUNT", "20"))
	if err != nil || maxVotes <= 0 {
		maxVotes = 20
	}

	cfg := Config{
		Token:              setting("discord_token", "DISCORD_TOKEN", ""),
		GuildID:            setting("guild_id", "GUILD_ID", ""),
		PollChannelID:      setting("poll_channel_id", "POLL_CHANNEL_ID", ""),
		AdminRoleID:        setting("admin_role_id", "ADMIN_ROLE_ID", ""),
		AdminUserIDs:       splitIDs(setting("admin_user_ids", "ADMIN_USER_IDS", "")),
		Timezone:           setting("timezone", "TIMEZONE", "Europe/Kyiv"),
		TickInterval:       time.Duration(tick) * time.Second,
		MaxVoteCount:       maxVotes,
		AdminRevokesDirect: setting("admin_revokes_direct", "ADMIN_REVOKES_DIRECT", "1") == "1",
		RedisURL:           getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		Port:               setting("http_port", "HTTP_PORT", "8080"),
		JWTSecret:          setting("jwt_secret", "JWT_SECRET", ""),
		AdminKey:           setting("admin_key", "ADMIN_KEY", ""),
	}

	if cfg.Token == "" {
		log.Fatal("DISCORD_TOKEN not set in database or environment")
	}
	if cfg.GuildID == "" {
		log.Fatal("GUILD_ID not set in database or environment")
	}
	if cfg.PollChannelID == "" {
		log.Fatal("POLL_CHANNEL_ID not set in database or environment")
	}

	return cfg
}

func (c Config) IsAdminUser(id string) bool {
	for _, adminID := range c.AdminUserIDs {
		if adminID == id {
			return true
		}
	}
	return false
}

// Location resolves the configured time zone; the weekly slot is fixed in
// this zone, not in UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("unknown timezone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}
