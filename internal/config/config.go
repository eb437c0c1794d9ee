/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"encoding/json"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	TZ       string
	HTTPAddr string

	DBDSN string

	JiraBaseURL    string
	JiraEmail      string
	JiraAPIToken   string
	JiraBoardID    int64
	JiraRelayURL   string
	JiraFieldsFile string
	JiraFieldMap   map[string]string // name -> id

	HoursPerStoryPoint float64

	HTTPTimeout        time.Duration
	JiraRateLimitRPS   float64
	JiraRateLimitBurst int
	WorkersJira        int

	CORSAllowedOrigins []string
	RelayAllowedHosts  []string

	RedisAddr      string
	SprintCacheTTL time.Duration

	ReportCron string

	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string

	TelegramToken   string
	TelegramChatIDs []int64

	OpenAIKey     string
	OpenAIModel   string
	OpenAITimeout time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoi(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func atoi64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}
	return i
}

func atof(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseInt64s(csv string) []int64 {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err == nil {
			out = append(out, n)
		}
	}
	return out
}

func parseStrings(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func Load() Config {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: cannot load .env: %v", err)
	}

	cfg := Config{
		AppEnv:   getenv("APP_ENV", "dev"),
		TZ:       getenv("APP_TZ", "UTC"),
		HTTPAddr: getenv("HTTP_ADDR", ":3000"),

		DBDSN: getenv("DB_DSN", ""),

		JiraBaseURL:    strings.TrimRight(getenv("JIRA_BASE_URL", ""), "/"),
		JiraEmail:      getenv("JIRA_EMAIL", ""),
		JiraAPIToken:   getenv("JIRA_API_TOKEN", ""),
		JiraBoardID:    atoi64("JIRA_BOARD_ID", 0),
		JiraRelayURL:   getenv("JIRA_RELAY_URL", ""),
		JiraFieldsFile: getenv("JIRA_FIELDS_FILE", "config/jira_fields.json"),

		HoursPerStoryPoint: atof("HOURS_PER_STORY_POINT", 1),

		HTTPTimeout:        dur("HTTP_TIMEOUT", 15*time.Second),
		JiraRateLimitRPS:   atof("JIRA_RATE_LIMIT_RPS", 10),
		JiraRateLimitBurst: atoi("JIRA_RATE_LIMIT_BURST", 20),
		WorkersJira:        atoi("WORKERS_JIRA", 6),

		CORSAllowedOrigins: parseStrings(getenv("CORS_ALLOWED_ORIGINS", "*")),
		RelayAllowedHosts:  parseStrings(getenv("RELAY_ALLOWED_HOSTS", "")),

		RedisAddr:      getenv("REDIS_ADDR", ""),
		SprintCacheTTL: dur("SPRINT_CACHE_TTL", 2*time.Minute),

		ReportCron: getenv("REPORT_CRON", ""),

		S3Region:    getenv("S3_REGION", "us-east-1"),
		S3Endpoint:  getenv("S3_ENDPOINT", ""),
		S3AccessKey: getenv("S3_ACCESS_KEY", ""),
		S3SecretKey: getenv("S3_SECRET_KEY", ""),
		S3Bucket:    getenv("S3_BUCKET", ""),

		TelegramToken:   getenv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatIDs: parseInt64s(getenv("TELEGRAM_CHAT_IDS", "")),

		OpenAIKey:     getenv("OPENAI_API_KEY", ""),
		OpenAIModel:   getenv("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAITimeout: dur("OPENAI_TIMEOUT", 15*time.Second),
	}
	if cfg.HoursPerStoryPoint <= 0 {
		cfg.HoursPerStoryPoint = 1
	}

	if loc, err := time.LoadLocation(cfg.TZ); err == nil {
		time.Local = loc
	} else {
		log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
	}

	// Optional: Jira field definitions (name -> id), used to locate the story point field
	if data, err := os.ReadFile(cfg.JiraFieldsFile); err == nil {
		cfg.JiraFieldMap = parseFieldDefs(data)
	}
	return cfg
}

func parseFieldDefs(data []byte) map[string]string {
	type fieldDef struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	var arr []fieldDef
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil
	}
	m := map[string]string{}
	for _, f := range arr {
		n := strings.TrimSpace(f.Name)
		if n != "" && f.ID != "" {
			m[n] = f.ID
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// StoryPointFieldID returns the custom field id mapped to a story point field name, if any.
func (c Config) StoryPointFieldID() string {
	for _, name := range []string{"Story Points", "Story point estimate", "Story points"} {
		if id, ok := c.JiraFieldMap[name]; ok {
			return id
		}
	}
	return ""
}

// RelayHosts is the relay allow list: RELAY_ALLOWED_HOSTS when set, otherwise the host of
// JIRA_BASE_URL and Atlassian Cloud sites.
func (c Config) RelayHosts() []string {
	if len(c.RelayAllowedHosts) > 0 {
		return c.RelayAllowedHosts
	}
	hosts := []string{"*.atlassian.net"}
	if u, err := url.Parse(c.JiraBaseURL); err == nil && u.Hostname() != "" {
		hosts = append(hosts, strings.ToLower(u.Hostname()))
	}
	return hosts
}

func (c Config) HasS3() bool { return c.S3Bucket != "" }

func (c Config) HasTelegram() bool { return c.TelegramToken != "" && len(c.TelegramChatIDs) > 0 }
