package config

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ColinKOB/PhotoParty/internal/ai"
	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	PlayerName    string
	PlayerAvatar  string
	PlayerID      string
	PlayerIDFile  string
	Settings      game.Settings
	PromptsFile   string
	MDNSEnabled   bool
	InviteTimeout time.Duration
	ExportEnabled bool
	ExportFile    string
	AI            ai.Config
	AIPromptCount int
	LogLevel      string
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	c := Config{}
	c.Port = getenv("PORT", "7777")
	c.PlayerName = getenv("PLAYER_NAME", defaultName())
	c.PlayerAvatar = getenv("PLAYER_AVATAR", game.Avatars[rand.Intn(len(game.Avatars))])
	c.PlayerID = os.Getenv("PLAYER_ID")
	c.PlayerIDFile = getenv("PLAYER_ID_FILE", defaultIDFile())
	c.PromptsFile = os.Getenv("PROMPTS_FILE")
	c.MDNSEnabled = getenv("MDNS_ENABLED", "true") == "true"
	c.ExportEnabled = getenv("EXPORT_ENABLED", "false") == "true"
	c.ExportFile = getenv("EXPORT_FILE", "photoparty_results.txt")
	c.LogLevel = getenv("LOG_LEVEL", "info")
	c.AI = ai.Config{
		Provider:      os.Getenv("AI_PROVIDER"),
		Model:         getenv("AI_MODEL", "gpt-4o-mini"),
		SystemPrompt:  getenv("AI_SYSTEM_PROMPT", ai.DefaultSystemPrompt),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OllamaHost:    getenv("OLLAMA_HOST", "http://localhost:11434"),
	}

	var err error
	if c.InviteTimeout, err = time.ParseDuration(getenv("INVITE_TIMEOUT", "30s")); err != nil {
		return c, fmt.Errorf("INVITE_TIMEOUT: %w", err)
	}
	if c.AIPromptCount, err = getint("AI_PROMPT_COUNT", 3); err != nil {
		return c, err
	}

	s := game.DefaultSettings()
	if s.RoundCount, err = getint("ROUND_COUNT", s.RoundCount); err != nil {
		return c, err
	}
	if s.SelectionTime, err = getint("SELECTION_TIME", s.SelectionTime); err != nil {
		return c, err
	}
	if s.VotingTime, err = getint("VOTING_TIME", s.VotingTime); err != nil {
		return c, err
	}
	s.Categories = ParseCategories(os.Getenv("CATEGORIES"))
	if err := s.Validate(); err != nil {
		return c, err
	}
	c.Settings = s
	return c, nil
}

// ParseCategories reads a comma separated list; empty means every category.
func ParseCategories(v string) []game.Category {
	var out []game.Category
	seen := map[game.Category]bool{}
	for _, part := range strings.Split(v, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c := game.ParseCategory(part)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// EnsurePlayerID returns the configured player id, or the one persisted in
// PlayerIDFile, generating and saving a new one when neither exists.
func (c *Config) EnsurePlayerID() (string, error) {
	if c.PlayerID != "" {
		return c.PlayerID, nil
	}
	if b, err := os.ReadFile(c.PlayerIDFile); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			c.PlayerID = id
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(c.PlayerIDFile), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(c.PlayerIDFile, []byte(id+"\n"), 0o600); err != nil {
		return "", err
	}
	c.PlayerID = id
	return id, nil
}

func defaultName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return strings.SplitN(h, ".", 2)[0]
	}
	return "Player"
}

func defaultIDFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".photoparty_id"
	}
	return filepath.Join(dir, "photoparty", "player_id")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
