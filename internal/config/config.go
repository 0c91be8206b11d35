package config

import (
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	DataDir      string
	TagsFile     string
	RepoPath     string
	RepoName     string
	Classify     bool
	RecentWindow int
	LogLevel     string

	AnthropicAPIKey string
	AnthropicModel  string
}

func Load() Config {
	dataDir := expandHome(envStr("PUNCHLOG_DATA_DIR", "~/.punchlog"))
	return Config{
		DataDir:         dataDir,
		TagsFile:        expandHome(envStr("PUNCHLOG_TAGS_FILE", filepath.Join(dataDir, "tags.yml"))),
		RepoPath:        expandHome(envStr("PUNCHLOG_REPO", ".")),
		RepoName:        envStr("PUNCHLOG_REPO_NAME", ""),
		Classify:        envBool("PUNCHLOG_CLASSIFY", true),
		RecentWindow:    envInt("PUNCHLOG_RECENT_WINDOW", 20),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("PUNCHLOG_MODEL", "claude-sonnet-4-20250514"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
