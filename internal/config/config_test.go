package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.QueueMaxRetries != 3 {
		t.Fatalf("expected 3 queue retries, got %d", cfg.QueueMaxRetries)
	}
	if cfg.QueueMessageDelayMS != 200 {
		t.Fatalf("expected 200ms message delay, got %d", cfg.QueueMessageDelayMS)
	}
	if cfg.ServiceCacheTTLHours != 24 {
		t.Fatalf("expected 24h cache ttl, got %d", cfg.ServiceCacheTTLHours)
	}
	if cfg.OpenAIModel != "gpt-3.5-turbo" {
		t.Fatalf("unexpected default model: %q", cfg.OpenAIModel)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("TELEGRAM_GROUP_ID", "-100123")
	t.Setenv("QUEUE_MESSAGE_DELAY_MS", "75")
	t.Setenv("QUEUE_MAX_RETRIES", "not a number")

	cfg := Load()
	if cfg.TelegramGroupID != -100123 {
		t.Fatalf("expected group id -100123, got %d", cfg.TelegramGroupID)
	}
	if cfg.QueueMessageDelayMS != 75 {
		t.Fatalf("expected 75ms delay, got %d", cfg.QueueMessageDelayMS)
	}
	if cfg.QueueMaxRetries != 3 {
		t.Fatalf("malformed value must fall back to default, got %d", cfg.QueueMaxRetries)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comentario\n" +
		"export TELEGRAM_TOKEN=abc123\n" +
		"RECLOCATION_API_URL=\"https://example.com/api/timing\"\n" +
		"SEND_BURST=10 # inline\n" +
		"ALLOWED_CHAT_IDS=7,-100123\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("ALLOWED_CHAT_IDS", "42")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("TELEGRAM_TOKEN"); got != "abc123" {
		t.Fatalf("expected token loaded, got %q", got)
	}
	if got := os.Getenv("RECLOCATION_API_URL"); got != "https://example.com/api/timing" {
		t.Fatalf("expected quoted value unwrapped, got %q", got)
	}
	if got := os.Getenv("SEND_BURST"); got != "10" {
		t.Fatalf("expected inline comment stripped, got %q", got)
	}
	if got := os.Getenv("ALLOWED_CHAT_IDS"); got != "42" {
		t.Fatalf("process env must win over the file, got %q", got)
	}
}
