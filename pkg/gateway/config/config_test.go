package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/voxhire/voxhire/pkg/gateway/interview/session"
)

// clearEnv blanks every variable LoadFromEnv reads so host state cannot leak
// into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VOXHIRE_ADDR", "VOXHIRE_STATIC_DIR", "VOXHIRE_CORS_ORIGINS",
		"VOXHIRE_READ_HEADER_TIMEOUT", "VOXHIRE_READ_TIMEOUT", "VOXHIRE_SHUTDOWN_GRACE_PERIOD",
		"VOXHIRE_LLM_PROVIDER", "VOXHIRE_LLM_MODEL",
		"OPENROUTER_API_KEY", "VOXHIRE_OPENROUTER_BASE_URL", "GEMINI_API_KEY",
		"DEEPGRAM_API_KEY", "VOXHIRE_DEEPGRAM_MODEL", "AWS_REGION", "VOXHIRE_POLLY_VOICE",
		"VOXHIRE_SYSTEM_PROMPT_FILE", "VOXHIRE_GREETING_INSTRUCTION",
		"VOXHIRE_MAX_FRAGMENT_CHARS", "VOXHIRE_DELIVERY_MODE", "VOXHIRE_DELIVERY_BUFFER",
		"VOXHIRE_PACING_DELAY", "VOXHIRE_HISTORY_MAX_TURNS",
		"VOXHIRE_SILENCE_STAGE1", "VOXHIRE_SILENCE_STAGE2", "VOXHIRE_SILENCE_STAGE3",
		"VOXHIRE_MESSAGE_POOLS_FILE",
		"VOXHIRE_UPLOAD_RETENTION", "VOXHIRE_UPLOAD_SWEEP_INTERVAL", "VOXHIRE_MAX_UPLOAD_BYTES",
		"VOXHIRE_WS_PING_INTERVAL", "VOXHIRE_WS_WRITE_TIMEOUT", "VOXHIRE_WS_READ_TIMEOUT",
		"VOXHIRE_WS_MAX_MESSAGE_BYTES", "VOXHIRE_MAX_AUDIO_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != ":8000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.LLMProvider != ProviderOpenRouter {
		t.Errorf("LLMProvider = %q", cfg.LLMProvider)
	}
	if cfg.DeliveryMode != session.DeliveryOverlapped {
		t.Errorf("DeliveryMode = %q", cfg.DeliveryMode)
	}
	if cfg.MaxFragmentChars != session.DefaultMaxFragmentChars {
		t.Errorf("MaxFragmentChars = %d", cfg.MaxFragmentChars)
	}
	if cfg.StageTimeouts != [3]time.Duration{15 * time.Second, 25 * time.Second, 30 * time.Second} {
		t.Errorf("StageTimeouts = %v", cfg.StageTimeouts)
	}
	if cfg.UploadRetention != time.Hour {
		t.Errorf("UploadRetention = %v", cfg.UploadRetention)
	}
	if cfg.SystemPrompt != session.DefaultSystemPrompt {
		t.Errorf("SystemPrompt not defaulted")
	}
	if len(cfg.ReminderPools[0]) == 0 || len(cfg.ClosingMessages) == 0 {
		t.Error("watchdog message pools not defaulted")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("VOXHIRE_ADDR", ":9001")
	t.Setenv("VOXHIRE_DELIVERY_MODE", "streamed")
	t.Setenv("VOXHIRE_PACING_DELAY", "250ms")
	t.Setenv("VOXHIRE_SILENCE_STAGE1", "5s")
	t.Setenv("VOXHIRE_CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("VOXHIRE_HISTORY_MAX_TURNS", "7")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != ":9001" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.DeliveryMode != session.DeliveryStreamed {
		t.Errorf("DeliveryMode = %q", cfg.DeliveryMode)
	}
	if cfg.PacingDelay != 250*time.Millisecond {
		t.Errorf("PacingDelay = %v", cfg.PacingDelay)
	}
	if cfg.StageTimeouts[0] != 5*time.Second {
		t.Errorf("StageTimeouts[0] = %v", cfg.StageTimeouts[0])
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if _, ok := cfg.CORSAllowedOrigins["https://b.example"]; !ok {
		t.Error("trimmed origin missing from allowlist")
	}
	if cfg.HistoryMaxTurns != 8 {
		t.Errorf("HistoryMaxTurns = %d, want odd cap rounded up to 8", cfg.HistoryMaxTurns)
	}
}

func TestLoadFromEnv_ProviderKeyRequirements(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")

	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Fatalf("missing OpenRouter key: err = %v", err)
	}

	t.Setenv("VOXHIRE_LLM_PROVIDER", "gemini")
	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("missing Gemini key: err = %v", err)
	}

	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("DEEPGRAM_API_KEY", "")
	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "DEEPGRAM_API_KEY") {
		t.Fatalf("missing Deepgram key: err = %v", err)
	}
}

func TestLoadFromEnv_RejectsBadValues(t *testing.T) {
	cases := []struct {
		key, val, want string
	}{
		{"VOXHIRE_LLM_PROVIDER", "watson", "VOXHIRE_LLM_PROVIDER"},
		{"VOXHIRE_DELIVERY_MODE", "burst", "VOXHIRE_DELIVERY_MODE"},
		{"VOXHIRE_MAX_FRAGMENT_CHARS", "-1", "VOXHIRE_MAX_FRAGMENT_CHARS"},
		{"VOXHIRE_SILENCE_STAGE2", "-5s", "VOXHIRE_SILENCE_STAGE2"},
		{"VOXHIRE_MAX_UPLOAD_BYTES", "0", "VOXHIRE_MAX_UPLOAD_BYTES"},
		// Malformed values are startup errors, not silent defaults.
		{"VOXHIRE_HISTORY_MAX_TURNS", "many", "VOXHIRE_HISTORY_MAX_TURNS"},
		{"VOXHIRE_SILENCE_STAGE1", "soon", "VOXHIRE_SILENCE_STAGE1"},
		{"VOXHIRE_WS_MAX_MESSAGE_BYTES", "8MB", "VOXHIRE_WS_MAX_MESSAGE_BYTES"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			if tc.key == "VOXHIRE_LLM_PROVIDER" {
				t.Setenv("GEMINI_API_KEY", "g-key")
			}
			t.Setenv(tc.key, tc.val)
			_, err := LoadFromEnv()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoadFromEnv_SystemPromptFile(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(path, []byte("You are a pirate interviewer.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOXHIRE_SYSTEM_PROMPT_FILE", path)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.SystemPrompt != "You are a pirate interviewer." {
		t.Errorf("SystemPrompt = %q", cfg.SystemPrompt)
	}

	// Missing file falls back to the default prompt.
	t.Setenv("VOXHIRE_SYSTEM_PROMPT_FILE", filepath.Join(dir, "missing.txt"))
	cfg, err = LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv with missing prompt file: %v", err)
	}
	if cfg.SystemPrompt != session.DefaultSystemPrompt {
		t.Error("missing prompt file did not fall back to default")
	}
}

func TestLoadFromEnv_MessagePoolsFile(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	path := filepath.Join(t.TempDir(), "pools.yaml")
	body := "stage1:\n  - Are you still there?\nclosing:\n  - Goodbye.\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOXHIRE_MESSAGE_POOLS_FILE", path)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if len(cfg.ReminderPools[0]) != 1 || cfg.ReminderPools[0][0] != "Are you still there?" {
		t.Errorf("ReminderPools[0] = %v", cfg.ReminderPools[0])
	}
	if len(cfg.ClosingMessages) != 1 || cfg.ClosingMessages[0] != "Goodbye." {
		t.Errorf("ClosingMessages = %v", cfg.ClosingMessages)
	}
	// stage2 untouched by the file keeps the built-in pool.
	if len(cfg.ReminderPools[1]) == 0 {
		t.Error("ReminderPools[1] lost its default")
	}
}

func TestSessionConfigMapping(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("VOXHIRE_MAX_FRAGMENT_CHARS", "120")
	t.Setenv("VOXHIRE_SILENCE_STAGE3", "45s")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	sc := cfg.SessionConfig()
	if sc.MaxFragmentChars != 120 {
		t.Errorf("MaxFragmentChars = %d", sc.MaxFragmentChars)
	}
	if sc.Watchdog.StageTimeouts[2] != 45*time.Second {
		t.Errorf("Watchdog.StageTimeouts[2] = %v", sc.Watchdog.StageTimeouts[2])
	}
	if sc.SystemPrompt != session.DefaultSystemPrompt {
		t.Error("SystemPrompt not carried into session config")
	}
}
