// Package config loads server configuration from the environment. Invalid
// or missing required values abort startup with a descriptive error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/voxhire/voxhire/pkg/gateway/interview/session"
)

// Completion providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Config is the full server configuration.
type Config struct {
	Addr               string
	StaticDir          string
	CORSAllowedOrigins map[string]struct{}

	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// Completion engine.
	LLMProvider       string
	LLMModel          string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	GeminiAPIKey      string

	// Speech engines.
	DeepgramAPIKey string
	DeepgramModel  string
	AWSRegion      string
	PollyVoice     string

	// Interview session tuning.
	SystemPromptFile    string
	SystemPrompt        string
	GreetingInstruction string
	MaxFragmentChars    int
	DeliveryMode        string
	BufferCapacity      int
	PacingDelay         time.Duration
	HistoryMaxTurns     int

	// Silence watchdog.
	StageTimeouts    [3]time.Duration
	MessagePoolsFile string
	ReminderPools    [2][]string
	ClosingMessages  []string

	// Upload staging.
	UploadRetention     time.Duration
	UploadSweepInterval time.Duration
	MaxUploadBytes      int64

	// WebSocket transport.
	WSPingInterval  time.Duration
	WSWriteTimeout  time.Duration
	WSReadTimeout   time.Duration
	MaxMessageBytes int64
	MaxAudioBytes   int64
}

// messagePoolsFile is the YAML shape of the watchdog message pool file.
type messagePoolsFile struct {
	Stage1  []string `yaml:"stage1"`
	Stage2  []string `yaml:"stage2"`
	Closing []string `yaml:"closing"`
}

// LoadFromEnv reads VOXHIRE_* variables, applies defaults, and validates.
func LoadFromEnv() (Config, error) {
	defaults := session.DefaultWatchdogConfig()
	env := &envReader{}

	cfg := Config{
		Addr:               envOr("VOXHIRE_ADDR", ":8000"),
		StaticDir:          envOr("VOXHIRE_STATIC_DIR", ""),
		CORSAllowedOrigins: make(map[string]struct{}),

		ReadHeaderTimeout:   env.durationOr("VOXHIRE_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         env.durationOr("VOXHIRE_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: env.durationOr("VOXHIRE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),

		LLMProvider:       strings.ToLower(envOr("VOXHIRE_LLM_PROVIDER", ProviderOpenRouter)),
		LLMModel:          envOr("VOXHIRE_LLM_MODEL", "openai/gpt-4o-mini"),
		OpenRouterAPIKey:  envOr("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: envOr("VOXHIRE_OPENROUTER_BASE_URL", ""),
		GeminiAPIKey:      envOr("GEMINI_API_KEY", ""),

		DeepgramAPIKey: envOr("DEEPGRAM_API_KEY", ""),
		DeepgramModel:  envOr("VOXHIRE_DEEPGRAM_MODEL", "nova-2"),
		AWSRegion:      envOr("AWS_REGION", "us-east-1"),
		PollyVoice:     envOr("VOXHIRE_POLLY_VOICE", "Joanna"),

		SystemPromptFile:    envOr("VOXHIRE_SYSTEM_PROMPT_FILE", ""),
		GreetingInstruction: envOr("VOXHIRE_GREETING_INSTRUCTION", session.DefaultGreetingInstruction),
		MaxFragmentChars:    env.intOr("VOXHIRE_MAX_FRAGMENT_CHARS", session.DefaultMaxFragmentChars),
		DeliveryMode:        envOr("VOXHIRE_DELIVERY_MODE", session.DeliveryOverlapped),
		BufferCapacity:      env.intOr("VOXHIRE_DELIVERY_BUFFER", session.DefaultBufferCapacity),
		PacingDelay:         env.durationOr("VOXHIRE_PACING_DELAY", session.DefaultPacingDelay),
		HistoryMaxTurns:     env.intOr("VOXHIRE_HISTORY_MAX_TURNS", session.DefaultHistoryMaxTurns),

		StageTimeouts: [3]time.Duration{
			env.durationOr("VOXHIRE_SILENCE_STAGE1", defaults.StageTimeouts[0]),
			env.durationOr("VOXHIRE_SILENCE_STAGE2", defaults.StageTimeouts[1]),
			env.durationOr("VOXHIRE_SILENCE_STAGE3", defaults.StageTimeouts[2]),
		},
		MessagePoolsFile: envOr("VOXHIRE_MESSAGE_POOLS_FILE", ""),
		ReminderPools:    defaults.ReminderPools,
		ClosingMessages:  defaults.ClosingMessages,

		UploadRetention:     env.durationOr("VOXHIRE_UPLOAD_RETENTION", time.Hour),
		UploadSweepInterval: env.durationOr("VOXHIRE_UPLOAD_SWEEP_INTERVAL", 5*time.Minute),
		MaxUploadBytes:      env.int64Or("VOXHIRE_MAX_UPLOAD_BYTES", 10<<20), // 10 MiB

		WSPingInterval:  env.durationOr("VOXHIRE_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:  env.durationOr("VOXHIRE_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:   env.durationOr("VOXHIRE_WS_READ_TIMEOUT", 90*time.Second),
		MaxMessageBytes: env.int64Or("VOXHIRE_WS_MAX_MESSAGE_BYTES", 8<<20),
		MaxAudioBytes:   env.int64Or("VOXHIRE_MAX_AUDIO_BYTES", 5<<20),
	}

	for _, origin := range splitCSV(os.Getenv("VOXHIRE_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if env.err != nil {
		return Config{}, env.err
	}

	switch cfg.LLMProvider {
	case ProviderOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			return Config{}, fmt.Errorf("OPENROUTER_API_KEY is required for provider %q", cfg.LLMProvider)
		}
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return Config{}, fmt.Errorf("GEMINI_API_KEY is required for provider %q", cfg.LLMProvider)
		}
	default:
		return Config{}, fmt.Errorf("VOXHIRE_LLM_PROVIDER must be one of openrouter|gemini")
	}

	if cfg.DeepgramAPIKey == "" {
		return Config{}, fmt.Errorf("DEEPGRAM_API_KEY is required")
	}

	switch cfg.DeliveryMode {
	case session.DeliveryOverlapped, session.DeliveryStreamed:
	default:
		return Config{}, fmt.Errorf("VOXHIRE_DELIVERY_MODE must be one of overlapped|streamed")
	}

	if cfg.MaxFragmentChars <= 0 {
		return Config{}, fmt.Errorf("VOXHIRE_MAX_FRAGMENT_CHARS must be > 0")
	}
	if cfg.BufferCapacity <= 0 {
		return Config{}, fmt.Errorf("VOXHIRE_DELIVERY_BUFFER must be > 0")
	}
	if cfg.PacingDelay < 0 {
		return Config{}, fmt.Errorf("VOXHIRE_PACING_DELAY must be >= 0")
	}
	if cfg.HistoryMaxTurns <= 0 {
		return Config{}, fmt.Errorf("VOXHIRE_HISTORY_MAX_TURNS must be > 0")
	}
	// History stores user/assistant pairs; force the cap even.
	if cfg.HistoryMaxTurns%2 != 0 {
		cfg.HistoryMaxTurns++
	}
	for i, d := range cfg.StageTimeouts {
		if d <= 0 {
			return Config{}, fmt.Errorf("VOXHIRE_SILENCE_STAGE%d must be > 0", i+1)
		}
	}
	if cfg.UploadRetention <= 0 {
		return Config{}, fmt.Errorf("VOXHIRE_UPLOAD_RETENTION must be > 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("VOXHIRE_MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.MaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("VOXHIRE_WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.MaxAudioBytes <= 0 {
		return Config{}, fmt.Errorf("VOXHIRE_MAX_AUDIO_BYTES must be > 0")
	}

	if err := cfg.loadSystemPrompt(); err != nil {
		return Config{}, err
	}
	if err := cfg.loadMessagePools(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// SessionConfig maps the server configuration onto one session's tuning.
func (c Config) SessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.MaxFragmentChars = c.MaxFragmentChars
	sc.DeliveryMode = c.DeliveryMode
	sc.BufferCapacity = c.BufferCapacity
	sc.PacingDelay = c.PacingDelay
	sc.HistoryMaxTurns = c.HistoryMaxTurns
	sc.SystemPrompt = c.SystemPrompt
	sc.GreetingInstruction = c.GreetingInstruction
	sc.Watchdog = session.WatchdogConfig{
		StageTimeouts:   c.StageTimeouts,
		ReminderPools:   c.ReminderPools,
		ClosingMessages: c.ClosingMessages,
	}
	sc.MaxMessageBytes = c.MaxMessageBytes
	sc.MaxAudioBytes = c.MaxAudioBytes
	sc.PingInterval = c.WSPingInterval
	sc.WriteTimeout = c.WSWriteTimeout
	sc.ReadTimeout = c.WSReadTimeout
	return sc
}

func (c *Config) loadSystemPrompt() error {
	if c.SystemPromptFile == "" {
		c.SystemPrompt = session.DefaultSystemPrompt
		return nil
	}
	data, err := os.ReadFile(c.SystemPromptFile)
	if err != nil {
		if os.IsNotExist(err) {
			c.SystemPrompt = session.DefaultSystemPrompt
			return nil
		}
		return fmt.Errorf("read VOXHIRE_SYSTEM_PROMPT_FILE %q: %w", c.SystemPromptFile, err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return fmt.Errorf("VOXHIRE_SYSTEM_PROMPT_FILE %q is empty", c.SystemPromptFile)
	}
	c.SystemPrompt = prompt
	return nil
}

func (c *Config) loadMessagePools() error {
	if c.MessagePoolsFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.MessagePoolsFile)
	if err != nil {
		return fmt.Errorf("read VOXHIRE_MESSAGE_POOLS_FILE %q: %w", c.MessagePoolsFile, err)
	}
	var pools messagePoolsFile
	if err := yaml.Unmarshal(data, &pools); err != nil {
		return fmt.Errorf("parse VOXHIRE_MESSAGE_POOLS_FILE %q: %w", c.MessagePoolsFile, err)
	}
	if len(pools.Stage1) > 0 {
		c.ReminderPools[0] = pools.Stage1
	}
	if len(pools.Stage2) > 0 {
		c.ReminderPools[1] = pools.Stage2
	}
	if len(pools.Closing) > 0 {
		c.ClosingMessages = pools.Closing
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// envReader parses typed environment values and remembers the first
// malformed one. A typo in a variable must abort startup, not silently
// run the server on the built-in default.
type envReader struct {
	err error
}

func (r *envReader) fail(key, raw string) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: cannot parse %q", key, raw)
	}
}

func (r *envReader) intOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, raw)
		return def
	}
	return n
}

func (r *envReader) int64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.fail(key, raw)
		return def
	}
	return n
}

func (r *envReader) durationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(key, raw)
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
