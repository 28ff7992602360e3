package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lokutor-ai/avatar-chat/pkg/avatar"
	"github.com/lokutor-ai/avatar-chat/pkg/capture"
)

type agentConfig struct {
	ChatProvider string

	DifyAPIKey  string
	DifyBaseURL string
	DifyUser    string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	SystemPrompt  string
	STTModel      string
	STTPrompt     string

	LokutorKey string

	Language           avatar.Language
	Voice              avatar.Voice
	ListeningAnimation string
	DefaultAnimation   string

	SampleRate   int
	VADThreshold float64
	EchoMode     capture.EchoMode
	LogLevel     slog.Level
}

var validVoices = map[avatar.Voice]bool{
	avatar.VoiceF1: true, avatar.VoiceF2: true, avatar.VoiceF3: true, avatar.VoiceF4: true, avatar.VoiceF5: true,
	avatar.VoiceM1: true, avatar.VoiceM2: true, avatar.VoiceM3: true, avatar.VoiceM4: true, avatar.VoiceM5: true,
}

var validLanguages = map[avatar.Language]bool{
	avatar.LanguageEn: true, avatar.LanguageEs: true, avatar.LanguageFr: true, avatar.LanguageDe: true,
	avatar.LanguageIt: true, avatar.LanguagePt: true, avatar.LanguageJa: true, avatar.LanguageZh: true,
}

// configFromEnv reads the agent settings. getenv is os.Getenv outside tests.
func configFromEnv(getenv func(string) string) (agentConfig, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	defaults := avatar.DefaultConfig()
	cfg := agentConfig{
		ChatProvider:       env("CHAT_PROVIDER", "dify"),
		DifyAPIKey:         getenv("DIFY_API_KEY"),
		DifyBaseURL:        getenv("DIFY_BASE_URL"),
		DifyUser:           getenv("DIFY_USER"),
		OpenAIKey:          getenv("OPENAI_API_KEY"),
		OpenAIModel:        env("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:      getenv("OPENAI_BASE_URL"),
		SystemPrompt:       env("SYSTEM_PROMPT", "You are a friendly avatar. Answer in short sentences suitable for speech."),
		STTModel:           env("STT_MODEL", "whisper-1"),
		STTPrompt:          getenv("STT_PROMPT"),
		LokutorKey:         getenv("LOKUTOR_API_KEY"),
		Language:           avatar.Language(env("AGENT_LANGUAGE", string(defaults.Language))),
		Voice:              avatar.Voice(env("AGENT_VOICE", string(defaults.Voice))),
		ListeningAnimation: env("LISTENING_ANIMATION", defaults.ListeningAnimation),
		DefaultAnimation:   env("DEFAULT_ANIMATION", defaults.DefaultAnimation),
		SampleRate:         44100,
		VADThreshold:       0.02,
		EchoMode:           capture.EchoMode(env("ECHO_SUPPRESSION", string(capture.EchoMute))),
		LogLevel:           slog.LevelInfo,
	}

	if v := getenv("SAMPLE_RATE"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil || rate <= 0 {
			return cfg, fmt.Errorf("invalid SAMPLE_RATE %q", v)
		}
		cfg.SampleRate = rate
	}
	if v := getenv("VAD_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil || threshold <= 0 {
			return cfg, fmt.Errorf("invalid VAD_THRESHOLD %q", v)
		}
		cfg.VADThreshold = threshold
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	switch cfg.EchoMode {
	case capture.EchoMute, capture.EchoCorrelate, capture.EchoOff:
	default:
		return cfg, fmt.Errorf("invalid ECHO_SUPPRESSION %q (want mute, correlate or off)", cfg.EchoMode)
	}

	if !validVoices[cfg.Voice] {
		return cfg, fmt.Errorf("invalid voice: %s (must be F1-F5 or M1-M5)", cfg.Voice)
	}
	if !validLanguages[cfg.Language] {
		return cfg, fmt.Errorf("invalid language: %s", cfg.Language)
	}

	switch cfg.ChatProvider {
	case "dify":
		if cfg.DifyAPIKey == "" {
			return cfg, fmt.Errorf("DIFY_API_KEY must be set for the dify chat provider")
		}
	case "openai":
		if cfg.OpenAIKey == "" {
			return cfg, fmt.Errorf("OPENAI_API_KEY must be set for the openai chat provider")
		}
	default:
		return cfg, fmt.Errorf("unknown CHAT_PROVIDER %q (want dify or openai)", cfg.ChatProvider)
	}

	if cfg.LokutorKey == "" {
		return cfg, fmt.Errorf("LOKUTOR_API_KEY must be set")
	}

	return cfg, nil
}

// voiceInputEnabled reports whether microphone input can be transcribed.
func (c agentConfig) voiceInputEnabled() bool {
	return c.OpenAIKey != ""
}

func (c agentConfig) avatarConfig() avatar.Config {
	cfg := avatar.DefaultConfig()
	cfg.ListeningAnimation = c.ListeningAnimation
	cfg.DefaultAnimation = c.DefaultAnimation
	cfg.User = c.DifyUser
	cfg.Voice = c.Voice
	cfg.Language = c.Language
	return cfg
}
