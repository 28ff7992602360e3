package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"
	"github.com/lokutor-ai/avatar-chat/pkg/avatar"
	"github.com/lokutor-ai/avatar-chat/pkg/capture"
	"github.com/lokutor-ai/avatar-chat/pkg/providers/dify"
	llmProvider "github.com/lokutor-ai/avatar-chat/pkg/providers/llm"
	sttProvider "github.com/lokutor-ai/avatar-chat/pkg/providers/stt"
	ttsProvider "github.com/lokutor-ai/avatar-chat/pkg/providers/tts"
	"golang.org/x/sync/errgroup"
)

var errQuit = errors.New("quit")

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	cfg, err := configFromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("agent stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg agentConfig, logger *slog.Logger) error {
	agentLogger := avatar.NewSlogLogger(logger)

	var chat avatar.ChatProvider
	switch cfg.ChatProvider {
	case "openai":
		c := llmProvider.NewOpenAIChat(cfg.OpenAIKey, cfg.OpenAIModel)
		if cfg.OpenAIBaseURL != "" {
			c.SetBaseURL(cfg.OpenAIBaseURL)
		}
		c.SetSystemPrompt(cfg.SystemPrompt)
		chat = c
	default:
		chat = dify.NewClient(cfg.DifyAPIKey, cfg.DifyBaseURL)
	}

	var stt avatar.STTProvider
	if cfg.voiceInputEnabled() {
		s := sttProvider.NewOpenAISTT(cfg.OpenAIKey, cfg.STTModel)
		s.SetSampleRate(cfg.SampleRate)
		s.SetPrompt(cfg.STTPrompt)
		if cfg.OpenAIBaseURL != "" {
			s.SetBaseURL(cfg.OpenAIBaseURL)
		}
		stt = s
	}

	tts := ttsProvider.NewLokutorTTS(cfg.LokutorKey)
	defer tts.Close()

	playback := &playbackBuffer{}
	speaker := avatar.NewTTSSpeaker(tts, cfg.Voice, cfg.Language, playback.Write)
	speaker.SetDrain(playback.Drain)
	display := &consoleDisplay{w: os.Stdout}
	animator := &consoleAnimator{w: os.Stdout}

	utterances := make(chan []byte, 4)
	recorder := capture.NewRecorder(cfg.SampleRate, func(pcm []byte) {
		select {
		case utterances <- pcm:
		default:
			logger.Warn("dropping utterance, agent is busy", "bytes", len(pcm))
		}
	})
	recorder.SetVAD(capture.NewRMSVAD(cfg.VADThreshold, 700*time.Millisecond))
	echo := capture.NewEchoSuppressor(cfg.SampleRate, cfg.EchoMode)
	recorder.SetEchoSuppressor(echo)
	recorder.SetLogger(agentLogger)

	agent, err := avatar.NewWithLogger(avatar.Collaborators{
		Chat:      chat,
		Display:   display,
		Speaker:   speaker,
		Animator:  animator,
		Recording: recorder,
		STT:       stt,
	}, cfg.avatarConfig(), agentLogger)
	if err != nil {
		return err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		// playback first so the echo reference covers this period's capture
		if pOutput != nil {
			if n := playback.Read(pOutput); n > 0 {
				echo.RecordPlayedAudio(pOutput[:n])
			}
		}
		if pInput != nil {
			recorder.Feed(pInput)
		}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("init audio device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("start audio device: %w", err)
	}

	fmt.Printf("Configured: CHAT=%s | STT=%s | TTS=%s | ECHO=%s\n", chat.Name(), sttName(stt), tts.Name(), echo.Mode())
	fmt.Println("Type a message and press Enter. Commands: /rec /stop /reset /quit")
	animator.SwitchTo(cfg.DefaultAnimation)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	lines := readLines(gctx, os.Stdin)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case pcm := <-utterances:
				if _, err := agent.HandleUtterance(gctx, pcm); err != nil && !errors.Is(err, avatar.ErrEmptyTranscription) {
					logger.Warn("voice turn failed", "error", err)
				}
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return errQuit
				}
				line = strings.TrimSpace(line)
				switch line {
				case "":
				case "/quit":
					return errQuit
				case "/reset":
					agent.ResetConversation()
					fmt.Println("Conversation reset.")
				case "/stop":
					_ = speaker.Stop()
					playback.Clear()
					echo.ClearEchoBuffer()
				case "/rec":
					toggleRecording(recorder, animator, agent.GetConfig(), stt != nil)
				default:
					if err := agent.SendMessage(gctx, line); err != nil {
						logger.Debug("turn finished with error", "error", err)
					}
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	fmt.Println("\nShutting down...")
	return nil
}

func toggleRecording(recorder *capture.Recorder, animator avatar.Animator, cfg avatar.Config, canTranscribe bool) {
	if recorder.IsRecording() {
		recorder.Stop()
		animator.SwitchTo(cfg.DefaultAnimation)
		return
	}
	if !canTranscribe {
		fmt.Println("Voice input needs OPENAI_API_KEY for transcription.")
		return
	}
	recorder.Start()
	animator.SwitchTo(cfg.ListeningAnimation)
}

func sttName(stt avatar.STTProvider) string {
	if stt == nil {
		return "disabled"
	}
	return stt.Name()
}
