// Vezora backend server: chat, streaming, voice synthesis, settings,
// memory, and the websocket status feed.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/SaiPranay04/Vezora-AI/internal/config"
	"github.com/SaiPranay04/Vezora-AI/internal/log"
	"github.com/SaiPranay04/Vezora-AI/pkg/chat"
	"github.com/SaiPranay04/Vezora-AI/pkg/inference"
	"github.com/SaiPranay04/Vezora-AI/pkg/journal"
	"github.com/SaiPranay04/Vezora-AI/pkg/memory"
	"github.com/SaiPranay04/Vezora-AI/pkg/settings"
	"github.com/SaiPranay04/Vezora-AI/pkg/tts"
	"github.com/SaiPranay04/Vezora-AI/pkg/web"
)

func main() {
	port := flag.String("port", config.Port(), "HTTP listen port")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.L()

	sel, err := buildSelector()
	if err != nil {
		logger.Error("no inference provider available", "error", err)
		os.Exit(1)
	}
	defer sel.Close()

	settingsStore, err := settings.NewStore(config.DataFile("settings.json"), logger)
	if err != nil {
		logger.Error("failed to open settings store", "error", err)
		os.Exit(1)
	}
	memoryStore, err := memory.NewStore(config.DataFile("memory.json"), logger)
	if err != nil {
		logger.Error("failed to open memory store", "error", err)
		os.Exit(1)
	}
	jrn, err := journal.New(config.DataFile("logs.json"), logger)
	if err != nil {
		logger.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	defer jrn.Close()

	speech := buildSpeech()
	if speech != nil {
		defer speech.Close()
	}

	server := web.NewServer(web.Config{
		Port:     *port,
		Chat:     chat.NewService(sel, settingsStore, memoryStore, jrn, logger),
		Speech:   speech,
		Settings: settingsStore,
		Memory:   memoryStore,
		Journal:  jrn,
		Logger:   logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}
}

// buildSelector wires the provider slots: Gemini when a key is present,
// Ollama always. AI_PROVIDER=ollama swaps the preference.
func buildSelector() (*inference.Selector, error) {
	logger := log.L()

	var gemini inference.Provider
	if key := config.GeminiAPIKey(); key != "" {
		p, err := inference.NewGemini(
			inference.WithAPIKey(key),
			inference.WithModel(config.GeminiModel()),
			inference.WithLogger(logger),
		)
		if err != nil {
			logger.Warn("gemini unavailable", "error", err)
		} else {
			gemini = p
		}
	}

	var ollama inference.Provider
	if p, err := inference.NewOllama(
		inference.WithBaseURL(config.OllamaBaseURL()),
		inference.WithModel(config.OllamaModel()),
		inference.WithLogger(logger),
	); err != nil {
		logger.Warn("ollama unavailable", "error", err)
	} else {
		ollama = p
	}

	if config.PreferOllama() || gemini == nil {
		sel, err := inference.NewSelectorWithLogger(logger, ollama, gemini)
		if err != nil {
			return nil, err
		}
		sel.SetLabels("ollama", "gemini")
		return sel, nil
	}

	sel, err := inference.NewSelectorWithLogger(logger, gemini, ollama)
	if err != nil {
		return nil, err
	}
	sel.SetLabels("gemini", "ollama")
	return sel, nil
}

// buildSpeech creates the TTS backend when a key is configured. The
// voice endpoint degrades to browser synthesis without one.
func buildSpeech() tts.Provider {
	key := config.GoogleTTSAPIKey()
	if key == "" {
		log.Info("no TTS key configured, voice endpoint will use browser synthesis")
		return nil
	}
	speech, err := tts.NewGoogle(context.Background(), key, log.L())
	if err != nil {
		log.Warn("google tts unavailable", "error", err)
		return nil
	}
	log.Info("google tts initialized")
	return speech
}
