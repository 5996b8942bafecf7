// Package config provides configuration helpers for Vezora commands.
package config

import (
	"os"
	"path/filepath"
)

// Defaults for the backend server.
const (
	DefaultPort          = "5000"
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "mistral:latest"
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultDataDir       = "./data"
)

// Port returns the HTTP port from PORT env var or the default.
func Port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// GeminiAPIKey returns the Gemini API key, empty if not configured.
func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// GeminiModel returns the Gemini model name from GEMINI_MODEL or the default.
func GeminiModel() string {
	if m := os.Getenv("GEMINI_MODEL"); m != "" {
		return m
	}
	return DefaultGeminiModel
}

// OllamaBaseURL returns the Ollama endpoint from OLLAMA_BASE_URL or the default.
func OllamaBaseURL() string {
	if u := os.Getenv("OLLAMA_BASE_URL"); u != "" {
		return u
	}
	return DefaultOllamaBaseURL
}

// OllamaModel returns the Ollama model from OLLAMA_MODEL_NAME or the default.
func OllamaModel() string {
	if m := os.Getenv("OLLAMA_MODEL_NAME"); m != "" {
		return m
	}
	return DefaultOllamaModel
}

// GoogleTTSAPIKey returns the Google Cloud TTS API key, empty if not configured.
func GoogleTTSAPIKey() string {
	return os.Getenv("GOOGLE_TTS_API_KEY")
}

// DataDir returns the persistence directory from DATA_DIR or the default.
func DataDir() string {
	if d := os.Getenv("DATA_DIR"); d != "" {
		return d
	}
	return DefaultDataDir
}

// DataFile returns the path of a named store file under the data directory.
func DataFile(name string) string {
	return filepath.Join(DataDir(), name)
}

// PreferOllama reports whether AI_PROVIDER forces the local provider.
func PreferOllama() bool {
	return os.Getenv("AI_PROVIDER") == "ollama"
}

// LogLevel returns the log level from LOG_LEVEL or "info".
func LogLevel() string {
	if l := os.Getenv("LOG_LEVEL"); l != "" {
		return l
	}
	return "info"
}
