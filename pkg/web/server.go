// Package web exposes the assistant over HTTP: the chat endpoints, the
// SSE streaming endpoint, voice synthesis, settings and memory CRUD, and
// a websocket status feed.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/SaiPranay04/Vezora-AI/pkg/chat"
	"github.com/SaiPranay04/Vezora-AI/pkg/hub"
	"github.com/SaiPranay04/Vezora-AI/pkg/journal"
	"github.com/SaiPranay04/Vezora-AI/pkg/memory"
	"github.com/SaiPranay04/Vezora-AI/pkg/settings"
	"github.com/SaiPranay04/Vezora-AI/pkg/tts"
)

// Server hosts the assistant's HTTP and websocket surface.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	chat     *chat.Service
	speech   tts.Provider
	settings *settings.Store
	memory   *memory.Store
	journal  *journal.Journal

	statusHub *hub.Hub
}

// Config carries the server's collaborators. Speech may be nil; the
// voice endpoint then answers with a browser-synthesis fallback.
type Config struct {
	Port     string
	Chat     *chat.Service
	Speech   tts.Provider
	Settings *settings.Store
	Memory   *memory.Store
	Journal  *journal.Journal
	Logger   *slog.Logger
}

// NewServer builds the fiber app and wires all routes.
func NewServer(cfg Config) *Server {
	s := &Server{
		port:      cfg.Port,
		logger:    cfg.Logger.With("component", "web"),
		chat:      cfg.Chat,
		speech:    cfg.Speech,
		settings:  cfg.Settings,
		memory:    cfg.Memory,
		journal:   cfg.Journal,
		statusHub: hub.New("status", cfg.Logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Vezora",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")

	chatAPI := api.Group("/chat")
	chatAPI.Post("/", s.handleChat)
	chatAPI.Post("/stream", s.handleChatStream)
	chatAPI.Post("/intent", s.handleIntent)
	chatAPI.Get("/health", s.handleChatHealth)

	voice := api.Group("/voice")
	voice.Post("/speak", s.handleSpeak)
	voice.Get("/voices", s.handleVoices)

	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings", s.handleUpdateSettings)
	api.Post("/settings/reset", s.handleResetSettings)

	api.Get("/memory", s.handleListMemory)
	api.Post("/memory", s.handleAddMemory)
	api.Put("/memory/:id", s.handleUpdateMemory)
	api.Delete("/memory/:id", s.handleDeleteMemory)
	api.Delete("/memory", s.handleClearMemory)

	api.Get("/logs", s.handleListLogs)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start runs the hubs and listens. Blocks until Shutdown.
func (s *Server) Start() error {
	go s.statusHub.Run()
	s.logger.Info("server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown stops the listener and the status hub.
func (s *Server) Shutdown() error {
	s.statusHub.Stop()
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// handleStatusWS attaches a websocket client to the status hub.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	client.Run()
}

// statusEvent is one frame on the /ws/status feed.
type statusEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId,omitempty"`
	Provider string `json:"provider,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// notify broadcasts a status event to websocket listeners.
func (s *Server) notify(evt statusEvent) {
	if err := s.statusHub.BroadcastJSON(evt); err != nil {
		s.logger.Warn("failed to broadcast status event", "error", err)
	}
}
