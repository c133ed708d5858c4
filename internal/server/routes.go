package server

import (
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/njhostel/mysterynight/internal/handler/health"
)

func addRoutes(r chi.Router, opts Options) {
	sessions := opts.Sessions
	broker := opts.Broker
	logger := opts.Logger

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Mystery Night API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, opts.Health).Routes())
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}
	r.Get("/qr.png", handleQRCode(opts.PublicURL))

	// Entry: identity and the /play navigation guard.
	r.Get("/play", handlePlay(sessions, opts.Identities))
	r.Post("/api/identity", handleCreateIdentity(opts.Identities, opts.Metrics, opts.PublicURL))
	r.Get("/api/clues/{userID}", handleClue(opts.Identities))
	r.Get("/api/variant", handleVariant(sessions.Variant()))

	r.Route("/api/session", func(r chi.Router) {
		r.Post("/", handleOpenSession(sessions, opts.Identities))

		// Streams authenticate with ?token= since browsers can't set headers on them.
		r.Get("/events", handleEvents(sessions, broker))
		r.Get("/chase/ws", handleChaseWS(sessions, broker, logger))

		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware(sessions))
			r.Get("/state", handleSessionState())
			r.Post("/start", handleStart())
			r.Post("/quiz/select", handleQuizSelect())
			r.Post("/quiz/next", handleQuizNext())
			r.Post("/chase/start", handleChaseStart())
			r.Post("/chase/pause", handleChasePause())
			r.Post("/chase/resume", handleChaseResume())
			r.Post("/chase/reset", handleChaseReset())
			r.Post("/chase/move", handleChaseMove())
			r.Post("/clue/guess", handleClueGuess())
			r.Post("/overlay/dismiss", handleOverlayDismiss())
			r.Post("/close", handleSessionClose(sessions))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", handleAdminLogin(opts.Admin))
		r.Post("/logout", handleAdminLogout(opts.Admin))

		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware(opts.Admin))
			r.Get("/me", handleAdminMe())
			r.Get("/users", handleAdminUsers(opts.Identities))
			r.Get("/sessions", handleAdminSessions(sessions))
		})
	})

	if opts.SPADir != "" {
		if info, err := os.Stat(opts.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", opts.SPADir)
			r.NotFound(handleSPA(opts.SPADir))
		}
	}
}
