package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/vetconnect/vetconnect-server/internal/config"
	"github.com/vetconnect/vetconnect-server/internal/connections"
	"github.com/vetconnect/vetconnect-server/internal/database"
	"github.com/vetconnect/vetconnect-server/internal/messaging"
	"github.com/vetconnect/vetconnect-server/internal/notifications"
	"github.com/vetconnect/vetconnect-server/internal/realtime"
)

type VetConnectApp struct {
	log            *log.Logger
	db             database.Repository
	connections    *connections.Service
	messaging      *messaging.Service
	notifier       *notifications.Notifier
	hub            *realtime.Hub
	mux            *http.Server
	signingKey     []byte
	allowedOrigins []string
}

func NewVetConnectApp(
	mux *http.ServeMux,
	logger *log.Logger,
	hub *realtime.Hub,
	db database.Repository,
	connSvc *connections.Service,
	msgSvc *messaging.Service,
	notifier *notifications.Notifier,
	cfg *config.Config,
) *VetConnectApp {
	s := &VetConnectApp{
		log:            logger,
		db:             db,
		connections:    connSvc,
		messaging:      msgSvc,
		notifier:       notifier,
		hub:            hub,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))

	mux.Handle("POST /api/connections/request", s.authMiddleware(s.sendConnectionRequest))
	mux.Handle("POST /api/connections/{id}/accept", s.authMiddleware(s.acceptConnectionRequest))
	mux.Handle("POST /api/connections/{id}/reject", s.authMiddleware(s.rejectConnectionRequest))
	mux.Handle("DELETE /api/connections/{id}/cancel", s.authMiddleware(s.cancelConnectionRequest))
	mux.Handle("DELETE /api/connections/{id}", s.authMiddleware(s.removeConnection))
	mux.Handle("GET /api/connections", s.authMiddleware(s.listConnections))
	mux.Handle("GET /api/connections/pending", s.authMiddleware(s.listPendingRequests))
	mux.Handle("GET /api/connections/sent", s.authMiddleware(s.listSentRequests))
	mux.Handle("GET /api/connections/status/{targetUserId}", s.authMiddleware(s.connectionStatus))
	mux.Handle("GET /api/connections/suggestions", s.authMiddleware(s.connectionSuggestions))

	mux.Handle("POST /api/messages/conversation", s.authMiddleware(s.startConversation))
	mux.Handle("GET /api/messages", s.authMiddleware(s.listConversations))
	mux.Handle("GET /api/messages/unread/count", s.authMiddleware(s.unreadCount))
	mux.Handle("GET /api/messages/{conversationId}", s.authMiddleware(s.getMessages))
	mux.Handle("POST /api/messages/{conversationId}", s.authMiddleware(s.sendMessage))
	mux.Handle("POST /api/messages/{conversationId}/read", s.authMiddleware(s.markConversationRead))

	mux.Handle("GET /api/notifications", s.authMiddleware(s.listNotifications))
	mux.Handle("POST /api/notifications/read", s.authMiddleware(s.markNotificationsRead))

	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *VetConnectApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *VetConnectApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
