package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/vetconnect/vetconnect-server/internal/database"
	"github.com/vetconnect/vetconnect-server/internal/realtime"
	"github.com/vetconnect/vetconnect-server/internal/types"
)

func (s *VetConnectApp) writeJson(w http.ResponseWriter, statusCode int, content any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(content); err != nil {
		s.log.Printf("failed to write response: %v", err)
	}
}

// writeError renders err as the uniform error envelope. Service-layer errors
// are mapped to HTTP statuses; internal causes are logged, never exposed.
func (s *VetConnectApp) writeError(w http.ResponseWriter, err error) {
	var apiErr *ApiError
	if !errors.As(err, &apiErr) {
		apiErr = fromServiceError(err)
	}

	if apiErr.StatusCode >= http.StatusInternalServerError {
		s.log.Printf("internal error: %v", apiErr)
	}

	s.writeJson(w, apiErr.StatusCode, apiErr)
}

func parsePage(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func pathId(r *http.Request, name string) (int, error) {
	return strconv.Atoi(r.PathValue(name))
}

func (s *VetConnectApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Printf("health check failed: %v", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}

type createAccountRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	AvatarUrl   string `json:"avatar_url"`
	ProfileType string `json:"profile_type"`
}

func (s *VetConnectApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.ProfileType == "" {
		req.ProfileType = string(types.ProfileIndividual)
	}
	if req.ProfileType != string(types.ProfileIndividual) && req.ProfileType != string(types.ProfileCompany) {
		s.writeError(w, NewBadRequestError())
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	user, err := s.db.CreateAccount(database.CreateAccountParams{
		Email:        req.Email,
		PasswordHash: passwordHash,
		DisplayName:  req.DisplayName,
		AvatarUrl:    req.AvatarUrl,
		ProfileType:  req.ProfileType,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			s.writeError(w, NewConflictError("email already registered"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, asAccount(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *VetConnectApp) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	user, err := s.db.GetAccountByEmail(req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if !verifyPassword(user.PasswordHash, req.Password) {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	token, err := s.createJwtForSession(asAccount(user), defaultJwtExpiration)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))
	s.writeJson(w, http.StatusOK, asAccount(user))
}

func (s *VetConnectApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, asAccount(user))
}

func (s *VetConnectApp) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieKey,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	s.writeJson(w, http.StatusOK, map[string]any{"success": true})
}

type connectionRequestBody struct {
	ReceiverId int    `json:"receiver_id"`
	Message    string `json:"message"`
}

func (s *VetConnectApp) sendConnectionRequest(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req connectionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	conn, err := s.connections.SendRequest(userId, req.ReceiverId, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, conn)
}

func (s *VetConnectApp) acceptConnectionRequest(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	connectionId, err := pathId(r, "id")
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	conn, err := s.connections.AcceptRequest(connectionId, userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, conn)
}

func (s *VetConnectApp) rejectConnectionRequest(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	connectionId, err := pathId(r, "id")
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.connections.RejectRequest(connectionId, userId); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"success": true, "rejected": true})
}

func (s *VetConnectApp) cancelConnectionRequest(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	connectionId, err := pathId(r, "id")
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.connections.CancelRequest(connectionId, userId); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"success": true, "cancelled": true})
}

func (s *VetConnectApp) removeConnection(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	connectionId, err := pathId(r, "id")
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.connections.RemoveConnection(connectionId, userId); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"success": true, "removed": true})
}

func (s *VetConnectApp) listConnections(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	limit, offset := parsePage(r)

	conns, err := s.connections.ListConnections(userId, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, conns)
}

func (s *VetConnectApp) listPendingRequests(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	limit, offset := parsePage(r)

	conns, err := s.connections.ListPendingRequests(userId, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, conns)
}

func (s *VetConnectApp) listSentRequests(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	limit, offset := parsePage(r)

	conns, err := s.connections.ListSentRequests(userId, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, conns)
}

func (s *VetConnectApp) connectionStatus(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	targetUserId, err := pathId(r, "targetUserId")
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	state, err := s.connections.ConnectionStatus(userId, targetUserId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, state)
}

func (s *VetConnectApp) connectionSuggestions(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	limit, _ := parsePage(r)

	users, err := s.connections.Suggestions(userId, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, users)
}

type startConversationRequest struct {
	UserId  int    `json:"user_id"`
	Content string `json:"content"`
}

// startConversation is get-or-create for a direct conversation; when the
// request carries content, the first message is sent in the same call.
func (s *VetConnectApp) startConversation(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req startConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.Content == "" {
		conv, err := s.messaging.GetOrCreateConversation(userId, req.UserId)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJson(w, http.StatusOK, conv)
		return
	}

	conv, msg, err := s.messaging.StartConversation(userId, req.UserId, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"message":      msg,
	})
}

func (s *VetConnectApp) listConversations(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	limit, offset := parsePage(r)

	conversations, err := s.messaging.ListConversations(userId, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, conversations)
}

func (s *VetConnectApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	limit, offset := parsePage(r)

	messages, err := s.messaging.Messages(r.PathValue("conversationId"), userId, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

func (s *VetConnectApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	msg, err := s.messaging.SendMessage(r.PathValue("conversationId"), userId, req.Content, req.MessageType)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *VetConnectApp) markConversationRead(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	if err := s.messaging.MarkRead(r.PathValue("conversationId"), userId); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"success": true})
}

func (s *VetConnectApp) unreadCount(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	count, err := s.messaging.UnreadCount(userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]int{"count": count})
}

func (s *VetConnectApp) listNotifications(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	limit, offset := parsePage(r)

	notifications, err := s.notifier.List(userId, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, notifications)
}

func (s *VetConnectApp) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	if err := s.notifier.MarkRead(userId); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"success": true})
}

func (s *VetConnectApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("failed to upgrade connection: %v", err)
		return
	}

	client := realtime.NewClient(asAccount(user), conn, s.hub, s.log)
	s.hub.Register(client)

	go client.Write()
	go client.Read()
}

// asAccount includes the email address, so it is only for responses about the
// authenticated user's own account.
func asAccount(u database.User) types.User {
	return types.User{
		Id:           u.Id,
		EmailAddress: u.Email,
		DisplayName:  u.DisplayName,
		AvatarUrl:    u.AvatarUrl,
		ProfileType:  types.ProfileType(u.ProfileType),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
