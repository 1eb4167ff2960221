// Package connections owns the connection request lifecycle: a directed
// PENDING request between two users that becomes a symmetric ACCEPTED
// relationship, or is rejected, cancelled or removed.
package connections

import (
	"database/sql"
	"errors"
	"log"

	"github.com/vetconnect/vetconnect-server/internal/apperrors"
	"github.com/vetconnect/vetconnect-server/internal/database"
	"github.com/vetconnect/vetconnect-server/internal/notifications"
	"github.com/vetconnect/vetconnect-server/internal/realtime"
	"github.com/vetconnect/vetconnect-server/internal/stats"
	"github.com/vetconnect/vetconnect-server/internal/types"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Notifier interface {
	Notify(userId int, kind notifications.Kind, payload map[string]any)
}

type Publisher interface {
	Publish(topic, event string, payload any)
}

type Service struct {
	log      *log.Logger
	db       database.Repository
	notifier Notifier
	pub      Publisher
	stats    stats.Provider
}

func NewService(logger *log.Logger, db database.Repository, notifier Notifier, pub Publisher, sp stats.Provider) *Service {
	return &Service{
		log:      logger,
		db:       db,
		notifier: notifier,
		pub:      pub,
		stats:    sp,
	}
}

// SendRequest creates a PENDING connection from sender to receiver. At most
// one connection row exists per user pair in either direction; the storage
// layer's unique pair index backs up the pre-check, so a concurrent duplicate
// surfaces as a Conflict instead of a second row.
func (s *Service) SendRequest(senderId, receiverId int, message string) (types.Connection, error) {
	if senderId == receiverId {
		return types.Connection{}, apperrors.InvalidArg("cannot send a connection request to yourself")
	}

	receiver, err := s.db.GetAccountById(receiverId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Connection{}, apperrors.NotFound("user not found")
		}
		return types.Connection{}, apperrors.Internal("failed to look up user", err)
	}

	existing, err := s.db.GetConnectionBetween(senderId, receiverId)
	if err == nil {
		switch existing.Status {
		case database.ConnectionAccepted:
			return types.Connection{}, apperrors.Conflict("already connected")
		case database.ConnectionPending:
			return types.Connection{}, apperrors.Conflict("a connection request is already pending")
		case database.ConnectionBlocked:
			return types.Connection{}, apperrors.Forbidden("unable to connect with this user")
		default:
			// REJECTED is terminal; there is no re-request path
			return types.Connection{}, apperrors.Conflict("a previous request was declined")
		}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Connection{}, apperrors.Internal("failed to check existing connection", err)
	}

	conn, err := s.db.CreateConnection(database.CreateConnectionParams{
		SenderId:   senderId,
		ReceiverId: receiverId,
		Message:    message,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// lost a race with a near-simultaneous request for the same pair
			return types.Connection{}, apperrors.Conflict("a connection request is already pending")
		}
		return types.Connection{}, apperrors.Internal("failed to create connection", err)
	}

	s.stats.Incr(stats.ConnectionRequests)

	payload := map[string]any{
		"connection_id": conn.Id,
		"sender_id":     senderId,
		"message":       message,
	}
	s.notifier.Notify(receiverId, notifications.KindConnectionRequest, payload)
	s.pub.Publish(realtime.UserTopic(receiverId), realtime.EventConnectionRequest, payload)

	return asConnection(conn, receiver, true), nil
}

// AcceptRequest transitions a PENDING request to ACCEPTED. Only the receiver
// may accept.
func (s *Service) AcceptRequest(connectionId, actingUserId int) (types.Connection, error) {
	conn, err := s.getConnection(connectionId)
	if err != nil {
		return types.Connection{}, err
	}

	if conn.ReceiverId != actingUserId {
		return types.Connection{}, apperrors.Forbidden("only the recipient can accept a connection request")
	}
	if conn.Status != database.ConnectionPending {
		return types.Connection{}, apperrors.InvalidState("connection request is not pending")
	}

	updated, err := s.db.UpdateConnectionStatus(connectionId, database.ConnectionAccepted)
	if err != nil {
		return types.Connection{}, apperrors.Internal("failed to accept connection", err)
	}

	sender, err := s.db.GetAccountById(conn.SenderId)
	if err != nil {
		return types.Connection{}, apperrors.Internal("failed to look up sender", err)
	}

	s.stats.Incr(stats.ConnectionsAccepted)

	payload := map[string]any{
		"connection_id": updated.Id,
		"receiver_id":   actingUserId,
	}
	s.notifier.Notify(conn.SenderId, notifications.KindConnectionAccepted, payload)
	s.pub.Publish(realtime.UserTopic(conn.SenderId), realtime.EventConnectionAccepted, payload)

	return asConnection(updated, sender, false), nil
}

// RejectRequest transitions a PENDING request to REJECTED. Only the receiver
// may reject. REJECTED is terminal.
func (s *Service) RejectRequest(connectionId, actingUserId int) error {
	conn, err := s.getConnection(connectionId)
	if err != nil {
		return err
	}

	if conn.ReceiverId != actingUserId {
		return apperrors.Forbidden("only the recipient can reject a connection request")
	}
	if conn.Status != database.ConnectionPending {
		return apperrors.InvalidState("connection request is not pending")
	}

	if _, err := s.db.UpdateConnectionStatus(connectionId, database.ConnectionRejected); err != nil {
		return apperrors.Internal("failed to reject connection", err)
	}

	return nil
}

// CancelRequest hard-deletes a PENDING request. Only the sender may cancel.
func (s *Service) CancelRequest(connectionId, actingUserId int) error {
	conn, err := s.getConnection(connectionId)
	if err != nil {
		return err
	}

	if conn.SenderId != actingUserId {
		return apperrors.Forbidden("only the sender can cancel a connection request")
	}
	if conn.Status != database.ConnectionPending {
		return apperrors.InvalidState("connection request is not pending")
	}

	if err := s.db.DeleteConnection(connectionId); err != nil {
		return apperrors.Internal("failed to cancel connection", err)
	}

	return nil
}

// RemoveConnection hard-deletes a connection in any status. Either party may
// remove it.
func (s *Service) RemoveConnection(connectionId, actingUserId int) error {
	conn, err := s.getConnection(connectionId)
	if err != nil {
		return err
	}

	if conn.SenderId != actingUserId && conn.ReceiverId != actingUserId {
		return apperrors.Forbidden("not a party to this connection")
	}

	if err := s.db.DeleteConnection(connectionId); err != nil {
		return apperrors.Internal("failed to remove connection", err)
	}

	return nil
}

// ConnectionStatus reports the relationship between userId and targetUserId.
// IsSender tells the UI whether a PENDING request was sent by userId.
func (s *Service) ConnectionStatus(userId, targetUserId int) (types.ConnectionState, error) {
	conn, err := s.db.GetConnectionBetween(userId, targetUserId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ConnectionState{Status: types.ConnectionNone}, nil
		}
		return types.ConnectionState{}, apperrors.Internal("failed to look up connection", err)
	}

	return types.ConnectionState{
		Status:       types.ConnectionStatus(conn.Status),
		ConnectionId: conn.Id,
		IsSender:     conn.SenderId == userId,
	}, nil
}

// ListConnections returns the user's accepted connections, most recently
// updated first.
func (s *Service) ListConnections(userId, limit, offset int) ([]types.Connection, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.ListConnections(userId, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("failed to list connections", err)
	}

	return asConnections(rows, userId), nil
}

// ListPendingRequests returns pending requests received by the user, newest
// first.
func (s *Service) ListPendingRequests(userId, limit, offset int) ([]types.Connection, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.ListPendingRequests(userId, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("failed to list pending requests", err)
	}

	return asConnections(rows, userId), nil
}

// ListSentRequests returns pending requests sent by the user, newest first.
func (s *Service) ListSentRequests(userId, limit, offset int) ([]types.Connection, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.ListSentRequests(userId, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("failed to list sent requests", err)
	}

	return asConnections(rows, userId), nil
}

// Suggestions returns users with no relationship to userId in either
// direction. Ordering is account recency only.
func (s *Service) Suggestions(userId, limit int) ([]types.User, error) {
	limit, _ = normalizePage(limit, 0)
	rows, err := s.db.ListSuggestions(userId, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list suggestions", err)
	}

	users := make([]types.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, asUser(row))
	}

	return users, nil
}

func (s *Service) getConnection(connectionId int) (database.Connection, error) {
	conn, err := s.db.GetConnectionById(connectionId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Connection{}, apperrors.NotFound("connection not found")
		}
		return database.Connection{}, apperrors.Internal("failed to look up connection", err)
	}

	return conn, nil
}

func asConnection(conn database.Connection, other database.User, isSender bool) types.Connection {
	return types.Connection{
		Id:        conn.Id,
		Status:    types.ConnectionStatus(conn.Status),
		Message:   conn.Message.String,
		User:      asUser(other),
		IsSender:  isSender,
		CreatedAt: conn.CreatedAt,
		UpdatedAt: conn.UpdatedAt,
	}
}

func asConnections(rows []database.Connection, userId int) []types.Connection {
	conns := make([]types.Connection, 0, len(rows))
	for _, row := range rows {
		conns = append(conns, asConnection(row, row.Other, row.SenderId == userId))
	}
	return conns
}

func asUser(u database.User) types.User {
	return types.User{
		Id:          u.Id,
		DisplayName: u.DisplayName,
		AvatarUrl:   u.AvatarUrl,
		ProfileType: types.ProfileType(u.ProfileType),
		CreatedAt:   u.CreatedAt,
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
