package database

import (
	"database/sql"
	"fmt"
	"time"
)

const connectionColumns = "c.id, c.sender_id, c.receiver_id, c.status, c.message, c.created_at, c.updated_at"

func (db *PgRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (email, password_hash, display_name, avatar_url, profile_type, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id, email, display_name, avatar_url, profile_type, created_at, updated_at",
		params.Email,
		params.PasswordHash,
		params.DisplayName,
		params.AvatarUrl,
		params.ProfileType,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Email,
		&u.DisplayName,
		&u.AvatarUrl,
		&u.ProfileType,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return User{}, ErrDuplicate
	}

	return u, err
}

func (db *PgRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, display_name, avatar_url, profile_type, created_at, updated_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Email,
		&u.DisplayName,
		&u.AvatarUrl,
		&u.ProfileType,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, password_hash, display_name, avatar_url, profile_type, created_at, updated_at FROM users "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Email,
		&u.PasswordHash,
		&u.DisplayName,
		&u.AvatarUrl,
		&u.ProfileType,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgRepository) GetConnectionById(id int) (Connection, error) {
	row := db.conn.QueryRow(
		"SELECT "+connectionColumns+" FROM connections c WHERE c.id = $1 LIMIT 1",
		id,
	)

	return scanConnection(row)
}

func (db *PgRepository) GetConnectionBetween(userId, otherId int) (Connection, error) {
	row := db.conn.QueryRow(
		"SELECT "+connectionColumns+" FROM connections c "+
			"WHERE (c.sender_id = $1 AND c.receiver_id = $2) OR (c.sender_id = $2 AND c.receiver_id = $1) LIMIT 1",
		userId,
		otherId,
	)

	return scanConnection(row)
}

func (db *PgRepository) CreateConnection(params CreateConnectionParams) (Connection, error) {
	row := db.conn.QueryRow(
		"INSERT INTO connections (sender_id, receiver_id, status, message, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, sender_id, receiver_id, status, message, created_at, updated_at",
		params.SenderId,
		params.ReceiverId,
		ConnectionPending,
		newNullString(params.Message),
		time.Now().UTC(),
	)

	conn, err := scanConnection(row)
	if isUniqueViolation(err) {
		return Connection{}, ErrDuplicate
	}

	return conn, err
}

func (db *PgRepository) UpdateConnectionStatus(id int, status string) (Connection, error) {
	row := db.conn.QueryRow(
		"UPDATE connections SET status = $2, updated_at = $3 WHERE id = $1 "+
			"RETURNING id, sender_id, receiver_id, status, message, created_at, updated_at",
		id,
		status,
		time.Now().UTC(),
	)

	return scanConnection(row)
}

func (db *PgRepository) DeleteConnection(id int) error {
	_, err := db.conn.Exec("DELETE FROM connections WHERE id = $1", id)
	return err
}

// ListConnections returns the user's accepted connections with the other
// party's profile attached, most recently updated first.
func (db *PgRepository) ListConnections(userId, limit, offset int) ([]Connection, error) {
	return db.listConnectionsWithOther(
		"SELECT "+connectionColumns+", u.id, u.display_name, u.avatar_url, u.profile_type FROM connections c "+
			"JOIN users u ON u.id = CASE WHEN c.sender_id = $1 THEN c.receiver_id ELSE c.sender_id END "+
			"WHERE (c.sender_id = $1 OR c.receiver_id = $1) AND c.status = $2 "+
			"ORDER BY c.updated_at DESC LIMIT $3 OFFSET $4",
		userId, ConnectionAccepted, limit, offset,
	)
}

// ListPendingRequests returns pending requests received by the user with the
// sender's profile attached, newest first.
func (db *PgRepository) ListPendingRequests(userId, limit, offset int) ([]Connection, error) {
	return db.listConnectionsWithOther(
		"SELECT "+connectionColumns+", u.id, u.display_name, u.avatar_url, u.profile_type FROM connections c "+
			"JOIN users u ON u.id = c.sender_id "+
			"WHERE c.receiver_id = $1 AND c.status = $2 "+
			"ORDER BY c.created_at DESC LIMIT $3 OFFSET $4",
		userId, ConnectionPending, limit, offset,
	)
}

// ListSentRequests returns pending requests sent by the user with the
// receiver's profile attached, newest first.
func (db *PgRepository) ListSentRequests(userId, limit, offset int) ([]Connection, error) {
	return db.listConnectionsWithOther(
		"SELECT "+connectionColumns+", u.id, u.display_name, u.avatar_url, u.profile_type FROM connections c "+
			"JOIN users u ON u.id = c.receiver_id "+
			"WHERE c.sender_id = $1 AND c.status = $2 "+
			"ORDER BY c.created_at DESC LIMIT $3 OFFSET $4",
		userId, ConnectionPending, limit, offset,
	)
}

func (db *PgRepository) listConnectionsWithOther(query string, args ...any) ([]Connection, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns = make([]Connection, 0)
	for rows.Next() {
		var c Connection
		if err = rows.Scan(
			&c.Id,
			&c.SenderId,
			&c.ReceiverId,
			&c.Status,
			&c.Message,
			&c.CreatedAt,
			&c.UpdatedAt,
			&c.Other.Id,
			&c.Other.DisplayName,
			&c.Other.AvatarUrl,
			&c.Other.ProfileType,
		); err != nil {
			break
		}

		conns = append(conns, c)
	}

	return conns, err
}

// ListSuggestions returns up to limit active users with no relationship to
// the user in either direction, newest accounts first. Deliberately
// unsophisticated: there is no ranking beyond account recency.
func (db *PgRepository) ListSuggestions(userId, limit int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT u.id, u.display_name, u.avatar_url, u.profile_type, u.created_at FROM users u "+
			"WHERE u.id <> $1 AND NOT EXISTS ("+
			"SELECT 1 FROM connections c WHERE (c.sender_id = u.id AND c.receiver_id = $1) "+
			"OR (c.sender_id = $1 AND c.receiver_id = u.id)) "+
			"ORDER BY u.created_at DESC LIMIT $2",
		userId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0, limit)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.DisplayName, &u.AvatarUrl, &u.ProfileType, &u.CreatedAt); err != nil {
			break
		}

		users = append(users, u)
	}

	return users, err
}

func (db *PgRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, is_group, title, last_message_at, created_at FROM conversations "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	return scanConversation(row)
}

func (db *PgRepository) GetDirectConversation(userId, otherId int) (Conversation, error) {
	lo, hi := orderPair(userId, otherId)
	row := db.conn.QueryRow(
		"SELECT id, external_id, is_group, title, last_message_at, created_at FROM conversations "+
			"WHERE NOT is_group AND user_min = $1 AND user_max = $2 LIMIT 1",
		lo,
		hi,
	)

	return scanConversation(row)
}

// CreateDirectConversation inserts a non-group conversation with exactly two
// active participants. The normalized (user_min, user_max) pair carries a
// unique index, so a concurrent create of the same pair returns ErrDuplicate.
func (db *PgRepository) CreateDirectConversation(userId, otherId int, externalId string) (Conversation, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	lo, hi := orderPair(userId, otherId)
	row := tx.QueryRow(
		"INSERT INTO conversations (external_id, is_group, user_min, user_max, created_at) "+
			"VALUES ($1, false, $2, $3, $4) RETURNING id, external_id, is_group, title, last_message_at, created_at",
		externalId,
		lo,
		hi,
		time.Now().UTC(),
	)

	var conv Conversation
	conv, err = scanConversation(row)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
		}
		return Conversation{}, err
	}

	for _, id := range []int{userId, otherId} {
		if _, err = tx.Exec(
			"INSERT INTO conversation_participants (conversation_id, user_id, created_at) VALUES ($1, $2, $3)",
			conv.Id,
			id,
			time.Now().UTC(),
		); err != nil {
			return Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Conversation{}, err
	}

	return conv, nil
}

func (db *PgRepository) GetActiveParticipant(conversationId, userId int) (Participant, error) {
	row := db.conn.QueryRow(
		"SELECT id, conversation_id, user_id, last_read_at, left_at FROM conversation_participants "+
			"WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL LIMIT 1",
		conversationId,
		userId,
	)

	var p Participant
	err := row.Scan(&p.Id, &p.ConversationId, &p.UserId, &p.LastReadAt, &p.LeftAt)

	return p, err
}

func (db *PgRepository) GetConversationUsers(conversationId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT u.id, u.display_name, u.avatar_url, u.profile_type FROM conversation_participants p "+
			"JOIN users u ON u.id = p.user_id WHERE p.conversation_id = $1 AND p.left_at IS NULL",
		conversationId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0, 2)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.DisplayName, &u.AvatarUrl, &u.ProfileType); err != nil {
			break
		}

		users = append(users, u)
	}

	return users, err
}

// ListConversations returns the user's active direct conversations ordered by
// most recent activity, each with the other participant's profile, the latest
// message and the user's read cursor.
func (db *PgRepository) ListConversations(userId, limit, offset int) ([]ConversationListItem, error) {
	query := `
		SELECT
				c.id, c.external_id, c.is_group, c.title, c.last_message_at, c.created_at,
				u.id, u.display_name, u.avatar_url, u.profile_type,
				lm.id, lm.sender_id, lm.content, lm.message_type, lm.created_at,
				p.last_read_at
		FROM conversation_participants p
		JOIN conversations c ON c.id = p.conversation_id
		JOIN conversation_participants op ON op.conversation_id = c.id AND op.user_id <> p.user_id AND op.left_at IS NULL
		JOIN users u ON u.id = op.user_id
		LEFT JOIN LATERAL (
				SELECT m.id, m.sender_id, m.content, m.message_type, m.created_at FROM messages m
				WHERE m.conversation_id = c.id ORDER BY m.created_at DESC, m.id DESC LIMIT 1
		) lm ON true
		WHERE p.user_id = $1 AND p.left_at IS NULL AND NOT c.is_group
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
		LIMIT $2 OFFSET $3;
`

	rows, err := db.conn.Query(query, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var items = make([]ConversationListItem, 0)
	for rows.Next() {
		var (
			item         ConversationListItem
			msgId        sql.NullInt64
			msgSenderId  sql.NullInt64
			msgContent   sql.NullString
			msgType      sql.NullString
			msgCreatedAt sql.NullTime
		)

		err := rows.Scan(
			&item.Conversation.Id,
			&item.Conversation.ExternalId,
			&item.Conversation.IsGroup,
			&item.Conversation.Title,
			&item.Conversation.LastMessageAt,
			&item.Conversation.CreatedAt,
			&item.Other.Id,
			&item.Other.DisplayName,
			&item.Other.AvatarUrl,
			&item.Other.ProfileType,
			&msgId,
			&msgSenderId,
			&msgContent,
			&msgType,
			&msgCreatedAt,
			&item.LastReadAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if msgId.Valid {
			item.LastMessage = &Message{
				Id:             int(msgId.Int64),
				ConversationId: item.Conversation.Id,
				SenderId:       int(msgSenderId.Int64),
				Content:        msgContent.String,
				MessageType:    msgType.String,
				CreatedAt:      msgCreatedAt.Time,
			}
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// CreateMessage inserts a message and, in the same transaction, bumps the
// conversation's last_message_at and the sender's own read cursor.
func (db *PgRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	row := tx.QueryRow(
		"INSERT INTO messages (conversation_id, sender_id, content, message_type, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, conversation_id, sender_id, content, message_type, created_at",
		params.ConversationId,
		params.SenderId,
		params.Content,
		params.MessageType,
		now,
	)

	var msg Message
	err = row.Scan(
		&msg.Id,
		&msg.ConversationId,
		&msg.SenderId,
		&msg.Content,
		&msg.MessageType,
		&msg.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	if _, err = tx.Exec(
		"UPDATE conversations SET last_message_at = $1 WHERE id = $2",
		now,
		params.ConversationId,
	); err != nil {
		return Message{}, err
	}

	// the sender always considers their own message read
	if _, err = tx.Exec(
		"UPDATE conversation_participants SET last_read_at = $1 WHERE conversation_id = $2 AND user_id = $3",
		now,
		params.ConversationId,
		params.SenderId,
	); err != nil {
		return Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

// ListMessages returns messages newest first with the sender's profile
// attached. Callers page backward through history and reverse for display.
func (db *PgRepository) ListMessages(conversationId, limit, offset int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT m.id, m.conversation_id, m.sender_id, m.content, m.message_type, m.created_at, "+
			"u.display_name, u.avatar_url, u.profile_type FROM messages m "+
			"JOIN users u ON u.id = m.sender_id "+
			"WHERE m.conversation_id = $1 ORDER BY m.created_at DESC, m.id DESC LIMIT $2 OFFSET $3",
		conversationId,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(
			&msg.Id,
			&msg.ConversationId,
			&msg.SenderId,
			&msg.Content,
			&msg.MessageType,
			&msg.CreatedAt,
			&msg.Sender.DisplayName,
			&msg.Sender.AvatarUrl,
			&msg.Sender.ProfileType,
		); err != nil {
			break
		}

		msg.Sender.Id = msg.SenderId
		messages = append(messages, msg)
	}

	return messages, err
}

func (db *PgRepository) MarkConversationRead(conversationId, userId int) error {
	_, err := db.conn.Exec(
		"UPDATE conversation_participants SET last_read_at = $1 WHERE conversation_id = $2 AND user_id = $3 AND left_at IS NULL",
		time.Now().UTC(),
		conversationId,
		userId,
	)

	return err
}

// CountUnreadConversations counts active conversations whose latest message
// was sent by someone else and postdates the user's read cursor. The result
// counts conversations, not messages.
func (db *PgRepository) CountUnreadConversations(userId int) (int, error) {
	query := `
		SELECT COUNT(*) FROM conversation_participants p
		JOIN conversations c ON c.id = p.conversation_id
		JOIN LATERAL (
				SELECT m.sender_id, m.created_at FROM messages m
				WHERE m.conversation_id = c.id ORDER BY m.created_at DESC, m.id DESC LIMIT 1
		) lm ON true
		WHERE p.user_id = $1 AND p.left_at IS NULL
			AND lm.sender_id <> $1
			AND (p.last_read_at IS NULL OR p.last_read_at < lm.created_at);
`

	var count int
	err := db.conn.QueryRow(query, userId).Scan(&count)

	return count, err
}

func (db *PgRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	row := db.conn.QueryRow(
		"INSERT INTO notifications (user_id, kind, payload, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, user_id, kind, payload, read_at, created_at",
		params.UserId,
		params.Kind,
		params.Payload,
		time.Now().UTC(),
	)

	var n Notification
	err := row.Scan(&n.Id, &n.UserId, &n.Kind, &n.Payload, &n.ReadAt, &n.CreatedAt)

	return n, err
}

func (db *PgRepository) ListNotifications(userId, limit, offset int) ([]Notification, error) {
	rows, err := db.conn.Query(
		"SELECT id, user_id, kind, payload, read_at, created_at FROM notifications "+
			"WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		userId,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications = make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if err = rows.Scan(&n.Id, &n.UserId, &n.Kind, &n.Payload, &n.ReadAt, &n.CreatedAt); err != nil {
			break
		}

		notifications = append(notifications, n)
	}

	return notifications, err
}

func (db *PgRepository) MarkNotificationsRead(userId int) error {
	_, err := db.conn.Exec(
		"UPDATE notifications SET read_at = $1 WHERE user_id = $2 AND read_at IS NULL",
		time.Now().UTC(),
		userId,
	)

	return err
}

func scanConnection(row *sql.Row) (Connection, error) {
	var c Connection
	err := row.Scan(
		&c.Id,
		&c.SenderId,
		&c.ReceiverId,
		&c.Status,
		&c.Message,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	return c, err
}

func scanConversation(row *sql.Row) (Conversation, error) {
	var conv Conversation
	err := row.Scan(
		&conv.Id,
		&conv.ExternalId,
		&conv.IsGroup,
		&conv.Title,
		&conv.LastMessageAt,
		&conv.CreatedAt,
	)

	return conv, err
}

func orderPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func newNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
