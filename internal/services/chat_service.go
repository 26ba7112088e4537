package services

import (
	"context"
	"log"
	"time"

	"ChatRelay/server/internal/db"
	"ChatRelay/server/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"
)

type ChatService interface {
	CreateDirectChat(ctx context.Context, creatorID, recipientID int) (int, error)
	CreateGroupChat(ctx context.Context, name string, adminID int, memberIDs []int) (int, error)
	RenameGroup(ctx context.Context, chatID, callerID int, name string) error
	AddMember(ctx context.Context, chatID, callerID, userID int) error
	RemoveMember(ctx context.Context, chatID, callerID, userID int) error
	GetChatsByUserId(ctx context.Context, userID int) ([]models.ChatWithLastMessage, error)
	GetChatById(ctx context.Context, chatID, userID int) (*models.Chat, error)
	IsUserParticipant(ctx context.Context, chatID, userID int) (bool, error)
	IsChatAdmin(ctx context.Context, chatID, userID int) (bool, error)
	GetParticipantsByChatId(ctx context.Context, chatID int) ([]models.User, error)
	GetUnreadCount(ctx context.Context, chatID, userID int) (int, error)
}

type chatService struct{}

func NewChatService() *chatService {
	return &chatService{}
}

// CreateDirectChat creates or finds the one direct chat between two users.
// The insert conflicts on the participant-pair key, so both sides racing to
// create the chat land on the same row. The DO UPDATE is a no-op that makes
// RETURNING yield the existing id on conflict.
func (cs *chatService) CreateDirectChat(ctx context.Context, creatorID, recipientID int) (int, error) {
	if creatorID == recipientID {
		return 0, models.ErrValidation
	}

	query := psql.
		Insert("chats").
		Columns("type", "created_by", "direct_key", "created_at").
		Values(models.ChatTypeDirect, creatorID, models.DirectChatKey(creatorID, recipientID), time.Now()).
		Suffix("ON CONFLICT (direct_key) DO UPDATE SET direct_key = EXCLUDED.direct_key RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var chatID int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&chatID)
	if err != nil {
		log.Printf("Error creating direct chat between %d and %d: %v", creatorID, recipientID, err)
		return 0, err
	}

	for _, userID := range []int{creatorID, recipientID} {
		if err := cs.addParticipant(ctx, chatID, userID, models.RoleMember); err != nil {
			return 0, err
		}
	}

	log.Printf("Direct chat %d ready for users %d and %d", chatID, creatorID, recipientID)
	return chatID, nil
}

func (cs *chatService) CreateGroupChat(ctx context.Context, name string, adminID int, memberIDs []int) (int, error) {
	if name == "" || len(memberIDs) == 0 {
		return 0, models.ErrValidation
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		log.Printf("Error starting transaction: %v", err)
		return 0, err
	}
	defer tx.Rollback(ctx)

	insertChat := psql.
		Insert("chats").
		Columns("type", "name", "created_by", "created_at").
		Values(models.ChatTypeGroup, name, adminID, time.Now()).
		Suffix("RETURNING id")

	sqlStr, args, err := insertChat.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var chatID int
	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&chatID); err != nil {
		log.Printf("Error creating group chat %q: %v", name, err)
		return 0, err
	}

	insertParts := psql.
		Insert("chat_participants").
		Columns("chat_id", "user_id", "role").
		Values(chatID, adminID, models.RoleAdmin)
	for _, userID := range memberIDs {
		if userID == adminID {
			continue
		}
		insertParts = insertParts.Values(chatID, userID, models.RoleMember)
	}
	insertParts = insertParts.Suffix("ON CONFLICT (chat_id, user_id) DO NOTHING")

	sqlStr, args, err = insertParts.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		log.Printf("Error adding participants to group %d: %v", chatID, err)
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("Error committing group chat %d: %v", chatID, err)
		return 0, err
	}

	log.Printf("Group chat %q created with ID %d by user %d", name, chatID, adminID)
	return chatID, nil
}

func (cs *chatService) RenameGroup(ctx context.Context, chatID, callerID int, name string) error {
	if name == "" {
		return models.ErrValidation
	}
	if err := cs.requireAdmin(ctx, chatID, callerID); err != nil {
		return err
	}

	query := psql.
		Update("chats").
		Set("name", name).
		Where(squirrel.And{
			squirrel.Eq{"id": chatID},
			squirrel.Eq{"type": models.ChatTypeGroup},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	result, err := db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error renaming chat %d: %v", chatID, err)
		return err
	}
	if result.RowsAffected() == 0 {
		return models.ErrChatNotFound
	}

	log.Printf("Chat %d renamed to %q by user %d", chatID, name, callerID)
	return nil
}

func (cs *chatService) AddMember(ctx context.Context, chatID, callerID, userID int) error {
	if err := cs.requireAdmin(ctx, chatID, callerID); err != nil {
		return err
	}
	return cs.addParticipant(ctx, chatID, userID, models.RoleMember)
}

func (cs *chatService) RemoveMember(ctx context.Context, chatID, callerID, userID int) error {
	// Leaving a group yourself needs no admin rights.
	if callerID != userID {
		if err := cs.requireAdmin(ctx, chatID, callerID); err != nil {
			return err
		}
	}

	query := psql.
		Delete("chat_participants").
		Where(squirrel.And{
			squirrel.Eq{"chat_id": chatID},
			squirrel.Eq{"user_id": userID},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error removing participant %d from chat %d: %v", userID, chatID, err)
		return err
	}

	log.Printf("Participant %d removed from chat %d", userID, chatID)
	return nil
}

func (cs *chatService) addParticipant(ctx context.Context, chatID, userID int, role string) error {
	query := psql.
		Insert("chat_participants").
		Columns("chat_id", "user_id", "role").
		Values(chatID, userID, role).
		Suffix("ON CONFLICT (chat_id, user_id) DO NOTHING")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error adding participant %d to chat %d: %v", userID, chatID, err)
		return err
	}

	log.Printf("Participant %d added to chat %d", userID, chatID)
	return nil
}

func (cs *chatService) requireAdmin(ctx context.Context, chatID, userID int) error {
	isAdmin, err := cs.IsChatAdmin(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return models.ErrNotAdmin
	}
	return nil
}

func (cs *chatService) GetChatsByUserId(ctx context.Context, userID int) ([]models.ChatWithLastMessage, error) {
	query := psql.
		Select("chats.id", "chats.type",
			"COALESCE(chats.name, '') AS name",
			"chats.created_by", "chats.created_at",
			"messages.text AS last_message_content",
			"messages.created_at AS last_message_sent_at").
		From("chats").
		Join("chat_participants ON chats.id = chat_participants.chat_id").
		LeftJoin("messages ON messages.id = chats.last_message_id").
		Where(squirrel.Eq{"chat_participants.user_id": userID}).
		OrderBy("messages.created_at DESC NULLS LAST")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting chats for user %d: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	var chats []models.ChatWithLastMessage
	for rows.Next() {
		var chat models.ChatWithLastMessage
		err := rows.Scan(&chat.ID, &chat.Type, &chat.Name, &chat.CreatedBy, &chat.CreatedAt,
			&chat.LastMessageContent, &chat.LastMessageSentAt)
		if err != nil {
			log.Printf("Error scanning chat row: %v", err)
			continue
		}
		chats = append(chats, chat)
	}

	for i, chat := range chats {
		participants, err := cs.GetParticipantsByChatId(ctx, chat.ID)
		if err != nil {
			log.Printf("Error getting participants for chat %d: %v", chat.ID, err)
			continue
		}
		chats[i].Participants = participants

		if chat.Type == models.ChatTypeDirect {
			for _, participant := range participants {
				if participant.ID != userID {
					chats[i].Name = participant.Username
					break
				}
			}
		}

		unreadCount, err := cs.GetUnreadCount(ctx, chat.ID, userID)
		if err != nil {
			log.Printf("Error getting unread count for chat %d: %v", chat.ID, err)
			continue
		}
		chats[i].UnreadCount = unreadCount
	}

	log.Printf("Retrieved %d chats for user %d", len(chats), userID)
	return chats, nil
}

func (cs *chatService) GetChatById(ctx context.Context, chatID, userID int) (*models.Chat, error) {
	isParticipant, err := cs.IsUserParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		log.Printf("User %d is not a participant of chat %d", userID, chatID)
		return nil, models.ErrUserNotParticipant
	}

	query := psql.
		Select("id", "type", "COALESCE(name, '')", "created_by", "created_at").
		From("chats").
		Where(squirrel.Eq{"id": chatID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var chat models.Chat
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&chat.ID, &chat.Type, &chat.Name, &chat.CreatedBy, &chat.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrChatNotFound
		}
		log.Printf("Error getting chat %d: %v", chatID, err)
		return nil, err
	}

	chat.Participants, err = cs.GetParticipantsByChatId(ctx, chatID)
	if err != nil {
		return nil, err
	}

	return &chat, nil
}

func (cs *chatService) IsUserParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1
            FROM chat_participants
            WHERE chat_id = $1 AND user_id = $2
        )
    `

	var exists bool
	err := db.Pool.QueryRow(ctx, query, chatID, userID).Scan(&exists)
	if err != nil {
		log.Printf("Error checking if user %d is a participant of chat %d: %v", userID, chatID, err)
		return false, err
	}

	return exists, nil
}

func (cs *chatService) IsChatAdmin(ctx context.Context, chatID, userID int) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1
            FROM chat_participants
            WHERE chat_id = $1 AND user_id = $2 AND role = $3
        )
    `

	var exists bool
	err := db.Pool.QueryRow(ctx, query, chatID, userID, models.RoleAdmin).Scan(&exists)
	if err != nil {
		log.Printf("Error checking if user %d is admin of chat %d: %v", userID, chatID, err)
		return false, err
	}

	return exists, nil
}

func (cs *chatService) GetParticipantsByChatId(ctx context.Context, chatID int) ([]models.User, error) {
	query := psql.
		Select("users.id", "users.username", "users.email", "users.avatar_url", "users.status", "users.last_seen_at").
		From("users").
		Join("chat_participants ON users.id = chat_participants.user_id").
		Where(squirrel.Eq{"chat_participants.chat_id": chatID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting participants for chat %d: %v", chatID, err)
		return nil, err
	}
	defer rows.Close()

	var participants []models.User
	for rows.Next() {
		var participant models.User
		err := rows.Scan(&participant.ID, &participant.Username, &participant.Email,
			&participant.AvatarURL, &participant.Status, &participant.LastSeenAt)
		if err != nil {
			log.Printf("Error scanning participant row: %v", err)
			continue
		}
		participants = append(participants, participant)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(participants) == 0 {
		return nil, models.ErrChatNotFound
	}

	return participants, nil
}

func (cs *chatService) GetUnreadCount(ctx context.Context, chatID, userID int) (int, error) {
	query := psql.
		Select("COUNT(*)").
		From("messages").
		Where(squirrel.And{
			squirrel.Eq{"chat_id": chatID},
			squirrel.NotEq{"sender_id": userID},
			squirrel.Eq{"deleted": false},
			squirrel.Expr("NOT (? = ANY(seen_by))", userID),
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var count int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error getting unread count for chat %d and user %d: %v", chatID, userID, err)
		return 0, err
	}

	return count, nil
}
