package services

import (
	"context"
	"log"
	"time"

	"ChatRelay/server/internal/db"
	"ChatRelay/server/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

type MessageService interface {
	Send(ctx context.Context, chatID, senderID int, content models.MessageContent) (*models.Message, error)
	ListPage(ctx context.Context, chatID int, before *time.Time, limit int) ([]models.Message, error)
	MarkSeen(ctx context.Context, chatID, userID int) ([]int, []int, error)
	Edit(ctx context.Context, messageID, callerID int, newText string) (*models.Message, error)
	SoftDelete(ctx context.Context, messageID, callerID int) (int, error)
}

type messageService struct {
	UserService UserService
}

func insertMessageQuery(chatID, senderID int, content models.MessageContent) squirrel.InsertBuilder {
	return psql.
		Insert("messages").
		Columns("chat_id", "sender_id", "text", "image_url", "voice_url", "reply_to_id").
		Values(chatID, senderID, content.Text, content.ImageURL, content.VoiceURL, content.ReplyToID).
		Suffix("RETURNING id, created_at")
}

func NewMessageService(userService UserService) *messageService {
	return &messageService{
		UserService: userService,
	}
}

// Send persists a message, its attachments and the chat's last-message
// pointer in one transaction, so a half-written message can never surface.
func (ms *messageService) Send(ctx context.Context, chatID, senderID int, content models.MessageContent) (*models.Message, error) {
	if content.Empty() {
		return nil, models.ErrEmptyMessage
	}

	chatType, err := ms.chatType(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if chatType == models.ChatTypeDirect {
		otherID, err := ms.otherParticipant(ctx, chatID, senderID)
		if err != nil {
			return nil, err
		}
		blocked, err := ms.UserService.IsBlockedEitherWay(ctx, senderID, otherID)
		if err != nil {
			return nil, err
		}
		if blocked {
			log.Printf("Send into chat %d refused: users %d and %d are blocked", chatID, senderID, otherID)
			return nil, models.ErrBlocked
		}
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		log.Printf("Error starting transaction: %v", err)
		return nil, err
	}
	defer tx.Rollback(ctx)

	sqlStr, args, err := insertMessageQuery(chatID, senderID, content).ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	msg := models.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      content.Text,
		ImageURL:  content.ImageURL,
		VoiceURL:  content.VoiceURL,
		ReplyToID: content.ReplyToID,
		SeenBy:    []int{},
	}
	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		log.Printf("Error saving message in chat %d: %v", chatID, err)
		return nil, err
	}

	for _, att := range content.Attachments {
		insertAtt := psql.
			Insert("attachments").
			Columns("message_id", "file_url", "file_type", "file_name").
			Values(msg.ID, att.FileURL, att.FileType, att.FileName).
			Suffix("RETURNING id")

		sqlStr, args, err := insertAtt.ToSql()
		if err != nil {
			log.Printf("Failed to build SQL query: %v", err)
			return nil, err
		}

		saved := models.Attachment{
			MessageID: msg.ID,
			FileURL:   att.FileURL,
			FileType:  att.FileType,
			FileName:  att.FileName,
		}
		if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&saved.ID); err != nil {
			log.Printf("Error saving attachment for message %d: %v", msg.ID, err)
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, saved)
	}

	updateChat := psql.
		Update("chats").
		Set("last_message_id", msg.ID).
		Where(squirrel.Eq{"id": chatID})

	sqlStr, args, err = updateChat.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		log.Printf("Error updating last message pointer for chat %d: %v", chatID, err)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("Error committing message in chat %d: %v", chatID, err)
		return nil, err
	}

	if sender, err := ms.UserService.GetUserById(ctx, senderID); err == nil {
		msg.Username = sender.Username
	}

	log.Printf("Message %d saved in chat %d by user %d at %v", msg.ID, chatID, senderID, msg.CreatedAt)
	return &msg, nil
}

// ListPage returns up to limit messages strictly older than before (the
// newest page when before is nil), ascending for display. The rows come back
// newest-first and get reversed; a short page means no older messages remain.
func (ms *messageService) ListPage(ctx context.Context, chatID int, before *time.Time, limit int) ([]models.Message, error) {
	if limit < 1 {
		limit = 20
	}

	where := squirrel.And{squirrel.Eq{"chat_id": chatID}}
	if before != nil {
		where = append(where, squirrel.Lt{"created_at": *before})
	}

	query := psql.
		Select("id", "chat_id", "sender_id", "text", "image_url", "voice_url",
			"reply_to_id", "seen_by", "edited", "deleted", "created_at").
		From("messages").
		Where(where).
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error fetching messages for chat %d: %v", chatID, err)
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var seenBy pgtype.Int4Array

		err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Text, &msg.ImageURL,
			&msg.VoiceURL, &msg.ReplyToID, &seenBy, &msg.Edited, &msg.Deleted, &msg.CreatedAt)
		if err != nil {
			log.Printf("Error scanning message row: %v", err)
			return nil, err
		}

		msg.SeenBy = int4ArrayToInts(seenBy)
		if msg.Deleted {
			// soft-deleted messages keep their slot but lose their content
			msg.Text = nil
			msg.ImageURL = nil
			msg.VoiceURL = nil
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		log.Printf("Error after iterating rows: %v", err)
		return nil, err
	}

	if err := ms.attachFiles(ctx, messages); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.Printf("Fetched %d messages for chat %d", len(messages), chatID)
	return messages, nil
}

func (ms *messageService) attachFiles(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]int, 0, len(messages))
	index := make(map[int]int, len(messages))
	for i, msg := range messages {
		ids = append(ids, msg.ID)
		index[msg.ID] = i
	}

	query := psql.
		Select("id", "message_id", "file_url", "file_type", "COALESCE(file_name, '')").
		From("attachments").
		Where(squirrel.Eq{"message_id": ids})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error fetching attachments: %v", err)
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var att models.Attachment
		if err := rows.Scan(&att.ID, &att.MessageID, &att.FileURL, &att.FileType, &att.FileName); err != nil {
			log.Printf("Error scanning attachment row: %v", err)
			continue
		}
		if i, ok := index[att.MessageID]; ok && !messages[i].Deleted {
			messages[i].Attachments = append(messages[i].Attachments, att)
		}
	}

	return rows.Err()
}

// markSeenSQL is one statement on purpose: the guard in the WHERE clause is
// what makes a repeated call a no-op, and a single UPDATE cannot leave the
// chat partially seen.
const markSeenSQL = `
        UPDATE messages
        SET seen_by = array_append(seen_by, $2)
        WHERE chat_id = $1
          AND sender_id <> $2
          AND NOT ($2 = ANY(seen_by))
        RETURNING id, sender_id
    `

// MarkSeen appends userID to seen_by on every message in the chat it has not
// seen yet, in a single statement. Running it twice changes nothing the
// second time. Returns the updated message ids and their distinct senders so
// the caller can notify them.
func (ms *messageService) MarkSeen(ctx context.Context, chatID, userID int) ([]int, []int, error) {
	rows, err := db.Pool.Query(ctx, markSeenSQL, chatID, userID)
	if err != nil {
		log.Printf("Error marking messages seen in chat %d for user %d: %v", chatID, userID, err)
		return nil, nil, err
	}
	defer rows.Close()

	var messageIDs []int
	senderIDsMap := make(map[int]struct{})
	for rows.Next() {
		var id, senderID int
		if err := rows.Scan(&id, &senderID); err != nil {
			log.Printf("Error scanning updated message row: %v", err)
			continue
		}
		messageIDs = append(messageIDs, id)
		senderIDsMap[senderID] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var senderIDs []int
	for senderID := range senderIDsMap {
		senderIDs = append(senderIDs, senderID)
	}

	log.Printf("User %d saw %d messages in chat %d", userID, len(messageIDs), chatID)
	return messageIDs, senderIDs, nil
}

func (ms *messageService) Edit(ctx context.Context, messageID, callerID int, newText string) (*models.Message, error) {
	if newText == "" {
		return nil, models.ErrEmptyMessage
	}

	query := psql.
		Update("messages").
		Set("text", newText).
		Set("edited", true).
		Where(squirrel.And{
			squirrel.Eq{"id": messageID},
			squirrel.Eq{"sender_id": callerID},
			squirrel.Eq{"deleted": false},
		}).
		Suffix("RETURNING id, chat_id, sender_id, text, image_url, voice_url, reply_to_id, seen_by, edited, deleted, created_at")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var msg models.Message
	var seenBy pgtype.Int4Array
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&msg.ID, &msg.ChatID, &msg.SenderID,
		&msg.Text, &msg.ImageURL, &msg.VoiceURL, &msg.ReplyToID, &seenBy,
		&msg.Edited, &msg.Deleted, &msg.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrMessageNotFound
		}
		log.Printf("Error editing message %d: %v", messageID, err)
		return nil, err
	}

	msg.SeenBy = int4ArrayToInts(seenBy)
	log.Printf("Message %d edited by user %d", messageID, callerID)
	return &msg, nil
}

// SoftDelete flags the message; the row stays so history keeps its slot.
// Returns the chat id so the caller can broadcast the removal.
func (ms *messageService) SoftDelete(ctx context.Context, messageID, callerID int) (int, error) {
	query := psql.
		Update("messages").
		Set("deleted", true).
		Where(squirrel.And{
			squirrel.Eq{"id": messageID},
			squirrel.Eq{"sender_id": callerID},
		}).
		Suffix("RETURNING chat_id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var chatID int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&chatID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, models.ErrMessageNotFound
		}
		log.Printf("Error deleting message %d: %v", messageID, err)
		return 0, err
	}

	log.Printf("Message %d soft-deleted by user %d", messageID, callerID)
	return chatID, nil
}

func (ms *messageService) chatType(ctx context.Context, chatID int) (string, error) {
	query := psql.
		Select("type").
		From("chats").
		Where(squirrel.Eq{"id": chatID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return "", err
	}

	var chatType string
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&chatType)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", models.ErrChatNotFound
		}
		log.Printf("Error getting type of chat %d: %v", chatID, err)
		return "", err
	}

	return chatType, nil
}

func (ms *messageService) otherParticipant(ctx context.Context, chatID, userID int) (int, error) {
	query := psql.
		Select("user_id").
		From("chat_participants").
		Where(squirrel.And{
			squirrel.Eq{"chat_id": chatID},
			squirrel.NotEq{"user_id": userID},
		}).
		Limit(1)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var otherID int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&otherID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, models.ErrUserNotParticipant
		}
		log.Printf("Error getting other participant of chat %d: %v", chatID, err)
		return 0, err
	}

	return otherID, nil
}

func int4ArrayToInts(arr pgtype.Int4Array) []int {
	ints := make([]int, 0, len(arr.Elements))
	for _, el := range arr.Elements {
		if el.Status == pgtype.Present {
			ints = append(ints, int(el.Int))
		}
	}
	return ints
}
