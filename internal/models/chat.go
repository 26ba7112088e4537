package models

import (
	"fmt"
	"time"
)

const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"

	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Chat struct {
	ID           int       `json:"id" db:"id"`
	Type         string    `json:"type" db:"type"`
	Name         string    `json:"name,omitempty" db:"name"`
	CreatedBy    int       `json:"created_by" db:"created_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	Participants []User    `json:"participants,omitempty"`
}

type ChatParticipant struct {
	ID       int       `json:"id" db:"id"`
	ChatID   int       `json:"chat_id" db:"chat_id"`
	UserID   int       `json:"user_id" db:"user_id"`
	Role     string    `json:"role" db:"role"`
	Muted    bool      `json:"muted" db:"muted"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

type ChatWithLastMessage struct {
	Chat
	LastMessageContent *string    `json:"last_message_content,omitempty" db:"last_message_content"`
	LastMessageSentAt  *time.Time `json:"last_message_sent_at,omitempty" db:"last_message_sent_at"`
	UnreadCount        int        `json:"unread_count"`
}

// DirectChatKey is the unique dedup key for a one-to-one chat: the two
// participant ids in ascending order. Both participants derive the same key,
// so concurrent creation collapses onto one row via the unique index.
func DirectChatKey(userA, userB int) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}
