package models

import (
	"time"
)

type Message struct {
	ID          int          `json:"id" db:"id"`
	ChatID      int          `json:"chat_id" db:"chat_id"`
	SenderID    int          `json:"sender_id" db:"sender_id"`
	Username    string       `json:"username,omitempty"`
	Text        *string      `json:"text,omitempty" db:"text"`
	ImageURL    *string      `json:"image_url,omitempty" db:"image_url"`
	VoiceURL    *string      `json:"voice_url,omitempty" db:"voice_url"`
	ReplyToID   *int         `json:"reply_to_id,omitempty" db:"reply_to_id"`
	Attachments []Attachment `json:"attachments,omitempty"`
	SeenBy      []int        `json:"seen_by" db:"seen_by"`
	Edited      bool         `json:"edited" db:"edited"`
	Deleted     bool         `json:"deleted" db:"deleted"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

type Attachment struct {
	ID        int    `json:"id" db:"id"`
	MessageID int    `json:"message_id" db:"message_id"`
	FileURL   string `json:"file_url" db:"file_url"`
	FileType  string `json:"file_type" db:"file_type"`
	FileName  string `json:"file_name,omitempty" db:"file_name"`
}

// MessageContent is what a sender supplies; at least one field must be set.
type MessageContent struct {
	Text        *string      `json:"text,omitempty"`
	ImageURL    *string      `json:"image_url,omitempty"`
	VoiceURL    *string      `json:"voice_url,omitempty"`
	ReplyToID   *int         `json:"reply_to_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

func (c MessageContent) Empty() bool {
	return (c.Text == nil || *c.Text == "") &&
		(c.ImageURL == nil || *c.ImageURL == "") &&
		(c.VoiceURL == nil || *c.VoiceURL == "") &&
		len(c.Attachments) == 0
}
