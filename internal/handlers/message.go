package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"ChatRelay/server/internal/models"

	"github.com/go-chi/chi/v5"
)

func GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID, err := strconv.Atoi(chi.URLParam(r, "chatId"))
	if err != nil || chatID <= 0 {
		writeError(w, models.ErrValidation)
		return
	}

	ctx := r.Context()

	isParticipant, err := chatService.IsUserParticipant(ctx, chatID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !isParticipant {
		writeError(w, models.ErrUserNotParticipant)
		return
	}

	var before *time.Time
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, models.ErrValidation)
			return
		}
		before = &t
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	messages, err := messageService.ListPage(ctx, chatID, before, limit)
	if err != nil {
		log.Printf("Error getting messages for chat %d: %v", chatID, err)
		writeError(w, err)
		return
	}

	if messages == nil {
		messages = []models.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"chat_id":  chatID,
		"messages": messages,
		"has_more": len(messages) == limit,
	})
}

func SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChatID int `json:"chat_id"`
		models.MessageContent
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 {
		writeError(w, models.ErrValidation)
		return
	}

	ctx := r.Context()

	isParticipant, err := chatService.IsUserParticipant(ctx, req.ChatID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !isParticipant {
		writeError(w, models.ErrUserNotParticipant)
		return
	}

	msg, err := messageService.Send(ctx, req.ChatID, userID, req.MessageContent)
	if err != nil {
		log.Printf("Error sending message to chat %d: %v", req.ChatID, err)
		writeError(w, err)
		return
	}

	broadcastToChat(msg.ChatID, "message_received", msg, userID)
	nudgeInactive(ctx, msg.ChatID, userID)

	respondJSON(w, http.StatusCreated, msg)
}

func MarkSeen(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID, err := strconv.Atoi(chi.URLParam(r, "chatId"))
	if err != nil || chatID <= 0 {
		writeError(w, models.ErrValidation)
		return
	}

	ctx := r.Context()

	isParticipant, err := chatService.IsUserParticipant(ctx, chatID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !isParticipant {
		writeError(w, models.ErrUserNotParticipant)
		return
	}

	messageIDs, senderIDs, err := messageService.MarkSeen(ctx, chatID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	if len(messageIDs) > 0 {
		eventData := map[string]interface{}{
			"chat_id":     chatID,
			"message_ids": messageIDs,
			"seen_by":     userID,
			"seen_at":     time.Now().UTC().Format(time.RFC3339),
		}
		for _, senderID := range senderIDs {
			notifyUser(senderID, "message_read", eventData)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"chat_id":      chatID,
		"message_ids":  messageIDs,
		"updated_rows": len(messageIDs),
	})
}

func EditMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	messageID, err := strconv.Atoi(chi.URLParam(r, "messageId"))
	if err != nil || messageID <= 0 {
		writeError(w, models.ErrValidation)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.ErrValidation)
		return
	}

	msg, err := messageService.Edit(r.Context(), messageID, userID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	broadcastToChat(msg.ChatID, "message_edited", msg, userID)

	respondJSON(w, http.StatusOK, msg)
}

func DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	messageID, err := strconv.Atoi(chi.URLParam(r, "messageId"))
	if err != nil || messageID <= 0 {
		writeError(w, models.ErrValidation)
		return
	}

	chatID, err := messageService.SoftDelete(r.Context(), messageID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	broadcastToChat(chatID, "message_deleted", map[string]int{
		"chat_id":    chatID,
		"message_id": messageID,
	}, userID)

	respondJSON(w, http.StatusOK, map[string]string{"message": "Message deleted"})
}
