package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"ChatRelay/server/internal/models"
)

// CreateChat creates or finds the direct chat with another user. Calling it
// twice (or from both sides at once) yields the same chat id.
func CreateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, models.ErrValidation)
		return
	}

	ctx := r.Context()

	recipient, err := userService.GetUserById(ctx, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	chatID, err := chatService.CreateDirectChat(ctx, userID, recipient.ID)
	if err != nil {
		log.Printf("Error creating direct chat between %d and %d: %v", userID, recipient.ID, err)
		writeError(w, err)
		return
	}

	notifyUser(recipient.ID, "new_chat", map[string]int{"chat_id": chatID})

	respondJSON(w, http.StatusOK, map[string]int{"chat_id": chatID})
}

func GetChatsByUserId(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chats, err := chatService.GetChatsByUserId(r.Context(), userID)
	if err != nil {
		log.Printf("Error getting chats for user %d: %v", userID, err)
		writeError(w, err)
		return
	}

	if chats == nil {
		chats = []models.ChatWithLastMessage{}
	}
	respondJSON(w, http.StatusOK, chats)
}

func CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name    string `json:"name"`
		UserIDs []int  `json:"user_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.ErrValidation)
		return
	}

	chatID, err := chatService.CreateGroupChat(r.Context(), req.Name, userID, req.UserIDs)
	if err != nil {
		log.Printf("Error creating group chat %q: %v", req.Name, err)
		writeError(w, err)
		return
	}

	for _, memberID := range req.UserIDs {
		if memberID != userID {
			notifyUser(memberID, "new_chat", map[string]int{"chat_id": chatID})
		}
	}

	respondJSON(w, http.StatusCreated, map[string]int{"chat_id": chatID})
}

func RenameGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChatID int    `json:"chat_id"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 {
		writeError(w, models.ErrValidation)
		return
	}

	if err := chatService.RenameGroup(r.Context(), req.ChatID, userID, req.Name); err != nil {
		writeError(w, err)
		return
	}

	broadcastToChat(req.ChatID, "chat_renamed", map[string]interface{}{
		"chat_id": req.ChatID,
		"name":    req.Name,
	}, 0)

	respondJSON(w, http.StatusOK, map[string]string{"message": "Chat renamed"})
}

func AddGroupMember(w http.ResponseWriter, r *http.Request) {
	handleMembershipChange(w, r, true)
}

func RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	handleMembershipChange(w, r, false)
}

func handleMembershipChange(w http.ResponseWriter, r *http.Request, add bool) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ChatID int `json:"chat_id"`
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 || req.UserID == 0 {
		writeError(w, models.ErrValidation)
		return
	}

	ctx := r.Context()

	member, err := userService.GetUserById(ctx, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	var action, event, message string
	if add {
		err = chatService.AddMember(ctx, req.ChatID, userID, req.UserID)
		action, event, message = "add_participant", "participant_added", "Participant added"
	} else {
		err = chatService.RemoveMember(ctx, req.ChatID, userID, req.UserID)
		action, event, message = "remove_participant", "participant_removed", "Participant removed"
	}
	if err != nil {
		log.Printf("Error changing membership of chat %d: %v", req.ChatID, err)
		writeError(w, err)
		return
	}

	invalidateParticipants(req.ChatID)

	eventData := map[string]interface{}{
		"action":   action,
		"chat_id":  req.ChatID,
		"user_id":  member.ID,
		"username": member.Username,
	}
	broadcastToChat(req.ChatID, event, eventData, 0)
	if add {
		notifyUser(member.ID, "new_chat", map[string]int{"chat_id": req.ChatID})
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}
