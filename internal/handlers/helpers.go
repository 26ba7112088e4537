package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"ChatRelay/server/internal/models"
	"ChatRelay/server/internal/pool"
	"ChatRelay/server/internal/services"

	"github.com/jonboulle/clockwork"
)

var (
	userService    services.UserService = services.NewUserService()
	chatService    services.ChatService
	messageService services.MessageService
	otpService     services.OtpService
)

func init() {
	chatService = services.NewChatService()
	messageService = services.NewMessageService(userService)
}

// InitOtp wires the OTP flow; called from main once the mailer exists.
func InitOtp(m services.Mailer) {
	otpService = services.NewOtpService(services.NewPgOtpStore(), m, clockwork.NewRealClock())
}

func currentUserID(r *http.Request) (int, bool) {
	userIDRaw := r.Context().Value("user_id")
	if userIDRaw == nil {
		return 0, false
	}
	userID, ok := userIDRaw.(int)
	return userID, ok
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError maps the service error taxonomy onto HTTP statuses. Anything
// unrecognized is a transport/store failure and stays a generic 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrChatNotFound),
		errors.Is(err, models.ErrMessageNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"message": err.Error()})
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrEmptyMessage),
		errors.Is(err, models.ErrInvalidCredential),
		errors.Is(err, models.ErrInvalidOrExpiredOtp):
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.Is(err, models.ErrDuplicateIdentity):
		respondJSON(w, http.StatusConflict, map[string]string{"message": err.Error()})
	case errors.Is(err, models.ErrUserNotParticipant),
		errors.Is(err, models.ErrNotAdmin),
		errors.Is(err, models.ErrBlocked):
		respondJSON(w, http.StatusForbidden, map[string]string{"message": err.Error()})
	default:
		log.Printf("Internal error: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
}

func broadcastToChat(chatID int, eventType string, data interface{}, excludeUserID int) {
	if pool.GlobalPool == nil {
		return
	}
	pool.GlobalPool.BroadcastEvent(chatID, eventType, data, excludeUserID)
}

func notifyUser(userID int, eventType string, data interface{}) {
	if pool.GlobalPool == nil {
		return
	}
	pool.GlobalPool.NotifyUser(userID, eventType, data)
}

// nudgeInactive pings participants who are connected but not watching the
// chat, so their chat list can bump the unread badge. Offline participants
// catch up on their next history fetch.
func nudgeInactive(ctx context.Context, chatID, excludeUserID int) {
	if pool.GlobalPool == nil {
		return
	}
	ids, err := pool.GlobalPool.ParticipantIDs(ctx, chatID)
	if err != nil {
		return
	}
	for _, id := range ids {
		if id == excludeUserID {
			continue
		}
		if pool.GlobalPool.IsOnline(id) && !pool.GlobalPool.IsSubscribed(id, chatID) {
			pool.GlobalPool.NotifyUser(id, "chat_activity", map[string]int{"chat_id": chatID})
		}
	}
}

func invalidateParticipants(chatID int) {
	if pool.GlobalPool == nil {
		return
	}
	pool.GlobalPool.InvalidateParticipants(chatID)
}
