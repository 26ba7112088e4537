package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"ChatRelay/server/internal/appMiddleware"
	"ChatRelay/server/internal/models"
	"ChatRelay/server/internal/pool"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler runs the realtime side: authenticate, register with the
// pool (which marks the user online), then loop on client events until the
// connection drops. Channel membership dies with the connection, so there is
// no explicit unsubscribe on disconnect.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	userID, username, err := appMiddleware.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	log.Printf("User %d (%s) connected to WebSocket", userID, username)

	client := pool.GlobalPool.AddClient(userID, conn)
	defer pool.GlobalPool.RemoveClient(client)

	for {
		var msg struct {
			Event  string          `json:"event"`
			ChatID int             `json:"chat_id"`
			Data   json.RawMessage `json:"data"`
		}

		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("Error reading message from user %d: %v", userID, err)
			break
		}

		ctx := r.Context()

		switch msg.Event {
		case "join_chat":
			isParticipant, err := chatService.IsUserParticipant(ctx, msg.ChatID, userID)
			if err != nil || !isParticipant {
				log.Printf("User %d may not join chat %d: %v", userID, msg.ChatID, err)
				continue
			}
			pool.GlobalPool.Subscribe(client, msg.ChatID)

		case "leave_chat":
			pool.GlobalPool.Unsubscribe(client, msg.ChatID)

		case "new_message":
			var content models.MessageContent
			if len(msg.Data) > 0 {
				if err := json.Unmarshal(msg.Data, &content); err != nil {
					log.Printf("Invalid new_message payload from user %d: %v", userID, err)
					continue
				}
			}

			isParticipant, err := chatService.IsUserParticipant(ctx, msg.ChatID, userID)
			if err != nil || !isParticipant {
				log.Printf("User %d may not send to chat %d: %v", userID, msg.ChatID, err)
				continue
			}

			saved, err := messageService.Send(ctx, msg.ChatID, userID, content)
			if err != nil {
				log.Printf("Error saving message from user %d in chat %d: %v", userID, msg.ChatID, err)
				continue
			}

			broadcastToChat(saved.ChatID, "message_received", saved, userID)
			nudgeInactive(ctx, saved.ChatID, userID)

		case "message_read":
			messageIDs, senderIDs, err := messageService.MarkSeen(ctx, msg.ChatID, userID)
			if err != nil {
				log.Printf("Error marking messages seen in chat %d for user %d: %v", msg.ChatID, userID, err)
				continue
			}
			if len(messageIDs) == 0 {
				continue
			}

			eventData := map[string]interface{}{
				"chat_id":     msg.ChatID,
				"message_ids": messageIDs,
				"seen_by":     userID,
				"seen_at":     time.Now().UTC().Format(time.RFC3339),
			}
			for _, senderID := range senderIDs {
				pool.GlobalPool.NotifyUser(senderID, "message_read", eventData)
			}

		case "typing", "stop_typing":
			broadcastToChat(msg.ChatID, msg.Event, map[string]interface{}{
				"chat_id":  msg.ChatID,
				"user_id":  userID,
				"username": username,
			}, userID)

		default:
			log.Printf("Unknown event %q from user %d", msg.Event, userID)
		}
	}
}
