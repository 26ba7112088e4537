package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ChatRelay/server/internal/models"

	"github.com/go-chi/chi/v5"
)

func messageRouter(userID int) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/message/{chatId}", withUser(GetMessages, userID))
	r.Post("/message/{chatId}/seen", withUser(MarkSeen, userID))
	return r
}

func TestGetMessagesRequiresParticipation(t *testing.T) {
	chatService = &mockChatService{
		IsUserParticipantFn: func(ctx context.Context, chatID, userID int) (bool, error) {
			return false, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/message/5", nil)
	rec := httptest.NewRecorder()
	messageRouter(1).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestGetMessagesPagination(t *testing.T) {
	text := "hello"
	var gotBefore *time.Time
	var gotLimit int
	chatService = &mockChatService{
		IsUserParticipantFn: func(ctx context.Context, chatID, userID int) (bool, error) {
			return true, nil
		},
	}
	messageService = &mockMessageService{
		ListPageFn: func(ctx context.Context, chatID int, before *time.Time, limit int) ([]models.Message, error) {
			gotBefore, gotLimit = before, limit
			msgs := make([]models.Message, limit)
			for i := range msgs {
				msgs[i] = models.Message{ID: i + 1, ChatID: chatID, Text: &text}
			}
			return msgs, nil
		},
	}

	cursor := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	req := httptest.NewRequest(http.MethodGet, "/message/5?before="+cursor.Format(time.RFC3339Nano)+"&limit=2", nil)
	rec := httptest.NewRecorder()
	messageRouter(1).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotLimit != 2 {
		t.Errorf("expected limit 2, got %d", gotLimit)
	}
	if gotBefore == nil || !gotBefore.Equal(cursor) {
		t.Errorf("expected before %v, got %v", cursor, gotBefore)
	}
	var resp struct {
		ChatID   int              `json:"chat_id"`
		Messages []models.Message `json:"messages"`
		HasMore  bool             `json:"has_more"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ChatID != 5 || len(resp.Messages) != 2 || !resp.HasMore {
		t.Errorf("unexpected page: %+v", resp)
	}
}

func TestGetMessagesBadCursor(t *testing.T) {
	chatService = &mockChatService{
		IsUserParticipantFn: func(ctx context.Context, chatID, userID int) (bool, error) {
			return true, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/message/5?before=yesterday", nil)
	rec := httptest.NewRecorder()
	messageRouter(1).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendMessageEmptyContent(t *testing.T) {
	chatService = &mockChatService{
		IsUserParticipantFn: func(ctx context.Context, chatID, userID int) (bool, error) {
			return true, nil
		},
	}
	messageService = &mockMessageService{
		SendFn: func(ctx context.Context, chatID, senderID int, content models.MessageContent) (*models.Message, error) {
			return nil, models.ErrEmptyMessage
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/message/send", strings.NewReader(`{"chat_id":5}`))
	rec := httptest.NewRecorder()
	withUser(SendMessage, 1)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendMessageBlockedInDirectChat(t *testing.T) {
	chatService = &mockChatService{
		IsUserParticipantFn: func(ctx context.Context, chatID, userID int) (bool, error) {
			return true, nil
		},
	}
	messageService = &mockMessageService{
		SendFn: func(ctx context.Context, chatID, senderID int, content models.MessageContent) (*models.Message, error) {
			return nil, models.ErrBlocked
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/message/send", strings.NewReader(`{"chat_id":5,"text":"hi"}`))
	rec := httptest.NewRecorder()
	withUser(SendMessage, 1)(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestSendMessageSuccess(t *testing.T) {
	text := "hi there"
	chatService = &mockChatService{
		IsUserParticipantFn: func(ctx context.Context, chatID, userID int) (bool, error) {
			return true, nil
		},
	}
	messageService = &mockMessageService{
		SendFn: func(ctx context.Context, chatID, senderID int, content models.MessageContent) (*models.Message, error) {
			if senderID != 1 {
				t.Errorf("expected sender 1, got %d", senderID)
			}
			return &models.Message{ID: 100, ChatID: chatID, SenderID: senderID, Text: content.Text}, nil
		},
	}

	body := `{"chat_id":5,"text":"` + text + `"}`
	req := httptest.NewRequest(http.MethodPost, "/message/send", strings.NewReader(body))
	rec := httptest.NewRecorder()
	withUser(SendMessage, 1)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var msg models.Message
	if err := json.NewDecoder(rec.Body).Decode(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.ID != 100 || msg.Text == nil || *msg.Text != text {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestMarkSeenReportsUpdatedRows(t *testing.T) {
	chatService = &mockChatService{
		IsUserParticipantFn: func(ctx context.Context, chatID, userID int) (bool, error) {
			return true, nil
		},
	}
	messageService = &mockMessageService{
		MarkSeenFn: func(ctx context.Context, chatID, userID int) ([]int, []int, error) {
			return []int{11, 12}, []int{2}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/message/5/seen", nil)
	rec := httptest.NewRecorder()
	messageRouter(1).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		ChatID      int   `json:"chat_id"`
		MessageIDs  []int `json:"message_ids"`
		UpdatedRows int   `json:"updated_rows"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.UpdatedRows != 2 || len(resp.MessageIDs) != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestDeleteMessageOnlySender(t *testing.T) {
	messageService = &mockMessageService{
		SoftDeleteFn: func(ctx context.Context, messageID, callerID int) (int, error) {
			return 0, models.ErrMessageNotFound
		},
	}

	r := chi.NewRouter()
	r.Delete("/message/{messageId}", withUser(DeleteMessage, 1))
	req := httptest.NewRequest(http.MethodDelete, "/message/33", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
