package handlers

import (
	"context"
	"net/http"
	"time"

	"ChatRelay/server/internal/models"
)

// mockUserService and friends satisfy the service interfaces with function
// fields, so each test overrides only what it touches.
type mockUserService struct {
	CheckUserExistsFn   func(ctx context.Context, username, email string) (bool, error)
	CreateUserFn        func(ctx context.Context, user *models.User) (int, error)
	GetUserByIdentityFn func(ctx context.Context, identity string) (*models.User, error)
	GetUserByIdFn       func(ctx context.Context, id int) (*models.User, error)
	SearchUsersFn       func(ctx context.Context, term string, excludeID int) ([]models.UserSummary, error)
	UpdateUserFn        func(ctx context.Context, id int, updated *models.User) error
	BlockUserFn         func(ctx context.Context, userID, blockedID int) error
	UnblockUserFn       func(ctx context.Context, userID, blockedID int) error
}

func (m *mockUserService) CheckUserExists(ctx context.Context, username, email string) (bool, error) {
	return m.CheckUserExistsFn(ctx, username, email)
}
func (m *mockUserService) CreateUser(ctx context.Context, user *models.User) (int, error) {
	return m.CreateUserFn(ctx, user)
}
func (m *mockUserService) GetUserByIdentity(ctx context.Context, identity string) (*models.User, error) {
	return m.GetUserByIdentityFn(ctx, identity)
}
func (m *mockUserService) GetUserById(ctx context.Context, id int) (*models.User, error) {
	return m.GetUserByIdFn(ctx, id)
}
func (m *mockUserService) SearchUsers(ctx context.Context, term string, excludeID int) ([]models.UserSummary, error) {
	return m.SearchUsersFn(ctx, term, excludeID)
}
func (m *mockUserService) UpdateUser(ctx context.Context, id int, updated *models.User) error {
	return m.UpdateUserFn(ctx, id, updated)
}
func (m *mockUserService) SetPresence(ctx context.Context, userID int, online bool) error {
	return nil
}
func (m *mockUserService) BlockUser(ctx context.Context, userID, blockedID int) error {
	return m.BlockUserFn(ctx, userID, blockedID)
}
func (m *mockUserService) UnblockUser(ctx context.Context, userID, blockedID int) error {
	return m.UnblockUserFn(ctx, userID, blockedID)
}
func (m *mockUserService) IsBlockedEitherWay(ctx context.Context, userA, userB int) (bool, error) {
	return false, nil
}

type mockChatService struct {
	CreateDirectChatFn func(ctx context.Context, creatorID, recipientID int) (int, error)
	CreateGroupChatFn  func(ctx context.Context, name string, adminID int, memberIDs []int) (int, error)
	RenameGroupFn      func(ctx context.Context, chatID, callerID int, name string) error
	AddMemberFn        func(ctx context.Context, chatID, callerID, userID int) error
	RemoveMemberFn     func(ctx context.Context, chatID, callerID, userID int) error
	GetChatsByUserIdFn func(ctx context.Context, userID int) ([]models.ChatWithLastMessage, error)
	IsUserParticipantFn func(ctx context.Context, chatID, userID int) (bool, error)
}

func (m *mockChatService) CreateDirectChat(ctx context.Context, creatorID, recipientID int) (int, error) {
	return m.CreateDirectChatFn(ctx, creatorID, recipientID)
}
func (m *mockChatService) CreateGroupChat(ctx context.Context, name string, adminID int, memberIDs []int) (int, error) {
	return m.CreateGroupChatFn(ctx, name, adminID, memberIDs)
}
func (m *mockChatService) RenameGroup(ctx context.Context, chatID, callerID int, name string) error {
	return m.RenameGroupFn(ctx, chatID, callerID, name)
}
func (m *mockChatService) AddMember(ctx context.Context, chatID, callerID, userID int) error {
	return m.AddMemberFn(ctx, chatID, callerID, userID)
}
func (m *mockChatService) RemoveMember(ctx context.Context, chatID, callerID, userID int) error {
	return m.RemoveMemberFn(ctx, chatID, callerID, userID)
}
func (m *mockChatService) GetChatsByUserId(ctx context.Context, userID int) ([]models.ChatWithLastMessage, error) {
	return m.GetChatsByUserIdFn(ctx, userID)
}
func (m *mockChatService) GetChatById(ctx context.Context, chatID, userID int) (*models.Chat, error) {
	return nil, models.ErrChatNotFound
}
func (m *mockChatService) IsUserParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	return m.IsUserParticipantFn(ctx, chatID, userID)
}
func (m *mockChatService) IsChatAdmin(ctx context.Context, chatID, userID int) (bool, error) {
	return false, nil
}
func (m *mockChatService) GetParticipantsByChatId(ctx context.Context, chatID int) ([]models.User, error) {
	return nil, nil
}
func (m *mockChatService) GetUnreadCount(ctx context.Context, chatID, userID int) (int, error) {
	return 0, nil
}

type mockMessageService struct {
	SendFn       func(ctx context.Context, chatID, senderID int, content models.MessageContent) (*models.Message, error)
	ListPageFn   func(ctx context.Context, chatID int, before *time.Time, limit int) ([]models.Message, error)
	MarkSeenFn   func(ctx context.Context, chatID, userID int) ([]int, []int, error)
	EditFn       func(ctx context.Context, messageID, callerID int, newText string) (*models.Message, error)
	SoftDeleteFn func(ctx context.Context, messageID, callerID int) (int, error)
}

func (m *mockMessageService) Send(ctx context.Context, chatID, senderID int, content models.MessageContent) (*models.Message, error) {
	return m.SendFn(ctx, chatID, senderID, content)
}
func (m *mockMessageService) ListPage(ctx context.Context, chatID int, before *time.Time, limit int) ([]models.Message, error) {
	return m.ListPageFn(ctx, chatID, before, limit)
}
func (m *mockMessageService) MarkSeen(ctx context.Context, chatID, userID int) ([]int, []int, error) {
	return m.MarkSeenFn(ctx, chatID, userID)
}
func (m *mockMessageService) Edit(ctx context.Context, messageID, callerID int, newText string) (*models.Message, error) {
	return m.EditFn(ctx, messageID, callerID, newText)
}
func (m *mockMessageService) SoftDelete(ctx context.Context, messageID, callerID int) (int, error) {
	return m.SoftDeleteFn(ctx, messageID, callerID)
}

// withUser injects the auth middleware's context value without a token.
func withUser(h http.HandlerFunc, userID int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), "user_id", userID)
		h(w, r.WithContext(ctx))
	}
}
