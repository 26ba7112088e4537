// Package clientsync keeps a client's local view of the chat world: which
// chat is open, the loaded message window, unread badges and the ordering of
// the chat list. It only merges data handed to it by fetches and realtime
// pushes; it never talks to the network itself.
package clientsync

import (
	"sync"

	"ChatRelay/server/internal/models"
)

type ChatSummary struct {
	ChatID      int
	Name        string
	LastMessage string
	Unread      int
}

type State struct {
	mu sync.Mutex

	activeChatID int
	messages     []models.Message // ascending by creation time
	byID         map[int]struct{}
	summaries    []ChatSummary
	hasMore      bool
	pageSize     int
}

func NewState(pageSize int) *State {
	if pageSize < 1 {
		pageSize = 20
	}
	return &State{
		byID:     make(map[int]struct{}),
		pageSize: pageSize,
	}
}

func (s *State) SetSummaries(summaries []ChatSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append([]ChatSummary(nil), summaries...)
}

// SelectChat switches the active chat: the old window is discarded and the
// first (newest) page becomes the new window. The caller is expected to have
// unsubscribed from the old realtime channel and subscribed to the new one.
func (s *State) SelectChat(chatID int, firstPage []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeChatID = chatID
	s.messages = nil
	s.byID = make(map[int]struct{})

	for _, msg := range firstPage {
		if _, dup := s.byID[msg.ID]; dup {
			continue
		}
		s.byID[msg.ID] = struct{}{}
		s.messages = append(s.messages, msg)
	}
	s.hasMore = len(firstPage) == s.pageSize

	for i := range s.summaries {
		if s.summaries[i].ChatID == chatID {
			s.summaries[i].Unread = 0
			break
		}
	}
}

// ApplyPush merges a realtime message. For the active chat it appends to the
// window (dropping duplicates by id) and bumps the chat to the top of the
// list; for any other chat it only increments that chat's unread badge.
// Returns true when the message landed in the active window.
func (s *State) ApplyPush(msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ChatID == s.activeChatID {
		if _, dup := s.byID[msg.ID]; dup {
			return false
		}
		s.byID[msg.ID] = struct{}{}
		s.messages = append(s.messages, msg)
		s.bumpSummary(msg, false)
		return true
	}

	s.bumpSummary(msg, true)
	return false
}

func (s *State) bumpSummary(msg models.Message, countUnread bool) {
	idx := -1
	for i := range s.summaries {
		if s.summaries[i].ChatID == msg.ChatID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.summaries = append([]ChatSummary{{ChatID: msg.ChatID}}, s.summaries...)
		idx = 0
	} else if idx > 0 {
		summary := s.summaries[idx]
		copy(s.summaries[1:idx+1], s.summaries[:idx])
		s.summaries[0] = summary
		idx = 0
	}

	if msg.Text != nil {
		s.summaries[idx].LastMessage = *msg.Text
	}
	if countUnread {
		s.summaries[idx].Unread++
	}
}

// PrependPage merges an older page fetched on scroll-to-top. A page shorter
// than the page size means no older messages remain.
func (s *State) PrependPage(page []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]models.Message, 0, len(page))
	for _, msg := range page {
		if _, dup := s.byID[msg.ID]; dup {
			continue
		}
		s.byID[msg.ID] = struct{}{}
		fresh = append(fresh, msg)
	}

	s.messages = append(fresh, s.messages...)
	s.hasMore = len(page) == s.pageSize
}

// ApplyRead folds a remote read receipt into the loaded window.
func (s *State) ApplyRead(chatID, readerID int, messageIDs []int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chatID != s.activeChatID {
		return
	}

	read := make(map[int]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		read[id] = struct{}{}
	}

	for i := range s.messages {
		if _, ok := read[s.messages[i].ID]; !ok {
			continue
		}
		already := false
		for _, seen := range s.messages[i].SeenBy {
			if seen == readerID {
				already = true
				break
			}
		}
		if !already {
			s.messages[i].SeenBy = append(s.messages[i].SeenBy, readerID)
		}
	}
}

func (s *State) ActiveChatID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChatID
}

func (s *State) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

func (s *State) Summaries() []ChatSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatSummary(nil), s.summaries...)
}

func (s *State) Unread(chatID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, summary := range s.summaries {
		if summary.ChatID == chatID {
			return summary.Unread
		}
	}
	return 0
}

func (s *State) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}
