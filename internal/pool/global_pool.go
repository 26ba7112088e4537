package pool

import (
	"context"
	"log"
	"sync"
	"time"

	"ChatRelay/server/internal/models"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Conn is the slice of *websocket.Conn the pool needs. Narrowed to an
// interface so routing can be tested without a live socket.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type ParticipantSource interface {
	GetParticipantsByChatId(ctx context.Context, chatID int) ([]models.User, error)
}

type PresenceStore interface {
	SetPresence(ctx context.Context, userID int, online bool) error
}

type Client struct {
	ID     uuid.UUID
	UserID int
	Conn   Conn

	// writeMu serializes writes; gorilla/websocket allows at most one
	// concurrent writer per connection.
	writeMu sync.Mutex
}

type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type Pool struct {
	mu           sync.Mutex
	clients      map[int]map[uuid.UUID]*Client // live connections per user
	chats        map[int]map[uuid.UUID]*Client // subscribed connections per chat
	subs         map[uuid.UUID]map[int]struct{}
	participants ParticipantSource
	presence     PresenceStore
	cache        *expirable.LRU[int, []int]
}

var GlobalPool *Pool

func Init(participants ParticipantSource, presence PresenceStore) {
	GlobalPool = NewPool(participants, presence)
}

func NewPool(participants ParticipantSource, presence PresenceStore) *Pool {
	return &Pool{
		clients:      make(map[int]map[uuid.UUID]*Client),
		chats:        make(map[int]map[uuid.UUID]*Client),
		subs:         make(map[uuid.UUID]map[int]struct{}),
		participants: participants,
		presence:     presence,
		cache:        expirable.NewLRU[int, []int](1024, nil, time.Minute),
	}
}

// AddClient registers a connection. The first connection of a user flips the
// user online; further tabs/devices just join the set.
func (p *Pool) AddClient(userID int, conn Conn) *Client {
	c := &Client{
		ID:     uuid.New(),
		UserID: userID,
		Conn:   conn,
	}

	p.mu.Lock()
	first := len(p.clients[userID]) == 0
	if p.clients[userID] == nil {
		p.clients[userID] = make(map[uuid.UUID]*Client)
	}
	p.clients[userID][c.ID] = c
	p.subs[c.ID] = make(map[int]struct{})
	p.mu.Unlock()

	if first {
		if err := p.presence.SetPresence(context.Background(), userID, true); err != nil {
			log.Printf("Error marking user %d online: %v", userID, err)
		}
	}

	log.Printf("Client %s (user %d) added to pool", c.ID, userID)
	return c
}

// RemoveClient drops a connection and its chat subscriptions. The last
// connection of a user flips the user offline with a last-seen timestamp.
func (p *Pool) RemoveClient(c *Client) {
	p.mu.Lock()
	if set, ok := p.clients[c.UserID]; ok {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(p.clients, c.UserID)
		}
	}
	for chatID := range p.subs[c.ID] {
		delete(p.chats[chatID], c.ID)
		if len(p.chats[chatID]) == 0 {
			delete(p.chats, chatID)
		}
	}
	delete(p.subs, c.ID)
	last := len(p.clients[c.UserID]) == 0
	p.mu.Unlock()

	c.Conn.Close()

	if last {
		if err := p.presence.SetPresence(context.Background(), c.UserID, false); err != nil {
			log.Printf("Error marking user %d offline: %v", c.UserID, err)
		}
	}

	log.Printf("Client %s (user %d) removed from pool", c.ID, c.UserID)
}

func (p *Pool) Subscribe(c *Client, chatID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.chats[chatID] == nil {
		p.chats[chatID] = make(map[uuid.UUID]*Client)
	}
	p.chats[chatID][c.ID] = c
	if p.subs[c.ID] == nil {
		p.subs[c.ID] = make(map[int]struct{})
	}
	p.subs[c.ID][chatID] = struct{}{}

	log.Printf("Client %s (user %d) subscribed to chat %d", c.ID, c.UserID, chatID)
}

func (p *Pool) Unsubscribe(c *Client, chatID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.chats[chatID], c.ID)
	if len(p.chats[chatID]) == 0 {
		delete(p.chats, chatID)
	}
	delete(p.subs[c.ID], chatID)
}

func (p *Pool) IsOnline(userID int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients[userID]) > 0
}

func (p *Pool) IsSubscribed(userID, chatID int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.chats[chatID] {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// BroadcastEvent pushes an event to every connection subscribed to the chat,
// except the excluded user's own connections (the sender already holds the
// local copy). Delivery is best effort; a failed write drops the connection.
func (p *Pool) BroadcastEvent(chatID int, eventType string, data interface{}, excludeUserID int) {
	p.mu.Lock()
	targets := make([]*Client, 0, len(p.chats[chatID]))
	for _, c := range p.chats[chatID] {
		if c.UserID == excludeUserID {
			continue
		}
		targets = append(targets, c)
	}
	p.mu.Unlock()

	for _, c := range targets {
		p.send(c, eventType, data)
	}
}

// NotifyUser pushes an event to every connection of one user regardless of
// chat subscriptions.
func (p *Pool) NotifyUser(userID int, eventType string, data interface{}) {
	p.mu.Lock()
	targets := make([]*Client, 0, len(p.clients[userID]))
	for _, c := range p.clients[userID] {
		targets = append(targets, c)
	}
	p.mu.Unlock()

	for _, c := range targets {
		p.send(c, eventType, data)
	}
}

func (p *Pool) send(c *Client, eventType string, data interface{}) {
	c.writeMu.Lock()
	err := c.Conn.WriteJSON(Event{Event: eventType, Data: data})
	c.writeMu.Unlock()
	if err != nil {
		log.Printf("Error sending event to user %d: %v", c.UserID, err)
		p.RemoveClient(c)
		return
	}
	log.Printf("Sent %s event to user %d", eventType, c.UserID)
}

// ParticipantIDs resolves the member set of a chat, cached briefly because
// it sits on the hot path of every broadcast. Membership changes must call
// InvalidateParticipants.
func (p *Pool) ParticipantIDs(ctx context.Context, chatID int) ([]int, error) {
	if ids, ok := p.cache.Get(chatID); ok {
		return ids, nil
	}

	participants, err := p.participants.GetParticipantsByChatId(ctx, chatID)
	if err != nil {
		log.Printf("Error getting participants for chat %d: %v", chatID, err)
		return nil, err
	}

	ids := make([]int, 0, len(participants))
	for _, participant := range participants {
		ids = append(ids, participant.ID)
	}
	p.cache.Add(chatID, ids)
	return ids, nil
}

func (p *Pool) InvalidateParticipants(chatID int) {
	p.cache.Remove(chatID)
}
