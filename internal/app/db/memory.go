package db

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"dmchat/internal/app/message"
	"dmchat/internal/app/user"
)

// MemoryStore is a Store held entirely in process memory.
// It enforces the same uniqueness and reference rules as the SQL schema.
type MemoryStore struct {
	mu sync.RWMutex

	users    map[int64]user.User
	messages []message.Message

	nextUserID    int64
	nextMessageID int64

	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]user.User),
		now:   time.Now,
	}
}

// CreateUser inserts a new account.
func (s *MemoryStore) CreateUser(_ context.Context, arg CreateUserParams) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == arg.Username {
			return user.User{}, ErrDuplicateUsername
		}
		if arg.Email != "" && u.Email == arg.Email {
			return user.User{}, ErrDuplicateEmail
		}
	}

	s.nextUserID++
	u := user.User{
		ID:           s.nextUserID,
		Username:     arg.Username,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		AuthProvider: arg.AuthProvider,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	s.users[u.ID] = u

	return u, nil
}

// SetActive flips the active flag of an account. Tests use it to model deactivated users.
func (s *MemoryStore) SetActive(id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	s.users[id] = u
	return nil
}

// GetUserByID fetches one account by id.
func (s *MemoryStore) GetUserByID(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, ErrNotFound
	}
	return u, nil
}

// GetUserByUsername fetches one account by its exact username.
func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := lo.Find(lo.Values(s.users), func(u user.User) bool { return u.Username == username })
	if !ok {
		return user.User{}, ErrNotFound
	}
	return u, nil
}

// GetUserByEmail fetches one account by email.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := lo.Find(lo.Values(s.users), func(u user.User) bool { return email != "" && u.Email == email })
	if !ok {
		return user.User{}, ErrNotFound
	}
	return u, nil
}

// SearchUsers returns active users whose username contains query, case-insensitively.
func (s *MemoryStore) SearchUsers(_ context.Context, query string, excludeID int64, limit int) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	found := lo.Filter(lo.Values(s.users), func(u user.User, _ int) bool {
		return u.IsActive && u.ID != excludeID && strings.Contains(strings.ToLower(u.Username), needle)
	})
	slices.SortFunc(found, func(a, b user.User) int { return cmp.Compare(a.Username, b.Username) })

	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// UpdateUserAvatar sets the avatar URL of an account.
func (s *MemoryStore) UpdateUserAvatar(_ context.Context, id int64, avatarURL string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, ErrNotFound
	}
	u.AvatarURL = avatarURL
	s.users[id] = u
	return u, nil
}

// CreateMessage appends a message and returns it with its generated id.
func (s *MemoryStore) CreateMessage(_ context.Context, arg message.New) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[arg.SenderID]; !ok {
		return message.Message{}, ErrReferenceViolation
	}
	if _, ok := s.users[arg.ReceiverID]; !ok {
		return message.Message{}, ErrReferenceViolation
	}

	createdAt := arg.Timestamp(s.now())

	s.nextMessageID++
	m := message.Message{
		ID:         s.nextMessageID,
		Content:    arg.Content,
		CreatedAt:  createdAt.UTC(),
		SenderID:   arg.SenderID,
		ReceiverID: arg.ReceiverID,
	}
	s.messages = append(s.messages, m)

	return m, nil
}

// GetMessage fetches one message by id.
func (s *MemoryStore) GetMessage(_ context.Context, id int64) (message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := lo.Find(s.messages, func(m message.Message) bool { return m.ID == id })
	if !ok {
		return message.Message{}, ErrNotFound
	}
	return m, nil
}

// ListMessages returns the history selected by filter, oldest first.
func (s *MemoryStore) ListMessages(_ context.Context, filter message.Filter) ([]message.Message, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	selected := lo.Filter(s.messages, func(m message.Message, _ int) bool { return filter.Involves(m) })
	s.mu.RUnlock()

	slices.SortStableFunc(selected, func(a, b message.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if filter.Skip >= len(selected) {
		return []message.Message{}, nil
	}
	selected = selected[filter.Skip:]
	if len(selected) > filter.Limit {
		selected = selected[:filter.Limit]
	}
	return selected, nil
}

// ListConversationPartners returns everyone userID exchanged messages with,
// most recent conversation first.
func (s *MemoryStore) ListConversationPartners(_ context.Context, userID int64) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type last struct {
		at time.Time
		id int64
	}
	latest := make(map[int64]last)

	for _, m := range s.messages {
		var partner int64
		switch userID {
		case m.SenderID:
			partner = m.ReceiverID
		case m.ReceiverID:
			partner = m.SenderID
		default:
			continue
		}

		cur, ok := latest[partner]
		if !ok || m.CreatedAt.After(cur.at) || (m.CreatedAt.Equal(cur.at) && m.ID > cur.id) {
			latest[partner] = last{at: m.CreatedAt, id: m.ID}
		}
	}

	partners := lo.Keys(latest)
	slices.SortFunc(partners, func(a, b int64) int {
		if c := latest[b].at.Compare(latest[a].at); c != 0 {
			return c
		}
		return cmp.Compare(latest[b].id, latest[a].id)
	})

	return lo.FilterMap(partners, func(id int64, _ int) (user.User, bool) {
		u, ok := s.users[id]
		return u, ok
	}), nil
}

// MarkMessageRead sets is_read on a message addressed to receiverID.
func (s *MemoryStore) MarkMessageRead(_ context.Context, id int64, receiverID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(s.messages, func(m message.Message) bool { return m.ID == id })
	if !ok {
		return ErrNotFound
	}
	if s.messages[idx].ReceiverID != receiverID {
		return ErrNotReceiver
	}
	s.messages[idx].IsRead = true
	return nil
}

// CountUnread counts unread messages addressed to userID.
func (s *MemoryStore) CountUnread(_ context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(lo.CountBy(s.messages, func(m message.Message) bool {
		return m.ReceiverID == userID && !m.IsRead
	})), nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*Queries)(nil)
)
