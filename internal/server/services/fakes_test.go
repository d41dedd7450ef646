package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/dbx"
	"github.com/paperclip/paperclip/internal/server/models"
	"github.com/paperclip/paperclip/internal/server/repositories/conversations"
	"github.com/paperclip/paperclip/internal/server/repositories/memory"
	"github.com/paperclip/paperclip/internal/server/repositories/messages"
	"github.com/paperclip/paperclip/internal/server/repositories/resources"
	"github.com/paperclip/paperclip/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// memStore backs all fake repositories so they see each other's writes.
type memStore struct {
	mu       sync.Mutex
	clock    time.Time
	users    map[string]*models.User
	convs    map[string]*models.Conversation
	messages []*models.Message
	memory   []*models.MemoryItem
	res      []*models.Resource

	userErr    error
	convErr    error
	messageErr error
	touchErr   error
	memoryErr  error
}

func newMemStore() *memStore {
	return &memStore{
		clock: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		users: map[string]*models.User{},
		convs: map[string]*models.Conversation{},
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type fakeUsersRepo struct{ s *memStore }

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.userErr != nil {
		return nil, f.s.userErr
	}
	for _, existing := range f.s.users {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = f.s.tick()
	f.s.users[u.ID] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.userErr != nil {
		return nil, f.s.userErr
	}
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.userErr != nil {
		return nil, f.s.userErr
	}
	for _, u := range f.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeConversationsRepo struct{ s *memStore }

func (f *fakeConversationsRepo) Create(_ context.Context, c *models.Conversation) (*models.Conversation, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.convErr != nil {
		return nil, f.s.convErr
	}
	c.ID = uuid.NewString()
	c.CreatedAt = f.s.tick()
	c.UpdatedAt = c.CreatedAt
	f.s.convs[c.ID] = c
	return c, nil
}

func (f *fakeConversationsRepo) Get(_ context.Context, id, userID string) (*models.Conversation, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.convErr != nil {
		return nil, f.s.convErr
	}
	c, ok := f.s.convs[id]
	if !ok || c.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return c, nil
}

func (f *fakeConversationsRepo) ListByUser(_ context.Context, userID string) ([]*models.Conversation, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.convErr != nil {
		return nil, f.s.convErr
	}
	out := []*models.Conversation{}
	for _, c := range f.s.convs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeConversationsRepo) Delete(_ context.Context, id, userID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.convs[id]
	if !ok || c.UserID != userID {
		return common.ErrorNotFound
	}
	delete(f.s.convs, id)
	kept := f.s.messages[:0]
	for _, m := range f.s.messages {
		if m.ConversationID != id {
			kept = append(kept, m)
		}
	}
	f.s.messages = kept
	return nil
}

func (f *fakeConversationsRepo) Touch(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.touchErr != nil {
		return f.s.touchErr
	}
	c, ok := f.s.convs[id]
	if !ok {
		return common.ErrorNotFound
	}
	c.UpdatedAt = f.s.tick()
	return nil
}

type fakeMessagesRepo struct{ s *memStore }

func (f *fakeMessagesRepo) Append(_ context.Context, m *models.Message) (*models.Message, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.messageErr != nil {
		return nil, f.s.messageErr
	}
	m.ID = fmt.Sprintf("m%d", len(f.s.messages)+1)
	m.CreatedAt = f.s.tick()
	f.s.messages = append(f.s.messages, m)
	return m, nil
}

func (f *fakeMessagesRepo) ListByConversation(_ context.Context, conversationID string) ([]*models.Message, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.messageErr != nil {
		return nil, f.s.messageErr
	}
	out := []*models.Message{}
	for _, m := range f.s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessagesRepo) ListRecent(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	all, err := f.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*models.Message{}, nil
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

type fakeMemoryRepo struct{ s *memStore }

func (f *fakeMemoryRepo) Upsert(_ context.Context, item *models.MemoryItem) (*models.MemoryItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.memoryErr != nil {
		return nil, f.s.memoryErr
	}
	for _, existing := range f.s.memory {
		if existing.ConversationID == item.ConversationID && existing.Key == item.Key {
			existing.Value = item.Value
			return existing, nil
		}
	}
	item.ID = fmt.Sprintf("k%d", len(f.s.memory)+1)
	item.CreatedAt = f.s.tick()
	f.s.memory = append(f.s.memory, item)
	return item, nil
}

func (f *fakeMemoryRepo) ListByConversation(_ context.Context, conversationID string) ([]*models.MemoryItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.memoryErr != nil {
		return nil, f.s.memoryErr
	}
	out := []*models.MemoryItem{}
	for i := len(f.s.memory) - 1; i >= 0; i-- {
		if f.s.memory[i].ConversationID == conversationID {
			out = append(out, f.s.memory[i])
		}
	}
	return out, nil
}

func (f *fakeMemoryRepo) Delete(_ context.Context, conversationID, key string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for i, item := range f.s.memory {
		if item.ConversationID == conversationID && item.Key == key {
			f.s.memory = append(f.s.memory[:i], f.s.memory[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeResourcesRepo struct{ s *memStore }

func (f *fakeResourcesRepo) Create(_ context.Context, r *models.Resource) (*models.Resource, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.memoryErr != nil {
		return nil, f.s.memoryErr
	}
	r.ID = fmt.Sprintf("r%d", len(f.s.res)+1)
	r.CreatedAt = f.s.tick()
	f.s.res = append(f.s.res, r)
	return r, nil
}

func (f *fakeResourcesRepo) ListByConversation(_ context.Context, conversationID string) ([]*models.Resource, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.memoryErr != nil {
		return nil, f.s.memoryErr
	}
	out := []*models.Resource{}
	for i := len(f.s.res) - 1; i >= 0; i-- {
		if f.s.res[i].ConversationID == conversationID {
			out = append(out, f.s.res[i])
		}
	}
	return out, nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return &fakeUsersRepo{m.s} }
func (m *fakeRepoManager) Conversations(dbx.DBTX) conversations.Repository {
	return &fakeConversationsRepo{m.s}
}
func (m *fakeRepoManager) Messages(dbx.DBTX) messages.Repository   { return &fakeMessagesRepo{m.s} }
func (m *fakeRepoManager) Memory(dbx.DBTX) memory.Repository       { return &fakeMemoryRepo{m.s} }
func (m *fakeRepoManager) Resources(dbx.DBTX) resources.Repository { return &fakeResourcesRepo{m.s} }
