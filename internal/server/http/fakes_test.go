package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/logging"
	"github.com/paperclip/paperclip/internal/server/auth"
	"github.com/paperclip/paperclip/internal/server/dispatch"
	"github.com/paperclip/paperclip/internal/server/metrics"
	"github.com/paperclip/paperclip/internal/server/models"
	"github.com/paperclip/paperclip/internal/server/services"
)

const (
	aliceID = "11111111-1111-1111-1111-111111111111"
	convID  = "22222222-2222-2222-2222-222222222222"
)

type fakeLookup struct {
	users map[string]*models.User
	err   error
}

func (f *fakeLookup) FindBySubject(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeLookup) FindByEmail(context.Context, string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

type fakeUsers struct {
	registerRes *services.AuthResult
	registerErr error
	loginRes    *services.AuthResult
	loginErr    error
}

func (f *fakeUsers) Register(context.Context, string, string, string) (*services.AuthResult, error) {
	return f.registerRes, f.registerErr
}

func (f *fakeUsers) Login(context.Context, string, string) (*services.AuthResult, error) {
	return f.loginRes, f.loginErr
}

type appendCall struct {
	userID, convID, role, content, tool string
}

type fakeConversations struct {
	mu        sync.Mutex
	convs     map[string]*models.Conversation
	recent    []*models.Message
	appends   []appendCall
	memory    []*models.MemoryItem
	resources []*models.Resource
	err       error
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{convs: map[string]*models.Conversation{
		convID: {ID: convID, UserID: aliceID, Title: "transformers"},
	}}
}

func (f *fakeConversations) owned(userID, id string) (*models.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.convs[id]
	if !ok || c.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return c, nil
}

func (f *fakeConversations) Create(_ context.Context, userID, title string) (*models.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	if title == "" {
		title = services.DefaultConversationTitle
	}
	return &models.Conversation{ID: "33333333-3333-3333-3333-333333333333", UserID: userID, Title: title}, nil
}

func (f *fakeConversations) List(_ context.Context, userID string) ([]*models.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []*models.Conversation{}
	for _, c := range f.convs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConversations) Get(_ context.Context, userID, id string) (*models.Conversation, error) {
	return f.owned(userID, id)
}

func (f *fakeConversations) Delete(_ context.Context, userID, id string) error {
	_, err := f.owned(userID, id)
	return err
}

func (f *fakeConversations) Messages(_ context.Context, userID, id string) ([]*models.Message, error) {
	if _, err := f.owned(userID, id); err != nil {
		return nil, err
	}
	return f.recent, nil
}

func (f *fakeConversations) AppendMessage(_ context.Context, userID, id, role, content, tool string) (*models.Message, error) {
	if _, err := f.owned(userID, id); err != nil {
		return nil, err
	}
	if role != common.RoleUser && role != common.RoleAssistant {
		return nil, errors.Join(common.ErrorValidation, errors.New("bad role"))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends = append(f.appends, appendCall{userID, id, role, content, tool})
	return &models.Message{ID: "m-new", ConversationID: id, Role: role, Content: content, Tool: tool}, nil
}

func (f *fakeConversations) Recent(_ context.Context, userID, id string, limit int) ([]*models.Message, error) {
	if _, err := f.owned(userID, id); err != nil {
		return nil, err
	}
	if len(f.recent) > limit {
		return f.recent[len(f.recent)-limit:], nil
	}
	return f.recent, nil
}

func (f *fakeConversations) Export(_ context.Context, userID, id string) (string, error) {
	if _, err := f.owned(userID, id); err != nil {
		return "", err
	}
	return "https://s3.local/exports/x.json?sig=1", nil
}

func (f *fakeConversations) Memory(_ context.Context, userID, id string) ([]*models.MemoryItem, error) {
	if _, err := f.owned(userID, id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.MemoryItem{}, f.memory...), nil
}

func (f *fakeConversations) Remember(_ context.Context, userID, id, key, value string) (*models.MemoryItem, error) {
	if _, err := f.owned(userID, id); err != nil {
		return nil, err
	}
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" || value == "" {
		return nil, errors.Join(common.ErrorValidation, errors.New("key and value are required"))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item := &models.MemoryItem{ID: "k-new", ConversationID: id, Key: key, Value: value}
	f.memory = append(f.memory, item)
	return item, nil
}

func (f *fakeConversations) Forget(_ context.Context, userID, id, key string) error {
	if _, err := f.owned(userID, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.memory {
		if item.Key == key {
			f.memory = append(f.memory[:i], f.memory[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeConversations) Resources(_ context.Context, userID, id string) ([]*models.Resource, error) {
	if _, err := f.owned(userID, id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Resource{}, f.resources...), nil
}

func (f *fakeConversations) AddResource(_ context.Context, userID, id string, r *models.Resource) (*models.Resource, error) {
	if _, err := f.owned(userID, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Type) == "" || strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Content) == "" {
		return nil, errors.Join(common.ErrorValidation, errors.New("type, title and content are required"))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID, r.ConversationID = "r-new", id
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	f.resources = append(f.resources, r)
	return r, nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type testEnv struct {
	handler       http.Handler
	codec         *auth.Codec
	lookup        *fakeLookup
	users         *fakeUsers
	conversations *fakeConversations
	metrics       *metrics.Registry
	pinger        *fakePinger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	codec, err := auth.NewCodec([]byte("test-secret"))
	require.NoError(t, err)

	env := &testEnv{
		codec: codec,
		lookup: &fakeLookup{users: map[string]*models.User{
			aliceID: {ID: aliceID, Email: "alice@example.com", Name: "Alice", Credential: "secret-hash"},
		}},
		users:         &fakeUsers{},
		conversations: newFakeConversations(),
		metrics:       metrics.NewRegistry(),
		pinger:        &fakePinger{},
	}

	env.handler = NewRouter(&RouterConfig{
		Users:              env.users,
		Conversations:      env.conversations,
		Resolver:           auth.NewResolver(codec, env.lookup),
		Dispatcher:         dispatch.New(10, 4000),
		Metrics:            env.metrics,
		DB:                 env.pinger,
		Logger:             logging.Nop(),
		LoginRatePerMinute: 60,
		LoginBurst:         3,
		HistoryLimit:       2,
	})
	return env
}

func (e *testEnv) token(t *testing.T, sub string) string {
	t.Helper()
	tok, err := e.codec.Issue(auth.Claims{auth.ClaimSubject: sub}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(method, path, body, authHeader string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}
