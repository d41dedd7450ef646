package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/logging"
	"github.com/paperclip/paperclip/internal/server/dispatch"
	"github.com/paperclip/paperclip/internal/server/metrics"
	"github.com/paperclip/paperclip/internal/server/models"
	"github.com/paperclip/paperclip/internal/server/services"
)

const maxQueryLength = 500

// UserService is satisfied by *services.UserService.
type UserService interface {
	Register(ctx context.Context, email, name, password string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
}

// ConversationService is satisfied by *services.ConversationService.
type ConversationService interface {
	Create(ctx context.Context, userID, title string) (*models.Conversation, error)
	List(ctx context.Context, userID string) ([]*models.Conversation, error)
	Get(ctx context.Context, userID, id string) (*models.Conversation, error)
	Delete(ctx context.Context, userID, id string) error
	Messages(ctx context.Context, userID, id string) ([]*models.Message, error)
	AppendMessage(ctx context.Context, userID, id, role, content, tool string) (*models.Message, error)
	Recent(ctx context.Context, userID, id string, limit int) ([]*models.Message, error)
	Export(ctx context.Context, userID, id string) (string, error)
	Memory(ctx context.Context, userID, id string) ([]*models.MemoryItem, error)
	Remember(ctx context.Context, userID, id, key, value string) (*models.MemoryItem, error)
	Forget(ctx context.Context, userID, id, key string) error
	Resources(ctx context.Context, userID, id string) ([]*models.Resource, error)
	AddResource(ctx context.Context, userID, id string, r *models.Resource) (*models.Resource, error)
}

// Pinger reports database health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type handler struct {
	users         UserService
	conversations ConversationService
	dispatcher    *dispatch.Dispatcher
	metrics       *metrics.Registry
	db            Pinger
	logger        logging.Logger
	historyLimit  int
}

type authResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresIn int64        `json:"expires_in"`
	User      *models.User `json:"user"`
}

func newAuthResponse(res *services.AuthResult) authResponse {
	return authResponse{
		Token:     res.Token,
		TokenType: common.BearerScheme,
		ExpiresIn: int64(res.ExpiresIn / time.Second),
		User:      res.User,
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) tools(w http.ResponseWriter, r *http.Request) {
	tools := dispatch.Tools()
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools, "total_count": len(tools)})
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.users.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info(r.Context(), "user registered", "user_id", res.User.ID)
	writeJSON(w, http.StatusCreated, newAuthResponse(res))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAuthResponse(res))
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (h *handler) createConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	c, err := h.conversations.Create(r.Context(), UserFromContext(r.Context()).ID, req.Title)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) listConversations(w http.ResponseWriter, r *http.Request) {
	list, err := h.conversations.List(r.Context(), UserFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": list})
}

func (h *handler) getConversation(w http.ResponseWriter, r *http.Request) {
	c, err := h.conversations.Get(r.Context(), UserFromContext(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.conversations.Delete(r.Context(), UserFromContext(r.Context()).ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.conversations.Messages(r.Context(), UserFromContext(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type appendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Tool    string `json:"tool"`
}

func (h *handler) appendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	msg, err := h.conversations.AppendMessage(r.Context(), UserFromContext(r.Context()).ID,
		chi.URLParam(r, "id"), req.Role, req.Content, req.Tool)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *handler) exportConversation(w http.ResponseWriter, r *http.Request) {
	url, err := h.conversations.Export(r.Context(), UserFromContext(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":        url,
		"expires_in": int64(services.ExportURLValidity / time.Second),
	})
}

func (h *handler) listMemory(w http.ResponseWriter, r *http.Request) {
	items, err := h.conversations.Memory(r.Context(), UserFromContext(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memory": items, "count": len(items)})
}

type rememberRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *handler) remember(w http.ResponseWriter, r *http.Request) {
	var req rememberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	item, err := h.conversations.Remember(r.Context(), UserFromContext(r.Context()).ID,
		chi.URLParam(r, "id"), req.Key, req.Value)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *handler) forget(w http.ResponseWriter, r *http.Request) {
	err := h.conversations.Forget(r.Context(), UserFromContext(r.Context()).ID,
		chi.URLParam(r, "id"), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listResources(w http.ResponseWriter, r *http.Request) {
	list, err := h.conversations.Resources(r.Context(), UserFromContext(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": list, "count": len(list)})
}

type addResourceRequest struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func (h *handler) addResource(w http.ResponseWriter, r *http.Request) {
	var req addResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.conversations.AddResource(r.Context(), UserFromContext(r.Context()).ID, chi.URLParam(r, "id"),
		&models.Resource{Type: req.Type, Title: req.Title, Content: req.Content, Metadata: req.Metadata})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type historyItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryRequest struct {
	Query          string        `json:"query"`
	Tool           string        `json:"tool"`
	ConversationID string        `json:"conversation_id"`
	History        []historyItem `json:"history"`
}

func (r queryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.RuneLength(0, maxQueryLength)),
	)
}

type queryResponse struct {
	*dispatch.Plan
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

// query plans a research query. Signed-in callers may name a conversation,
// whose memory, resources and recent messages feed the prompt and which
// records the query.
// Anonymous callers may send their own history instead.
func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	user := UserFromContext(r.Context())
	var history []*models.Message
	opts := []dispatch.PlanOption{dispatch.WithTool(req.Tool)}
	switch {
	case req.ConversationID != "" && user == nil:
		writeError(w, r, h.logger, common.ErrMissingAuthorization)
		return
	case req.ConversationID != "":
		recent, err := h.conversations.Recent(r.Context(), user.ID, req.ConversationID, h.historyLimit)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		history = recent

		memory, err := h.conversations.Memory(r.Context(), user.ID, req.ConversationID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		resources, err := h.conversations.Resources(r.Context(), user.ID, req.ConversationID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		opts = append(opts, dispatch.WithMemory(memory), dispatch.WithResources(resources))
	default:
		for _, item := range req.History {
			history = append(history, &models.Message{Role: item.Role, Content: item.Content})
		}
	}

	plan, err := h.dispatcher.Plan(req.Query, history, opts...)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.metrics.Dispatches.WithLabelValues(plan.Tool.Name).Inc()

	resp := queryResponse{Plan: plan}
	if req.ConversationID != "" {
		msg, err := h.conversations.AppendMessage(r.Context(), user.ID, req.ConversationID,
			common.RoleUser, plan.Query, plan.Tool.Name)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		resp.ConversationID = req.ConversationID
		resp.MessageID = msg.ID
	}

	writeJSON(w, http.StatusOK, resp)
}
