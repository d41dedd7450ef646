package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/paperclip/paperclip/internal/logging"
	"github.com/paperclip/paperclip/internal/server/dispatch"
	"github.com/paperclip/paperclip/internal/server/metrics"
)

// RouterConfig holds the collaborators of the HTTP API.
type RouterConfig struct {
	Users         UserService
	Conversations ConversationService
	Resolver      SessionResolver
	Dispatcher    *dispatch.Dispatcher
	Metrics       *metrics.Registry
	DB            Pinger
	Logger        logging.Logger

	// LoginRatePerMinute and LoginBurst limit register and login per client IP.
	LoginRatePerMinute int
	LoginBurst         int

	// HistoryLimit is how many stored messages feed a query's context.
	HistoryLimit int

	RequestTimeout time.Duration
}

// NewRouter builds the chi router for the public API.
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/tools
//	POST   /api/auth/register          rate limited
//	POST   /api/auth/login             rate limited
//	GET    /api/auth/me                bearer required
//	POST   /api/query                  bearer optional
//	GET    /api/conversations          bearer required, as are the rest
//	POST   /api/conversations
//	GET    /api/conversations/{id}
//	DELETE /api/conversations/{id}
//	GET    /api/conversations/{id}/messages
//	POST   /api/conversations/{id}/messages
//	POST   /api/conversations/{id}/export
func NewRouter(cfg *RouterConfig) http.Handler {
	h := &handler{
		users:         cfg.Users,
		conversations: cfg.Conversations,
		dispatcher:    cfg.Dispatcher,
		metrics:       cfg.Metrics,
		db:            cfg.DB,
		logger:        cfg.Logger,
		historyLimit:  cfg.HistoryLimit,
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	requireUser := RequireUser(cfg.Resolver, cfg.Metrics, cfg.Logger)
	optionalUser := OptionalUser(cfg.Resolver, cfg.Metrics, cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/tools", h.tools)

		api.Route("/auth", func(auth chi.Router) {
			auth.Group(func(limited chi.Router) {
				limited.Use(RateLimit(cfg.LoginRatePerMinute, cfg.LoginBurst, cfg.Logger))
				limited.Post("/register", h.register)
				limited.Post("/login", h.login)
			})
			auth.With(requireUser).Get("/me", h.me)
		})

		api.With(optionalUser).Post("/query", h.query)

		api.Route("/conversations", func(c chi.Router) {
			c.Use(requireUser)
			c.Get("/", h.listConversations)
			c.Post("/", h.createConversation)
			c.Get("/{id}", h.getConversation)
			c.Delete("/{id}", h.deleteConversation)
			c.Get("/{id}/messages", h.listMessages)
			c.Post("/{id}/messages", h.appendMessage)
			c.Post("/{id}/export", h.exportConversation)
			c.Get("/{id}/memory", h.listMemory)
			c.Post("/{id}/memory", h.remember)
			c.Delete("/{id}/memory/{key}", h.forget)
			c.Get("/{id}/resources", h.listResources)
			c.Post("/{id}/resources", h.addResource)
		})
	})

	return r
}
