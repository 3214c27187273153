package api

import (
	"net/http"

	"github.com/opensocial/backend/internal/auth"
	"github.com/opensocial/backend/internal/health"
	"github.com/opensocial/backend/internal/metrics"
	"github.com/opensocial/backend/internal/realtime"
)

type Router struct {
	mux             *http.ServeMux
	authHandlers    *auth.Handlers
	authService     *auth.Service
	userHandlers    *UserHandlers
	postHandlers    *PostHandlers
	commentHandlers *CommentHandlers
	messageHandlers *MessageHandlers
	mediaHandlers   *MediaHandlers
	wsHandler       *realtime.Handler
	healthHandler   *health.Handler
}

type RouterConfig struct {
	AuthHandlers    *auth.Handlers
	AuthService     *auth.Service
	UserHandlers    *UserHandlers
	PostHandlers    *PostHandlers
	CommentHandlers *CommentHandlers
	MessageHandlers *MessageHandlers
	MediaHandlers   *MediaHandlers
	WSHandler       *realtime.Handler
	HealthHandler   *health.Handler
}

func NewRouter(cfg *RouterConfig) *Router {
	r := &Router{
		mux:             http.NewServeMux(),
		authHandlers:    cfg.AuthHandlers,
		authService:     cfg.AuthService,
		userHandlers:    cfg.UserHandlers,
		postHandlers:    cfg.PostHandlers,
		commentHandlers: cfg.CommentHandlers,
		messageHandlers: cfg.MessageHandlers,
		mediaHandlers:   cfg.MediaHandlers,
		wsHandler:       cfg.WSHandler,
		healthHandler:   cfg.HealthHandler,
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Operational endpoints
	r.mux.HandleFunc("GET /health", r.healthHandler.HealthHandler)
	r.mux.HandleFunc("GET /health/live", r.healthHandler.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", r.healthHandler.ReadinessHandler)
	r.mux.Handle("GET /metrics", metrics.Default().Handler())

	// Auth (no auth required)
	r.mux.HandleFunc("POST /api/signup", r.authHandlers.SignUp)
	r.mux.HandleFunc("POST /api/login", r.authHandlers.Login)
	r.mux.HandleFunc("POST /api/logout", r.authHandlers.Logout)
	r.mux.HandleFunc("POST /api/refresh-token", r.authHandlers.Refresh)
	r.mux.HandleFunc("POST /api/auth/google", r.authHandlers.GoogleLogin)

	// Profile and user directory
	r.mux.HandleFunc("GET /api/profile", r.withAuth(r.userHandlers.Profile))
	r.mux.HandleFunc("PATCH /api/edit-profile", r.withAuth(r.userHandlers.EditProfile))
	r.mux.HandleFunc("PATCH /api/edit-password", r.withAuth(r.userHandlers.EditPassword))
	r.mux.HandleFunc("GET /api/users", r.withAuth(r.userHandlers.ListUsers))

	// Posts
	r.mux.HandleFunc("GET /api/posts", r.withAuth(r.postHandlers.Feed))
	r.mux.HandleFunc("POST /api/create-post", r.withAuth(r.postHandlers.CreatePost))
	r.mux.HandleFunc("GET /api/user-posts", r.withAuth(r.postHandlers.UserPosts))
	r.mux.HandleFunc("GET /api/post/{postId}", r.withAuth(r.postHandlers.GetPost))
	r.mux.HandleFunc("PATCH /api/post/{postId}", r.withAuth(r.postHandlers.UpdatePost))
	r.mux.HandleFunc("DELETE /api/post/{postId}", r.withAuth(r.postHandlers.DeletePost))

	// Comments
	r.mux.HandleFunc("GET /api/comment/{postId}", r.withAuth(r.commentHandlers.ListComments))
	r.mux.HandleFunc("POST /api/comment/{postId}", r.withAuth(r.commentHandlers.CreateComment))
	r.mux.HandleFunc("PATCH /api/comment/{commentId}", r.withAuth(r.commentHandlers.UpdateComment))
	r.mux.HandleFunc("DELETE /api/comment/{commentId}", r.withAuth(r.commentHandlers.DeleteComment))

	// Direct messages
	r.mux.HandleFunc("POST /api/message", r.withAuth(r.messageHandlers.SendMessage))
	r.mux.HandleFunc("GET /api/message/{userId}", r.withAuth(r.messageHandlers.GetConversation))

	// Media (image responses carry their own cache headers)
	r.mux.HandleFunc("GET /api/media/{key...}", r.mediaHandlers.ServeMedia)

	// Admin
	r.mux.HandleFunc("PATCH /api/admin/user/{userId}", r.withAdmin(r.userHandlers.AdminEditUser))
	r.mux.HandleFunc("DELETE /api/admin/user/{userId}", r.withAdmin(r.userHandlers.AdminDeleteUser))
	r.mux.HandleFunc("DELETE /api/admin/post/{postId}", r.withAdmin(r.postHandlers.AdminDeletePost))
	r.mux.HandleFunc("DELETE /api/admin/comment/{commentId}", r.withAdmin(r.commentHandlers.AdminDeleteComment))

	// Realtime channel (authenticates inside the handler: websocket dials
	// cannot run through the cookie middleware response shapes)
	r.mux.HandleFunc("GET /ws", r.wsHandler.ServeWS)
}

func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	middleware := auth.Middleware(r.authService)
	return func(w http.ResponseWriter, req *http.Request) {
		middleware(http.HandlerFunc(next)).ServeHTTP(w, req)
	}
}

func (r *Router) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return r.withAuth(func(w http.ResponseWriter, req *http.Request) {
		auth.RequireAdmin(http.HandlerFunc(next)).ServeHTTP(w, req)
	})
}
