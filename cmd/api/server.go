package main

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/kelechukwu/pingme/internal/auth"
	"github.com/kelechukwu/pingme/internal/data"
	"github.com/kelechukwu/pingme/internal/middleware"
)

// Store interfaces cover exactly what the handlers use, so tests can swap in
// fakes. The concrete data.*Store types satisfy them.

type userStore interface {
	CreateUser(ctx context.Context, phoneNumber, username, passwordHash string) (*data.User, error)
	GetByPhone(ctx context.Context, phoneNumber string) (*data.User, error)
	GetByID(ctx context.Context, id string) (*data.User, error)
	List(ctx context.Context, excludeID string) ([]*data.User, error)
	Search(ctx context.Context, q, excludeID string) ([]*data.User, error)
}

type chatStore interface {
	FindByID(ctx context.Context, chatID string) (*data.Chat, error)
	FindByParticipant(ctx context.Context, userID string) ([]*data.Chat, error)
	CreateDirect(ctx context.Context, userA, userB string) (*data.Chat, error)
	CreateGroup(ctx context.Context, name, creatorID string, participantIDs []string) (*data.Chat, error)
	SetLastMessage(ctx context.Context, chatID string, lm data.LastMessage) error
}

type messageStore interface {
	Append(ctx context.Context, chatID, clientMsgID, senderID, msgType, content string, mentions []string) (*data.Message, error)
	History(ctx context.Context, chatID string) ([]*data.Message, error)
	PendingFor(ctx context.Context, chatID, userID string) ([]*data.Message, error)
	MarkDelivered(ctx context.Context, chatID, clientMsgID, userID string) (*data.Message, error)
	MarkRead(ctx context.Context, chatID, clientMsgID, userID string) (*data.Message, error)
}

type mentionResolver interface {
	Resolve(ctx context.Context, content string) ([]string, error)
}

// Server wires the stores, the hub and the auth manager behind the HTTP and
// websocket surfaces.
type Server struct {
	log      zerolog.Logger
	users    userStore
	chats    chatStore
	msgs     messageStore
	mentions mentionResolver
	auth     *auth.JWTManager
	hub      *Hub
	limiter  *middleware.LimiterStore
	wsCfg    wsConfig
}

// newServer returns a ready-to-use Server.
func newServer(log zerolog.Logger, users userStore, chats chatStore, msgs messageStore, mentions mentionResolver, authMgr *auth.JWTManager, hub *Hub, limiter *middleware.LimiterStore, wsCfg wsConfig) *Server {
	return &Server{
		log:      log,
		users:    users,
		chats:    chats,
		msgs:     msgs,
		mentions: mentions,
		auth:     authMgr,
		hub:      hub,
		limiter:  limiter,
		wsCfg:    wsCfg,
	}
}

// routes builds the HTTP mux: REST surface plus the websocket endpoint.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/auth/register", middleware.RateLimit(s.limiter, s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", middleware.RateLimit(s.limiter, s.handleLogin))

	mux.HandleFunc("GET /api/users", s.requireAuth(s.handleListUsers))
	mux.HandleFunc("GET /api/users/search", s.requireAuth(s.handleSearchUsers))

	mux.HandleFunc("GET /api/chats", s.requireAuth(s.handleListChats))
	mux.HandleFunc("POST /api/chats/direct", s.requireAuth(s.handleCreateDirect))
	mux.HandleFunc("POST /api/chats/group", s.requireAuth(s.handleCreateGroup))
	mux.HandleFunc("GET /api/chats/{id}/messages", s.requireAuth(s.handleChatMessages))

	mux.HandleFunc("GET /ws", s.handleWS)

	return mux
}
