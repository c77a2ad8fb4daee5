package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kelechukwu/pingme/internal/auth"
	"github.com/kelechukwu/pingme/internal/data"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// userView is the public projection of a user document.
type userView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	PhoneNumber string `json:"phoneNumber"`
}

func toUserView(u *data.User) userView {
	return userView{ID: u.ID.Hex(), Username: u.Username, PhoneNumber: u.PhoneNumber}
}

// handleRegister creates an account and returns a signed token. The phone
// number's unique index decides registration conflicts.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Username    string `json:"username"`
		Password    string `json:"password"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "phoneNumber and password required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.log.Error().Err(err).Msg("password hash failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	user, err := s.users.CreateUser(r.Context(), req.PhoneNumber, req.Username, hash)
	if err != nil {
		if errors.Is(err, data.ErrPhoneRegistered) {
			writeError(w, http.StatusBadRequest, "phone number already registered")
			return
		}
		s.log.Error().Err(err).Msg("create user failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID.Hex(), user.Handle)
	if err != nil {
		s.log.Error().Err(err).Msg("token generation failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":      toUserView(user),
		"token":     token,
		"expiresAt": expiresAt,
	})
}

// handleLogin verifies credentials and returns a signed token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Password    string `json:"password"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "phoneNumber and password required")
		return
	}

	user, err := s.users.GetByPhone(r.Context(), req.PhoneNumber)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credentials")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID.Hex(), user.Handle)
	if err != nil {
		s.log.Error().Err(err).Msg("token generation failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":      toUserView(user),
		"token":     token,
		"expiresAt": expiresAt,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	users, err := s.users.List(r.Context(), claims.UserID)
	if err != nil {
		s.log.Error().Err(err).Msg("list users failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusOK, map[string]any{"users": []userView{}})
		return
	}

	users, err := s.users.Search(r.Context(), q, claims.UserID)
	if err != nil {
		s.log.Error().Err(err).Msg("user search failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

// chatView is the public projection of a chat document.
type chatView struct {
	ID           string             `json:"id"`
	Kind         string             `json:"kind"`
	Name         string             `json:"name,omitempty"`
	Participants []data.Participant `json:"participants"`
	LastMessage  *data.LastMessage  `json:"lastMessage,omitempty"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func toChatView(c *data.Chat) chatView {
	return chatView{
		ID:           c.ID.Hex(),
		Kind:         c.Kind,
		Name:         c.Name,
		Participants: c.Participants,
		LastMessage:  c.LastMessage,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	chats, err := s.chats.FindByParticipant(r.Context(), claims.UserID)
	if err != nil {
		s.log.Error().Err(err).Msg("list chats failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	views := make([]chatView, 0, len(chats))
	for _, c := range chats {
		views = append(views, toChatView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": views})
}

// handleCreateDirect returns the canonical direct chat between the caller
// and another user, creating it if needed. Concurrent calls for the same
// pair converge on one chat.
func (s *Server) handleCreateDirect(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	var req struct {
		OtherUserID string `json:"otherUserId"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.OtherUserID == "" {
		writeError(w, http.StatusBadRequest, "otherUserId required")
		return
	}

	chat, err := s.chats.CreateDirect(r.Context(), claims.UserID, req.OtherUserID)
	if err != nil {
		s.log.Error().Err(err).Msg("create direct chat failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"chatId": chat.ID.Hex()})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())

	var req struct {
		Name           string   `json:"name"`
		ParticipantIDs []string `json:"participantIds"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	chat, err := s.chats.CreateGroup(r.Context(), req.Name, claims.UserID, req.ParticipantIDs)
	if err != nil {
		s.log.Error().Err(err).Msg("create group chat failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"chatId": chat.ID.Hex()})
}

// handleChatMessages returns a chat's history in chronological order.
func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaimsFromContext(r.Context())
	chatID := r.PathValue("id")

	chat, err := s.chats.FindByID(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, data.ErrChatNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		s.log.Error().Err(err).Msg("chat lookup failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if !chat.HasParticipant(claims.UserID) {
		writeError(w, http.StatusForbidden, "not a participant")
		return
	}

	msgs, err := s.msgs.History(r.Context(), chatID)
	if err != nil {
		s.log.Error().Err(err).Msg("history query failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	type messageView struct {
		MessageID   string    `json:"messageId"`
		ChatID      string    `json:"chatId"`
		SenderID    string    `json:"senderId"`
		Type        string    `json:"type"`
		Content     string    `json:"content"`
		Mentions    []string  `json:"mentions,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
		DeliveredTo []string  `json:"deliveredTo"`
		ReadBy      []string  `json:"readBy"`
	}

	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageView{
			MessageID:   m.ClientMsgID,
			ChatID:      m.ChatID,
			SenderID:    m.SenderID,
			Type:        m.Type,
			Content:     m.Content,
			Mentions:    m.Mentions,
			CreatedAt:   m.CreatedAt,
			DeliveredTo: m.DeliveredTo,
			ReadBy:      m.ReadBy,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": views})
}
