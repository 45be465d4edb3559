package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iamasit07/pingline/backend/internal/domain"
	"github.com/iamasit07/pingline/backend/internal/errs"
	"github.com/iamasit07/pingline/backend/internal/service/chat"
	"github.com/iamasit07/pingline/backend/internal/service/presence"
)

type ChatHandler struct {
	Chat     *chat.Service
	Registry *presence.Registry
	UserRepo UserStore
}

func NewChatHandler(chatSvc *chat.Service, registry *presence.Registry, userRepo UserStore) *ChatHandler {
	return &ChatHandler{
		Chat:     chatSvc,
		Registry: registry,
		UserRepo: userRepo,
	}
}

// GetConversationHistory returns the full ordered conversation between the
// caller and the given receiver.
func (h *ChatHandler) GetConversationHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ReceiverID int64 `json:"receiverId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	if req.ReceiverID == 0 {
		http.Error(w, "Receiver ID not found", http.StatusBadRequest)
		return
	}

	messages, err := h.Chat.History(userID, req.ReceiverID)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to fetch conversation history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": messages,
	})
}

// GetOnlineUsers returns every user with at least one live connection,
// excluding the caller. Liveness comes from the in-process registry; profile
// details come from the user store.
func (h *ChatHandler) GetOnlineUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	onlineIDs := h.Registry.OnlineUsers(userID)

	users, err := h.UserRepo.GetUsersByIDs(onlineIDs)
	if err != nil {
		http.Error(w, "Failed to fetch online users", http.StatusInternalServerError)
		return
	}

	public := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		pu := u.Public()
		pu.Status = domain.StatusOnline
		public = append(public, pu)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"users": public,
	})
}
