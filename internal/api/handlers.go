package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"ragchat/internal/auth"
	"ragchat/internal/core"
	"ragchat/internal/push"
)

type contextKey string

const userIDKey contextKey = "userID"

type APIHandler struct {
	chatService *core.ChatService
	registry    *push.Registry
}

func NewAPIHandler(cs *core.ChatService, registry *push.Registry) *APIHandler {
	return &APIHandler{chatService: cs, registry: registry}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.chatService.GetUserByID(userID)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", userID, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for %s: %v", req.Email, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.chatService.CreateUser(req.Name, req.Email, hashedPassword)
	if err != nil {
		if errors.Is(err, core.ErrEmailTaken) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Printf("Error creating user %s: %v", req.Email, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.chatService.GetUserByEmail(req.Email)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.Email, err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(user.ID)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", user.ID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

type CreateConversationRequest struct {
	Title           string `json:"title"`
	VectorContextID string `json:"vector_context_id"`
}

func (h *APIHandler) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(string)

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.VectorContextID == "" {
		http.Error(w, "vector_context_id is required", http.StatusBadRequest)
		return
	}

	conv, err := h.chatService.CreateConversation(userID, req.VectorContextID, req.Title)
	if err != nil {
		if errors.Is(err, core.ErrContextNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("Error creating conversation for user %s: %v", userID, err)
		http.Error(w, "Failed to create conversation", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(conv)
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(string)

	conversations, err := h.chatService.ListConversations(userID)
	if err != nil {
		log.Printf("Error listing conversations for user %s: %v", userID, err)
		http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(conversations)
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(string)
	conversationID := chi.URLParam(r, "conversationID")

	if err := h.chatService.DeleteConversation(userID, conversationID); err != nil {
		h.writeServiceError(w, err, "Error deleting conversation %s for user %s: %v", conversationID, userID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(string)
	conversationID := chi.URLParam(r, "conversationID")

	messages, err := h.chatService.ListMessages(userID, conversationID)
	if err != nil {
		h.writeServiceError(w, err, "Error listing messages in %s for user %s: %v", conversationID, userID)
		return
	}
	json.NewEncoder(w).Encode(messages)
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

// PostMessageHandler acknowledges with the persisted user message; the
// assistant reply is delivered asynchronously over the push channel.
func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(string)
	conversationID := chi.URLParam(r, "conversationID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "Message content cannot be empty", http.StatusBadRequest)
		return
	}

	userMsg, err := h.chatService.SubmitUserMessage(userID, conversationID, req.Content)
	if err != nil {
		h.writeServiceError(w, err, "Error posting message in %s for user %s: %v", conversationID, userID)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(userMsg)
}

func (h *APIHandler) ListContextsHandler(w http.ResponseWriter, r *http.Request) {
	contexts, err := h.chatService.ListContexts()
	if err != nil {
		log.Printf("Error listing vector contexts: %v", err)
		http.Error(w, "Failed to list vector contexts", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(contexts)
}

// writeServiceError maps the core's sentinel errors onto status codes.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, logFormat string, logArgs ...any) {
	switch {
	case errors.Is(err, core.ErrConversationNotFound), errors.Is(err, core.ErrContextNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrNotOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		log.Printf(logFormat, append(logArgs, err)...)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
