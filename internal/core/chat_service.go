package core

import (
	"errors"
	"fmt"
	"log"

	"ragchat/internal/store"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrContextNotFound      = errors.New("vector context not found")
	ErrNotOwner             = errors.New("conversation is owned by another user")
	ErrEmailTaken           = errors.New("email is already registered")
)

// ChatService is the synchronous surface of the core. It persists the
// user's turn, acknowledges immediately and hands the generation work
// to the pipeline pool; it never waits for generation itself.
type ChatService struct {
	dbStore  *store.SQLiteStore
	pipeline *Pipeline
	pool     *Pool
}

func NewChatService(db *store.SQLiteStore, pipeline *Pipeline, pool *Pool) *ChatService {
	return &ChatService{
		dbStore:  db,
		pipeline: pipeline,
		pool:     pool,
	}
}

// User methods

func (s *ChatService) CreateUser(name, email, passwordHash string) (*store.User, error) {
	existing, err := s.dbStore.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	return s.dbStore.CreateUser(name, email, passwordHash)
}

func (s *ChatService) GetUserByEmail(email string) (*store.User, error) {
	return s.dbStore.GetUserByEmail(email)
}

func (s *ChatService) GetUserByID(id string) (*store.User, error) {
	return s.dbStore.GetUserByID(id)
}

// Conversation methods

func (s *ChatService) CreateConversation(userID, vectorContextID, title string) (*store.Conversation, error) {
	vc, err := s.dbStore.GetVectorContextByID(vectorContextID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify vector context: %w", err)
	}
	if vc == nil {
		return nil, ErrContextNotFound
	}
	return s.dbStore.CreateConversation(userID, vectorContextID, title)
}

// GetConversation returns the conversation after checking ownership.
func (s *ChatService) GetConversation(userID, conversationID string) (*store.Conversation, error) {
	return s.ownedConversation(userID, conversationID)
}

func (s *ChatService) ListConversations(userID string) ([]store.Conversation, error) {
	return s.dbStore.GetConversationsByUserID(userID)
}

// DeleteConversation removes the conversation and, by cascade, its
// messages and their usage records.
func (s *ChatService) DeleteConversation(userID, conversationID string) error {
	if _, err := s.ownedConversation(userID, conversationID); err != nil {
		return err
	}
	return s.dbStore.DeleteConversation(conversationID)
}

func (s *ChatService) ListContexts() ([]store.VectorContext, error) {
	return s.dbStore.ListVectorContexts()
}

// Message methods

// SubmitUserMessage persists the user's turn and enqueues the
// generation pipeline for it. It returns as soon as the user message
// is durable; the assistant reply arrives later over the push channel.
func (s *ChatService) SubmitUserMessage(userID, conversationID, content string) (*store.Message, error) {
	conv, err := s.ownedConversation(userID, conversationID)
	if err != nil {
		return nil, err
	}

	vc, err := s.dbStore.GetVectorContextByID(conv.VectorContextID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vector context: %w", err)
	}
	if vc == nil {
		return nil, ErrContextNotFound
	}

	userMsg := store.Message{
		ConversationID: conversationID,
		Role:           store.RoleUser,
		Content:        content,
	}
	if err := s.dbStore.CreateMessage(&userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	job := Job{
		ConversationID: conversationID,
		UserID:         userID,
		CollectionName: vc.CollectionName,
		UserMessageID:  userMsg.ID,
		Question:       content,
		GenerateTitle:  conv.Title == "",
	}
	if err := s.pool.Submit(func() { s.pipeline.Run(job) }); err != nil {
		// The user turn is already committed; the reply is simply
		// absent for this turn.
		log.Printf("Failed to enqueue generation for conversation %s: %v", conversationID, err)
	}

	return &userMsg, nil
}

func (s *ChatService) ListMessages(userID, conversationID string) ([]store.Message, error) {
	if _, err := s.ownedConversation(userID, conversationID); err != nil {
		return nil, err
	}
	return s.dbStore.GetMessagesByConversationID(conversationID)
}

func (s *ChatService) ownedConversation(userID, conversationID string) (*store.Conversation, error) {
	conv, err := s.dbStore.GetConversationByID(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if conv.UserID != userID {
		return nil, ErrNotOwner
	}
	return conv, nil
}
