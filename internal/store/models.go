package store

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type User struct {
	ID           string    `json:"id"` // UUID
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

type VectorContext struct {
	ID             string    `json:"id"` // UUID
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CollectionName string    `json:"collection_name"` // Unique index collection
	CreatedAt      time.Time `json:"created_at"`
}

type Conversation struct {
	ID              string    `json:"id"` // UUID
	UserID          string    `json:"user_id"`
	VectorContextID string    `json:"vector_context_id"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"created_at"`
}

type Message struct {
	ID                 string    `json:"id"` // UUID
	ConversationID     string    `json:"conversation_id"`
	Role               string    `json:"role"` // "user" or "assistant"
	Content            string    `json:"content"`
	TokenCount         int       `json:"token_count"`
	LatencyMs          int64     `json:"latency_ms"`
	RetrievedDocsCount int       `json:"retrieved_docs_count"`
	CreatedAt          time.Time `json:"created_at"`
}

// TokenUsage exists only for assistant messages produced by a real
// generation call; at most one record per message.
type TokenUsage struct {
	ID           string    `json:"id"` // UUID
	UserID       string    `json:"user_id"`
	MessageID    string    `json:"message_id"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CreatedAt    time.Time `json:"created_at"`
}

type Chunk struct {
	ID             int64     `json:"id"`
	CollectionName string    `json:"collection_name"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"-"` // Stored as JSON string in the DB
}
