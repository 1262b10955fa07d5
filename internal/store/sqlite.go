package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	// Pipeline workers write concurrently with the request path, so
	// waiting on the write lock beats failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", dataSourceName+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS vector_contexts (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        description TEXT,
        collection_name TEXT UNIQUE NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        vector_context_id TEXT NOT NULL,
        title TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
        FOREIGN KEY (vector_context_id) REFERENCES vector_contexts (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        conversation_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        token_count INTEGER NOT NULL DEFAULT 0,
        latency_ms INTEGER NOT NULL DEFAULT 0,
        retrieved_docs_count INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS token_usage (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        message_id TEXT NOT NULL UNIQUE,
        input_tokens INTEGER NOT NULL,
        output_tokens INTEGER NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
        FOREIGN KEY (message_id) REFERENCES messages (id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS chunks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        collection_name TEXT NOT NULL,
        content TEXT NOT NULL,
        embedding_json TEXT -- JSON-encoded []float32
    );
    CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks (collection_name);
    CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(name, email, passwordHash string) (*User, error) {
	user := User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.Exec("INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?", email).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByID(id string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// VectorContext methods

func (s *SQLiteStore) CreateVectorContext(name, description, collectionName string) (*VectorContext, error) {
	vc := VectorContext{
		ID:             uuid.NewString(),
		Name:           name,
		Description:    description,
		CollectionName: collectionName,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.Exec("INSERT INTO vector_contexts (id, name, description, collection_name, created_at) VALUES (?, ?, ?, ?, ?)",
		vc.ID, vc.Name, vc.Description, vc.CollectionName, vc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert vector context: %w", err)
	}
	return &vc, nil
}

func (s *SQLiteStore) GetVectorContextByID(id string) (*VectorContext, error) {
	var vc VectorContext
	var description sql.NullString
	err := s.db.QueryRow("SELECT id, name, description, collection_name, created_at FROM vector_contexts WHERE id = ?", id).
		Scan(&vc.ID, &vc.Name, &description, &vc.CollectionName, &vc.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get vector context: %w", err)
	}
	vc.Description = description.String
	return &vc, nil
}

func (s *SQLiteStore) GetVectorContextByCollection(collectionName string) (*VectorContext, error) {
	var vc VectorContext
	var description sql.NullString
	err := s.db.QueryRow("SELECT id, name, description, collection_name, created_at FROM vector_contexts WHERE collection_name = ?", collectionName).
		Scan(&vc.ID, &vc.Name, &description, &vc.CollectionName, &vc.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vector context: %w", err)
	}
	vc.Description = description.String
	return &vc, nil
}

func (s *SQLiteStore) ListVectorContexts() ([]VectorContext, error) {
	rows, err := s.db.Query("SELECT id, name, description, collection_name, created_at FROM vector_contexts ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query vector contexts: %w", err)
	}
	defer rows.Close()

	var contexts []VectorContext
	for rows.Next() {
		var vc VectorContext
		var description sql.NullString
		if err := rows.Scan(&vc.ID, &vc.Name, &description, &vc.CollectionName, &vc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vector context row: %w", err)
		}
		vc.Description = description.String
		contexts = append(contexts, vc)
	}
	return contexts, rows.Err()
}

// Conversation methods

func (s *SQLiteStore) CreateConversation(userID, vectorContextID, title string) (*Conversation, error) {
	conv := Conversation{
		ID:              uuid.NewString(),
		UserID:          userID,
		VectorContextID: vectorContextID,
		Title:           title,
		CreatedAt:       time.Now().UTC(),
	}
	_, err := s.db.Exec("INSERT INTO conversations (id, user_id, vector_context_id, title, created_at) VALUES (?, ?, ?, ?, ?)",
		conv.ID, conv.UserID, conv.VectorContextID, conv.Title, conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return &conv, nil
}

func (s *SQLiteStore) GetConversationByID(conversationID string) (*Conversation, error) {
	var conv Conversation
	err := s.db.QueryRow("SELECT id, user_id, vector_context_id, title, created_at FROM conversations WHERE id = ?", conversationID).
		Scan(&conv.ID, &conv.UserID, &conv.VectorContextID, &conv.Title, &conv.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (s *SQLiteStore) GetConversationsByUserID(userID string) ([]Conversation, error) {
	rows, err := s.db.Query("SELECT id, user_id, vector_context_id, title, created_at FROM conversations WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.VectorContextID, &conv.Title, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (s *SQLiteStore) UpdateConversationTitle(conversationID, title string) error {
	res, err := s.db.Exec("UPDATE conversations SET title = ? WHERE id = ?", title, conversationID)
	if err != nil {
		return fmt.Errorf("failed to update conversation title: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("conversation not found, title not updated")
	}
	return nil
}

// DeleteConversation removes the conversation; messages and their token
// usage rows go with it through the cascading foreign keys.
func (s *SQLiteStore) DeleteConversation(conversationID string) error {
	res, err := s.db.Exec("DELETE FROM conversations WHERE id = ?", conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("conversation not found, nothing deleted")
	}
	return nil
}

// Message methods

func (s *SQLiteStore) CreateMessage(msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec("INSERT INTO messages (id, conversation_id, role, content, token_count, latency_ms, retrieved_docs_count, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.TokenCount, msg.LatencyMs, msg.RetrievedDocsCount, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// CreateAssistantTurn inserts the assistant message and, when usage is
// non-nil, its token usage record in a single transaction. Either both
// rows commit or neither does.
func (s *SQLiteStore) CreateAssistantTurn(msg *Message, usage *TokenUsage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT INTO messages (id, conversation_id, role, content, token_count, latency_ms, retrieved_docs_count, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.TokenCount, msg.LatencyMs, msg.RetrievedDocsCount, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert assistant message: %w", err)
	}

	if usage != nil {
		if usage.ID == "" {
			usage.ID = uuid.NewString()
		}
		if usage.CreatedAt.IsZero() {
			usage.CreatedAt = msg.CreatedAt
		}
		usage.MessageID = msg.ID
		_, err = tx.Exec("INSERT INTO token_usage (id, user_id, message_id, input_tokens, output_tokens, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			usage.ID, usage.UserID, usage.MessageID, usage.InputTokens, usage.OutputTokens, usage.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert token usage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assistant turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMessagesByConversationID(conversationID string) ([]Message, error) {
	rows, err := s.db.Query("SELECT id, conversation_id, role, content, token_count, latency_ms, retrieved_docs_count, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC", conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetLastNMessagesByConversationID returns the most recent n messages,
// newest first. Callers wanting chronological order must reverse.
func (s *SQLiteStore) GetLastNMessagesByConversationID(conversationID string, n int) ([]Message, error) {
	rows, err := s.db.Query("SELECT id, conversation_id, role, content, token_count, latency_ms, retrieved_docs_count, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at DESC LIMIT ?", conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.TokenCount, &msg.LatencyMs, &msg.RetrievedDocsCount, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// TokenUsage methods

func (s *SQLiteStore) GetTokenUsageByMessageID(messageID string) (*TokenUsage, error) {
	var usage TokenUsage
	err := s.db.QueryRow("SELECT id, user_id, message_id, input_tokens, output_tokens, created_at FROM token_usage WHERE message_id = ?", messageID).
		Scan(&usage.ID, &usage.UserID, &usage.MessageID, &usage.InputTokens, &usage.OutputTokens, &usage.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token usage: %w", err)
	}
	return &usage, nil
}

// Chunk methods (persisted semantic index)

func (s *SQLiteStore) createChunk(chunk *Chunk) error {
	embeddingBytes, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	res, err := s.db.Exec("INSERT INTO chunks (collection_name, content, embedding_json) VALUES (?, ?, ?)",
		chunk.CollectionName, chunk.Content, string(embeddingBytes))
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	chunk.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetChunksByCollection(collectionName string) ([]Chunk, error) {
	rows, err := s.db.Query("SELECT id, collection_name, content, embedding_json FROM chunks WHERE collection_name = ? ORDER BY id ASC", collectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var embeddingJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.CollectionName, &chunk.Content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if embeddingJSON.Valid && embeddingJSON.String != "" {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &chunk.Embedding); err != nil {
				log.Printf("Warning: failed to unmarshal embedding for chunk %d: %v. Embedding will be empty.", chunk.ID, err)
				chunk.Embedding = nil
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) ClearCollection(collectionName string) error {
	_, err := s.db.Exec("DELETE FROM chunks WHERE collection_name = ?", collectionName)
	if err != nil {
		return fmt.Errorf("failed to clear collection %s: %w", collectionName, err)
	}
	return nil
}
