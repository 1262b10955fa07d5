package core

import (
	"log"
	"time"

	"ragchat/internal/store"
	"ragchat/internal/vector"
)

// FallbackAnswer is persisted verbatim when retrieval produces nothing
// usable; no generation call is made for such a turn.
const FallbackAnswer = "I'm sorry, I couldn't find relevant context to answer your question."

// Stage identifies where the pipeline is; Failed is terminal and
// reachable from every non-terminal stage.
type Stage int

const (
	StageRetrieving Stage = iota
	StageComposing
	StageGenerating
	StagePersisting
	StagePublishing
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageRetrieving:
		return "retrieving"
	case StageComposing:
		return "composing"
	case StageGenerating:
		return "generating"
	case StagePersisting:
		return "persisting"
	case StagePublishing:
		return "publishing"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	}
	return "unknown"
}

// Retriever is the slice of the vector index the pipeline queries.
type Retriever interface {
	Search(collectionName, query string, k int) ([]vector.Scored, error)
	Accepted(results []vector.Scored) bool
}

// Generator invokes the text-generation capability.
type Generator interface {
	GetChatCompletion(turns []Turn) (string, error)
	GenerateTitle(basisContent string) (string, error)
}

// PipelineStore is the slice of the durable store the pipeline needs.
type PipelineStore interface {
	GetLastNMessagesByConversationID(conversationID string, n int) ([]store.Message, error)
	CreateAssistantTurn(msg *store.Message, usage *store.TokenUsage) error
	UpdateConversationTitle(conversationID, title string) error
}

// Publisher pushes the finished assistant turn to a connected client.
type Publisher interface {
	Publish(conversationID string, payload any)
}

// Job is one generation run, enqueued only after its triggering user
// message has been durably committed.
type Job struct {
	ConversationID string
	UserID         string
	CollectionName string
	UserMessageID  string
	Question       string
	GenerateTitle  bool
}

type Pipeline struct {
	store         PipelineStore
	retriever     Retriever
	generator     Generator
	counter       Counter
	publisher     Publisher
	retrievalK    int
	historyWindow int
}

func NewPipeline(ps PipelineStore, retriever Retriever, generator Generator, counter Counter, publisher Publisher, retrievalK, historyWindow int) *Pipeline {
	return &Pipeline{
		store:         ps,
		retriever:     retriever,
		generator:     generator,
		counter:       counter,
		publisher:     publisher,
		retrievalK:    retrievalK,
		historyWindow: historyWindow,
	}
}

// Run executes one generation job to a terminal stage. Failures are
// logged and leave nothing committed beyond the original user message;
// the conversation is simply left without a reply for that turn.
func (p *Pipeline) Run(job Job) Stage {
	// Retrieving
	results, err := p.retriever.Search(job.CollectionName, job.Question, p.retrievalK)
	if err != nil {
		return p.fail(job, StageRetrieving, err)
	}

	// Composing
	var (
		turns     []Turn
		answer    string
		usage     *store.TokenUsage
		latencyMs int64
		docsUsed  int
	)
	if !p.retriever.Accepted(results) {
		// No usable context: persist the fallback verbatim and skip
		// generation entirely.
		answer = FallbackAnswer
	} else {
		history, err := p.historyBefore(job)
		if err != nil {
			return p.fail(job, StageComposing, err)
		}
		turns = ComposePrompt(history, results, job.Question)
		docsUsed = len(results)

		// Generating
		start := time.Now()
		answer, err = p.generator.GetChatCompletion(turns)
		if err != nil {
			return p.fail(job, StageGenerating, err)
		}
		latencyMs = time.Since(start).Milliseconds()

		usage = &store.TokenUsage{
			UserID:       job.UserID,
			InputTokens:  p.counter.Count(InputText(turns)),
			OutputTokens: p.counter.Count(answer),
		}
	}

	// Persisting: assistant message and usage record commit together
	// or not at all.
	assistantMsg := &store.Message{
		ConversationID:     job.ConversationID,
		Role:               store.RoleAssistant,
		Content:            answer,
		TokenCount:         p.counter.Count(answer),
		LatencyMs:          latencyMs,
		RetrievedDocsCount: docsUsed,
	}
	if err := p.store.CreateAssistantTurn(assistantMsg, usage); err != nil {
		return p.fail(job, StagePersisting, err)
	}

	// Publishing: best-effort, terminal Done regardless of delivery.
	p.publisher.Publish(job.ConversationID, assistantMsg)

	if job.GenerateTitle {
		p.generateAndSaveTitle(job)
	}

	return StageDone
}

// historyBefore returns the conversation turns preceding the
// triggering user message, oldest first, capped by the history window.
func (p *Pipeline) historyBefore(job Job) ([]store.Message, error) {
	// Fetch one extra so the window stays full after dropping the
	// triggering message itself.
	recent, err := p.store.GetLastNMessagesByConversationID(job.ConversationID, p.historyWindow+1)
	if err != nil {
		return nil, err
	}

	history := make([]store.Message, 0, p.historyWindow)
	for _, msg := range recent {
		if msg.ID == job.UserMessageID {
			continue
		}
		history = append(history, msg)
	}
	if len(history) > p.historyWindow {
		history = history[:p.historyWindow]
	}

	// Newest-first from the store; the prompt wants chronological.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

func (p *Pipeline) generateAndSaveTitle(job Job) {
	title, err := p.generator.GenerateTitle(job.Question)
	if err != nil {
		log.Printf("Failed to generate title for conversation %s: %v", job.ConversationID, err)
		return
	}
	if err := p.store.UpdateConversationTitle(job.ConversationID, title); err != nil {
		log.Printf("Failed to save generated title %q for conversation %s: %v", title, job.ConversationID, err)
	}
}

func (p *Pipeline) fail(job Job, stage Stage, err error) Stage {
	log.Printf("Generation pipeline failed at stage %s for conversation %s (message %s): %v",
		stage, job.ConversationID, job.UserMessageID, err)
	return StageFailed
}
