package core

import (
	"fmt"
	"strings"

	"ragchat/internal/store"
	"ragchat/internal/vector"
)

// Turn is one role-tagged entry of a composed prompt.
type Turn struct {
	Role    string
	Content string
}

// ContextDelimiter separates retrieved passages inside the context
// block, in retrieval rank order.
const ContextDelimiter = "\n\n---\n\n"

const answerTemplate = `Answer the question based only on the following context:

%s

---

Answer the question based on the above context: %s
Do not start with "According to the provided context" and only provide a relevant answer.
Prefer using paragraphs instead of pointers unless you are listing something or the question specifically requests it.`

// ComposePrompt builds the ordered turn list sent to generation: the
// last prior turns of the conversation (chronological, oldest first,
// capped by the history window) followed by a single user turn that
// combines the retrieved context with the question. The composed turn
// is always last.
func ComposePrompt(history []store.Message, passages []vector.Scored, question string) []Turn {
	turns := make([]Turn, 0, len(history)+1)
	for _, msg := range history {
		turns = append(turns, Turn{Role: msg.Role, Content: msg.Content})
	}

	contents := make([]string, len(passages))
	for i, passage := range passages {
		contents[i] = passage.Content
	}
	contextBlock := strings.Join(contents, ContextDelimiter)

	turns = append(turns, Turn{
		Role:    store.RoleUser,
		Content: fmt.Sprintf(answerTemplate, contextBlock, question),
	})
	return turns
}

// InputText flattens composed turns into the exact text the token
// accountant charges as generation input.
func InputText(turns []Turn) string {
	contents := make([]string, len(turns))
	for i, turn := range turns {
		contents[i] = turn.Content
	}
	return strings.Join(contents, "\n")
}
