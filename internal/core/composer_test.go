package core

import (
	"strings"
	"testing"

	"ragchat/internal/store"
	"ragchat/internal/vector"
)

func TestComposePrompt_HistoryThenComposedTurn(t *testing.T) {
	history := []store.Message{
		{Role: store.RoleUser, Content: "Hi"},
		{Role: store.RoleAssistant, Content: "Hello"},
	}
	passages := []vector.Scored{
		{Content: "first passage", Score: 0.9},
		{Content: "second passage", Score: 0.8},
	}

	turns := ComposePrompt(history, passages, "What's new?")

	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(turns))
	}
	if turns[0].Role != store.RoleUser || turns[0].Content != "Hi" {
		t.Errorf("turns[0] = %+v, want the oldest prior turn", turns[0])
	}
	if turns[1].Role != store.RoleAssistant || turns[1].Content != "Hello" {
		t.Errorf("turns[1] = %+v, want the assistant reply", turns[1])
	}

	final := turns[2]
	if final.Role != store.RoleUser {
		t.Errorf("final turn role = %s, want user", final.Role)
	}
	if !strings.Contains(final.Content, "What's new?") {
		t.Error("final turn does not contain the question")
	}
	if !strings.Contains(final.Content, "first passage") || !strings.Contains(final.Content, "second passage") {
		t.Error("final turn does not contain the retrieved passages")
	}
}

func TestComposePrompt_PassagesJoinedInRankOrder(t *testing.T) {
	passages := []vector.Scored{
		{Content: "alpha", Score: 0.95},
		{Content: "beta", Score: 0.85},
		{Content: "gamma", Score: 0.75},
	}

	turns := ComposePrompt(nil, passages, "q")
	final := turns[len(turns)-1].Content

	want := "alpha" + ContextDelimiter + "beta" + ContextDelimiter + "gamma"
	if !strings.Contains(final, want) {
		t.Errorf("context block missing rank-ordered, delimited passages:\n%s", final)
	}
}

func TestComposePrompt_ComposedTurnAlwaysLast(t *testing.T) {
	history := []store.Message{
		{Role: store.RoleUser, Content: "a"},
		{Role: store.RoleAssistant, Content: "b"},
		{Role: store.RoleUser, Content: "c"},
		{Role: store.RoleAssistant, Content: "d"},
	}
	turns := ComposePrompt(history, []vector.Scored{{Content: "ctx"}}, "question")

	if len(turns) != 5 {
		t.Fatalf("len(turns) = %d, want 5", len(turns))
	}
	last := turns[len(turns)-1]
	if last.Role != store.RoleUser || !strings.Contains(last.Content, "question") {
		t.Errorf("last turn = %+v, want the composed question turn", last)
	}
}

func TestInputText_JoinsAllTurnContents(t *testing.T) {
	turns := []Turn{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
		{Role: "user", Content: "three"},
	}
	if got := InputText(turns); got != "one\ntwo\nthree" {
		t.Errorf("InputText() = %q, want %q", got, "one\ntwo\nthree")
	}
}
