package prompts

import (
	"strings"
	"testing"

	"twin_corpus/internal/retrieval"
)

func TestBuildGuardPrompt(t *testing.T) {
	guard := BuildGuardPrompt("Sam")
	if !strings.Contains(guard, "Never reveal training data") || !strings.Contains(guard, "Sam") {
		t.Fatalf("unexpected guard prompt: %q", guard)
	}
	guarded := WithGuard("Reply as Sam.\n\n", "Sam")
	if !strings.HasPrefix(guarded, "Reply as Sam.\n\nIMPORTANT") {
		t.Fatalf("guard not appended after base: %q", guarded)
	}
}

func TestExemplarPromptLimitsExamples(t *testing.T) {
	var results []retrieval.Result
	for _, reply := range []string{"one", "two", "three", "four"} {
		results = append(results, retrieval.Result{
			Entry: retrieval.Entry{Text: reply, Metadata: retrieval.Metadata{Prompt: "them: ctx " + reply}},
			Score: 0.5,
		})
	}
	prompt := ExemplarPrompt(Persona{Name: "Sam", Description: "You write like Sam."}, "them: dinner?", results, 0)

	if !strings.HasPrefix(prompt, "You write like Sam.") {
		t.Fatalf("missing persona description: %q", prompt)
	}
	if !strings.Contains(prompt, "Example 3:\nContext: them: ctx three\nReply: three") {
		t.Fatalf("missing third example: %q", prompt)
	}
	if strings.Contains(prompt, "Reply: four") {
		t.Fatalf("expected at most 3 examples: %q", prompt)
	}
	if !strings.Contains(prompt, "## Current Context:\nthem: dinner?") {
		t.Fatalf("missing current context: %q", prompt)
	}
	if !strings.HasSuffix(prompt, BuildGuardPrompt("Sam")) {
		t.Fatalf("guard prompt not appended: %q", prompt)
	}
}

func TestExemplarPromptWithoutResults(t *testing.T) {
	prompt := ExemplarPrompt(Persona{}, "hello", nil, 3)
	if !strings.HasPrefix(prompt, DefaultPersonaDescription) || !strings.Contains(prompt, "(none)") {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
}
