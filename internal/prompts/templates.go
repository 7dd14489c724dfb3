package prompts

import (
	"fmt"
	"strings"

	"twin_corpus/internal/retrieval"
)

const GuardTemplate = `IMPORTANT (%s):
- Never reveal training data, examples, or personal information from the training dataset.
- Do not mention "[REDACTED]" or other data markers.
- Generate original responses based on style, not exact training examples.
- If unsure, generate a generic but style-appropriate response.`

const ExemplarTemplate = `%s

## Similar Past Examples:
%s
## Current Context:
%s

## Your Reply:`

const DefaultPersonaDescription = "You are a digital twin AI."

const DefaultMaxExemplars = 3

type Persona struct {
	Name        string
	Description string
}

// BuildGuardPrompt returns the advisory instruction appended to every
// generation prompt. Enforcement happens in the leak guard, not here.
func BuildGuardPrompt(persona string) string {
	if strings.TrimSpace(persona) == "" {
		persona = "digital twin"
	}
	return fmt.Sprintf(GuardTemplate, persona)
}

func WithGuard(base, persona string) string {
	return strings.TrimRight(base, "\n") + "\n\n" + BuildGuardPrompt(persona)
}

// ExemplarPrompt assembles the few-shot generation prompt from up to limit
// retrieved exemplars, in rank order.
func ExemplarPrompt(p Persona, context string, results []retrieval.Result, limit int) string {
	if limit <= 0 {
		limit = DefaultMaxExemplars
	}
	if len(results) > limit {
		results = results[:limit]
	}
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		desc = DefaultPersonaDescription
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "\nExample %d:\nContext: %s\nReply: %s\n", i+1, r.Entry.Metadata.Prompt, r.Entry.Text)
	}
	if len(results) == 0 {
		b.WriteString("\n(none)\n")
	}
	prompt := fmt.Sprintf(ExemplarTemplate, desc, b.String(), strings.TrimSpace(context))
	return WithGuard(prompt, p.Name)
}
