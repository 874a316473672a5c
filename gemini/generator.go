// Package gemini implements generation and embedding with Google Gemini.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwojciec/kbase"
	"google.golang.org/genai"
)

// DefaultModel is the generation model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Ensure Generator implements kbase.Generator at compile time.
var _ kbase.Generator = (*Generator)(nil)

// Counter counts the tokens of a text.
type Counter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// Generator implements kbase.Generator using Google Gemini.
type Generator struct {
	client    *genai.Client
	model     string
	counter   Counter
	maxTokens int
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel selects the Gemini model.
func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithContextBudget limits the context chunks sent with a prompt to max
// tokens as measured by counter.
func WithContextBudget(counter Counter, max int) Option {
	return func(g *Generator) {
		g.counter = counter
		g.maxTokens = max
	}
}

// NewGenerator creates a new Generator.
func NewGenerator(client *genai.Client, opts ...Option) *Generator {
	g := &Generator{client: client, model: DefaultModel}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate answers prompt from the given context chunks.
// Returns EGENERATE when the call fails or yields no text.
func (g *Generator) Generate(ctx context.Context, prompt string, contextChunks []string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", kbase.Errorf(kbase.EINVALID, "prompt required")
	}

	contextChunks = FitContext(ctx, g.counter, g.maxTokens, contextChunks)

	result, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: BuildPrompt(prompt, contextChunks)}},
		}},
		BuildConfig(len(contextChunks) > 0),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", kbase.Errorf(kbase.EGENERATE, "gemini: %v", ctx.Err())
		}
		return "", kbase.Errorf(kbase.EGENERATE, "gemini: %v", err)
	}
	if result == nil {
		return "", kbase.Errorf(kbase.EGENERATE, "gemini returned nil result")
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", kbase.Errorf(kbase.EGENERATE, "gemini returned empty text")
	}
	return text, nil
}

// Instructions for answers with and without retrieved context.
const (
	groundedInstruction = "Você é um assistente de turismo de Mato Grosso do Sul. " +
		"Responda em português, usando apenas o contexto fornecido. " +
		"Se a resposta não estiver no contexto, diga que não sabe e " +
		"indique as fontes oficiais de turismo."
	openInstruction = "Você é um assistente de turismo de Mato Grosso do Sul. " +
		"Responda em português com base no seu próprio conhecimento sobre a região. " +
		"Quando não tiver certeza, diga isso e indique as fontes oficiais de turismo."
)

// BuildConfig returns the GenerateContentConfig for Gemini API calls.
// With context the model is restricted to it; without context it answers
// from its own knowledge.
func BuildConfig(hasContext bool) *genai.GenerateContentConfig {
	instruction := openInstruction
	if hasContext {
		instruction = groundedInstruction
	}
	temp := float32(0.4)
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: instruction}},
		},
		Temperature: &temp,
	}
}

// BuildPrompt builds the user prompt containing the context and question.
func BuildPrompt(question string, contextChunks []string) string {
	var sb strings.Builder
	if len(contextChunks) > 0 {
		sb.WriteString("<contexto>\n")
		for i, c := range contextChunks {
			sb.WriteString("<trecho>\n")
			fmt.Fprintf(&sb, "<indice>%d</indice>\n", i+1)
			fmt.Fprintf(&sb, "<conteudo>%s</conteudo>\n", c)
			sb.WriteString("</trecho>\n")
		}
		sb.WriteString("</contexto>\n\n")
	}
	fmt.Fprintf(&sb, "Pergunta: %s", question)
	return sb.String()
}

// FitContext returns the longest prefix of chunks whose token count stays
// within max. A nil counter or non-positive max keeps every chunk. A
// counting error keeps the chunks accepted so far.
func FitContext(ctx context.Context, counter Counter, max int, chunks []string) []string {
	if counter == nil || max <= 0 {
		return chunks
	}
	total := 0
	for i, c := range chunks {
		n, err := counter.CountTokens(ctx, c)
		if err != nil || total+n > max {
			return chunks[:i]
		}
		total += n
	}
	return chunks
}
