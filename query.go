package kbase

import (
	"context"
	"strings"
	"time"
)

// DegradedAnswer is returned when an answer cannot be generated.
const DegradedAnswer = "Desculpe, não consegui gerar uma resposta agora. " +
	"Por favor, tente novamente em instantes ou consulte as fontes oficiais de turismo."

// CacheTier names the cache tier that served a query.
type CacheTier string

// Cache tiers reported to callers.
const (
	CacheTierResponse CacheTier = "response"
	CacheTierSearch   CacheTier = "search"
	CacheTierNone     CacheTier = "none"
)

// Query is a question asked by a user in a region.
type Query struct {
	Question  string `json:"question"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Region    string `json:"region_scope"`
}

// Validate returns an error if the query contains invalid fields.
func (q *Query) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return Errorf(EINVALID, "question required")
	}
	return nil
}

// Answer is the response to a Query.
type Answer struct {
	Answer         string        `json:"answer"`
	Sources        []Snippet     `json:"sources"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime time.Duration `json:"-"`
	CacheTier      CacheTier     `json:"cache_tier_hit"`

	// Degraded is true when Answer is the fixed apology text.
	Degraded bool `json:"degraded,omitempty"`
}

// ProcessingTimeMS returns the processing time in milliseconds.
func (a *Answer) ProcessingTimeMS() int64 {
	return a.ProcessingTime.Milliseconds()
}

// QueryService answers questions.
type QueryService interface {
	// Ask answers a question. Generation failures resolve to a degraded
	// answer rather than an error; only invalid queries return EINVALID.
	Ask(ctx context.Context, q *Query) (*Answer, error)
}

// Generator is the text-generation collaborator.
type Generator interface {
	// Generate answers prompt using the context chunks.
	// Returns EGENERATE on failure.
	Generate(ctx context.Context, prompt string, contextChunks []string) (string, error)
}

// Embedder converts text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QueryCategory is a coarse classification of a question.
type QueryCategory string

// Query categories.
const (
	CategoryHotel      QueryCategory = "hotel"
	CategoryRestaurant QueryCategory = "restaurant"
	CategoryAttraction QueryCategory = "attraction"
	CategoryEvent      QueryCategory = "event"
	CategoryTransport  QueryCategory = "transport"
	CategoryWeather    QueryCategory = "weather"
	CategoryTourism    QueryCategory = "tourism"
	CategoryOther      QueryCategory = "other"
)

// categoryKeywords is checked in order; the first match wins.
var categoryKeywords = []struct {
	category QueryCategory
	keywords []string
}{
	{CategoryHotel, []string{"hotel", "hospedagem", "pousada"}},
	{CategoryRestaurant, []string{"restaurante", "comida", "gastronomia"}},
	{CategoryAttraction, []string{"fazer", "atrativo", "passeio"}},
	{CategoryEvent, []string{"evento", "festival"}},
	{CategoryTransport, []string{"ônibus", "onibus", "transporte"}},
	{CategoryWeather, []string{"tempo", "clima"}},
	{CategoryTourism, []string{"turismo", "viagem"}},
}

// CategorizeQuery classifies a question by keyword.
func CategorizeQuery(question string) QueryCategory {
	q := strings.ToLower(question)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(q, kw) {
				return c.category
			}
		}
	}
	return CategoryOther
}
