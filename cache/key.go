package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"
)

// NormalizeQuery case-folds and trims text so that equivalent questions
// share a cache key.
func NormalizeQuery(text string) string {
	return strings.TrimSpace(cases.Fold().String(text))
}

// HashQuery returns the stable 16 hex digit hash of the normalized text.
func HashQuery(text string) string {
	h := strconv.FormatUint(xxhash.Sum64String(NormalizeQuery(text)), 16)
	return strings.Repeat("0", 16-len(h)) + h
}

// ResponseKey scopes a question hash to an optional user and session.
func ResponseKey(question, userID, sessionID string) string {
	key := HashQuery(question)
	if userID != "" {
		key += ":" + userID
	}
	if sessionID != "" {
		key += ":" + sessionID
	}
	return key
}

// SearchKey scopes a question hash to a region.
func SearchKey(question, region string) string {
	return HashQuery(question) + ":" + region
}

// EmbeddingKey identifies the vector of a text.
func EmbeddingKey(text string) string {
	return HashQuery(text)
}
