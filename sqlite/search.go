package sqlite

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fwojciec/kbase"
	"github.com/kljensen/snowball"
)

// DefaultSearchLimit is the number of snippets returned when the query sets
// no limit.
const DefaultSearchLimit = 5

// maxCandidates bounds the rows scored for one search.
const maxCandidates = 500

// stopWords are frequent Portuguese words that carry no search signal.
var stopWords = map[string]struct{}{
	"que": {}, "para": {}, "com": {}, "uma": {}, "uns": {}, "umas": {},
	"por": {}, "como": {}, "mais": {}, "dos": {}, "das": {}, "nos": {},
	"nas": {}, "aos": {}, "pelo": {}, "pela": {}, "onde": {}, "qual": {},
	"quais": {}, "quando": {}, "sobre": {}, "entre": {}, "tem": {}, "ter": {},
	"são": {}, "foi": {}, "ser": {}, "está": {}, "isso": {}, "este": {},
	"esta": {}, "esse": {}, "essa": {}, "seu": {}, "sua": {}, "muito": {},
	"também": {}, "não": {}, "sim": {}, "the": {}, "and": {},
}

// Terms returns the distinct Portuguese stems of text in order of first
// appearance. Words of two characters or fewer and stop words are dropped.
func Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(words))
	var terms []string
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		stem, err := snowball.Stem(w, "portuguese", true)
		if err != nil || stem == "" {
			stem = w
		}
		if _, ok := seen[stem]; ok {
			continue
		}
		seen[stem] = struct{}{}
		terms = append(terms, stem)
	}
	return terms
}

// SearchChunks returns the chunks of a region sharing stems with the query
// text. The keyword score is the fraction of query stems a chunk contains.
// When both the query and a chunk carry embeddings of equal length, the
// score is the mean of the keyword score and the cosine similarity. Among
// equal scores, chunks from official .gov.br sites come first.
func (s *DocumentStore) SearchChunks(ctx context.Context, q kbase.ChunkQuery) ([]kbase.Snippet, error) {
	terms := Terms(q.Text)
	if len(terms) == 0 {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var sb strings.Builder
	args := make([]any, 0, len(terms)+2)
	sb.WriteString("SELECT id, content, terms, embedding, metadata FROM chunks WHERE (")
	for i, t := range terms {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("terms LIKE ?")
		args = append(args, "% "+t+" %")
	}
	sb.WriteString(")")
	if q.Region != "" {
		sb.WriteString(" AND region = ?")
		args = append(args, q.Region)
	}
	sb.WriteString(" LIMIT ?")
	args = append(args, maxCandidates)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type hit struct {
		id      string
		snippet kbase.Snippet
	}
	var hits []hit
	for rows.Next() {
		var id, content, chunkTerms, meta string
		var emb []byte
		if err := rows.Scan(&id, &content, &chunkTerms, &emb, &meta); err != nil {
			return nil, err
		}
		var md kbase.ChunkMetadata
		if err := json.Unmarshal([]byte(meta), &md); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}

		score := keywordScore(terms, chunkTerms)
		if vec := decodeVector(emb); len(q.Embedding) > 0 && len(vec) == len(q.Embedding) {
			score = (score + math.Max(0, cosine(q.Embedding, vec))) / 2
		}
		hits = append(hits, hit{id: id, snippet: kbase.Snippet{
			Title: md.Title,
			Text:  content,
			URL:   md.SourceURL,
			Score: score,
		}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.snippet.Score, a.snippet.Score); c != 0 {
			return c
		}
		if ao, bo := official(a.snippet.URL), official(b.snippet.URL); ao != bo {
			if ao {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.id, b.id)
	})

	snippets := make([]kbase.Snippet, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		snippets = append(snippets, h.snippet)
	}
	return snippets, nil
}

// official reports whether rawURL is hosted on a Brazilian government domain.
func official(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), ".gov.br")
}

func keywordScore(queryTerms []string, chunkTerms string) float64 {
	matched := 0
	for _, t := range queryTerms {
		if strings.Contains(chunkTerms, " "+t+" ") {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
