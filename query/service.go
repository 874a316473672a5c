// Package query answers questions from the retrieval cache, falling back to
// retrieval and generation.
package query

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/cache"
	"golang.org/x/sync/singleflight"
)

// Query defaults.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultContextLimit = 5

	// BaseConfidence is the confidence of an answer generated without
	// retrieved context.
	BaseConfidence = 0.5

	// MaxConfidence caps the confidence derived from snippet scores.
	MaxConfidence = 0.95
)

// Cache is the subset of cache.Service used by the orchestrator.
type Cache interface {
	GetResponse(q *kbase.Query) (*cache.ResponseEntry, bool)
	PutResponse(q *kbase.Query, a *kbase.Answer)
	GetSearch(question, region string) ([]kbase.Snippet, bool)
	PutSearch(question, region string, snippets []kbase.Snippet)
	RecordLatency(d time.Duration)
}

// Ensure Service implements kbase.QueryService at compile time.
var _ kbase.QueryService = (*Service)(nil)

// Service is the query orchestrator. Identical concurrent misses share one
// generation call.
type Service struct {
	Cache     Cache
	Generator kbase.Generator

	// Searcher retrieves context on a search-tier miss. Optional.
	Searcher kbase.ChunkSearcher

	// Embedder embeds the question for the Searcher. Optional.
	Embedder kbase.Embedder

	// Timeout bounds one generation call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// ContextLimit is the number of snippets retrieved. Defaults to
	// DefaultContextLimit.
	ContextLimit int

	// Journal records every answered query. Optional; recording failures
	// are logged.
	Journal kbase.Journal

	Logger *slog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	group singleflight.Group
}

// NewService creates a Service over c and gen.
func NewService(c Cache, gen kbase.Generator) *Service {
	return &Service{Cache: c, Generator: gen}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Ask answers q. Only an invalid query returns an error; generation
// failures, timeouts and cancellation resolve to the degraded answer, which
// is never cached.
func (s *Service) Ask(ctx context.Context, q *kbase.Query) (*kbase.Answer, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	a := s.ask(ctx, q)
	s.record(ctx, q, a)
	return a, nil
}

// Preload answers the limit most frequent questions of the journal so later
// queries hit the response tier. Preloaded queries are not journaled. It
// returns how many questions got a non-degraded answer.
func (s *Service) Preload(ctx context.Context, limit int) (int, error) {
	if s.Journal == nil || limit <= 0 {
		return 0, nil
	}
	frequent, err := s.Journal.FrequentQueries(ctx, "", limit)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, fq := range frequent {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		q := &kbase.Query{Question: fq.Question, Region: fq.Region}
		if q.Validate() != nil {
			continue
		}
		if a := s.ask(ctx, q); !a.Degraded {
			n++
		}
	}
	s.logger().Info("cache preloaded", "questions", len(frequent), "answered", n)
	return n, nil
}

func (s *Service) record(ctx context.Context, q *kbase.Query, a *kbase.Answer) {
	if s.Journal == nil {
		return
	}
	rec := kbase.NewQueryRecord(q, a, s.now().UTC())
	if err := s.Journal.RecordQuery(context.WithoutCancel(ctx), rec); err != nil {
		s.logger().Warn("record query", "question", q.Question, "err", err)
	}
}

func (s *Service) ask(ctx context.Context, q *kbase.Query) *kbase.Answer {
	begin := s.now()

	if e, ok := s.Cache.GetResponse(q); ok {
		return s.finish(begin, &kbase.Answer{
			Answer:     e.Answer,
			Sources:    e.Sources,
			Confidence: e.Confidence,
			CacheTier:  kbase.CacheTierResponse,
		})
	}

	// The shared call must outlive any single caller; each caller still
	// stops waiting when its own context ends.
	key := q.Region + "|" + cache.ResponseKey(q.Question, q.UserID, q.SessionID)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.answer(context.WithoutCancel(ctx), q, begin), nil
	})

	select {
	case res := <-ch:
		a := *res.Val.(*kbase.Answer)
		a.Sources = slices.Clone(a.Sources)
		return s.finish(begin, &a)
	case <-ctx.Done():
		s.logger().Warn("query abandoned", "question", q.Question, "err", ctx.Err())
		return s.finish(begin, degraded(kbase.CacheTierNone))
	}
}

func (s *Service) finish(begin time.Time, a *kbase.Answer) *kbase.Answer {
	a.ProcessingTime = s.now().Sub(begin)
	s.Cache.RecordLatency(a.ProcessingTime)
	return a
}

// answer runs the miss path: retrieve, generate, write through.
func (s *Service) answer(ctx context.Context, q *kbase.Query, begin time.Time) *kbase.Answer {
	tier := kbase.CacheTierNone
	snippets, cached := s.Cache.GetSearch(q.Question, q.Region)
	if cached {
		tier = kbase.CacheTierSearch
	} else {
		snippets = s.retrieve(ctx, q)
	}

	text, err := s.generate(ctx, q.Question, kbase.FormatSnippets(snippets))
	if err != nil {
		s.logger().Warn("generation failed", "question", q.Question, "region", q.Region, "err", err)
		return degraded(tier)
	}

	a := &kbase.Answer{
		Answer:     text,
		Sources:    snippets,
		Confidence: Confidence(snippets),
		CacheTier:  tier,
	}
	a.ProcessingTime = s.now().Sub(begin)
	s.Cache.PutResponse(q, a)
	if !cached && len(snippets) > 0 {
		s.Cache.PutSearch(q.Question, q.Region, snippets)
	}
	return a
}

// retrieve returns context snippets from the Searcher. Failures degrade to
// an empty context.
func (s *Service) retrieve(ctx context.Context, q *kbase.Query) []kbase.Snippet {
	if s.Searcher == nil {
		return nil
	}

	cq := kbase.ChunkQuery{Region: q.Region, Text: q.Question, Limit: s.ContextLimit}
	if cq.Limit <= 0 {
		cq.Limit = DefaultContextLimit
	}
	if s.Embedder != nil {
		vec, err := s.Embedder.Embed(ctx, q.Question)
		if err != nil {
			s.logger().Warn("embed question", "err", err)
		} else {
			cq.Embedding = vec
		}
	}

	snippets, err := s.Searcher.SearchChunks(ctx, cq)
	if err != nil {
		s.logger().Warn("search chunks", "region", q.Region, "err", err)
		return nil
	}
	return snippets
}

// generate calls the Generator under the timeout. It returns when the
// timeout expires even if the Generator ignores its context.
func (s *Service) generate(ctx context.Context, prompt string, chunks []string) (string, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := s.Generator.Generate(ctx, prompt, chunks)
		ch <- result{text, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		if strings.TrimSpace(r.text) == "" {
			return "", kbase.Errorf(kbase.EGENERATE, "empty generation")
		}
		return r.text, nil
	case <-ctx.Done():
		return "", kbase.Errorf(kbase.EGENERATE, "generation timed out after %s", timeout)
	}
}

// Confidence derives an answer's confidence from its context: BaseConfidence
// without snippets, otherwise raised by the mean snippet score and capped at
// MaxConfidence.
func Confidence(snippets []kbase.Snippet) float64 {
	if len(snippets) == 0 {
		return BaseConfidence
	}
	var sum float64
	for _, sn := range snippets {
		sum += min(max(sn.Score, 0), 1)
	}
	mean := sum / float64(len(snippets))
	return min(MaxConfidence, BaseConfidence+(1-BaseConfidence)*mean)
}

func degraded(tier kbase.CacheTier) *kbase.Answer {
	return &kbase.Answer{
		Answer:    kbase.DegradedAnswer,
		CacheTier: tier,
		Degraded:  true,
	}
}
