package kbase_test

import (
	"testing"
	"time"

	"github.com/fwojciec/kbase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityTier_Rank(t *testing.T) {
	t.Parallel()

	assert.Greater(t, kbase.TierHigh.Rank(), kbase.TierMedium.Rank())
	assert.Greater(t, kbase.TierMedium.Rank(), kbase.TierLow.Rank())
	assert.Zero(t, kbase.PriorityTier("unknown").Rank())
}

func TestUpdateFrequency_Interval(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 24*time.Hour, kbase.UpdateDaily.Interval())
	assert.Equal(t, 7*24*time.Hour, kbase.UpdateWeekly.Interval())
	assert.Equal(t, 7*24*time.Hour, kbase.UpdateFrequency("").Interval())
}

func TestSource_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *kbase.Source {
		return &kbase.Source{
			URL:      "https://www.turismo.ms.gov.br",
			Region:   "MS",
			Category: "government",
			Strategy: kbase.CrawlStrategy{Priority: kbase.TierHigh, MaxDepth: 2, UpdateFrequency: kbase.UpdateDaily},
		}
	}

	require.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*kbase.Source){
		"missing url":        func(s *kbase.Source) { s.URL = "" },
		"missing region":     func(s *kbase.Source) { s.Region = "" },
		"missing category":   func(s *kbase.Source) { s.Category = "" },
		"negative max depth": func(s *kbase.Source) { s.Strategy.MaxDepth = -1 },
		"unknown frequency":  func(s *kbase.Source) { s.Strategy.UpdateFrequency = "hourly" },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := valid()
			mutate(s)

			err := s.Validate()
			require.Error(t, err)
			assert.Equal(t, kbase.EINVALID, kbase.ErrorCode(err))
		})
	}
}

func TestSource_Due(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("never fetched is due", func(t *testing.T) {
		t.Parallel()

		s := &kbase.Source{Strategy: kbase.CrawlStrategy{UpdateFrequency: kbase.UpdateWeekly}}
		assert.True(t, s.Due(now))
	})

	t.Run("daily source fetched yesterday morning is due", func(t *testing.T) {
		t.Parallel()

		s := &kbase.Source{
			Strategy:      kbase.CrawlStrategy{UpdateFrequency: kbase.UpdateDaily},
			LastFetchedAt: now.Add(-25 * time.Hour),
		}
		assert.True(t, s.Due(now))
	})

	t.Run("weekly source fetched three days ago is not due", func(t *testing.T) {
		t.Parallel()

		s := &kbase.Source{
			Strategy:      kbase.CrawlStrategy{UpdateFrequency: kbase.UpdateWeekly},
			LastFetchedAt: now.Add(-72 * time.Hour),
		}
		assert.False(t, s.Due(now))
	})
}

func TestSortSources(t *testing.T) {
	t.Parallel()

	sources := []*kbase.Source{
		{URL: "a", Priority: 10},
		{URL: "b", Priority: 100},
		{URL: "c", Priority: 50},
		{URL: "d", Priority: 100},
	}

	kbase.SortSources(sources)

	var urls []string
	for _, s := range sources {
		urls = append(urls, s.URL)
	}
	assert.Equal(t, []string{"b", "d", "c", "a"}, urls)
}
