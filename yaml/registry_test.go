package yaml_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryYAML = `
strategies:
  tourism_official:
    priority: high
    max_depth: 5
    update_frequency: daily
    sections: [destinos, atrativos]
  destination:
    priority: medium
    max_depth: 3
    update_frequency: weekly
    sections: [passeios]
sources:
  - url: https://www.bonito-ms.com.br/
    region: MS
    category: destination
  - url: https://turismo.ms.gov.br
    region: MS
    category: tourism_official
  - url: https://turismo.mt.gov.br
    region: MT
    category: tourism_official
    priority: 7
`

func ptr(s string) *string { return &s }

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("resolves strategies and priorities", func(t *testing.T) {
		t.Parallel()

		reg, err := yaml.Load(strings.NewReader(registryYAML))
		require.NoError(t, err)

		sources, err := reg.FindSources(context.Background(), kbase.SourceFilter{})
		require.NoError(t, err)
		require.Len(t, sources, 3)

		bonito := sources[0]
		assert.Equal(t, "https://www.bonito-ms.com.br", bonito.URL, "trailing slash trimmed")
		assert.Equal(t, kbase.TierMedium.Rank(), bonito.Priority)
		assert.Equal(t, 3, bonito.Strategy.MaxDepth)
		assert.Equal(t, kbase.UpdateWeekly, bonito.Strategy.UpdateFrequency)
		assert.Equal(t, []string{"passeios"}, bonito.Strategy.Sections)

		assert.Equal(t, kbase.TierHigh.Rank(), sources[1].Priority)
		assert.Equal(t, 7, sources[2].Priority, "explicit priority wins")
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.Load(strings.NewReader(`
strategies: {}
sources:
  - url: https://example.com
    region: MS
    category: blog
`))
		require.Error(t, err)
		assert.Equal(t, kbase.EINVALID, kbase.ErrorCode(err))
		assert.Contains(t, kbase.ErrorMessage(err), "unknown category")
	})

	t.Run("rejects invalid strategy", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.Load(strings.NewReader(`
strategies:
  government:
    update_frequency: hourly
sources: []
`))
		require.Error(t, err)
		assert.Equal(t, kbase.EINVALID, kbase.ErrorCode(err))
	})

	t.Run("rejects source without region", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.Load(strings.NewReader(`
strategies:
  government: {priority: high}
sources:
  - url: https://www.ms.gov.br
    category: government
`))
		assert.Equal(t, kbase.EINVALID, kbase.ErrorCode(err))
	})

	t.Run("rejects duplicate sources", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.Load(strings.NewReader(`
strategies:
  government: {priority: high}
sources:
  - {url: https://www.ms.gov.br, region: MS, category: government}
  - {url: https://www.ms.gov.br/, region: MS, category: government}
`))
		assert.Equal(t, kbase.ECONFLICT, kbase.ErrorCode(err))
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.Load(strings.NewReader("strategies: {}\nsourcez: []\n"))
		assert.Equal(t, kbase.EINVALID, kbase.ErrorCode(err))
	})

	t.Run("rejects malformed YAML", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.Load(strings.NewReader("sources: [unclosed"))
		assert.Equal(t, kbase.EINVALID, kbase.ErrorCode(err))
	})
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(registryYAML), 0o600))

	reg, err := yaml.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"MS", "MT"}, reg.Regions())

	_, err = yaml.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRegistry_FindSources(t *testing.T) {
	t.Parallel()

	reg, err := yaml.Load(strings.NewReader(registryYAML))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("filters by region case-insensitively", func(t *testing.T) {
		t.Parallel()

		sources, err := reg.FindSources(ctx, kbase.SourceFilter{Region: ptr("ms")})
		require.NoError(t, err)
		assert.Len(t, sources, 2)
	})

	t.Run("filters by category", func(t *testing.T) {
		t.Parallel()

		sources, err := reg.FindSources(ctx, kbase.SourceFilter{Region: ptr("MS"), Category: ptr("tourism_official")})
		require.NoError(t, err)
		require.Len(t, sources, 1)
		assert.Equal(t, "https://turismo.ms.gov.br", sources[0].URL)
	})

	t.Run("returns copies", func(t *testing.T) {
		t.Parallel()

		first, err := reg.FindSources(ctx, kbase.SourceFilter{Category: ptr("destination")})
		require.NoError(t, err)
		first[0].Priority = -1
		first[0].Strategy.Sections[0] = "mutated"

		second, err := reg.FindSources(ctx, kbase.SourceFilter{Category: ptr("destination")})
		require.NoError(t, err)
		assert.Equal(t, kbase.TierMedium.Rank(), second[0].Priority)
		assert.Equal(t, "passeios", second[0].Strategy.Sections[0])
	})

	t.Run("honours cancellation", func(t *testing.T) {
		t.Parallel()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := reg.FindSources(cctx, kbase.SourceFilter{})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestDefault(t *testing.T) {
	t.Parallel()

	reg, err := yaml.Default()
	require.NoError(t, err)

	sources, err := reg.FindSources(context.Background(), kbase.SourceFilter{Region: ptr("MS")})
	require.NoError(t, err)
	require.Len(t, sources, 4)

	urls := make([]string, len(sources))
	for i, s := range sources {
		urls[i] = s.URL
	}
	assert.Equal(t, []string{
		"https://turismo.ms.gov.br",
		"https://www.ms.gov.br",
		"https://secult.ms.gov.br",
		"https://www.bonito-ms.com.br",
	}, urls)
	assert.Equal(t, []string{"destinos", "atrativos", "hoteis", "restaurantes", "eventos", "roteiros"},
		sources[0].Strategy.Sections)
	assert.Equal(t, 4, sources[1].Strategy.MaxDepth)
}
