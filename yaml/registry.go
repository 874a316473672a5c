// Package yaml loads the source registry from YAML.
package yaml

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fwojciec/kbase"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRegistry []byte

// Ensure Registry implements kbase.SourceRegistry at compile time.
var _ kbase.SourceRegistry = (*Registry)(nil)

// file is the on-disk registry layout.
type file struct {
	Strategies map[string]kbase.CrawlStrategy `yaml:"strategies"`
	Sources    []sourceEntry                  `yaml:"sources"`
}

type sourceEntry struct {
	URL      string `yaml:"url"`
	Region   string `yaml:"region"`
	Category string `yaml:"category"`
	Priority *int   `yaml:"priority"`
}

// Registry is a static source registry. It is safe for concurrent use.
type Registry struct {
	sources []*kbase.Source
}

// Default returns the embedded registry of Mato Grosso do Sul sources.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultRegistry))
}

// LoadFile reads a registry from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a registry. Every source category must name a strategy;
// a source without an explicit priority takes its strategy tier rank.
func Load(r io.Reader) (*Registry, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, kbase.Errorf(kbase.EINVALID, "parse registry: %v", err)
	}

	for name, st := range f.Strategies {
		if err := st.Validate(); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", name, err)
		}
	}

	reg := &Registry{sources: make([]*kbase.Source, 0, len(f.Sources))}
	seen := make(map[string]struct{}, len(f.Sources))
	for i, e := range f.Sources {
		st, ok := f.Strategies[e.Category]
		if !ok {
			return nil, kbase.Errorf(kbase.EINVALID, "source %d (%s): unknown category %q", i, e.URL, e.Category)
		}
		src := &kbase.Source{
			URL:      strings.TrimRight(e.URL, "/"),
			Region:   e.Region,
			Category: e.Category,
			Priority: st.Priority.Rank(),
			Strategy: st,
		}
		if e.Priority != nil {
			src.Priority = *e.Priority
		}
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		key := src.Region + " " + src.URL
		if _, dup := seen[key]; dup {
			return nil, kbase.Errorf(kbase.ECONFLICT, "duplicate source %s in region %s", src.URL, src.Region)
		}
		seen[key] = struct{}{}
		reg.sources = append(reg.sources, src)
	}
	return reg, nil
}

// FindSources returns copies of the matching sources in registry order.
// Regions match case-insensitively.
func (r *Registry) FindSources(ctx context.Context, filter kbase.SourceFilter) ([]*kbase.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*kbase.Source
	for _, s := range r.sources {
		if filter.Region != nil && !strings.EqualFold(s.Region, *filter.Region) {
			continue
		}
		if filter.Category != nil && s.Category != *filter.Category {
			continue
		}
		cp := *s
		cp.Strategy.Sections = append([]string(nil), s.Strategy.Sections...)
		out = append(out, &cp)
	}
	return out, nil
}

// Regions returns the distinct regions of the registry in order of first
// appearance.
func (r *Registry) Regions() []string {
	var regions []string
	seen := make(map[string]struct{})
	for _, s := range r.sources {
		if _, ok := seen[s.Region]; ok {
			continue
		}
		seen[s.Region] = struct{}{}
		regions = append(regions, s.Region)
	}
	return regions
}
