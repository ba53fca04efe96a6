// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package permission

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// compiledPattern holds a grant pattern and its compiled glob.
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// StaticProvider grants permissions from a fixed set of glob patterns,
// e.g. "wardstone.command.*". Patterns use '.' as the segment separator.
// Construction compiles every pattern once; lookups are lock-free since
// the pattern set is immutable.
type StaticProvider struct {
	name     string
	compiled []compiledPattern
}

// NewStaticProvider compiles patterns into a provider. Returns an error
// if any pattern has invalid glob syntax.
func NewStaticProvider(name string, patterns []string) (*StaticProvider, error) {
	if name == "" {
		return nil, oops.In("permission").Code("EMPTY_NAME").New("provider name cannot be empty")
	}
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, oops.In("permission").
				Code("INVALID_PERMISSION_PATTERN").
				With("pattern", p).
				Wrap(err)
		}
		compiled = append(compiled, compiledPattern{pattern: p, glob: g})
	}
	return &StaticProvider{name: name, compiled: compiled}, nil
}

// Name implements Provider.
func (s *StaticProvider) Name() string { return s.name }

// CreateFunc implements Provider. The returned Func answers True for any
// permission matching a pattern and Undefined otherwise.
func (s *StaticProvider) CreateFunc(Subject) Func {
	return func(permission string) TriState {
		for _, c := range s.compiled {
			if c.glob.Match(permission) {
				return True
			}
		}
		return Undefined
	}
}
