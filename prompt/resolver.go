// Package prompt resolves an analysis type to a prompt template through
// three tiers: the local prompt directory, a table of legacy labels, and a
// remote raw-file source whose downloads are persisted locally.
package prompt

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
)

// Resolver resolves analysis types to templates. Results are cached for the
// process lifetime, keyed by normalized name.
type Resolver struct {
	store      *LocalStore
	legacy     StrategyLegacyMapped
	remote     *RemoteStore
	strategies []Strategy
	logger     *zap.SugaredLogger

	mu    sync.Mutex
	cache map[string]*Template
}

// Option customizes a Resolver
type Option func(*Resolver)

// WithLegacyMap replaces the default legacy label table
func WithLegacyMap(mapping map[string]string) Option {
	return func(r *Resolver) {
		lowered := make(map[string]string, len(mapping))
		for k, v := range mapping {
			lowered[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
		r.legacy.Mapping = lowered
	}
}

// WithRemote enables the remote tier
func WithRemote(remote *RemoteStore) Option {
	return func(r *Resolver) { r.remote = remote }
}

// WithStrategies replaces the tier list entirely
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) { r.strategies = strategies }
}

// NewResolver creates a resolver over a local store
func NewResolver(store *LocalStore, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		legacy: StrategyLegacyMapped{Store: store, Mapping: am.DefaultLegacyMap()},
		logger: logger.ComponentLogger("prompt"),
		cache:  make(map[string]*Template),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.strategies == nil {
		r.strategies = []Strategy{
			StrategyLocal{Store: store},
			r.legacy,
			StrategyRemote{Store: store, Remote: r.remote, Logger: r.logger},
		}
	}
	return r
}

// FromConfig builds the standard resolver for an engine configuration
func FromConfig(cfg *am.EngineConfig) *Resolver {
	opts := []Option{WithLegacyMap(cfg.LegacyMap())}
	if cfg.Prompts.RemoteBaseURL != "" {
		remote := NewRemoteStore(
			cfg.Prompts.RemoteBaseURL,
			time.Duration(cfg.RemoteTimeoutSeconds())*time.Second,
			WithToken(cfg.Prompts.Token),
		)
		opts = append(opts, WithRemote(remote))
	}
	return NewResolver(NewLocalStore(cfg.Paths.Prompts), opts...)
}

// Resolve returns the template for an analysis type, trying each tier in
// order. It fails with errors.ErrPromptNotFound when every tier misses.
func (r *Resolver) Resolve(ctx context.Context, analysisType string) (*Template, error) {
	key := Normalize(analysisType)
	if key == "" {
		return nil, errors.Wrapf(errors.ErrPromptNotFound, "empty analysis type %q", analysisType)
	}

	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	lookup := &Lookup{Requested: strings.TrimSpace(analysisType)}
	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tmpl, err := s.Resolve(ctx, lookup)
		if errors.Is(err, errors.ErrPromptNotFound) {
			r.logger.Debugw("Prompt tier missed",
				logger.FieldAnalysisType, analysisType,
				logger.FieldProvenance, s.Provenance(),
				logger.FieldError, err)
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "resolve prompt %q", analysisType)
		}

		r.logger.Infow("Prompt resolved",
			logger.FieldAnalysisType, analysisType,
			logger.FieldPrompt, tmpl.Name,
			logger.FieldProvenance, tmpl.Provenance)

		r.mu.Lock()
		// First writer wins so every caller sees the same template
		if existing, ok := r.cache[key]; ok {
			tmpl = existing
		} else {
			r.cache[key] = tmpl
		}
		r.mu.Unlock()
		return tmpl, nil
	}

	err := errors.Wrapf(errors.ErrPromptNotFound, "%q", analysisType)
	return nil, errors.WithHintf(err, "add %s to %s or map the label under [prompts.legacy_map]",
		r.legacy.Canonical(analysisType), r.store.Dir())
}

// Canonical returns the canonical file name for a label after legacy mapping
func (r *Resolver) Canonical(label string) string {
	return r.legacy.Canonical(label)
}

// List returns local prompt names plus legacy labels, de-duplicated and sorted
func (r *Resolver) List() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}

	for _, n := range r.store.Names() {
		add(n)
	}
	for label := range r.legacy.Mapping {
		add(label)
	}
	sort.Strings(names)
	return names
}
