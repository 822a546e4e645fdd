package prompt

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
)

// Lookup carries one resolution through the strategies. LegacyMapped fills
// Canonical; Remote fetches it.
type Lookup struct {
	Requested string
	Canonical string
}

// Strategy is one tier of prompt resolution. A miss is reported as
// errors.ErrPromptNotFound so the resolver moves on to the next tier.
type Strategy interface {
	Provenance() Provenance
	Resolve(ctx context.Context, l *Lookup) (*Template, error)
}

// StrategyLocal scans the prompt directory for the requested name
type StrategyLocal struct {
	Store *LocalStore
}

func (s StrategyLocal) Provenance() Provenance { return ProvenanceLocal }

func (s StrategyLocal) Resolve(_ context.Context, l *Lookup) (*Template, error) {
	name, ok := s.Store.Find(l.Requested)
	if !ok {
		return nil, errors.Wrapf(errors.ErrPromptNotFound, "no local prompt matches %q", l.Requested)
	}
	content, err := s.Store.Read(name)
	if err != nil {
		return nil, err
	}
	return newTemplate(name, content, ProvenanceLocal), nil
}

// maxMappingDepth bounds transitive legacy lookups (and breaks cycles)
const maxMappingDepth = 4

// StrategyLegacyMapped maps old analysis-type labels to canonical file
// names, then looks for that exact file locally.
type StrategyLegacyMapped struct {
	Store   *LocalStore
	Mapping map[string]string
}

func (s StrategyLegacyMapped) Provenance() Provenance { return ProvenanceLegacyMapped }

func (s StrategyLegacyMapped) Resolve(_ context.Context, l *Lookup) (*Template, error) {
	l.Canonical = s.Canonical(l.Requested)
	if !s.Store.Exists(l.Canonical) {
		return nil, errors.Wrapf(errors.ErrPromptNotFound, "%s not in local prompts", l.Canonical)
	}
	content, err := s.Store.Read(l.Canonical)
	if err != nil {
		return nil, err
	}
	return newTemplate(l.Canonical, content, ProvenanceLegacyMapped), nil
}

// Canonical applies the mapping transitively and appends .md when missing.
// Unmapped names map to themselves.
func (s StrategyLegacyMapped) Canonical(label string) string {
	current := strings.TrimSpace(label)
	for i := 0; i < maxMappingDepth; i++ {
		next, ok := s.lookup(current)
		if !ok || next == current {
			break
		}
		current = next
	}
	if !strings.HasSuffix(current, promptExt) {
		current += promptExt
	}
	return current
}

// lookup tries the exact lowercase label, then the normalized label
func (s StrategyLegacyMapped) lookup(label string) (string, bool) {
	lower := strings.ToLower(label)
	if v, ok := s.Mapping[lower]; ok {
		return v, true
	}
	target := Normalize(label)
	if target == "" {
		return "", false
	}
	keys := make([]string, 0, len(s.Mapping))
	for k := range s.Mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if Normalize(k) == target {
			return s.Mapping[k], true
		}
	}
	return "", false
}

// StrategyRemote downloads the canonical file and persists it locally
// before returning it. Remote failures are soft misses.
type StrategyRemote struct {
	Store  *LocalStore
	Remote *RemoteStore
	Logger *zap.SugaredLogger
}

func (s StrategyRemote) Provenance() Provenance { return ProvenanceRemote }

func (s StrategyRemote) Resolve(ctx context.Context, l *Lookup) (*Template, error) {
	name := l.Canonical
	if name == "" {
		name = strings.TrimSpace(l.Requested)
		if !strings.HasSuffix(name, promptExt) {
			name += promptExt
		}
	}
	if s.Remote == nil || !validFileName(name) {
		return nil, errors.Wrapf(errors.ErrPromptNotFound, "%s unavailable remotely", name)
	}

	content, err := s.Remote.Fetch(ctx, name)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warnw("Remote prompt fetch failed", logger.FieldPrompt, name, logger.FieldError, err)
		}
		return nil, errors.Mark(errors.Wrapf(err, "%s unavailable remotely", name), errors.ErrPromptNotFound)
	}

	if err := s.Store.Write(name, content); err != nil {
		// Still usable for this run; the next run fetches again
		if s.Logger != nil {
			s.Logger.Warnw("Failed to persist remote prompt", logger.FieldPrompt, name, logger.FieldError, err)
		}
	}
	return newTemplate(name, content, ProvenanceRemote), nil
}
