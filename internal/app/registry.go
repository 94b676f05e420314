package app

import (
	"fmt"

	"setlist-quiz-service/internal/domain"
)

// Registry maps show slugs to their configuration. It is immutable after construction.
type Registry struct {
	order []string
	shows map[string]domain.QuizConfig
}

// NewRegistry builds a registry, rejecting duplicate slugs and quiz ids.
func NewRegistry(shows []domain.QuizConfig) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(shows)),
		shows: make(map[string]domain.QuizConfig, len(shows)),
	}
	ids := make(map[int64]string, len(shows))
	for _, show := range shows {
		if _, dup := r.shows[show.Slug]; dup {
			return nil, fmt.Errorf("duplicate show slug %q", show.Slug)
		}
		if other, dup := ids[show.QuizID]; dup {
			return nil, fmt.Errorf("shows %q and %q share quiz id %d", other, show.Slug, show.QuizID)
		}
		if show.Location == nil {
			return nil, fmt.Errorf("show %q has no location", show.Slug)
		}
		ids[show.QuizID] = show.Slug
		r.order = append(r.order, show.Slug)
		r.shows[show.Slug] = show
	}
	return r, nil
}

func (r *Registry) Lookup(slug string) (domain.QuizConfig, bool) {
	cfg, ok := r.shows[slug]
	return cfg, ok
}

// All returns every show in declaration order.
func (r *Registry) All() []domain.QuizConfig {
	out := make([]domain.QuizConfig, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.shows[slug])
	}
	return out
}
