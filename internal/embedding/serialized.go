package embedding

import (
	"context"
	"sync"
)

// Serialized allows only one call into the wrapped provider at a time.
type Serialized struct {
	mu   sync.Mutex
	next Provider
}

func NewSerialized(next Provider) *Serialized {
	return &Serialized{next: next}
}

func (s *Serialized) Name() string { return s.next.Name() }

func (s *Serialized) Dimension() int { return s.next.Dimension() }

func (s *Serialized) Embed(ctx context.Context, text string) (Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Embed(ctx, text)
}

func (s *Serialized) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.EmbedBatch(ctx, texts)
}
