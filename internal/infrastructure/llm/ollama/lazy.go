package ollama

import (
	"context"
	"sync"

	"github.com/docintel/docintel/internal/core/ports"
)

// LazyEmbedder defers embedder construction until the first embedding
// request, so processes that never index or search do not pay for it.
type LazyEmbedder struct {
	once  sync.Once
	build func() ports.Embedder
	inner ports.Embedder
}

func NewLazyEmbedder(build func() ports.Embedder) *LazyEmbedder {
	return &LazyEmbedder{build: build}
}

func (l *LazyEmbedder) get() ports.Embedder {
	l.once.Do(func() {
		l.inner = l.build()
	})
	return l.inner
}

func (l *LazyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return l.get().Embed(ctx, texts)
}

func (l *LazyEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return l.get().EmbedQuery(ctx, text)
}
