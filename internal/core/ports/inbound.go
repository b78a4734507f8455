package ports

import (
	"context"
	"io"

	"github.com/docintel/docintel/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload
// orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
	Remove(ctx context.Context, documentID string) error
}

// SemanticIndex is the inbound contract of the retrieval store: add,
// search, delete and stats over document chunks.
type SemanticIndex interface {
	Add(ctx context.Context, documentID string) (int, error)
	Search(ctx context.Context, query string, k int, scoreThreshold float64, filter domain.SearchFilter) ([]domain.RetrievalResult, error)
	Delete(ctx context.Context, documentID string) (int, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// AnswerAgent runs the bounded reasoning loop for one query.
type AnswerAgent interface {
	Answer(ctx context.Context, query string, history []domain.ChatMessage) (*domain.AgentResult, error)
}

// SummaryController drives multi-tier summary generation per document.
type SummaryController interface {
	GenerateByID(ctx context.Context, documentID string) error
	Retrigger(ctx context.Context, documentID string) error
	ResumePending(ctx context.Context) error
}
