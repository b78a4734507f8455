package ports

import (
	"context"
	"io"
	"time"

	"github.com/docintel/docintel/internal/core/domain"
)

// DocumentRepository persists and reads document state. Summary fields
// are mutated only through the summary-specific methods so the retry
// controller stays their single writer.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, limit, offset int) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	UpdateCharCount(ctx context.Context, id string, charCount int) error
	UpdateSummary(ctx context.Context, id string, summary string, status domain.SummaryStatus, errMessage string, incrementRetry bool) error
	ResetSummary(ctx context.Context, id string) error
	ListPendingSummaries(ctx context.Context, maxRetries int) ([]domain.Document, error)
}

// ObjectStorage stores raw upload bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue carries the two background triggers: indexing of a newly
// uploaded document and (possibly delayed) summary generation.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishSummaryRequested(ctx context.Context, documentID string, delay time.Duration) error
	SubscribeSummaryRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor converts raw bytes plus a filename hint into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// Chunker splits text into overlapping, size-bounded segments.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for chunks and query text. Implementations may
// construct the underlying model lazily; construction must happen at
// most once process-wide.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore is the vector-storage backend of the semantic index.
type ChunkStore interface {
	Upsert(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, scoreThreshold float64, filter domain.SearchFilter) ([]domain.RetrievalResult, error)
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// LanguageModel is the reasoning service behind the agent and the
// summary controller's model tier.
type LanguageModel interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}

// WebSearcher queries an external search provider. Configured reports
// whether a credential is present; when false the capability must not
// be offered to the model.
type WebSearcher interface {
	Configured() bool
	Search(ctx context.Context, query string) ([]domain.WebResult, error)
}

// CrawlTrigger requests an external site crawl. Success means the crawl
// was accepted, not that it completed.
type CrawlTrigger interface {
	Configured() bool
	Trigger(ctx context.Context, url string, depth int) error
}

// WorkflowSummarizer is the optional external summary tier.
type WorkflowSummarizer interface {
	Configured() bool
	Summarize(ctx context.Context, doc *domain.Document) (string, error)
}
