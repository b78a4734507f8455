package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"sync"

	"github.com/docintel/docintel/internal/core/domain"
	"github.com/docintel/docintel/internal/core/ports"
)

const indexLockStripes = 32

// SemanticIndexUseCase turns stored document bytes into searchable
// chunks and answers similarity queries over them. Writes for the same
// document are serialized so concurrent re-index and delete cannot
// interleave.
type SemanticIndexUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.ChunkStore

	locks [indexLockStripes]sync.Mutex
}

func NewSemanticIndexUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.ChunkStore,
) *SemanticIndexUseCase {
	return &SemanticIndexUseCase{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
	}
}

// Add extracts, chunks, embeds and stores one document, moving its
// status processing -> processed. A document whose extraction yields no
// text indexes zero chunks and still counts as processed.
func (uc *SemanticIndexUseCase) Add(ctx context.Context, documentID string) (int, error) {
	lock := uc.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return 0, fmt.Errorf("set status=processing: %w", err)
	}

	chunkCount, err := uc.indexPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusError, err.Error()); failErr != nil {
			return 0, fmt.Errorf("%w; mark error status: %v", err, failErr)
		}
		return 0, err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessed, ""); err != nil {
		return 0, fmt.Errorf("set status=processed: %w", err)
	}
	return chunkCount, nil
}

func (uc *SemanticIndexUseCase) indexPipeline(ctx context.Context, documentID string) (int, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("fetch document by id: %w", err)
	}

	content, err := uc.readStored(ctx, doc.StoragePath)
	if err != nil {
		return 0, err
	}

	text, err := uc.extractor.Extract(ctx, doc.Filename, content)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}

	if err := uc.repo.UpdateCharCount(ctx, documentID, len([]rune(text))); err != nil {
		return 0, fmt.Errorf("update char count: %w", err)
	}

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		// Nothing searchable, but the document itself is fine.
		return 0, nil
	}

	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if err := uc.store.Upsert(ctx, doc, chunks, vectors); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}

func (uc *SemanticIndexUseCase) Search(
	ctx context.Context,
	query string,
	k int,
	scoreThreshold float64,
	filter domain.SearchFilter,
) ([]domain.RetrievalResult, error) {
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is empty"))
	}
	if k <= 0 {
		k = 5
	}

	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := uc.store.Search(ctx, vector, k, scoreThreshold, filter)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return results, nil
}

func (uc *SemanticIndexUseCase) Delete(ctx context.Context, documentID string) (int, error) {
	lock := uc.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	count, err := uc.store.DeleteByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document chunks: %w", err)
	}
	return count, nil
}

func (uc *SemanticIndexUseCase) Stats(ctx context.Context) (domain.IndexStats, error) {
	stats, err := uc.store.Stats(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("index stats: %w", err)
	}
	return stats, nil
}

func (uc *SemanticIndexUseCase) readStored(ctx context.Context, storagePath string) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, storagePath)
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read stored file: %w", err)
	}
	return content, nil
}

func (uc *SemanticIndexUseCase) lockFor(documentID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(documentID))
	return &uc.locks[h.Sum32()%indexLockStripes]
}
