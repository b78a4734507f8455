package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docintel/docintel/internal/core/domain"
	"github.com/docintel/docintel/internal/core/ports"
)

const (
	summaryTierWorkflow = "workflow"
	summaryTierLLM      = "llm"
	summaryTierTemplate = "template"

	summaryPromptCharLimit = 12000
)

// SummaryObserver receives summary pipeline outcomes for metrics.
type SummaryObserver interface {
	SummaryAttempt(tier, outcome string)
	SummaryRetryScheduled()
}

type nopSummaryObserver struct{}

func (nopSummaryObserver) SummaryAttempt(string, string) {}
func (nopSummaryObserver) SummaryRetryScheduled()        {}

// SummaryPolicy bounds the retry behavior of the controller.
type SummaryPolicy struct {
	MaxRetries        int
	InitialRetryDelay time.Duration
}

// SummaryControllerUseCase generates document summaries through a tier
// chain: external workflow first, local model second, and a metadata
// template as the terminal tier of every attempt. A run therefore ends
// in a completed summary unless persisting it fails, which is the only
// path that schedules a retry.
type SummaryControllerUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	workflow  ports.WorkflowSummarizer
	llm       ports.LanguageModel
	queue     ports.MessageQueue
	observer  SummaryObserver
	policy    SummaryPolicy
	logger    *slog.Logger
}

func NewSummaryControllerUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	workflow ports.WorkflowSummarizer,
	llm ports.LanguageModel,
	queue ports.MessageQueue,
	observer SummaryObserver,
	policy SummaryPolicy,
) *SummaryControllerUseCase {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 3
	}
	if policy.InitialRetryDelay <= 0 {
		policy.InitialRetryDelay = 30 * time.Second
	}
	if observer == nil {
		observer = nopSummaryObserver{}
	}

	return &SummaryControllerUseCase{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		workflow:  workflow,
		llm:       llm,
		queue:     queue,
		observer:  observer,
		policy:    policy,
		logger:    slog.Default().With("component", "summary_controller"),
	}
}

// GenerateByID runs one summary attempt for the document. Completed
// documents are left alone, so redelivered queue messages are harmless.
func (uc *SummaryControllerUseCase) GenerateByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if doc.SummaryStatus == domain.SummaryStatusCompleted && strings.TrimSpace(doc.Summary) != "" {
		return nil
	}
	if doc.SummaryRetryCount >= uc.policy.MaxRetries {
		uc.logger.Warn("summary_retries_exhausted",
			"document_id", doc.ID,
			"retry_count", doc.SummaryRetryCount,
		)
		return nil
	}

	if err := uc.repo.UpdateSummary(ctx, doc.ID, "", domain.SummaryStatusGenerating, "", false); err != nil {
		return fmt.Errorf("mark summary generating: %w", err)
	}

	// The tier chain always yields text: the metadata template is the
	// terminal tier and cannot fail. Only the store write can, which is
	// what the retry path covers.
	summary, tier := uc.generate(ctx, doc)
	if err := uc.repo.UpdateSummary(ctx, doc.ID, summary, domain.SummaryStatusCompleted, "", false); err != nil {
		return uc.scheduleRetry(ctx, doc, fmt.Errorf("store summary: %w", err))
	}
	uc.observer.SummaryAttempt(tier, "ok")
	uc.logger.Info("summary_completed", "document_id", doc.ID, "tier", tier)
	return nil
}

func (uc *SummaryControllerUseCase) scheduleRetry(ctx context.Context, doc *domain.Document, cause error) error {
	if err := uc.repo.UpdateSummary(ctx, doc.ID, "", domain.SummaryStatusFailed, cause.Error(), true); err != nil {
		uc.logger.Error("mark_summary_failed", "document_id", doc.ID, "error", err.Error())
	}

	delay := uc.retryDelay(doc.SummaryRetryCount)
	if err := uc.queue.PublishSummaryRequested(ctx, doc.ID, delay); err != nil {
		return fmt.Errorf("schedule summary retry: %w", err)
	}
	uc.observer.SummaryRetryScheduled()
	uc.logger.Warn("summary_retry_scheduled",
		"document_id", doc.ID,
		"delay", delay.String(),
		"error", cause.Error(),
	)
	return nil
}

// Retrigger resets summary state and enqueues a fresh attempt.
func (uc *SummaryControllerUseCase) Retrigger(ctx context.Context, documentID string) error {
	if err := uc.repo.ResetSummary(ctx, documentID); err != nil {
		return fmt.Errorf("reset summary state: %w", err)
	}
	if err := uc.queue.PublishSummaryRequested(ctx, documentID, 0); err != nil {
		return fmt.Errorf("enqueue summary generation: %w", err)
	}
	return nil
}

// ResumePending re-enqueues every unfinished summary. Called on worker
// startup so retries scheduled by a previous process are not lost.
func (uc *SummaryControllerUseCase) ResumePending(ctx context.Context) error {
	docs, err := uc.repo.ListPendingSummaries(ctx, uc.policy.MaxRetries)
	if err != nil {
		return fmt.Errorf("list pending summaries: %w", err)
	}

	for _, doc := range docs {
		if err := uc.queue.PublishSummaryRequested(ctx, doc.ID, 0); err != nil {
			uc.logger.Error("resume_summary_failed", "document_id", doc.ID, "error", err.Error())
			continue
		}
	}
	if len(docs) > 0 {
		uc.logger.Info("resumed_pending_summaries", "count", len(docs))
	}
	return nil
}

// generate walks the tier chain in order until one yields non-empty
// text. The template tier closes the chain deterministically, so every
// attempt produces a summary.
func (uc *SummaryControllerUseCase) generate(ctx context.Context, doc *domain.Document) (string, string) {
	if uc.workflow.Configured() {
		summary, err := uc.workflow.Summarize(ctx, doc)
		if err == nil && strings.TrimSpace(summary) != "" {
			return summary, summaryTierWorkflow
		}
		uc.observer.SummaryAttempt(summaryTierWorkflow, "error")
		uc.logger.Warn("workflow_summary_failed", "document_id", doc.ID, "error", errText(err))
	}

	summary, err := uc.summarizeWithModel(ctx, doc)
	if err == nil {
		return summary, summaryTierLLM
	}
	uc.observer.SummaryAttempt(summaryTierLLM, "error")
	uc.logger.Warn("model_summary_failed", "document_id", doc.ID, "error", err.Error())

	return uc.templateSummary(doc), summaryTierTemplate
}

func errText(err error) string {
	if err == nil {
		return "empty summary"
	}
	return err.Error()
}

func (uc *SummaryControllerUseCase) summarizeWithModel(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.documentText(ctx, doc)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("document has no extractable text")
	}

	if runes := []rune(text); len(runes) > summaryPromptCharLimit {
		text = string(runes[:summaryPromptCharLimit])
	}

	prompt := fmt.Sprintf(`Summarize the following document in 3-5 sentences.
Focus on what the document is about and its key points. Return plain text only.

Document %q:
%s`, doc.Filename, text)

	summary, err := uc.llm.GenerateFromPrompt(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.New("model returned an empty summary")
	}
	return summary, nil
}

// templateSummary is the terminal tier: a deterministic summary built
// from metadata alone.
func (uc *SummaryControllerUseCase) templateSummary(doc *domain.Document) string {
	return fmt.Sprintf(
		"Document %q (%s, %d bytes) was uploaded on %s. An automatic summary could not be generated.",
		doc.Filename,
		strings.ToUpper(doc.FileType),
		doc.SizeBytes,
		doc.CreatedAt.Format("2006-01-02"),
	)
}

func (uc *SummaryControllerUseCase) retryDelay(retryCount int) time.Duration {
	delay := uc.policy.InitialRetryDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
	}
	return delay
}

func (uc *SummaryControllerUseCase) documentText(ctx context.Context, doc *domain.Document) (string, error) {
	rc, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open stored file: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read stored file: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc.Filename, content)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}
