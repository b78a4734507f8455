package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/docintel/docintel/internal/core/domain"
)

type fakeWorkflowSummarizer struct {
	configured bool
	summary    string
	err        error
	calls      int
}

func (f *fakeWorkflowSummarizer) Configured() bool { return f.configured }

func (f *fakeWorkflowSummarizer) Summarize(_ context.Context, _ *domain.Document) (string, error) {
	f.calls++
	return f.summary, f.err
}

type recordedAttempt struct {
	tier    string
	outcome string
}

type recordingObserver struct {
	attempts []recordedAttempt
	retries  int
}

func (r *recordingObserver) SummaryAttempt(tier, outcome string) {
	r.attempts = append(r.attempts, recordedAttempt{tier: tier, outcome: outcome})
}

func (r *recordingObserver) SummaryRetryScheduled() { r.retries++ }

func newSummaryController(repo *fakeDocumentRepo, storage *fakeObjectStorage, workflow *fakeWorkflowSummarizer, llm *fakeLLM, queue *fakeQueue, observer *recordingObserver) *SummaryControllerUseCase {
	return NewSummaryControllerUseCase(
		repo, storage,
		&fakeExtractor{text: "document body text"},
		workflow, llm, queue, observer,
		SummaryPolicy{MaxRetries: 3, InitialRetryDelay: 30 * time.Second},
	)
}

func seedSummaryDocument(repo *fakeDocumentRepo, storage *fakeObjectStorage, retryCount int) {
	repo.docs["doc-1"] = &domain.Document{
		ID:                "doc-1",
		Filename:          "report.pdf",
		FileType:          "pdf",
		StoragePath:       "doc-1_report.pdf",
		SizeBytes:         2048,
		SummaryStatus:     domain.SummaryStatusPending,
		SummaryRetryCount: retryCount,
		CreatedAt:         time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	storage.files["doc-1_report.pdf"] = []byte("raw bytes")
}

func TestGenerateByIDUsesWorkflowTierFirst(t *testing.T) {
	repo := newFakeDocumentRepo()
	storage := newFakeObjectStorage()
	seedSummaryDocument(repo, storage, 0)
	workflow := &fakeWorkflowSummarizer{configured: true, summary: "workflow summary"}
	llm := &fakeLLM{}
	observer := &recordingObserver{}
	uc := newSummaryController(repo, storage, workflow, llm, &fakeQueue{}, observer)

	if err := uc.GenerateByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("GenerateByID: %v", err)
	}

	doc := repo.docs["doc-1"]
	if doc.SummaryStatus != domain.SummaryStatusCompleted {
		t.Fatalf("summary status = %q, want completed", doc.SummaryStatus)
	}
	if doc.Summary != "workflow summary" {
		t.Fatalf("summary = %q", doc.Summary)
	}
	if len(llm.textPrompts) != 0 {
		t.Fatal("model tier must not run when the workflow tier succeeds")
	}
	if len(observer.attempts) != 1 || observer.attempts[0] != (recordedAttempt{tier: "workflow", outcome: "ok"}) {
		t.Fatalf("attempts = %v", observer.attempts)
	}
}

func TestGenerateByIDFallsBackToModelTier(t *testing.T) {
	repo := newFakeDocumentRepo()
	storage := newFakeObjectStorage()
	seedSummaryDocument(repo, storage, 0)
	workflow := &fakeWorkflowSummarizer{configured: true, err: errors.New("webhook 502")}
	llm := &fakeLLM{textResponse: "model summary"}
	observer := &recordingObserver{}
	uc := newSummaryController(repo, storage, workflow, llm, &fakeQueue{}, observer)

	if err := uc.GenerateByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("GenerateByID: %v", err)
	}

	doc := repo.docs["doc-1"]
	if doc.Summary != "model summary" {
		t.Fatalf("summary = %q", doc.Summary)
	}
	if len(llm.textPrompts) != 1 || !strings.Contains(llm.textPrompts[0], "document body text") {
		t.Fatalf("model prompt should carry extracted text, got %v", llm.textPrompts)
	}
	want := []recordedAttempt{{tier: "workflow", outcome: "error"}, {tier: "llm", outcome: "ok"}}
	if len(observer.attempts) != 2 || observer.attempts[0] != want[0] || observer.attempts[1] != want[1] {
		t.Fatalf("attempts = %v, want %v", observer.attempts, want)
	}
}

func TestGenerateByIDSkipsUnconfiguredWorkflow(t *testing.T) {
	repo := newFakeDocumentRepo()
	storage := newFakeObjectStorage()
	seedSummaryDocument(repo, storage, 0)
	workflow := &fakeWorkflowSummarizer{configured: false}
	llm := &fakeLLM{textResponse: "model summary"}
	uc := newSummaryController(repo, storage, workflow, llm, &fakeQueue{}, &recordingObserver{})

	if err := uc.GenerateByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("GenerateByID: %v", err)
	}

	if workflow.calls != 0 {
		t.Fatal("unconfigured workflow must not be called")
	}
	if repo.docs["doc-1"].Summary != "model summary" {
		t.Fatalf("summary = %q", repo.docs["doc-1"].Summary)
	}
}

func TestGenerateByIDTemplateTierCompletesFirstAttempt(t *testing.T) {
	repo := newFakeDocumentRepo()
	storage := newFakeObjectStorage()
	seedSummaryDocument(repo, storage, 0)
	workflow := &fakeWorkflowSummarizer{configured: true, err: errors.New("webhook 502")}
	llm := &fakeLLM{textErr: errors.New("model down")}
	queue := &fakeQueue{}
	observer := &recordingObserver{}
	uc := newSummaryController(repo, storage, workflow, llm, queue, observer)

	if err := uc.GenerateByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("GenerateByID: %v", err)
	}

	doc := repo.docs["doc-1"]
	if doc.SummaryStatus != domain.SummaryStatusCompleted {
		t.Fatalf("summary status = %q, want completed on the first attempt", doc.SummaryStatus)
	}
	if !strings.Contains(doc.Summary, `"report.pdf"`) || !strings.Contains(doc.Summary, "2048 bytes") {
		t.Fatalf("template summary = %q", doc.Summary)
	}
	if doc.SummaryRetryCount != 0 {
		t.Fatalf("retry count = %d, want 0", doc.SummaryRetryCount)
	}
	if len(queue.summaries) != 0 {
		t.Fatalf("no retry may be scheduled, got %v", queue.summaries)
	}
	last := observer.attempts[len(observer.attempts)-1]
	if last != (recordedAttempt{tier: "template", outcome: "ok"}) {
		t.Fatalf("last attempt = %v, want template/ok", last)
	}
	if observer.retries != 0 {
		t.Fatalf("observed retries = %d, want 0", observer.retries)
	}
}

func TestGenerateByIDSchedulesRetryWhenStoreWriteFails(t *testing.T) {
	repo := newFakeDocumentRepo()
	storage := newFakeObjectStorage()
	seedSummaryDocument(repo, storage, 1)
	repo.failCompletedSummaryWrite = true
	llm := &fakeLLM{textResponse: "model summary"}
	queue := &fakeQueue{}
	observer := &recordingObserver{}
	uc := newSummaryController(repo, storage, &fakeWorkflowSummarizer{}, llm, queue, observer)

	if err := uc.GenerateByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("GenerateByID: %v", err)
	}

	doc := repo.docs["doc-1"]
	if doc.SummaryStatus != domain.SummaryStatusFailed {
		t.Fatalf("summary status = %q, want failed", doc.SummaryStatus)
	}
	if doc.SummaryRetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", doc.SummaryRetryCount)
	}
	if doc.SummaryError == "" {
		t.Fatal("summary error should be recorded")
	}

	if len(queue.summaries) != 1 {
		t.Fatalf("scheduled retries = %v, want 1", queue.summaries)
	}
	if queue.summaries[0].delay != 60*time.Second {
		t.Fatalf("retry delay = %s, want 60s for the second attempt", queue.summaries[0].delay)
	}
	if observer.retries != 1 {
		t.Fatalf("observed retries = %d, want 1", observer.retries)
	}
}

func TestGenerateByIDStopsAtRetryCeiling(t *testing.T) {
	repo := newFakeDocumentRepo()
	storage := newFakeObjectStorage()
	seedSummaryDocument(repo, storage, 3)
	repo.docs["doc-1"].SummaryStatus = domain.SummaryStatusFailed
	workflow := &fakeWorkflowSummarizer{configured: true, summary: "late workflow summary"}
	queue := &fakeQueue{}
	uc := newSummaryController(repo, storage, workflow, &fakeLLM{}, queue, &recordingObserver{})

	if err := uc.GenerateByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("GenerateByID: %v", err)
	}

	if workflow.calls != 0 {
		t.Fatal("exhausted documents must not re-enter the tier chain")
	}
	if len(repo.summaryUpdates) != 0 {
		t.Fatalf("summary updates = %v, want none at the ceiling", repo.summaryUpdates)
	}
	if len(queue.summaries) != 0 {
		t.Fatalf("enqueued = %v, want none at the ceiling", queue.summaries)
	}
	if repo.docs["doc-1"].SummaryStatus != domain.SummaryStatusFailed {
		t.Fatalf("summary status = %q, want failed left as-is", repo.docs["doc-1"].SummaryStatus)
	}
}

func TestGenerateByIDIdempotentWhenCompleted(t *testing.T) {
	repo := newFakeDocumentRepo()
	storage := newFakeObjectStorage()
	seedSummaryDocument(repo, storage, 0)
	repo.docs["doc-1"].SummaryStatus = domain.SummaryStatusCompleted
	repo.docs["doc-1"].Summary = "already done"
	workflow := &fakeWorkflowSummarizer{configured: true, summary: "new summary"}
	uc := newSummaryController(repo, storage, workflow, &fakeLLM{}, &fakeQueue{}, &recordingObserver{})

	if err := uc.GenerateByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("GenerateByID: %v", err)
	}

	if repo.docs["doc-1"].Summary != "already done" {
		t.Fatalf("summary was overwritten: %q", repo.docs["doc-1"].Summary)
	}
	if len(repo.summaryUpdates) != 0 {
		t.Fatalf("summary updates = %v, want none", repo.summaryUpdates)
	}
}

func TestRetriggerResetsStateAndEnqueues(t *testing.T) {
	repo := newFakeDocumentRepo()
	storage := newFakeObjectStorage()
	seedSummaryDocument(repo, storage, 3)
	repo.docs["doc-1"].SummaryStatus = domain.SummaryStatusFailed
	queue := &fakeQueue{}
	uc := newSummaryController(repo, storage, &fakeWorkflowSummarizer{}, &fakeLLM{}, queue, &recordingObserver{})

	if err := uc.Retrigger(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Retrigger: %v", err)
	}

	doc := repo.docs["doc-1"]
	if doc.SummaryStatus != domain.SummaryStatusPending || doc.SummaryRetryCount != 0 {
		t.Fatalf("summary state not reset: status=%q retries=%d", doc.SummaryStatus, doc.SummaryRetryCount)
	}
	if len(queue.summaries) != 1 || queue.summaries[0].delay != 0 {
		t.Fatalf("enqueued = %v, want one immediate request", queue.summaries)
	}
}

func TestRetriggerUnknownDocument(t *testing.T) {
	uc := newSummaryController(newFakeDocumentRepo(), newFakeObjectStorage(), &fakeWorkflowSummarizer{}, &fakeLLM{}, &fakeQueue{}, &recordingObserver{})

	err := uc.Retrigger(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("err = %v, want document not found", err)
	}
}

func TestResumePendingEnqueuesAllAndSkipsFailures(t *testing.T) {
	repo := newFakeDocumentRepo()
	repo.pending = []domain.Document{
		{ID: "doc-1"},
		{ID: "doc-broken"},
		{ID: "doc-2"},
	}
	queue := &fakeQueue{summaryErrFor: "doc-broken"}
	uc := newSummaryController(repo, newFakeObjectStorage(), &fakeWorkflowSummarizer{}, &fakeLLM{}, queue, &recordingObserver{})

	if err := uc.ResumePending(context.Background()); err != nil {
		t.Fatalf("ResumePending: %v", err)
	}

	if len(queue.summaries) != 2 {
		t.Fatalf("enqueued = %v, want doc-1 and doc-2", queue.summaries)
	}
	for _, pub := range queue.summaries {
		if pub.delay != 0 {
			t.Fatalf("resume delay = %s, want 0", pub.delay)
		}
	}
}
