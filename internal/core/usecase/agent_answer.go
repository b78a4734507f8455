package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docintel/docintel/internal/core/domain"
	"github.com/docintel/docintel/internal/core/ports"
)

const noDocumentsReply = "I don't have any documents in my knowledge base yet. " +
	"Please upload some documents first, and I'll be happy to help you find information from them."

// maxSearchLimit caps the per-call result count a planner step may
// request. Planner output is model-generated and cannot be trusted to
// stay within sane bounds.
const maxSearchLimit = 20

// AgentLimits bounds one answering run.
type AgentLimits struct {
	MaxIterations  int
	Timeout        time.Duration
	StepTimeout    time.Duration
	HistoryLimit   int
	TopK           int
	ScoreThreshold float64
}

// AnswerAgentUseCase runs the bounded plan-act loop: the model either
// requests one tool call per iteration or emits the final answer.
// Sources are accumulated from tool results as the loop runs, not
// reconstructed afterwards.
type AnswerAgentUseCase struct {
	index  ports.SemanticIndex
	llm    ports.LanguageModel
	web    ports.WebSearcher
	crawl  ports.CrawlTrigger
	limits AgentLimits

	// onToolCall is an optional hook for instrumentation.
	onToolCall func(tool, status string)
}

func NewAnswerAgentUseCase(
	index ports.SemanticIndex,
	llm ports.LanguageModel,
	web ports.WebSearcher,
	crawl ports.CrawlTrigger,
	limits AgentLimits,
) *AnswerAgentUseCase {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = 6
	}
	if limits.Timeout <= 0 {
		limits.Timeout = 90 * time.Second
	}
	if limits.StepTimeout <= 0 {
		limits.StepTimeout = 30 * time.Second
	}
	if limits.HistoryLimit <= 0 {
		limits.HistoryLimit = 10
	}
	if limits.TopK <= 0 {
		limits.TopK = 5
	}
	if limits.ScoreThreshold <= 0 {
		limits.ScoreThreshold = 0.2
	}

	return &AnswerAgentUseCase{
		index:  index,
		llm:    llm,
		web:    web,
		crawl:  crawl,
		limits: limits,
	}
}

func (uc *AnswerAgentUseCase) SetToolCallHook(hook func(tool, status string)) {
	uc.onToolCall = hook
}

func (uc *AnswerAgentUseCase) Answer(
	ctx context.Context,
	query string,
	history []domain.ChatMessage,
) (*domain.AgentResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "agent answer", errors.New("query is empty"))
	}

	// With an empty index and no web capability there is nothing the
	// loop could do; short-circuit with the standing reply.
	stats, err := uc.index.Stats(ctx)
	if err == nil && stats.TotalChunks == 0 && !uc.web.Configured() {
		return &domain.AgentResult{Text: noDocumentsReply}, nil
	}

	loopCtx, cancel := context.WithTimeout(ctx, uc.limits.Timeout)
	defer cancel()

	transcript := buildTranscript(history, uc.limits.HistoryLimit)
	observations := make([]string, 0, uc.limits.MaxIterations)
	var sources []domain.Source

	iterations := 0
	for i := 1; i <= uc.limits.MaxIterations; i++ {
		if loopCtx.Err() != nil {
			break
		}
		iterations = i

		step, err := uc.plan(loopCtx, query, transcript, observations)
		if err != nil {
			if domain.IsKind(err, domain.ErrNotConfigured) {
				return nil, err
			}
			break
		}

		if step.Type == "final" {
			answer := strings.TrimSpace(step.Answer)
			if answer == "" {
				break
			}
			return uc.finish(answer, sources, iterations), nil
		}

		observation, stepSources := uc.executeTool(loopCtx, step, query)
		observations = append(observations, observation)
		sources = append(sources, stepSources...)
	}

	// Loop ended without a final step: answer directly from whatever
	// was observed.
	answer, err := uc.answerDirect(ctx, query, transcript, observations)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotConfigured) {
			return nil, err
		}
		return &domain.AgentResult{
			Text:       "I couldn't complete the analysis for this request. Please try rephrasing it.",
			Sources:    dedupeSources(sources),
			Iterations: iterations,
			Err:        err.Error(),
		}, nil
	}
	return uc.finish(answer, sources, iterations), nil
}

func (uc *AnswerAgentUseCase) finish(answer string, sources []domain.Source, iterations int) *domain.AgentResult {
	// Older model prompts cited sources inline; keep honoring markers
	// the model echoes into its answer text.
	sources = append(sources, extractSourceMarkers(answer)...)
	return &domain.AgentResult{
		Text:       answer,
		Sources:    dedupeSources(sources),
		Iterations: iterations,
	}
}

func (uc *AnswerAgentUseCase) plan(ctx context.Context, query, transcript string, observations []string) (domain.AgentStep, error) {
	stepCtx, cancel := context.WithTimeout(ctx, uc.limits.StepTimeout)
	defer cancel()

	raw, err := uc.llm.GenerateJSONFromPrompt(stepCtx, uc.buildPlannerPrompt(query, transcript, observations))
	if err != nil {
		return domain.AgentStep{}, fmt.Errorf("planner: %w", err)
	}

	step, err := parseAgentStep(raw)
	if err == nil {
		return step, nil
	}

	// One repair round for malformed planner output.
	repairCtx, repairCancel := context.WithTimeout(ctx, uc.limits.StepTimeout)
	defer repairCancel()
	repaired, repairErr := uc.llm.GenerateJSONFromPrompt(repairCtx, buildRepairPrompt(raw))
	if repairErr != nil {
		return domain.AgentStep{}, fmt.Errorf("planner repair: %w", repairErr)
	}
	return parseAgentStep(repaired)
}

func (uc *AnswerAgentUseCase) answerDirect(ctx context.Context, query, transcript string, observations []string) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, uc.limits.StepTimeout)
	defer cancel()

	gathered := "(nothing gathered)"
	if len(observations) > 0 {
		gathered = strings.Join(observations, "\n\n")
	}
	prompt := fmt.Sprintf(`Answer the user's question using the gathered context below.
If the context is insufficient, say so directly. Return plain text.

Conversation so far:
%s

Gathered context:
%s

Question:
%s
`, transcript, gathered, query)

	answer, err := uc.llm.GenerateFromPrompt(stepCtx, prompt)
	if err != nil {
		return "", fmt.Errorf("direct answer: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New("empty direct answer")
	}
	return answer, nil
}

// executeTool validates the requested tool and runs it. Failures become
// observations, never run-level errors: the model is told what went
// wrong and may try something else.
func (uc *AnswerAgentUseCase) executeTool(ctx context.Context, step domain.AgentStep, fallbackQuery string) (string, []domain.Source) {
	stepCtx, cancel := context.WithTimeout(ctx, uc.limits.StepTimeout)
	defer cancel()

	record := func(tool, status string) {
		if uc.onToolCall != nil {
			uc.onToolCall(tool, status)
		}
	}

	switch domain.AgentTool(step.Tool) {
	case domain.ToolDocumentSearch:
		question := stringInput(step.Input, "query", fallbackQuery)
		limit := intInput(step.Input, "limit", uc.limits.TopK)
		if limit <= 0 || limit > maxSearchLimit {
			limit = uc.limits.TopK
		}
		results, err := uc.index.Search(stepCtx, question, limit, uc.limits.ScoreThreshold, domain.SearchFilter{})
		if err != nil {
			record(step.Tool, "error")
			return fmt.Sprintf("document_search failed: %v", err), nil
		}
		record(step.Tool, "ok")
		return formatRetrievalObservation(results)

	case domain.ToolWebSearch:
		if !uc.web.Configured() {
			record(step.Tool, "unavailable")
			return "web_search is not available: no search credential is configured.", nil
		}
		question := stringInput(step.Input, "query", fallbackQuery)
		results, err := uc.web.Search(stepCtx, question)
		if err != nil {
			record(step.Tool, "error")
			return fmt.Sprintf("web_search failed: %v", err), nil
		}
		record(step.Tool, "ok")
		return formatWebObservation(results)

	case domain.ToolSiteCrawl:
		if !uc.crawl.Configured() {
			record(step.Tool, "unavailable")
			return "site_crawl is not available: no crawler endpoint is configured.", nil
		}
		url := strings.TrimSpace(stringInput(step.Input, "url", ""))
		if url == "" {
			record(step.Tool, "error")
			return "site_crawl requires a url input.", nil
		}
		depth := intInput(step.Input, "depth", 1)
		if err := uc.crawl.Trigger(stepCtx, url, depth); err != nil {
			record(step.Tool, "error")
			return fmt.Sprintf("site_crawl failed: %v", err), nil
		}
		record(step.Tool, "ok")
		return fmt.Sprintf("Crawl request accepted for %s (depth %d). Crawled pages will appear in the document index once processed.", url, depth), nil

	default:
		record(step.Tool, "unsupported")
		return fmt.Sprintf("unsupported tool: %q. Available tools: %s.", step.Tool, strings.Join(uc.availableTools(), ", ")), nil
	}
}

func (uc *AnswerAgentUseCase) availableTools() []string {
	tools := []string{string(domain.ToolDocumentSearch)}
	if uc.web.Configured() {
		tools = append(tools, string(domain.ToolWebSearch))
	}
	if uc.crawl.Configured() {
		tools = append(tools, string(domain.ToolSiteCrawl))
	}
	return tools
}

func (uc *AnswerAgentUseCase) buildPlannerPrompt(query, transcript string, observations []string) string {
	var capabilities strings.Builder
	capabilities.WriteString(`{"type":"tool","tool":"document_search","input":{"query":"...","limit":5}} - search the uploaded document index`)
	if uc.web.Configured() {
		capabilities.WriteString("\n" + `{"type":"tool","tool":"web_search","input":{"query":"..."}} - search the public web`)
	}
	if uc.crawl.Configured() {
		capabilities.WriteString("\n" + `{"type":"tool","tool":"site_crawl","input":{"url":"...","depth":1}} - request a site crawl into the index`)
	}

	gathered := "(no tool outputs yet)"
	if len(observations) > 0 {
		gathered = strings.Join(observations, "\n\n")
	}

	return fmt.Sprintf(`You are the planning component of a document question-answering service.
Return ONLY a valid JSON object describing exactly one step.
Either one of the tool steps:
%s
or the final answer:
{"type":"final","answer":"..."}

Prefer document_search first. Cite findings in the answer.

Conversation so far:
%s

Tool outputs gathered so far:
%s

Current user question:
%s
`, capabilities.String(), transcript, gathered, query)
}

func buildRepairPrompt(raw string) string {
	return fmt.Sprintf(`Convert the following text into one valid JSON object matching this schema:
{"type":"tool","tool":"document_search|web_search|site_crawl","input":{...}}
or {"type":"final","answer":"..."}
Return only JSON.
Text:
%s`, raw)
}

func parseAgentStep(raw string) (domain.AgentStep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.AgentStep{}, errors.New("empty planner response")
	}
	var step domain.AgentStep
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		return domain.AgentStep{}, fmt.Errorf("unmarshal planner json: %w", err)
	}
	step.Type = strings.ToLower(strings.TrimSpace(step.Type))
	step.Tool = strings.ToLower(strings.TrimSpace(step.Tool))

	switch step.Type {
	case "final":
		return step, nil
	case "tool":
		if step.Tool == "" {
			return domain.AgentStep{}, errors.New("tool step without tool name")
		}
		return step, nil
	default:
		return domain.AgentStep{}, fmt.Errorf("unsupported step type: %q", step.Type)
	}
}

func buildTranscript(history []domain.ChatMessage, limit int) string {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", strings.TrimSpace(msg.Role), content))
	}
	if len(lines) == 0 {
		return "(empty)"
	}
	return strings.Join(lines, "\n")
}

func formatRetrievalObservation(results []domain.RetrievalResult) (string, []domain.Source) {
	if len(results) == 0 {
		return "No relevant documents found.", nil
	}

	lines := make([]string, 0, len(results))
	sources := make([]domain.Source, 0, len(results))
	for i, r := range results {
		lines = append(lines, fmt.Sprintf("[Source %d: %s (relevance: %.2f)]\n%s", i+1, r.Filename, r.Score, r.Text))
		sources = append(sources, domain.Source{Filename: r.Filename})
	}
	return strings.Join(lines, "\n\n"), sources
}

func formatWebObservation(results []domain.WebResult) (string, []domain.Source) {
	if len(results) == 0 {
		return "Web search returned no results.", nil
	}

	lines := make([]string, 0, len(results))
	var sources []domain.Source
	for _, r := range results {
		switch {
		case r.URL != "":
			lines = append(lines, fmt.Sprintf("[Source: %s | %s]\n%s", r.Title, r.URL, r.Snippet))
			sources = append(sources, domain.Source{Title: r.Title, URL: r.URL})
		default:
			lines = append(lines, r.Snippet)
		}
	}
	return "Web search results:\n" + strings.Join(lines, "\n\n"), sources
}

var (
	docMarkerRe = regexp.MustCompile(`\[Source \d+: ([^(\]]+?)\s*(?:\(relevance: [0-9.]+\))?\]`)
	webMarkerRe = regexp.MustCompile(`\[Source: ([^|\]]+)\|\s*([^\]]+)\]`)
)

// extractSourceMarkers scans answer text for citation markers in the
// formats tools emit into observations.
func extractSourceMarkers(text string) []domain.Source {
	var sources []domain.Source
	for _, m := range docMarkerRe.FindAllStringSubmatch(text, -1) {
		if filename := strings.TrimSpace(m[1]); filename != "" {
			sources = append(sources, domain.Source{Filename: filename})
		}
	}
	for _, m := range webMarkerRe.FindAllStringSubmatch(text, -1) {
		title := strings.TrimSpace(m[1])
		url := strings.TrimSpace(m[2])
		if url != "" {
			sources = append(sources, domain.Source{Title: title, URL: url})
		}
	}
	return sources
}

func dedupeSources(sources []domain.Source) []domain.Source {
	seen := make(map[string]struct{}, len(sources))
	out := make([]domain.Source, 0, len(sources))
	for _, s := range sources {
		key := s.Key()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func stringInput(input map[string]interface{}, key, fallback string) string {
	if input == nil {
		return fallback
	}
	value, ok := input[key]
	if !ok || value == nil {
		return fallback
	}
	switch typed := value.(type) {
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

func intInput(input map[string]interface{}, key string, fallback int) int {
	if input == nil {
		return fallback
	}
	value, ok := input[key]
	if !ok || value == nil {
		return fallback
	}
	switch typed := value.(type) {
	case float64:
		return int(typed)
	case int:
		return typed
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return fallback
		}
		return n
	default:
		return fallback
	}
}
