package domain

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source describes where a piece of an answer came from: either an
// uploaded document (Filename set) or a web page (Title/URL set).
type Source struct {
	Filename string `json:"filename,omitempty"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Key identifies a source for deduplication: URL when present, else
// filename.
func (s Source) Key() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Filename
}

type AgentResult struct {
	Text       string   `json:"text"`
	Sources    []Source `json:"sources"`
	Iterations int      `json:"iterations"`
	Err        string   `json:"error,omitempty"`
}

// AgentTool enumerates the capabilities the reasoning step may request.
type AgentTool string

const (
	ToolDocumentSearch AgentTool = "document_search"
	ToolSiteCrawl      AgentTool = "site_crawl"
	ToolWebSearch      AgentTool = "web_search"
)

// AgentStep is one planner decision: either a tool invocation or a final
// answer. Input carries the model-supplied arguments and is validated
// against the requested tool before execution.
type AgentStep struct {
	Type   string                 `json:"type"`
	Tool   string                 `json:"tool,omitempty"`
	Input  map[string]interface{} `json:"input,omitempty"`
	Answer string                 `json:"answer,omitempty"`
}

type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
