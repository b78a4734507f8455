package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusError      DocumentStatus = "error"
)

type SummaryStatus string

const (
	SummaryStatusPending    SummaryStatus = "pending"
	SummaryStatusGenerating SummaryStatus = "generating"
	SummaryStatusCompleted  SummaryStatus = "completed"
	SummaryStatusFailed     SummaryStatus = "failed"
)

type Document struct {
	ID                string         `json:"id"`
	Filename          string         `json:"filename"`
	FileType          string         `json:"file_type"`
	StoragePath       string         `json:"storage_path"`
	SizeBytes         int64          `json:"size_bytes"`
	CharCount         int            `json:"char_count"`
	Status            DocumentStatus `json:"status"`
	Error             string         `json:"error,omitempty"`
	Summary           string         `json:"summary,omitempty"`
	SummaryStatus     SummaryStatus  `json:"summary_status"`
	SummaryRetryCount int            `json:"summary_retry_count"`
	SummaryError      string         `json:"summary_error,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
