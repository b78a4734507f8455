package domain

// RetrievalResult is an ephemeral projection of an indexed chunk at query
// time. Score is a bounded similarity in [0,1], higher is more relevant.
type RetrievalResult struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type IndexStats struct {
	TotalChunks     int `json:"total_chunks"`
	UniqueDocuments int `json:"unique_documents"`
}

type SearchFilter struct {
	DocumentIDs []string
}
