package corpus

// Chunk is the atomic retrievable unit of ingested text.
//
// The ID is derived deterministically from (collection, source filename,
// sequence) so re-ingesting the same file yields the same ids.
type Chunk struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`     // originating filename
	Collection string    `json:"collection"` // subject code namespace
	Sequence   int       `json:"sequence"`   // position within the source document
	HeaderPath []string  `json:"header_path,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}
