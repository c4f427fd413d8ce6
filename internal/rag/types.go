package rag

// AskRequest represents a question against the ingested study materials.
type AskRequest struct {
	// Question is the user's question to answer.
	Question string `json:"question"`
	// Collection optionally restricts results to one collection (subject
	// code). If empty, all collections are searched.
	Collection string `json:"collection,omitempty"`
}

// Reference points at a chunk that backed the answer.
type Reference struct {
	// Collection is the collection the chunk came from.
	Collection string `json:"collection"`
	// Source is the originating document file name.
	Source string `json:"source"`
	// HeaderPath is the heading hierarchy enclosing the chunk.
	HeaderPath []string `json:"header_path,omitempty"`
	// Sequence is the chunk position within the document.
	Sequence int `json:"sequence"`
	// Score is the fused retrieval score.
	Score float64 `json:"score"`
}

// AskResponse represents the answer to a question.
type AskResponse struct {
	// Answer is the generated answer.
	Answer string `json:"answer"`
	// References are the chunks included in the answer context.
	References []Reference `json:"references"`
	// Retrieved is the total number of chunks retrieval produced.
	Retrieved int `json:"retrieved"`
	// Used is the number of chunks that fit into the answer context.
	Used int `json:"used"`
}
