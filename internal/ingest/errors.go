package ingest

import "errors"

// ErrIngestion is returned when a document is unreadable or unparseable.
// Callers skip the document and continue the batch.
var ErrIngestion = errors.New("document ingestion failed")
