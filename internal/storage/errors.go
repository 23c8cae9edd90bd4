package storage

import (
	"errors"
	"fmt"
)

var (
	ErrStore            = errors.New("vector store error")
	ErrDocumentNotFound = errors.New("document not found")
)

// IngestError reports a document whose chunks were only partially committed.
// FailedIndices lists the chunk indices that are not stored.
type IngestError struct {
	DocumentID    string
	FailedIndices []int
	Err           error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %d chunk(s) not stored %v: %v",
		e.DocumentID, len(e.FailedIndices), e.FailedIndices, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}
