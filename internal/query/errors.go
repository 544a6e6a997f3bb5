package query

import (
	"errors"
	"fmt"
)

// Policy rejections surfaced to the caller as distinct, user-actionable
// conditions. Handlers map them to HTTP statuses; they are never retried
// internally.
var (
	// ErrNoRelevantDocuments: the vector index returned no candidates.
	ErrNoRelevantDocuments = errors.New("no relevant documents found")

	// ErrNoUserDocuments: candidates existed but none survived the
	// ownership filter, which usually means the caller has no indexed
	// content at all.
	ErrNoUserDocuments = errors.New("no documents found for your account; please upload a medical document first")

	// ErrChatAccessDenied: the supplied chat id belongs to another user.
	ErrChatAccessDenied = errors.New("access to this chat is denied")
)

// ProcessingError reports that a document is still being indexed and the
// query should be retried shortly.
type ProcessingError struct {
	DocumentName string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("please wait - %q is still being processed; this usually takes 20-30 seconds, try again in a moment", e.DocumentName)
}
