package classifier

import "context"

// Classifier maps free text plus conversation history to an intent, extracted
// entities, and a confidence score. Implementations must fail with a distinct
// error when the underlying call errors, never return a fabricated
// low-confidence guess.
type Classifier interface {
	Classify(ctx context.Context, text string, history []Turn) (*Classification, error)
}
