package domain

import "context"

// Retriever is the external retrieval capability: given a query and a count,
// return the k nearest passages ordered by similarity. A k larger than the
// corpus size returns fewer results, never an error. Implementations must be
// idempotent for an unchanged index and safe for concurrent use across runs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}
