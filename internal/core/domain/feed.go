package domain

// FeedEntry is one outgoing transaction reported by the bank gateway.
// It is fetched per poll and never persisted.
type FeedEntry struct {
	ID        string
	AmountOut int64 // Minor currency units
	Content   string
}

// FeedBatch is the result of one feed fetch.
// Configured is false when gateway credentials are missing; callers treat
// that as "no match", not as a failure.
type FeedBatch struct {
	Entries    []FeedEntry
	Configured bool
}
