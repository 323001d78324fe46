package config

const (
	// MaxTitleLength matches the VARCHAR(150) title column of locales.
	MaxTitleLength = 150

	// MaxSummaryLength is the maximum length of a locale summary.
	MaxSummaryLength = 2000

	// MaxDescriptionLength bounds free text so a single locale row stays
	// well under the 10MB request body limit.
	MaxDescriptionLength = 100_000

	// MaxCommentLength is the maximum length of a version comment.
	MaxCommentLength = 200

	// MaxSyncIDs is the maximum number of ids one sync batch request may ask for.
	MaxSyncIDs = 1000

	// DefaultSyncBatchSize is the window size used when hydrating sync batches.
	DefaultSyncBatchSize = 100

	// DefaultSyncConcurrency bounds concurrent window loads.
	DefaultSyncConcurrency = 4

	// DefaultTypeCacheSize is the number of document types kept in memory.
	DefaultTypeCacheSize = 10_000
)
