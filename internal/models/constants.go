package models

const (
	DefaultCurrency = "USD"

	// WorkerQueueSize is the local buffer of the sheets sync worker.
	WorkerQueueSize = 1000

	// SheetsCacheTTL is how long a booking-id to row mapping is trusted, in seconds.
	SheetsCacheTTL = 60 * 60
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)
