package domain

import "time"

// LedgerEntry records one external call/response pair. Entries are
// append-only and never edited; secrets must already be redacted from the
// summaries before an entry is constructed.
type LedgerEntry struct {
	JobID           string    `json:"job_id"`
	Sequence        int       `json:"sequence"`
	AttemptNumber   int       `json:"attempt_number"`
	RequestSummary  string    `json:"request_summary"`
	ResponseSummary string    `json:"response_summary"`
	Timestamp       time.Time `json:"timestamp"`
}
