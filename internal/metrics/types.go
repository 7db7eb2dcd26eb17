package metrics

import "time"

// RecentPublish is one successful publish shown on the dashboard.
type RecentPublish struct {
	JobID        string    `json:"job_id"`
	BundleID     string    `json:"bundle_id"`
	Platform     string    `json:"platform"`
	PublishedURL string    `json:"published_url,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
}

// Stats is the aggregated outcome view across platforms.
type Stats struct {
	TotalSucceeded int64           `json:"total_succeeded"`
	TotalFailed    int64           `json:"total_failed"`
	Platforms      []PlatformStats `json:"platforms"`
}

// PlatformStats holds outcome counters for one platform.
type PlatformStats struct {
	Name      string `json:"name"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}
