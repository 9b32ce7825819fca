package notifier

import "time"

// Config controls the notification pipeline.
type Config struct {
	Enabled     bool
	RatePerSec  float64
	Burst       int
	QueueSize   int
	DedupWindow time.Duration
}

// Notification is one desktop banner. Key identifies it for dedup; an
// empty key falls back to title and message.
type Notification struct {
	Title   string
	Message string
	Key     string
}

type HistoryItem struct {
	At    time.Time
	Title string
	Text  string
	Error string
}
