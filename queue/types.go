package queue

import "time"

// Message is one received delivery. The receipt handle is required to delete
// this specific delivery from the queue.
type Message struct {
	MessageID     string
	Body          string
	ReceiptHandle string
	ReceiveCount  int
	ReceivedAt    time.Time
}

type Config struct {
	// Region overrides AWS_REGION / the library default region.
	Region string
	// URL skips queue URL resolution, mainly for queues in other accounts.
	URL string
}

type ReceiveOptions struct {
	// WaitTimeSeconds long-polls the queue for up to this many seconds.
	WaitTimeSeconds int
	// MaxMessages caps how many messages one call returns (1..10).
	MaxMessages int
}
