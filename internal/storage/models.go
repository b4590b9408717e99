package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// FeedEntry is one cached feed fetch result. Payload is the serialized feed
// JSON; staleness is judged by the caller against FetchedAt.
type FeedEntry struct {
	URL       string
	Payload   string
	FetchedAt time.Time
}
