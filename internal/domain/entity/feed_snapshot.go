// internal/domain/entity/feed_snapshot.go
package entity

import (
	"time"
)

// FeedSnapshot is the raw upstream payload archived per successful fetch,
// kept for replay and parser debugging. Stored in MongoDB; archival is
// best-effort and never fails a scrape run.
type FeedSnapshot struct {
	ID         string    `bson:"_id,omitempty"`
	RunID      string    `bson:"runId"`
	RunLabel   string    `bson:"runLabel"`
	FlightDate string    `bson:"flightDate"`
	Body       []byte    `bson:"body"`
	ByteSize   int       `bson:"byteSize"`
	FetchedAt  time.Time `bson:"fetchedAt"`
}
