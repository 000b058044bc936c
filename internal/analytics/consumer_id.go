// Package analytics provides payment event capture and revenue aggregation.
package analytics

import (
	"fmt"
	"os"

	"github.com/oklog/ulid/v2"
)

// NewConsumerID names this process within the Redis consumer group. The
// hostname keeps the member identifiable in XINFO output; the ULID keeps
// restarts from colliding with a dead member's pending entries.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, ulid.Make().String())
}
