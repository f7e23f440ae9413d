// Package ulidgen generates sortable, monotonic ULIDs used to correlate a
// single recording session's start/stop log lines; the id is also exposed
// on the stream's status snapshot.
package ulidgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a new ULID string seeded from the current time.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
