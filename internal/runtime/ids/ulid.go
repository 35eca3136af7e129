package ids

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

// CreateULID returns a new monotonic ULID. IDs created by one process sort in
// creation order, which keeps message and correlation IDs time-ordered.
func CreateULID() string {
	return NewAt(time.Now()).String()
}

// NewAt creates a ULID stamped with t.
func NewAt(t time.Time) ulid.ULID {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy)
}

// Timestamp extracts the creation time encoded in id.
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
