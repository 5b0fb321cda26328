package cache

import (
	"context"
	"errors"
	"net/http"
	"time"

	serializer "github.com/always-cache/response-cache/pkg/response-serializer"
)

// Sentinel errors returned by stores. Backends wrap them, use errors.Is.
var (
	// ErrNotFound means the key is absent or expired. It is a miss, not a failure.
	ErrNotFound = errors.New("cache: entry not found")
	// ErrUnavailable means the backing medium could not be reached.
	ErrUnavailable = errors.New("cache: store unavailable")
)

// Entry is a stored response.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Store persists entries under string keys.
//
// Implementations must be thread-safe! Every call must be atomic on its own;
// no ordering between calls is required.
type Store interface {
	// Has reports whether a live entry exists for the key.
	Has(ctx context.Context, key string) (bool, error)
	// Get returns the entry for the key, or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)
	// Put stores the entry, overwriting any previous one, for the given ttl.
	Put(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	// Flush removes all entries.
	Flush(ctx context.Context) error
}

// MarshalBinary encodes the entry for byte-oriented backends.
func (e Entry) MarshalBinary() ([]byte, error) {
	return serializer.StoredResponseToBytes(serializer.TimedResponse{
		StatusCode: e.Status,
		Header:     e.Header,
		Body:       e.Body,
		StoredAt:   e.StoredAt,
	})
}

// UnmarshalBinary decodes bytes created by MarshalBinary.
func (e *Entry) UnmarshalBinary(b []byte) error {
	sRes, err := serializer.BytesToStoredResponse(b)
	if err != nil {
		return err
	}
	*e = Entry{
		Status:   sRes.StatusCode,
		Header:   sRes.Header,
		Body:     sRes.Body,
		StoredAt: sRes.StoredAt,
	}
	return nil
}
