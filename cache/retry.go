package cache

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryStore retries calls to a store that fail with ErrUnavailable.
// Other errors, including ErrNotFound, are returned immediately.
//
// The response cache itself never retries; wrap the store in a RetryStore to opt in.
type RetryStore struct {
	Store
	retries    uint64
	newBackOff func() backoff.BackOff
}

// NewRetryStore wraps store so that each call is attempted up to retries+1 times
// with exponential backoff, starting at initialInterval.
func NewRetryStore(store Store, retries uint64, initialInterval time.Duration) *RetryStore {
	return &RetryStore{
		Store:   store,
		retries: retries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			if initialInterval > 0 {
				b.InitialInterval = initialInterval
			}
			return b
		},
	}
}

func (s *RetryStore) Has(ctx context.Context, key string) (bool, error) {
	return retry(ctx, s, func() (bool, error) {
		return s.Store.Has(ctx, key)
	})
}

func (s *RetryStore) Get(ctx context.Context, key string) (Entry, error) {
	return retry(ctx, s, func() (Entry, error) {
		return s.Store.Get(ctx, key)
	})
}

func (s *RetryStore) Put(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	_, err := retry(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.Store.Put(ctx, key, entry, ttl)
	})
	return err
}

func (s *RetryStore) Flush(ctx context.Context) error {
	_, err := retry(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.Store.Flush(ctx)
	})
	return err
}

func retry[T any](ctx context.Context, s *RetryStore, op func() (T, error)) (T, error) {
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.retries), ctx)
	return backoff.RetryWithData(func() (T, error) {
		val, err := op()
		if err != nil && !errors.Is(err, ErrUnavailable) {
			return val, backoff.Permanent(err)
		}
		return val, err
	}, b)
}

var _ Store = (*RetryStore)(nil)
