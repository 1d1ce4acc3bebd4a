package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/gallery/internal/store"
)

// errRevisionMismatch aborts a watched transaction without touching the key.
var errRevisionMismatch = errors.New("revision mismatch")

// Store keeps blobs as Redis hashes (data, content type, revision).
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Get retrieves a blob from Redis by name
func (s *Store) Get(ctx context.Context, name string) (*store.Object, error) {
	vals, err := s.client.HGetAll(ctx, BlobKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}

	data := []byte(vals[fieldData])
	rev := vals[fieldRevision]
	if rev == "" {
		rev = store.RevisionOf(data)
	}
	return &store.Object{
		Name:        name,
		Data:        data,
		ContentType: vals[fieldType],
		Revision:    rev,
	}, nil
}

// Put stores a blob in Redis
func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if err := store.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}

	if err := s.client.HSet(ctx, BlobKey(name), blobFields(data, contentType)...).Err(); err != nil {
		return fmt.Errorf("failed to save blob: %w", err)
	}
	return nil
}

// CompareAndSwap stores a blob if its revision is still the expected one.
// The key is WATCHed: a concurrent writer makes the transaction fail, which
// is reported as a conflict like a plain revision mismatch.
func (s *Store) CompareAndSwap(ctx context.Context, name, expected string, data []byte, contentType string) error {
	if err := store.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}

	key := BlobKey(name)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldRevision).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != expected {
			return errRevisionMismatch
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, blobFields(data, contentType)...)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errRevisionMismatch), errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: %s", store.ErrConflict, name)
	default:
		return fmt.Errorf("failed to swap blob: %w", err)
	}
}

// List returns the names of all blobs
func (s *Store) List(ctx context.Context) ([]string, error) {
	names := make([]string, 0, 16)
	iter := s.client.Scan(ctx, 0, KeyPrefixBlob+"*", 0).Iterator()
	for iter.Next(ctx) {
		name, err := ExtractBlobName(iter.Val())
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

func blobFields(data []byte, contentType string) []interface{} {
	if contentType == "" {
		contentType = store.ContentTypeDefault
	}
	return []interface{}{
		fieldData, data,
		fieldType, contentType,
		fieldRevision, store.RevisionOf(data),
	}
}
