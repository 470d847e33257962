package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const insightBucket = "insights"

// BoltCache stores insights in a single BoltDB bucket keyed by receipt ID
type BoltCache struct {
	db *bbolt.DB
}

// NewBoltCache opens (or creates) the database file
func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(insightBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltCache{db: db}, nil
}

// Get retrieves a result by receipt ID
func (b *BoltCache) Get(_ context.Context, id string) (*Result, bool, error) {
	var (
		result *Result
		found  bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(insightBucket)).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		r, err := decodeResult(data)
		if err != nil {
			return fmt.Errorf("decoding insight %s: %w", id, err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, found, nil
}

// Put saves a result, overwriting any previous value
func (b *BoltCache) Put(_ context.Context, id string, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling insight: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(insightBucket)).Put([]byte(id), data)
	})
}

// Delete removes a result; bbolt treats missing keys as a no-op
func (b *BoltCache) Delete(_ context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(insightBucket)).Delete([]byte(id))
	})
}

// All returns every decodable result
func (b *BoltCache) All(_ context.Context) ([]*Result, error) {
	results := make([]*Result, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(insightBucket)).ForEach(func(k, v []byte) error {
			r, err := decodeResult(v)
			if err != nil {
				slog.Warn("Skipping unreadable insight", "id", string(k), "error", err)
				return nil
			}
			results = append(results, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Keys returns all receipt IDs in the bucket
func (b *BoltCache) Keys(_ context.Context) ([]string, error) {
	keys := make([]string, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(insightBucket)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Close closes the database
func (b *BoltCache) Close() error {
	return b.db.Close()
}
