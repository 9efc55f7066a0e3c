package pending

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Queue wraps BoltDB to persist remote operations while the remote store is
// unavailable. Keys order items oldest-first so drains replay writes in the
// order they happened locally.
type Queue struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	bucket := []byte("pending")
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Queue{
		db:     db,
		bucket: bucket,
	}, nil
}

// Enqueue stores a pending item under a time-ordered key.
func (q *Queue) Enqueue(item Item) error {
	if q == nil || q.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.normalize()
	item.bucketKey = []byte(buildKey(item))

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}

	return q.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(q.bucket).Put(item.bucketKey, payload)
	})
}

// GetBatch returns up to limit items without removing them, optionally
// filtered to one domain (empty string matches all).
func (q *Queue) GetBatch(domain string, limit int) ([]Item, error) {
	if q == nil || q.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := q.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(q.bucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if domain != "" && item.Domain != domain {
				continue
			}
			item.bucketKey = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes the provided item from the queue.
func (q *Queue) Remove(item Item) error {
	if q == nil || q.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if len(item.bucketKey) == 0 {
		return q.deleteByID(item.ID)
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(q.bucket).Delete(item.bucketKey)
	})
}

// Requeue re-inserts an item after bumping its timestamp.
func (q *Queue) Requeue(item Item) error {
	item.bucketKey = nil
	item.Timestamp = time.Now()
	return q.Enqueue(item)
}

// Size returns the number of pending items, optionally for one domain.
func (q *Queue) Size(domain string) (int, error) {
	if q == nil || q.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := q.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(q.bucket)
		if domain == "" {
			count = b.Stats().KeyN
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if item.Domain == domain {
				count++
			}
		}
		return nil
	})
	return count, err
}

// Cleanup removes items older than the provided timestamp.
func (q *Queue) Cleanup(olderThan time.Time) error {
	if q == nil || q.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(q.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if item.Timestamp.Before(olderThan) {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Close closes the Bolt database.
func (q *Queue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

func (q *Queue) deleteByID(id string) error {
	if id == "" {
		return nil
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(q.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if item.ID == id {
				return c.Delete()
			}
		}
		return nil
	})
}

func buildKey(item Item) string {
	return fmt.Sprintf("%020d_%s", item.Timestamp.UnixNano(), item.ID)
}
