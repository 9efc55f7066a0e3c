package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/domain"
)

// Store wraps BoltDB to provide the origin-local key-value cache every
// content domain reads from and writes through. A single key holds one
// domain's full collection as a JSON array; replacing that value is atomic
// from the caller's point of view.
type Store struct {
	db     *bolt.DB
	bucket []byte
	logger *zap.Logger
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	bucket := []byte("cache")
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		bucket: bucket,
		logger: logger,
	}, nil
}

// ReadCollection returns the parsed collection stored under key. A missing
// key or unparsable value reads as an empty collection; corruption is logged,
// never propagated.
func (s *Store) ReadCollection(key string) []domain.Entity {
	if s == nil || s.db == nil {
		return nil
	}

	var raw []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(s.bucket).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if len(raw) == 0 {
		return nil
	}

	var items []domain.Entity
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn("corrupt cached collection, treating as empty",
			zap.String("key", key),
			zap.Error(err))
		return nil
	}
	return items
}

// WriteCollection serializes and stores the full collection, replacing any
// prior value. Failures surface as a persist error the caller must treat as
// fatal for the current operation.
func (s *Store) WriteCollection(key string, items []domain.Entity) error {
	if s == nil || s.db == nil {
		return domain.WrapError(domain.ErrCodeInternal, "cache not open", bolt.ErrDatabaseNotOpen)
	}
	if items == nil {
		items = []domain.Entity{}
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "local persist failed", err)
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), payload)
	}); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "local persist failed", err)
	}
	return nil
}

// TouchTrigger writes a fresh timestamp under the trigger key. Its sole
// purpose is producing an observable mutation distinct from collection keys,
// so pollers know to re-fetch full state.
func (s *Store) TouchTrigger(key string) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), []byte(stamp))
	})
}

// ReadTrigger returns the stored trigger timestamp, zero when absent.
func (s *Store) ReadTrigger(key string) int64 {
	if s == nil || s.db == nil {
		return 0
	}
	var stamp int64
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(s.bucket).Get([]byte(key)); v != nil {
			stamp, _ = strconv.ParseInt(string(v), 10, 64)
		}
		return nil
	})
	return stamp
}

// ReadAspect returns the raw blob stored under an auxiliary key such as
// "{domain}-settings".
func (s *Store) ReadAspect(key string) ([]byte, bool) {
	if s == nil || s.db == nil {
		return nil, false
	}
	var raw []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(s.bucket).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	return raw, raw != nil
}

// WriteAspect stores a raw blob under an auxiliary key.
func (s *Store) WriteAspect(key string, blob []byte) error {
	if s == nil || s.db == nil {
		return domain.WrapError(domain.ErrCodeInternal, "cache not open", bolt.ErrDatabaseNotOpen)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), blob)
	}); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "local persist failed", err)
	}
	return nil
}

// WriteRaw stores an arbitrary value under key without JSON handling. Tests
// use it to simulate corruption; production code should prefer the typed
// writers.
func (s *Store) WriteRaw(key string, value []byte) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), value)
	})
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *Store) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}
