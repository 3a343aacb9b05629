package bolt

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pilab-dev/helpline/cache"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

var (
	dataBucket = []byte("kv")
	metaBucket = []byte("kv_meta")
)

// storedItemMetadata holds the expiration time of a key.
type storedItemMetadata struct {
	ExpiresAtUnixNano int64
}

// record is the gob-encoded value of a key.
type record struct {
	IsHash bool
	Value  string
	Fields map[string]string
}

// Store implements cache.Store on an embedded bbolt database. Every
// operation runs in a single bbolt transaction, so SetNX and Incr are atomic
// for the process holding the file lock.
type Store struct {
	db              *bbolt.DB
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// NewStore opens (or creates) the database at dbPath. When cleanupInterval
// is positive a goroutine removes expired keys periodically.
func NewStore(dbPath string, cleanupInterval time.Duration) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(dataBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	s := &Store{
		db:              db,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.runCleanupLoop(s.stopCleanup)
	}

	log.Info().Str("path", dbPath).Msg("bbolt store opened")
	return s, nil
}

// load reads a live record. Expired records are reported as absent.
func load(tx *bbolt.Tx, key string) (*record, *storedItemMetadata, error) {
	metaBytes := tx.Bucket(metaBucket).Get([]byte(key))
	valBytes := tx.Bucket(dataBucket).Get([]byte(key))
	if valBytes == nil {
		return nil, nil, nil
	}

	meta := &storedItemMetadata{}
	if metaBytes != nil {
		if err := gob.NewDecoder(bytes.NewReader(metaBytes)).Decode(meta); err != nil {
			return nil, nil, fmt.Errorf("failed to decode metadata for key %s: %w", key, err)
		}
		if meta.ExpiresAtUnixNano != 0 && time.Now().UnixNano() > meta.ExpiresAtUnixNano {
			return nil, nil, nil
		}
	}

	rec := &record{}
	if err := gob.NewDecoder(bytes.NewReader(valBytes)).Decode(rec); err != nil {
		return nil, nil, fmt.Errorf("failed to decode value for key %s: %w", key, err)
	}
	return rec, meta, nil
}

// save writes a record. A nil meta keeps the key without expiry.
func save(tx *bbolt.Tx, key string, rec *record, meta *storedItemMetadata) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("failed to encode value for key %s: %w", key, err)
	}
	if err := tx.Bucket(dataBucket).Put([]byte(key), buf.Bytes()); err != nil {
		return err
	}

	if meta == nil {
		meta = &storedItemMetadata{}
	}
	var metaBuf bytes.Buffer
	if err := gob.NewEncoder(&metaBuf).Encode(meta); err != nil {
		return fmt.Errorf("failed to encode metadata for key %s: %w", key, err)
	}
	return tx.Bucket(metaBucket).Put([]byte(key), metaBuf.Bytes())
}

func remove(tx *bbolt.Tx, key string) error {
	if err := tx.Bucket(dataBucket).Delete([]byte(key)); err != nil {
		return err
	}
	return tx.Bucket(metaBucket).Delete([]byte(key))
}

func expiry(ttl time.Duration) *storedItemMetadata {
	if ttl <= 0 {
		return nil
	}
	return &storedItemMetadata{ExpiresAtUnixNano: time.Now().Add(ttl).UnixNano()}
}

// HGetAll implements cache.Store.HGetAll.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		rec, _, err := load(tx, key)
		if err != nil || rec == nil {
			return err
		}
		if !rec.IsHash {
			return cache.ErrWrongType
		}
		for k, v := range rec.Fields {
			out[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HSet implements cache.Store.HSet.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		rec, meta, err := load(tx, key)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = &record{IsHash: true, Fields: make(map[string]string, len(fields))}
		} else if !rec.IsHash {
			return cache.ErrWrongType
		}
		for k, v := range fields {
			rec.Fields[k] = v
		}
		return save(tx, key, rec, meta)
	})
}

// HDel implements cache.Store.HDel.
func (s *Store) HDel(_ context.Context, key string, fields ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		rec, meta, err := load(tx, key)
		if err != nil || rec == nil {
			return err
		}
		if !rec.IsHash {
			return cache.ErrWrongType
		}
		for _, f := range fields {
			delete(rec.Fields, f)
		}
		if len(rec.Fields) == 0 {
			return remove(tx, key)
		}
		return save(tx, key, rec, meta)
	})
}

// Get implements cache.Store.Get.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		rec, _, err := load(tx, key)
		if err != nil || rec == nil {
			return err
		}
		if rec.IsHash {
			return cache.ErrWrongType
		}
		value, found = rec.Value, true
		return nil
	})
	return value, found, err
}

// Set implements cache.Store.Set.
func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return save(tx, key, &record{Value: value}, expiry(ttl))
	})
}

// SetNX implements cache.Store.SetNX.
func (s *Store) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	var stored bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		rec, _, err := load(tx, key)
		if err != nil {
			return err
		}
		if rec != nil {
			return nil
		}
		stored = true
		return save(tx, key, &record{Value: value}, expiry(ttl))
	})
	if err != nil {
		return false, err
	}
	return stored, nil
}

// Incr implements cache.Store.Incr.
func (s *Store) Incr(_ context.Context, key string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		rec, meta, err := load(tx, key)
		if err != nil {
			return err
		}
		if rec != nil {
			if rec.IsHash {
				return cache.ErrWrongType
			}
			n, err = strconv.ParseInt(rec.Value, 10, 64)
			if err != nil {
				return cache.ErrWrongType
			}
		}
		n++
		return save(tx, key, &record{Value: strconv.FormatInt(n, 10)}, meta)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Del implements cache.Store.Del.
func (s *Store) Del(_ context.Context, keys ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, k := range keys {
			if err := remove(tx, k); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", k, err)
			}
		}
		return nil
	})
}

// DeleteExpired removes every expired key and reports how many went.
func (s *Store) DeleteExpired() (int, error) {
	var keysToDelete []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(metaBucket).Cursor()
		nowNano := time.Now().UnixNano()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var meta storedItemMetadata
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&meta); err != nil {
				log.Warn().Err(err).Str("key", string(k)).Msg("skipping undecodable metadata during cleanup")
				continue
			}
			if meta.ExpiresAtUnixNano != 0 && nowNano > meta.ExpiresAtUnixNano {
				keysToDelete = append(keysToDelete, string(k))
			}
		}
		return nil
	})
	if err != nil || len(keysToDelete) == 0 {
		return 0, err
	}

	deleted := 0
	err = s.db.Update(func(tx *bbolt.Tx) error {
		for _, key := range keysToDelete {
			// Re-check: the key may have been rewritten since the scan.
			rec, _, err := load(tx, key)
			if err != nil {
				return err
			}
			if rec != nil {
				continue
			}
			if err := remove(tx, key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *Store) runCleanupLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.DeleteExpired()
			if err != nil {
				log.Error().Err(err).Msg("bbolt cleanup failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("deleted", n).Msg("expired keys removed")
			}
		case <-stop:
			return
		}
	}
}

// Close stops the cleanup goroutine and closes the database.
func (s *Store) Close() error {
	close(s.stopCleanup)
	return s.db.Close()
}

var _ cache.Store = (*Store)(nil)
