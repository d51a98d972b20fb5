package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	boltFileMode    = 0o600
	boltOpenTimeout = 3 * time.Second
)

// BoltStore keeps one bucket per player in a bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the bbolt file at path.
func OpenBolt(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bolt store: create %s: %w", dir, err)
		}
	}

	db, err := bbolt.Open(path, boltFileMode, &bbolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("bolt store: open %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, player, key string) (string, bool, error) {
	if err := checkPlayer(player); err != nil {
		return "", false, err
	}

	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(player))
		if bucket == nil {
			return nil
		}
		if raw := bucket.Get([]byte(key)); raw != nil {
			value, found = string(raw), true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("bolt store: get %s: %w", key, err)
	}
	return value, found, nil
}

func (s *BoltStore) Set(_ context.Context, player, key, value string) error {
	if err := checkPlayer(player); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if value == "" {
			bucket := tx.Bucket([]byte(player))
			if bucket == nil {
				return nil
			}
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
			if isEmpty(bucket) {
				return tx.DeleteBucket([]byte(player))
			}
			return nil
		}

		bucket, err := tx.CreateBucketIfNotExists([]byte(player))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("bolt store: set %s: %w", key, err)
	}
	return nil
}

func isEmpty(bucket *bbolt.Bucket) bool {
	k, _ := bucket.Cursor().First()
	return k == nil
}

func (s *BoltStore) Players(_ context.Context) ([]string, error) {
	var players []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			players = append(players, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt store: list players: %w", err)
	}
	sort.Strings(players)
	return players, nil
}

func (s *BoltStore) Check(context.Context) error {
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
