/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/friendsincode/grimnir_channel/internal/models"
)

var bucketPlayed = []byte("played")

// BoltStore keeps one key per schedule in a bbolt bucket.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the bolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPlayed)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Load reads every schedule key.
func (s *BoltStore) Load(ctx context.Context) (State, error) {
	state := State{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlayed).ForEach(func(k, v []byte) error {
			var cats map[models.Category][]string
			if err := json.Unmarshal(v, &cats); err != nil {
				return fmt.Errorf("decode schedule %q: %w", k, err)
			}
			state[string(k)] = cats
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Save replaces the bucket contents in a single transaction.
func (s *BoltStore) Save(ctx context.Context, state State) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketPlayed) != nil {
			if err := tx.DeleteBucket(bucketPlayed); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketPlayed)
		if err != nil {
			return err
		}
		for schedule, cats := range state {
			data, err := json.Marshal(cats)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(schedule), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the bolt file.
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
