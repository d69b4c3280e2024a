package snapshot

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"minichain/blockchain"
	"minichain/jsonx"
	"minichain/logx"
)

var (
	bucketChain = []byte("chain")
	keyLatest   = []byte("latest")
)

// ErrNoSnapshot is returned by Load when nothing was saved yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

// Store keeps the most recent chain in a bbolt file. It is a convenience for
// restarts, not a durability guarantee: callers offer what Load returns to the
// ledger, which validates it like any peer chain.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketChain)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshot bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Save overwrites the stored chain.
func (s *Store) Save(chain blockchain.Chain) error {
	data, err := jsonx.Marshal(chain)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChain).Put(keyLatest, data)
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logx.Debug("SNAPSHOT", fmt.Sprintf("Saved chain of %d blocks (%d bytes)", len(chain), len(data)))
	return nil
}

// Load returns the stored chain, or ErrNoSnapshot.
func (s *Store) Load() (blockchain.Chain, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketChain).Get(keyLatest)
		if v == nil {
			return ErrNoSnapshot
		}
		// v is only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var chain blockchain.Chain
	if err := jsonx.Unmarshal(data, &chain); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return chain, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
