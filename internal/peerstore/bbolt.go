package peerstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/MlkMahmud/peerwire/torrent"
)

const (
	peersBucket    = "peers"
	metadataBucket = "metadata"
	schemaVersion  = 1
)

var (
	// ErrNotFound is returned when no peers were saved for an info hash.
	ErrNotFound = errors.New("no cached peers for info hash")
)

type record struct {
	Peers     []torrent.Peer `json:"peers"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store caches tracker results per info hash so that a restart can reconnect
// without waiting for an announce.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the cache file at path, creating parent directories.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create peer cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open peer cache: %w", err)
	}

	store := &Store{db: db, now: time.Now}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) initialize() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(peersBucket)); err != nil {
			return fmt.Errorf("failed to create peers bucket: %w", err)
		}

		metadata, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return fmt.Errorf("failed to create metadata bucket: %w", err)
		}

		if err := metadata.Put([]byte("schema_version"), fmt.Appendf(nil, "%d", schemaVersion)); err != nil {
			return fmt.Errorf("failed to store schema version: %w", err)
		}

		return nil
	})
}

// Save replaces the cached peers for infoHash.
func (s *Store) Save(infoHash torrent.InfoHash, peers []torrent.Peer) error {
	data, err := json.Marshal(record{Peers: peers, UpdatedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal peers: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(peersBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", peersBucket)
		}

		if err := bucket.Put([]byte(infoHash.String()), data); err != nil {
			return fmt.Errorf("failed to save peers for %s: %w", infoHash, err)
		}

		return nil
	})
}

// Peers returns the cached peers for infoHash along with the time they were
// saved.
func (s *Store) Peers(infoHash torrent.InfoHash) ([]torrent.Peer, time.Time, error) {
	var data []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(peersBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", peersBucket)
		}

		value := bucket.Get([]byte(infoHash.String()))
		if value == nil {
			return ErrNotFound
		}

		// bbolt values are only valid for the lifetime of the transaction.
		data = append([]byte(nil), value...)
		return nil
	})

	if err != nil {
		return nil, time.Time{}, err
	}

	var cached record

	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to unmarshal peers for %s: %w", infoHash, err)
	}

	return cached.Peers, cached.UpdatedAt, nil
}

func (s *Store) Delete(infoHash torrent.InfoHash) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(peersBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", peersBucket)
		}

		if bucket.Get([]byte(infoHash.String())) == nil {
			return ErrNotFound
		}

		return bucket.Delete([]byte(infoHash.String()))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
