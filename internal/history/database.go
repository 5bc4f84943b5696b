package history

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "scans"

// DB defines the interface for database operations
type DB interface {
	// SaveScan saves an entry to the database
	SaveScan(entry *Scan) error

	// GetScan retrieves an entry by ID
	GetScan(id string) (*Scan, error)

	// ListScans returns all entries, newest first
	ListScans() ([]*Scan, error)

	// DeleteScan removes an entry from the database
	DeleteScan(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveScan saves an entry to the database
func (b *BoltDB) SaveScan(entry *Scan) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling entry: %w", err)
		}
		return bucket.Put([]byte(entry.ID), data)
	})
}

// GetScan retrieves an entry by ID
func (b *BoltDB) GetScan(id string) (*Scan, error) {
	var entry *Scan
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("entry not found: %s", id)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListScans returns all entries, newest first
func (b *BoltDB) ListScans() ([]*Scan, error) {
	entries := make([]*Scan, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var entry Scan
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling entry: %w", err)
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b *Scan) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return entries, nil
}

// DeleteScan removes an entry from the database
func (b *BoltDB) DeleteScan(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
