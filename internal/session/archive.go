package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultArchivePath is relative to the working directory.
	DefaultArchivePath = "History/turns.bolt"
	turnsBucket        = "turns"
)

// TurnRecord is one completed exchange.
type TurnRecord struct {
	ID        string    `json:"id"`
	Character string    `json:"character"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	At        time.Time `json:"at"`
}

// Archive is an append-only log of completed turns backed by bbolt. Keys
// sort chronologically so the newest turn is last in the bucket.
type Archive struct {
	db *bolt.DB
}

// OpenArchive opens (creating when needed) the archive at path.
func OpenArchive(path string) (*Archive, error) {
	if path == "" {
		path = DefaultArchivePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(turnsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// Record appends rec.
func (a *Archive) Record(rec TurnRecord) error {
	enc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	key := rec.At.UTC().Format("20060102T150405.000000000Z") + "/" + rec.ID
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(turnsBucket)).Put([]byte(key), enc)
	})
}

// Recent returns up to n records, newest first. n <= 0 returns all.
func (a *Archive) Recent(n int) ([]TurnRecord, error) {
	var out []TurnRecord
	err := a.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(turnsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if n > 0 && len(out) >= n {
				break
			}
			var rec TurnRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				// Skip malformed entries instead of failing the whole listing.
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return out, nil
}

// Close releases the database file lock.
func (a *Archive) Close() error {
	return a.db.Close()
}
