package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	bolt "go.etcd.io/bbolt"
)

// ErrStoreLocked is returned by NewBoltDB when another process holds the store file.
var ErrStoreLocked = errors.New("store is in use by another studybuddy process")

const storeLockTimeout = time.Second

var (
	localStorageBucket = []byte("localStorage")
	uploadsBucket      = []byte("uploads")
)

// BoltDB is the bbolt-backed local store. On the client side it plays the role of browser-local storage
// and holds the session identifier. On the relay side it keeps per-session conversations for LLM
// upstreams and the index of uploaded files.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist. If the file stays locked by
// another process for longer than a second, the returned error wraps ErrStoreLocked.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: storeLockTimeout})
	if errors.Is(err, bolt.ErrTimeout) {
		return BoltDB{}, fmt.Errorf("failed to open bolt db %s: %w", path, ErrStoreLocked)
	}
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{localStorageBucket, uploadsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file lock.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func conversationBucketName(sessionID string) []byte {
	return []byte(fmt.Sprintf("chat-%s", sessionID))
}

// Identity returns the value stored under key in the local storage bucket.
func (b BoltDB) Identity(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(localStorageBucket)
		if bk == nil {
			return nil
		}
		v := bk.Get([]byte(key))
		if v == nil {
			return nil
		}
		value, found = string(v), true
		return nil
	})
	return value, found, err
}

// SetIdentity stores value under key in the local storage bucket, replacing any previous value.
func (b BoltDB) SetIdentity(_ context.Context, key, value string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(localStorageBucket)
		if err != nil {
			return err
		}
		return bk.Put([]byte(key), []byte(value))
	})
}

// DeleteIdentity removes key from the local storage bucket. Deleting a missing key is not an error.
func (b BoltDB) DeleteIdentity(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(localStorageBucket)
		if bk == nil {
			return nil
		}
		return bk.Delete([]byte(key))
	})
}

// Turns retrieves the conversation recorded for sessionID in the order it was stored.
func (b BoltDB) Turns(_ context.Context, sessionID string) ([]models.Turn, error) {
	var turns []models.Turn
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(conversationBucketName(sessionID))
		if bk == nil {
			return nil
		}

		return bk.ForEach(func(_, v []byte) error {
			var turn models.Turn
			if err := json.Unmarshal(v, &turn); err != nil {
				return fmt.Errorf("failed to unmarshal turn: %w", err)
			}
			turns = append(turns, turn)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// AddTurn appends a turn to the conversation of sessionID, creating the conversation on first use. The
// stored ID is prefixed with a zero-padded sequence number so that key order matches append order.
func (b BoltDB) AddTurn(_ context.Context, sessionID string, turn models.Turn) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(conversationBucketName(sessionID))
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		seq, err := bk.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%020d-%s", seq, turn.ID)
		turn.ID = newID

		v, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}

		return bk.Put([]byte(newID), v)
	})

	return newID, err
}

// AddUpload records an uploaded file in the upload index.
func (b BoltDB) AddUpload(_ context.Context, upload models.Upload) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(uploadsBucket)
		if err != nil {
			return err
		}

		seq, err := bk.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}

		v, err := json.Marshal(upload)
		if err != nil {
			return fmt.Errorf("failed to marshal upload: %w", err)
		}

		return bk.Put([]byte(fmt.Sprintf("%020d", seq)), v)
	})
}

// Uploads retrieves all recorded uploads, newest first.
func (b BoltDB) Uploads(context.Context) ([]models.Upload, error) {
	var uploads []models.Upload
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(uploadsBucket)
		if bk == nil {
			return nil
		}

		return bk.ForEach(func(_, v []byte) error {
			var upload models.Upload
			if err := json.Unmarshal(v, &upload); err != nil {
				return fmt.Errorf("failed to unmarshal upload: %w", err)
			}
			uploads = append(uploads, upload)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(uploads)
	return uploads, nil
}
