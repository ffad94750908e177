// Package bolt provides a bbolt-backed action queue so offline work
// survives process restarts. Keys are the actions' ULIDs, whose lexical
// order matches enqueue order, so a cursor walk is the FIFO order.
package bolt

import (
	"context"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

var (
	bucketPending = []byte("queue_pending")
	bucketFailed  = []byte("queue_failed")
)

// ActionQueueStore is the durable queue driver.
type ActionQueueStore struct {
	db *bbolt.DB
}

// NewActionQueueStore opens (or creates) the queue database at path.
func NewActionQueueStore(path string) (*ActionQueueStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, pkgerrors.NewUnavailable("open queue database", err)
	}

	store := &ActionQueueStore{db: db}
	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database file.
func (s *ActionQueueStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *ActionQueueStore) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPending); err != nil {
			return pkgerrors.NewInternal("create pending bucket", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketFailed); err != nil {
			return pkgerrors.NewInternal("create failed bucket", err)
		}
		return nil
	})
}

// Append adds an action to the tail.
func (s *ActionQueueStore) Append(ctx context.Context, action actions.Action) error {
	data, err := json.Marshal(action)
	if err != nil {
		return pkgerrors.NewInternal("marshal action", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).Put([]byte(action.ID), data)
	})
}

// Head returns the oldest pending action.
func (s *ActionQueueStore) Head(ctx context.Context) (*actions.Action, error) {
	var head *actions.Action
	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketPending).Cursor()
		key, value := cursor.First()
		if key == nil {
			return pkgerrors.NewNotFound("action queue is empty")
		}
		var action actions.Action
		if err := json.Unmarshal(value, &action); err != nil {
			return pkgerrors.NewInternal("unmarshal action", err)
		}
		head = &action
		return nil
	})
	if err != nil {
		return nil, err
	}
	return head, nil
}

// Update rewrites a queued action in place.
func (s *ActionQueueStore) Update(ctx context.Context, action actions.Action) error {
	data, err := json.Marshal(action)
	if err != nil {
		return pkgerrors.NewInternal("marshal action", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		if bucket.Get([]byte(action.ID)) == nil {
			return pkgerrors.NewNotFound("action " + action.ID + " not queued")
		}
		return bucket.Put([]byte(action.ID), data)
	})
}

// Remove deletes a queued action by ID. Unknown ids are a no-op.
func (s *ActionQueueStore) Remove(ctx context.Context, actionID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).Delete([]byte(actionID))
	})
}

// Park moves an action out of the pending queue into the failed set.
func (s *ActionQueueStore) Park(ctx context.Context, action actions.Action) error {
	data, err := json.Marshal(action)
	if err != nil {
		return pkgerrors.NewInternal("marshal action", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketPending).Delete([]byte(action.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketFailed).Put([]byte(action.ID), data)
	})
}

// Pending returns queued actions oldest first.
func (s *ActionQueueStore) Pending(ctx context.Context) ([]actions.Action, error) {
	return s.scan(bucketPending)
}

// Failed returns parked actions oldest first.
func (s *ActionQueueStore) Failed(ctx context.Context) ([]actions.Action, error) {
	return s.scan(bucketFailed)
}

// Depth returns the number of pending actions.
func (s *ActionQueueStore) Depth(ctx context.Context) (int, error) {
	var depth int
	err := s.db.View(func(tx *bbolt.Tx) error {
		depth = tx.Bucket(bucketPending).Stats().KeyN
		return nil
	})
	return depth, err
}

func (s *ActionQueueStore) scan(bucket []byte) ([]actions.Action, error) {
	var out []actions.Action
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(_, value []byte) error {
			var action actions.Action
			if err := json.Unmarshal(value, &action); err != nil {
				return pkgerrors.NewInternal("unmarshal action", err)
			}
			out = append(out, action)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
