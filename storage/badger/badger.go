// Package badger implements the storage interface on BadgerDB
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ringward/ringward"
	"github.com/ringward/ringward/storage"
)

// Store implements storage.Storage using BadgerDB
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a Badger-backed store at the given path
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable default logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &Store{db: db}, nil
}

// Key schema: schedule/<id>, state/<id>, and a single active pointer key
func scheduleKey(id string) []byte {
	return []byte(fmt.Sprintf("schedule/%s", id))
}

func stateKey(id string) []byte {
	return []byte(fmt.Sprintf("state/%s", id))
}

var activeKey = []byte("active")

// Schedule operations

func (s *Store) SaveSchedule(ctx context.Context, sched *ringward.Schedule) error {
	return s.db.Update(func(txn *badger.Txn) error {
		sched.UpdatedAt = time.Now()
		data, err := json.Marshal(sched)
		if err != nil {
			return fmt.Errorf("failed to marshal schedule: %w", err)
		}
		return txn.Set(scheduleKey(sched.ID), data)
	})
}

func (s *Store) LoadSchedule(ctx context.Context, scheduleID string) (*ringward.Schedule, error) {
	var sched ringward.Schedule

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(scheduleKey(scheduleID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sched)
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("schedule %s: %w", scheduleID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &sched, nil
}

func (s *Store) DeleteSchedule(ctx context.Context, scheduleID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(scheduleKey(scheduleID))
	})
}

func (s *Store) ListSchedules(ctx context.Context) ([]*ringward.Schedule, error) {
	var schedules []*ringward.Schedule

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("schedule/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var sched ringward.Schedule
				if err := json.Unmarshal(val, &sched); err != nil {
					return err
				}
				schedules = append(schedules, &sched)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return schedules, err
}

// Runtime state operations

func (s *Store) SaveRuntimeState(ctx context.Context, st *ringward.RuntimeState) error {
	return s.db.Update(func(txn *badger.Txn) error {
		st.UpdatedAt = time.Now()
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to marshal runtime state: %w", err)
		}
		return txn.Set(stateKey(st.ScheduleID), data)
	})
}

func (s *Store) LoadRuntimeState(ctx context.Context, scheduleID string) (*ringward.RuntimeState, error) {
	var st ringward.RuntimeState

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(scheduleID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("runtime state %s: %w", scheduleID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &st, nil
}

func (s *Store) DeleteRuntimeState(ctx context.Context, scheduleID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(stateKey(scheduleID))
	})
}

// Active-schedule pointer

func (s *Store) ActiveScheduleID(ctx context.Context) (string, error) {
	var active string

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(activeKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			active = string(val)
			return nil
		})
	})

	return active, err
}

// SwapActiveSchedule installs the new active schedule and returns the
// previous holder, all inside one transaction
func (s *Store) SwapActiveSchedule(ctx context.Context, scheduleID string) (string, error) {
	var previous string

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(activeKey)
		if err == nil {
			err = item.Value(func(val []byte) error {
				previous = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		return txn.Set(activeKey, []byte(scheduleID))
	})

	if err != nil {
		return "", err
	}
	if previous == scheduleID {
		previous = ""
	}
	return previous, nil
}

// ClearActiveSchedule clears the pointer only if the given schedule holds it
func (s *Store) ClearActiveSchedule(ctx context.Context, scheduleID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(activeKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		var current string
		err = item.Value(func(val []byte) error {
			current = string(val)
			return nil
		})
		if err != nil {
			return err
		}

		if current != scheduleID {
			return nil
		}
		return txn.Delete(activeKey)
	})
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
