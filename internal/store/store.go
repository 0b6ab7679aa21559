// Package store persists the engine's per-day firing state in BadgerDB so a
// restart does not ring a bell, start a minute of silence or run a power
// action a second time on the same day.
package store

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/sweeney/bell-scheduler/internal/logic"
	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// FiredTTL bounds how long fired keys are kept; only today's keys matter.
const FiredTTL = 48 * time.Hour

const (
	prefixFired   = "fired/"
	prefixTrigger = "trigger/"
	keySilence    = "silence/last"
)

// DayState is what the engine restores at startup.
type DayState struct {
	Fired         []logic.FiringKey
	SilenceFired  schedule.Date
	TriggersFired map[logic.TriggerKind]schedule.Date
}

// Store wraps a Badger database.
type Store struct {
	db *badger.DB
}

// Open opens or creates the database in dir. An empty dir opens an in-memory
// database.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	log.Printf("store: opened %q", dir)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close state store: %w", err)
	}
	return nil
}

func firedPrefix(date schedule.Date) []byte {
	return []byte(prefixFired + date.String() + "/")
}

// Load returns the persisted state relevant to date. Fired keys from other
// dates are not returned.
func (s *Store) Load(date schedule.Date) (DayState, error) {
	st := DayState{TriggersFired: make(map[logic.TriggerKind]schedule.Date)}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := firedPrefix(date)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			raw := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			k, err := logic.ParseFiringKey(raw)
			if err != nil {
				log.Printf("store: skipping bad key %q: %v", raw, err)
				continue
			}
			st.Fired = append(st.Fired, k)
		}

		d, err := getDate(txn, []byte(keySilence))
		if err != nil {
			return err
		}
		st.SilenceFired = d

		for _, kind := range []logic.TriggerKind{logic.TriggerShutdown, logic.TriggerHibernate} {
			d, err := getDate(txn, []byte(prefixTrigger+string(kind)))
			if err != nil {
				return err
			}
			if !d.IsZero() {
				st.TriggersFired[kind] = d
			}
		}
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("failed to load day state: %w", err)
	}
	return st, nil
}

func getDate(txn *badger.Txn, key []byte) (schedule.Date, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return schedule.Date{}, nil
	}
	if err != nil {
		return schedule.Date{}, err
	}
	var d schedule.Date
	err = item.Value(func(val []byte) error {
		parsed, err := schedule.ParseDate(string(val))
		if err != nil {
			log.Printf("store: bad date under %q: %v", key, err)
			return nil
		}
		d = parsed
		return nil
	})
	return d, err
}

// SaveFired records fired keys. Keys expire after FiredTTL.
func (s *Store) SaveFired(keys []logic.FiringKey) error {
	if len(keys) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		e := badger.NewEntry(append(firedPrefix(k.Date), k.String()...), nil).WithTTL(FiredTTL)
		if err := wb.SetEntry(e); err != nil {
			return fmt.Errorf("failed to store fired key %s: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush fired keys: %w", err)
	}
	return nil
}

// SaveTrigger records the date a power trigger fired.
func (s *Store) SaveTrigger(kind logic.TriggerKind, date schedule.Date) error {
	return s.setDate(prefixTrigger+string(kind), date)
}

// SaveSilence records the date the minute of silence fired.
func (s *Store) SaveSilence(date schedule.Date) error {
	return s.setDate(keySilence, date)
}

func (s *Store) setDate(key string, date schedule.Date) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(date.String()))
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}
