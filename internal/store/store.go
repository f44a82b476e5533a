// Package store is the local persistent store of the offline engine. It keeps
// three record families in one badger instance, separated by key prefix:
// cached read results, the pending-write outbox, and offline bundle metadata.
// A fourth prefix backs the small preference table.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/TalWayn72/EduSphere-sub002/pkg/model"
)

var log *logrus.Logger

const (
	prefixCache  = "cache:"
	prefixOutbox = "outbox:"
	prefixBundle = "bundle:"
	prefixPrefs  = "prefs:"
)

// ErrStoreUnavailable is returned by every operation before Init has been
// called (or after Close). Callers must treat it as recoverable: initialize
// the store and retry.
var ErrStoreUnavailable = errors.New("store: not initialized")

// StoreConfig configures the store. Path must be an existing directory.
type StoreConfig struct {
	Path   string
	Logger *logrus.Logger
}

// Store is the durable backing of the offline engine. All methods are safe
// for concurrent use; badger serializes conflicting writes internally.
type Store struct {
	config StoreConfig
	db     *badger.DB
}

// New builds an uninitialized store. No I/O happens until Init.
func New(config StoreConfig) (*Store, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if err := config.check(); err != nil {
		return nil, fmt.Errorf("error checking config for Store: %w", err)
	}
	return &Store{config: config}, nil
}

// Init opens the backing badger database. Calling Init on an initialized
// store is a no-op.
func (s *Store) Init() error {
	if s.db != nil {
		return nil
	}

	opts := badger.DefaultOptions(s.config.Path)
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open store at %s: %w", s.config.Path, err)
	}
	s.db = db
	log.WithFields(logrus.Fields{"path": s.config.Path}).Info("store initialized")
	return nil
}

// Close syncs and closes the backing database. The store can be reopened
// with Init.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the directory holding the store's backing files. The quota
// engine sums it when measuring app usage.
func (s *Store) Path() string {
	return s.config.Path
}

// CacheQuery writes a read result through into the cache. The same
// operation+variables pair overwrites in place.
func (s *Store) CacheQuery(operationText string, variablesJSON, resultJSON []byte) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	rec := model.CachedQueryRecord{
		Fingerprint:   Fingerprint(operationText, variablesJSON),
		OperationText: operationText,
		VariablesJSON: variablesJSON,
		ResultJSON:    resultJSON,
		StoredAt:      time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("serialize cache record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixCache+rec.Fingerprint), data)
	})
	if err != nil {
		return fmt.Errorf("persist cache record: %w", err)
	}
	return nil
}

// GetCachedQuery looks up the cached result for an operation+variables pair.
// The second return value reports whether a record was found.
func (s *Store) GetCachedQuery(operationText string, variablesJSON []byte) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, ErrStoreUnavailable
	}
	key := []byte(prefixCache + Fingerprint(operationText, variablesJSON))

	var result []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var rec model.CachedQueryRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode cache record: %w", err)
		}
		result = rec.ResultJSON
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache record: %w", err)
	}
	return result, true, nil
}

// EnqueueMutation records a write attempted while offline and returns the
// locally generated record id. The key embeds the enqueue timestamp so that
// prefix iteration yields the outbox in FIFO order.
func (s *Store) EnqueueMutation(operationText string, variablesJSON []byte) (string, error) {
	if s.db == nil {
		return "", ErrStoreUnavailable
	}
	now := time.Now().UTC()
	rec := model.PendingMutationRecord{
		ID:            uuid.NewString(),
		OperationText: operationText,
		VariablesJSON: variablesJSON,
		EnqueuedAt:    now,
		Status:        model.MutationPending,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("serialize outbox record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(outboxKey(now, rec.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("persist outbox record: %w", err)
	}
	log.WithFields(logrus.Fields{"id": rec.ID}).Debug("mutation queued")
	return rec.ID, nil
}

// ListPending returns the outbox records still awaiting replay, oldest first.
func (s *Store) ListPending() ([]model.PendingMutationRecord, error) {
	records, err := s.listOutbox()
	if err != nil {
		return nil, err
	}
	pending := records[:0]
	for _, rec := range records {
		if rec.Status == model.MutationPending {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// ListOutbox returns every outbox record, including synced and failed ones,
// oldest first.
func (s *Store) ListOutbox() ([]model.PendingMutationRecord, error) {
	return s.listOutbox()
}

func (s *Store) listOutbox() ([]model.PendingMutationRecord, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var records []model.PendingMutationRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixOutbox)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec model.PendingMutationRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode outbox record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	return records, nil
}

// MarkMutation transitions an outbox record to the given status. Unknown ids
// return an error; the sync engine only marks records it just listed.
func (s *Store) MarkMutation(id string, status model.MutationStatus) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixOutbox)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec model.PendingMutationRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode outbox record: %w", err)
			}
			if rec.ID != id {
				continue
			}
			rec.Status = status
			updated, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("serialize outbox record: %w", err)
			}
			return txn.Set(item.KeyCopy(nil), updated)
		}
		return fmt.Errorf("outbox record %s not found", id)
	})
	if err != nil {
		return fmt.Errorf("mark mutation %s: %w", id, err)
	}
	return nil
}

// UpsertBundle creates or replaces the metadata record of a fully downloaded
// bundle.
func (s *Store) UpsertBundle(rec model.OfflineBundleRecord) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("serialize bundle record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixBundle+rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("persist bundle record: %w", err)
	}
	return nil
}

// DeleteBundle removes a bundle metadata record. Deleting an absent record
// is a no-op.
func (s *Store) DeleteBundle(id string) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixBundle + id))
	})
	if err != nil {
		return fmt.Errorf("delete bundle record %s: %w", id, err)
	}
	return nil
}

// ListBundles returns all bundle metadata records.
func (s *Store) ListBundles() ([]model.OfflineBundleRecord, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var records []model.OfflineBundleRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixBundle)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec model.OfflineBundleRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode bundle record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	return records, nil
}

// PruneCacheOlderThan deletes cached results stored before the cutoff and
// returns how many were removed.
func (s *Store) PruneCacheOlderThan(maxAge time.Duration) (int, error) {
	if s.db == nil {
		return 0, ErrStoreUnavailable
	}
	cutoff := time.Now().UTC().Add(-maxAge)

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixCache)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec model.CachedQueryRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode cache record: %w", err)
			}
			if rec.StoredAt.Before(cutoff) {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan cache for pruning: %w", err)
	}

	if err := s.deleteKeys(stale); err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	if len(stale) > 0 {
		log.WithFields(logrus.Fields{"removed": len(stale)}).Info("cache pruned")
	}
	return len(stale), nil
}

// ClearCacheTable drops every cached query result.
func (s *Store) ClearCacheTable() error {
	return s.clearPrefix(prefixCache)
}

// ClearBundleTable drops every bundle metadata record.
func (s *Store) ClearBundleTable() error {
	return s.clearPrefix(prefixBundle)
}

func (s *Store) clearPrefix(prefix string) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan prefix %s: %w", prefix, err)
	}
	if err := s.deleteKeys(keys); err != nil {
		return fmt.Errorf("clear prefix %s: %w", prefix, err)
	}
	return nil
}

func (s *Store) deleteKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Preference reads a persisted preference value. Missing keys return the
// empty string.
func (s *Store) Preference(key string) (string, error) {
	if s.db == nil {
		return "", ErrStoreUnavailable
	}
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixPrefs + key))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		value = string(data)
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read preference %s: %w", key, err)
	}
	return value, nil
}

// SetPreference persists a preference value.
func (s *Store) SetPreference(key, value string) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixPrefs+key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("persist preference %s: %w", key, err)
	}
	return nil
}

// outboxKey builds a key whose lexicographic order matches enqueue order.
// The timestamp is zero-padded nanoseconds; the id breaks ties.
func outboxKey(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixOutbox, at.UnixNano(), id))
}
