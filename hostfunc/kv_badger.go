package hostfunc

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// OpenKVStore returns a store persisted in a badger database under dir.
func OpenKVStore(dir string, opts ...KVOption) (*KVStore, error) {
	bopts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{Logger().Named("badger").Sugar()})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open kv store %s: %w", dir, err)
	}

	b := &badgerBackend{db: db}
	keys, err := b.keys("")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open kv store %s: %w", dir, err)
	}
	b.count = len(keys)

	Logger().Debug("kv store opened", zap.String("dir", dir), zap.Int("entries", b.count))
	return newKVStore(b, opts), nil
}

type badgerBackend struct {
	db    *badger.DB
	count int
}

func (b *badgerBackend) get(key string) ([]byte, bool, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *badgerBackend) set(key string, value []byte) error {
	created := false
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); errors.Is(err, badger.ErrKeyNotFound) {
			created = true
		} else if err != nil {
			return err
		}
		return txn.Set([]byte(key), value)
	})
	if err == nil && created {
		b.count++
	}
	return err
}

func (b *badgerBackend) delete(key string) error {
	existed := false
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		existed = true
		return txn.Delete([]byte(key))
	})
	if err == nil && existed {
		b.count--
	}
	return err
}

func (b *badgerBackend) keys(prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

func (b *badgerBackend) len() int { return b.count }

func (b *badgerBackend) close() error { return b.db.Close() }

// badgerLogger routes badger's logging through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}
