package reference

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "ref:"

// KV keeps references in a local BadgerDB, msgpack-encoded.
type KV struct {
	db *badger.DB
}

// OpenKV opens the database in dir. An empty dir runs in memory only.
func OpenKV(dir string) (*KV, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open reference store: %w", err)
	}
	return &KV{db: db}, nil
}

func (k *KV) Close() error { return k.db.Close() }

func key(memberID int64) []byte {
	return []byte(keyPrefix + strconv.FormatInt(memberID, 10))
}

func (k *KV) Reference(_ context.Context, memberID int64) (Record, error) {
	var r Record
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(memberID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &r)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, fmt.Errorf("member %d: %w", memberID, ErrNoReference)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load reference %d: %w", memberID, err)
	}
	return r, nil
}

func (k *KV) SaveReference(_ context.Context, r Record) error {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reference: %w", err)
	}
	return k.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(r.MemberID), b)
	})
}
