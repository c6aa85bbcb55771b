package platform

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/errors"
)

// Database holds the guest's named record stores in LevelDB.
//
// Key layout, per store name:
//
//	n/<name>            next record id, big-endian uint32
//	r/<name>\x00<id>    record payload, id big-endian uint32
type Database struct {
	db   *leveldb.DB
	path string
	mu   sync.Mutex
}

// OpenDatabase opens or creates a database at path. An empty path keeps
// everything in memory.
func OpenDatabase(path string) (*Database, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, errors.HostIO("open database "+path, err)
	}
	Logger().Debug("database opened", zap.String("path", path))
	return &Database{db: db, path: path}, nil
}

// Open returns the record store called name. Stores are created lazily on
// first write.
func (d *Database) Open(name string) (*RecordStore, error) {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return nil, errors.InvalidInput(errors.PhaseHost, fmt.Sprintf("invalid record store name %q", name))
	}
	return &RecordStore{db: d, name: name}, nil
}

// Stores returns the names of stores that hold a record id counter.
func (d *Database) Stores() ([]string, error) {
	iter := d.db.NewIterator(util.BytesPrefix([]byte("n/")), nil)
	defer iter.Release()

	var names []string
	for iter.Next() {
		names = append(names, string(iter.Key()[2:]))
	}
	if err := iter.Error(); err != nil {
		return nil, errors.HostIO("list record stores", err)
	}
	return names, nil
}

// Close flushes and closes the database.
func (d *Database) Close() error {
	if err := d.db.Close(); err != nil {
		return errors.HostIO("close database", err)
	}
	return nil
}

// RecordStore is a named sequence of byte records with ids starting at 1.
type RecordStore struct {
	db   *Database
	name string
}

// Name returns the store name.
func (s *RecordStore) Name() string { return s.name }

func (s *RecordStore) counterKey() []byte {
	return []byte("n/" + s.name)
}

func (s *RecordStore) prefix() []byte {
	return []byte("r/" + s.name + "\x00")
}

func (s *RecordStore) recordKey(id uint32) []byte {
	return binary.BigEndian.AppendUint32(s.prefix(), id)
}

// Count returns the number of records in the store.
func (s *RecordStore) Count() (uint32, error) {
	iter := s.db.db.NewIterator(util.BytesPrefix(s.prefix()), nil)
	defer iter.Release()

	var n uint32
	for iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, errors.HostIO("count "+s.name, err)
	}
	return n, nil
}

// IDs returns the ids of the records in the store in ascending order.
func (s *RecordStore) IDs() ([]uint32, error) {
	prefix := s.prefix()
	iter := s.db.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var ids []uint32
	for iter.Next() {
		ids = append(ids, binary.BigEndian.Uint32(iter.Key()[len(prefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, errors.HostIO("list "+s.name, err)
	}
	return ids, nil
}

// Add appends a record and returns its id. Ids are never reused within a
// store, even after deletion.
func (s *RecordStore) Add(data []byte) (uint32, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	next := uint32(1)
	raw, err := s.db.db.Get(s.counterKey(), nil)
	switch {
	case err == nil && len(raw) == 4:
		next = binary.BigEndian.Uint32(raw)
	case err != nil && err != leveldb.ErrNotFound:
		return 0, errors.HostIO("add to "+s.name, err)
	}

	batch := new(leveldb.Batch)
	batch.Put(s.recordKey(next), data)
	batch.Put(s.counterKey(), binary.BigEndian.AppendUint32(nil, next+1))
	if err := s.db.db.Write(batch, nil); err != nil {
		return 0, errors.HostIO("add to "+s.name, err)
	}
	debugf("record store %s: add id %d (%d bytes)", s.name, next, len(data))
	return next, nil
}

// Get returns the record with id.
func (s *RecordStore) Get(id uint32) ([]byte, error) {
	data, err := s.db.db.Get(s.recordKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, s.notFound(id)
	}
	if err != nil {
		return nil, errors.HostIO("get from "+s.name, err)
	}
	return data, nil
}

// Set replaces the record with id.
func (s *RecordStore) Set(id uint32, data []byte) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ok, err := s.db.db.Has(s.recordKey(id), nil)
	if err != nil {
		return errors.HostIO("set in "+s.name, err)
	}
	if !ok {
		return s.notFound(id)
	}
	if err := s.db.db.Put(s.recordKey(id), data, nil); err != nil {
		return errors.HostIO("set in "+s.name, err)
	}
	return nil
}

// Delete removes the record with id.
func (s *RecordStore) Delete(id uint32) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ok, err := s.db.db.Has(s.recordKey(id), nil)
	if err != nil {
		return errors.HostIO("delete from "+s.name, err)
	}
	if !ok {
		return s.notFound(id)
	}
	if err := s.db.db.Delete(s.recordKey(id), nil); err != nil {
		return errors.HostIO("delete from "+s.name, err)
	}
	return nil
}

// Drop releases the store handle. The data stays in the database.
func (s *RecordStore) Drop() error { return nil }

func (s *RecordStore) notFound(id uint32) error {
	return errors.New(errors.PhaseHost, errors.KindNotFound).
		Path(s.name).
		Value(id).
		Detail("record %d not found in %q", id, s.name).
		Build()
}
