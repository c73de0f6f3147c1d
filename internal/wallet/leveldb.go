package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/evidenceledger/ledgergateway/internal/errl"
)

// LevelDB keeps each wallet in its own LevelDB directory, keyed by label.
// LevelDB locks its directory for a single process handle, so stores opened on
// the same path share one handle, closed when the last store is closed.
type LevelDB struct {
	mu  sync.Mutex
	dbs map[string]*sharedDB
}

type sharedDB struct {
	db   *leveldb.DB
	refs int
}

func NewLevelDB() *LevelDB {
	return &LevelDB{dbs: make(map[string]*sharedDB)}
}

func (l *LevelDB) Name() string { return "leveldb" }

func (l *LevelDB) Exists(path string) bool {
	_, err := os.Stat(filepath.Clean(path))
	return err == nil
}

func (l *LevelDB) Open(path string) (Store, error) {
	key := filepath.Clean(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	shared, ok := l.dbs[key]
	if !ok {
		db, err := leveldb.OpenFile(key, &opt.Options{})
		if err != nil {
			return nil, errl.Errorf("failed to open leveldb wallet at %s: %w", path, err)
		}
		shared = &sharedDB{db: db}
		l.dbs[key] = shared
	}
	shared.refs++

	return &levelDBStore{
		owner:     l,
		key:       key,
		shared:    shared,
		db:        shared.db,
		writeOpts: &opt.WriteOptions{Sync: true},
	}, nil
}

func (l *LevelDB) release(key string, shared *sharedDB) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	shared.refs--
	if shared.refs > 0 {
		return nil
	}
	if l.dbs[key] == shared {
		delete(l.dbs, key)
	}
	return shared.db.Close()
}

// Remove deletes the wallet directory. Stores still open on it keep their
// handle until closed; the next Open starts from an empty wallet.
func (l *LevelDB) Remove(path string) error {
	key := filepath.Clean(path)

	l.mu.Lock()
	delete(l.dbs, key)
	l.mu.Unlock()

	if err := os.RemoveAll(key); err != nil {
		return errl.Errorf("failed to remove wallet at %s: %w", path, err)
	}
	return nil
}

type levelDBStore struct {
	owner     *LevelDB
	key       string
	shared    *sharedDB
	db        *leveldb.DB
	writeOpts *opt.WriteOptions
	closeOnce sync.Once
}

func (s *levelDBStore) Import(label string, rec *IdentityRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}

	key := []byte(label)
	has, err := s.db.Has(key, nil)
	if err != nil {
		return errl.Errorf("failed to check identity %s: %w", label, err)
	}
	if has {
		return ErrDuplicateLabel
	}

	stored := *rec
	stored.Label = label
	value, err := json.Marshal(&stored)
	if err != nil {
		return errl.Errorf("failed to encode identity %s: %w", label, err)
	}

	if err := s.db.Put(key, value, s.writeOpts); err != nil {
		return errl.Errorf("failed to import identity %s: %w", label, err)
	}
	return nil
}

func (s *levelDBStore) Identity(label string) (*IdentityRecord, error) {
	value, err := s.db.Get([]byte(label), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errl.Errorf("failed to read identity %s: %w", label, err)
	}

	var rec IdentityRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, errl.Errorf("invalid identity format for %s: %w", label, err)
	}
	return &rec, nil
}

func (s *levelDBStore) Export(label string) (*TransportCredential, error) {
	rec, err := s.Identity(label)
	if err != nil {
		return nil, err
	}
	return rec.TransportCredential(), nil
}

func (s *levelDBStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.owner.release(s.key, s.shared)
	})
	return err
}
