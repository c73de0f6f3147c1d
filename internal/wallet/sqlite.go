package wallet

import (
	"errors"

	"github.com/evidenceledger/ledgergateway/internal/database"
	"github.com/evidenceledger/ledgergateway/internal/errl"
	"github.com/evidenceledger/ledgergateway/internal/models"
)

// SQLite keeps every wallet in one SQLite database; a wallet path is a
// namespace inside it.
type SQLite struct {
	db *database.Database
}

// NewSQLite opens (creating if needed) the database file at dbPath
func NewSQLite(dbPath string) (*SQLite, error) {
	db := database.New(dbPath)
	if err := db.Initialize(); err != nil {
		return nil, errl.Errorf("failed to initialize sqlite wallet: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Exists(path string) bool {
	ok, err := s.db.WalletExists(path)
	return err == nil && ok
}

func (s *SQLite) Open(path string) (Store, error) {
	if err := s.db.CreateWallet(path); err != nil {
		return nil, err
	}
	return &sqliteStore{db: s.db, path: path}, nil
}

func (s *SQLite) Remove(path string) error {
	return s.db.DeleteWallet(path)
}

// Close closes the underlying database
func (s *SQLite) Close() error {
	return s.db.Close()
}

type sqliteStore struct {
	db   *database.Database
	path string
}

func (s *sqliteStore) Import(label string, rec *IdentityRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}

	err := s.db.CreateIdentity(&models.Identity{
		WalletPath:  s.path,
		Label:       label,
		MSPID:       rec.MSPID,
		Certificate: rec.Certificate,
		PrivateKey:  rec.PrivateKey,
	})
	if errors.Is(err, database.ErrDuplicate) {
		return ErrDuplicateLabel
	}
	return err
}

func (s *sqliteStore) Identity(label string) (*IdentityRecord, error) {
	id, err := s.db.GetIdentity(s.path, label)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, ErrNotFound
	}

	return &IdentityRecord{
		Label:       id.Label,
		MSPID:       id.MSPID,
		Certificate: id.Certificate,
		PrivateKey:  id.PrivateKey,
	}, nil
}

func (s *sqliteStore) Export(label string) (*TransportCredential, error) {
	rec, err := s.Identity(label)
	if err != nil {
		return nil, err
	}
	return rec.TransportCredential(), nil
}

// Close is a no-op: the database is shared by every wallet
func (s *sqliteStore) Close() error { return nil }
