package wallet

import (
	"os"
	"path/filepath"

	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"

	"github.com/evidenceledger/ledgergateway/internal/errl"
)

// FileSystem keeps each wallet in a directory, one ".id" file per identity, in
// the format written by the Fabric gateway SDK.
type FileSystem struct{}

func NewFileSystem() *FileSystem {
	return &FileSystem{}
}

func (f *FileSystem) Name() string { return "filesystem" }

func (f *FileSystem) Exists(path string) bool {
	_, err := os.Stat(filepath.Clean(path))
	return err == nil
}

func (f *FileSystem) Open(path string) (Store, error) {
	w, err := gateway.NewFileSystemWallet(path)
	if err != nil {
		return nil, errl.Errorf("failed to open filesystem wallet at %s: %w", path, err)
	}
	return &fileSystemStore{wallet: w}, nil
}

func (f *FileSystem) Remove(path string) error {
	if err := os.RemoveAll(filepath.Clean(path)); err != nil {
		return errl.Errorf("failed to remove wallet at %s: %w", path, err)
	}
	return nil
}

type fileSystemStore struct {
	wallet *gateway.Wallet
}

func (s *fileSystemStore) Import(label string, rec *IdentityRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}
	if s.wallet.Exists(label) {
		return ErrDuplicateLabel
	}

	id := gateway.NewX509Identity(rec.MSPID, rec.Certificate, rec.PrivateKey)
	if err := s.wallet.Put(label, id); err != nil {
		return errl.Errorf("failed to import identity %s: %w", label, err)
	}
	return nil
}

func (s *fileSystemStore) Identity(label string) (*IdentityRecord, error) {
	if !s.wallet.Exists(label) {
		return nil, ErrNotFound
	}

	id, err := s.wallet.Get(label)
	if err != nil {
		return nil, errl.Errorf("failed to read identity %s: %w", label, err)
	}

	x509, ok := id.(*gateway.X509Identity)
	if !ok {
		return nil, errl.Errorf("identity %s is not an X.509 identity", label)
	}

	return &IdentityRecord{
		Label:       label,
		MSPID:       x509.MspID,
		Certificate: x509.Certificate(),
		PrivateKey:  x509.Key(),
	}, nil
}

func (s *fileSystemStore) Export(label string) (*TransportCredential, error) {
	rec, err := s.Identity(label)
	if err != nil {
		return nil, err
	}
	return rec.TransportCredential(), nil
}

func (s *fileSystemStore) Close() error { return nil }
