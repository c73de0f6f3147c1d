// Package wallet stores ledger identities keyed by label.
//
// A CredentialWallet addresses wallets by path. What a path means depends on the
// backend: a directory of identity files, a namespace inside a shared SQLite
// database, or a LevelDB directory. Inside a wallet there is at most one
// identity per label.
package wallet

import (
	"errors"
	"strings"

	"github.com/evidenceledger/ledgergateway/internal/errl"
)

var (
	ErrDuplicateLabel = errors.New("identity label already present in wallet")
	ErrNotFound       = errors.New("identity not found in wallet")
)

// IdentityRecord is an X.509 ledger identity
type IdentityRecord struct {
	Label       string `json:"label"`
	MSPID       string `json:"mspId"`
	Certificate string `json:"certificate"`
	PrivateKey  string `json:"privateKey"`
}

// TransportCredential is the certificate/key pair used for mutual TLS
type TransportCredential struct {
	Certificate string
	PrivateKey  string
}

// TransportCredential returns the transport pair of the identity
func (r *IdentityRecord) TransportCredential() *TransportCredential {
	return &TransportCredential{
		Certificate: r.Certificate,
		PrivateKey:  r.PrivateKey,
	}
}

func (r *IdentityRecord) validate() error {
	if r == nil {
		return errl.Errorf("nil identity record")
	}
	if r.MSPID == "" || r.Certificate == "" || r.PrivateKey == "" {
		return errl.Errorf("identity record for %q is incomplete", r.Label)
	}
	return nil
}

// CredentialWallet is the persistent store of identities
type CredentialWallet interface {
	// Name identifies the backend in logs
	Name() string
	// Exists reports whether a wallet is present at path
	Exists(path string) bool
	// Open opens the wallet at path, creating it when missing
	Open(path string) (Store, error)
	// Remove deletes the wallet at path and every identity in it
	Remove(path string) error
}

// Store is an opened wallet
type Store interface {
	// Import adds the identity under label. It fails with ErrDuplicateLabel
	// when the label is already taken.
	Import(label string, rec *IdentityRecord) error
	// Export returns the transport credential of the identity
	Export(label string) (*TransportCredential, error)
	// Identity returns the full identity record
	Identity(label string) (*IdentityRecord, error)
	Close() error
}

// Label derives the wallet label of a user: lower(username)@org.domain
func Label(username, orgName, domain string) string {
	return strings.ToLower(username) + "@" + orgName + "." + domain
}

// MSPID derives the membership service provider id of an organization
func MSPID(orgName string) string {
	return orgName + "MSP"
}

// New returns the backend named by kind. sqlitePath is only used by the
// sqlite backend.
func New(kind, sqlitePath string) (CredentialWallet, error) {
	switch kind {
	case "filesystem":
		return NewFileSystem(), nil
	case "sqlite":
		return NewSQLite(sqlitePath)
	case "leveldb":
		return NewLevelDB(), nil
	default:
		return nil, errl.Errorf("unknown wallet backend %q", kind)
	}
}
