// Package provision turns the credential material of an organization's user on
// disk into a wallet identity and opens a ledger session with it.
package provision

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/evidenceledger/ledgergateway/internal/errl"
	"github.com/evidenceledger/ledgergateway/internal/ledger"
	"github.com/evidenceledger/ledgergateway/internal/metrics"
	"github.com/evidenceledger/ledgergateway/internal/wallet"
)

// Status of a successful provisioning call
type Status string

const (
	StatusAlreadyPresent Status = "already_present"
	StatusCreated        Status = "created"
)

var (
	ErrCorruptKeystore = errors.New("keystore must contain exactly one private key")
	ErrMissingFile     = errors.New("credential file not found")
	ErrSessionFailure  = errors.New("ledger session could not be established")
)

// Error is a provisioning failure. Kind is one of the sentinel errors above;
// Err carries the detail, which is meant for logs only.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Result of a successful provisioning call
type Result struct {
	Status Status
	Path   string
	Label  string
}

// Config locates credential material and the connection profile
type Config struct {
	// CryptoDir is the root of the generated crypto material
	CryptoDir string
	// Domain is the suffix of organization names, "example.com"
	Domain string
	// DefaultUser is the user whose material is imported, "User1"
	DefaultUser string
	// ProfilePath is the connection profile used for the session
	ProfilePath string
}

type Provisioner struct {
	cfg       Config
	wallets   wallet.CredentialWallet
	connector ledger.Connector
	metrics   *metrics.Metrics
	locks     *keyLock
}

func New(cfg Config, wallets wallet.CredentialWallet, connector ledger.Connector, m *metrics.Metrics) *Provisioner {
	if cfg.Domain == "" {
		cfg.Domain = "example.com"
	}
	if cfg.DefaultUser == "" {
		cfg.DefaultUser = "User1"
	}
	return &Provisioner{
		cfg:       cfg,
		wallets:   wallets,
		connector: connector,
		metrics:   m,
		locks:     newKeyLock(),
	}
}

// userDir is the msp directory of the default user of orgName
func (p *Provisioner) userDir(orgName string) string {
	orgDomain := orgName + "." + p.cfg.Domain
	return filepath.Join(p.cfg.CryptoDir, "peerOrganizations", orgDomain,
		"users", p.cfg.DefaultUser+"@"+orgDomain, "msp")
}

// Provision imports the identity of username in orgName into the wallet at
// walletPath and opens a session with it.
//
// An existing wallet is reported as StatusAlreadyPresent without looking
// inside it, even if it holds no usable identity. An import that succeeded is
// kept when the session then fails.
func (p *Provisioner) Provision(ctx context.Context, walletPath, username, orgName string) (*Result, error) {
	opID := uuid.NewString()
	label := wallet.Label(username, orgName, p.cfg.Domain)
	log := slog.With("op", opID, "wallet", walletPath, "label", label, "backend", p.wallets.Name())

	p.locks.Lock(walletPath)
	defer p.locks.Unlock(walletPath)

	if p.wallets.Exists(walletPath) {
		log.Info("wallet already present")
		p.metrics.Provision(string(StatusAlreadyPresent))
		return &Result{Status: StatusAlreadyPresent, Path: walletPath, Label: label}, nil
	}

	res, err := p.provision(ctx, log, walletPath, label, orgName)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			p.metrics.Provision(outcome(perr.Kind))
		}
		log.Error("provisioning failed", "error", err)
		return nil, err
	}

	p.metrics.Provision(string(StatusCreated))
	log.Info("identity provisioned")
	return res, nil
}

func (p *Provisioner) provision(ctx context.Context, log *slog.Logger, walletPath, label, orgName string) (*Result, error) {
	rec, err := p.readIdentity(orgName)
	if err != nil {
		return nil, &Error{Kind: kindOf(err), Path: walletPath, Err: err}
	}
	rec.Label = label

	if err := p.importIdentity(walletPath, label, rec); err != nil {
		return nil, &Error{Kind: ErrMissingFile, Path: walletPath, Err: err}
	}
	log.Debug("identity imported", "msp_id", rec.MSPID)

	profile, err := ledger.LoadProfile(p.cfg.ProfilePath)
	if err != nil {
		return nil, &Error{Kind: ErrMissingFile, Path: walletPath, Err: err}
	}

	if err := p.openSession(ctx, walletPath, label, rec, profile); err != nil {
		return nil, &Error{Kind: ErrSessionFailure, Path: walletPath, Err: err}
	}

	return &Result{Status: StatusCreated, Path: walletPath, Label: label}, nil
}

// readIdentity builds the identity record from the certificate and the single
// key file of the default user of orgName
func (p *Provisioner) readIdentity(orgName string) (*wallet.IdentityRecord, error) {
	dir := p.userDir(orgName)
	keystore := filepath.Join(dir, "keystore")

	entries, err := os.ReadDir(keystore)
	if err != nil {
		return nil, errl.Errorf("reading keystore %s: %w", keystore, errors.Join(ErrMissingFile, err))
	}

	var keyFiles []string
	for _, e := range entries {
		if !e.IsDir() {
			keyFiles = append(keyFiles, e.Name())
		}
	}
	switch len(keyFiles) {
	case 1:
	case 0:
		return nil, errl.Errorf("keystore %s is empty: %w", keystore, ErrMissingFile)
	default:
		return nil, errl.Errorf("keystore %s holds %d files (%s): %w",
			keystore, len(keyFiles), strings.Join(keyFiles, ", "), ErrCorruptKeystore)
	}

	certPath := filepath.Join(dir, "signcerts", p.cfg.DefaultUser+"@"+orgName+"."+p.cfg.Domain+"-cert.pem")
	cert, err := os.ReadFile(certPath)
	if err != nil {
		return nil, errl.Errorf("reading certificate: %w", errors.Join(ErrMissingFile, err))
	}

	key, err := os.ReadFile(filepath.Join(keystore, keyFiles[0]))
	if err != nil {
		return nil, errl.Errorf("reading private key: %w", errors.Join(ErrMissingFile, err))
	}

	return &wallet.IdentityRecord{
		MSPID:       wallet.MSPID(orgName),
		Certificate: string(cert),
		PrivateKey:  string(key),
	}, nil
}

// importIdentity creates the wallet and imports rec. A wallet left empty by a
// failed import is removed so the next attempt is not seen as already present.
func (p *Provisioner) importIdentity(walletPath, label string, rec *wallet.IdentityRecord) error {
	store, err := p.wallets.Open(walletPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Import(label, rec); err != nil {
		if rmErr := p.wallets.Remove(walletPath); rmErr != nil {
			slog.Warn("failed to remove wallet after import error", "wallet", walletPath, "error", rmErr)
		}
		return err
	}
	return nil
}

func (p *Provisioner) openSession(ctx context.Context, walletPath, label string, rec *wallet.IdentityRecord, profile *ledger.Profile) error {
	session, err := p.connector.Connect(ctx, profile, ledger.SessionOptions{
		Identity:    rec,
		Discovery:   true,
		AsLocalhost: false,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	store, err := p.wallets.Open(walletPath)
	if err != nil {
		return err
	}
	defer store.Close()

	cred, err := store.Export(label)
	if err != nil {
		return err
	}

	return session.BindTransport(cred)
}

func kindOf(err error) error {
	if errors.Is(err, ErrCorruptKeystore) {
		return ErrCorruptKeystore
	}
	return ErrMissingFile
}

func outcome(kind error) string {
	switch kind {
	case ErrCorruptKeystore:
		return "corrupt_keystore"
	case ErrSessionFailure:
		return "session_failure"
	default:
		return "missing_file"
	}
}
