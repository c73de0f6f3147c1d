package database

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"github.com/evidenceledger/ledgergateway/internal/errl"
	"github.com/evidenceledger/ledgergateway/internal/models"
)

// ErrDuplicate is returned when an identity label is already taken in a wallet
var ErrDuplicate = errors.New("duplicate identity")

// CreateWallet registers a wallet path. Creating an existing wallet is a no-op.
func (d *Database) CreateWallet(path string) error {
	query := `INSERT OR IGNORE INTO wallets (path) VALUES (?)`

	if _, err := d.db.Exec(query, path); err != nil {
		return errl.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// WalletExists reports whether the wallet path is registered
func (d *Database) WalletExists(path string) (bool, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM wallets WHERE path = ?`, path).Scan(&count)
	if err != nil {
		return false, errl.Errorf("failed to check wallet: %w", err)
	}
	return count > 0, nil
}

// DeleteWallet deletes a wallet and its identities
func (d *Database) DeleteWallet(path string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return errl.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM wallet_identities WHERE wallet_path = ?`, path); err != nil {
		return errl.Errorf("failed to delete wallet identities: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM wallets WHERE path = ?`, path); err != nil {
		return errl.Errorf("failed to delete wallet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return errl.Errorf("failed to commit wallet deletion: %w", err)
	}

	slog.Info("Deleted wallet", "path", path)
	return nil
}

// CreateIdentity inserts an identity in a wallet
func (d *Database) CreateIdentity(id *models.Identity) error {
	query := `
		INSERT INTO wallet_identities (
			wallet_path, label, msp_id, certificate, private_key
		) VALUES (?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(query,
		id.WalletPath, id.Label, id.MSPID, id.Certificate, id.PrivateKey,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicate
		}
		return errl.Errorf("failed to create identity: %w", err)
	}

	slog.Debug("Created identity", "wallet", id.WalletPath, "label", id.Label, "msp_id", id.MSPID)
	return nil
}

// GetIdentity retrieves an identity by wallet path and label.
// It returns nil without error when there is none.
func (d *Database) GetIdentity(path, label string) (*models.Identity, error) {
	query := `
		SELECT id, wallet_path, label, msp_id, certificate, private_key, created_at
		FROM wallet_identities
		WHERE wallet_path = ? AND label = ?
	`

	var id models.Identity
	err := d.db.QueryRow(query, path, label).Scan(
		&id.ID, &id.WalletPath, &id.Label, &id.MSPID,
		&id.Certificate, &id.PrivateKey, &id.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errl.Errorf("failed to get identity: %w", err)
	}

	return &id, nil
}

// ListIdentities retrieves the labels of all identities in a wallet
func (d *Database) ListIdentities(path string) ([]string, error) {
	rows, err := d.db.Query(`SELECT label FROM wallet_identities WHERE wallet_path = ? ORDER BY label`, path)
	if err != nil {
		return nil, errl.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, errl.Errorf("failed to scan identity: %w", err)
		}
		labels = append(labels, label)
	}

	return labels, rows.Err()
}
