package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidenceledger/ledgergateway/internal/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db := New(filepath.Join(t.TempDir(), "data", "wallets.db"))
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWalletLifecycle(t *testing.T) {
	db := newTestDatabase(t)

	exists, err := db.WalletExists("wallets/alice")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, db.CreateWallet("wallets/alice"))
	require.NoError(t, db.CreateWallet("wallets/alice"))

	exists, err = db.WalletExists("wallets/alice")
	require.NoError(t, err)
	assert.True(t, exists)

	id := &models.Identity{
		WalletPath:  "wallets/alice",
		Label:       "alice@org1.example.com",
		MSPID:       "org1MSP",
		Certificate: "CERT",
		PrivateKey:  "KEY",
	}
	require.NoError(t, db.CreateIdentity(id))
	assert.ErrorIs(t, db.CreateIdentity(id), ErrDuplicate)

	got, err := db.GetIdentity("wallets/alice", "alice@org1.example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "org1MSP", got.MSPID)
	assert.Equal(t, "KEY", got.PrivateKey)

	labels, err := db.ListIdentities("wallets/alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@org1.example.com"}, labels)

	require.NoError(t, db.DeleteWallet("wallets/alice"))

	got, err = db.GetIdentity("wallets/alice", "alice@org1.example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSameLabelInDifferentWallets(t *testing.T) {
	db := newTestDatabase(t)

	for _, path := range []string{"w1", "w2"} {
		require.NoError(t, db.CreateWallet(path))
		require.NoError(t, db.CreateIdentity(&models.Identity{
			WalletPath: path, Label: "bob@org2.example.com", MSPID: "org2MSP",
			Certificate: "C", PrivateKey: "K",
		}))
	}
}
