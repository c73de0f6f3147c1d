// Package ledger connects the gateway to the Fabric network.
//
// A Session is a live connection scoped to one identity. Sessions are built
// per request or per provisioning call and closed by whoever built them; there
// is no process-wide session. The pass-through operations that do not need a
// wallet identity go through Client instead.
package ledger

import (
	"context"

	"github.com/evidenceledger/ledgergateway/internal/wallet"
)

// SessionOptions selects the identity and discovery behavior of a session
type SessionOptions struct {
	// Identity is the wallet identity the session signs with
	Identity *wallet.IdentityRecord
	// Discovery enables service discovery on the network
	Discovery bool
	// AsLocalhost rewrites discovered addresses to localhost
	AsLocalhost bool
}

// Session is a connection bound to one identity. It is not safe for
// concurrent use once transport credentials are bound.
type Session interface {
	// BindTransport makes later calls use the credential for mutual TLS
	BindTransport(cred *wallet.TransportCredential) error
	// Submit sends a transaction for endorsement and ordering
	Submit(ctx context.Context, channel, chaincode, fcn string, args ...string) ([]byte, error)
	// Evaluate runs a query without ordering
	Evaluate(ctx context.Context, channel, chaincode, fcn string, args ...string) ([]byte, error)
	Close()
}

// Connector establishes sessions
type Connector interface {
	Connect(ctx context.Context, profile *Profile, opts SessionOptions) (Session, error)
}
