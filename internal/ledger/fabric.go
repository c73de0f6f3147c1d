package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
	"github.com/pkg/errors"

	"github.com/evidenceledger/ledgergateway/internal/metrics"
	"github.com/evidenceledger/ledgergateway/internal/wallet"
)

// dialFunc connects to the network described by raw as the wallet identity label
type dialFunc func(raw []byte, w *gateway.Wallet, label string) (*gateway.Gateway, error)

// dialGateway returns the dialer of the gateway SDK. A zero timeout keeps the SDK default.
func dialGateway(timeout time.Duration) dialFunc {
	return func(raw []byte, w *gateway.Wallet, label string) (*gateway.Gateway, error) {
		var opts []gateway.Option
		if timeout > 0 {
			opts = append(opts, gateway.WithTimeout(timeout))
		}
		return gateway.Connect(
			gateway.WithConfig(config.FromRaw(raw, "yaml")),
			gateway.WithIdentity(w, label),
			opts...,
		)
	}
}

// FabricConnector opens sessions through the Fabric gateway SDK
type FabricConnector struct {
	metrics *metrics.Metrics
	dial    dialFunc
}

// NewFabricConnector creates a connector whose sessions wait at most timeout
// for a transaction to commit
func NewFabricConnector(m *metrics.Metrics, timeout time.Duration) *FabricConnector {
	return &FabricConnector{metrics: m, dial: dialGateway(timeout)}
}

// Connect loads the identity into an in-memory SDK wallet and connects with it.
// Discovery and localhost addressing are applied to the profile the session
// connects with.
func (f *FabricConnector) Connect(ctx context.Context, profile *Profile, opts SessionOptions) (Session, error) {
	if profile == nil {
		return nil, errors.New("connection profile is required")
	}
	if opts.Identity == nil || opts.Identity.Label == "" {
		return nil, errors.New("session identity is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &fabricSession{
		profile: profile,
		opts:    opts,
		metrics: f.metrics,
		wallet:  gateway.NewInMemoryWallet(),
		dial:    f.dial,
	}

	id := gateway.NewX509Identity(opts.Identity.MSPID, opts.Identity.Certificate, opts.Identity.PrivateKey)
	if err := s.wallet.Put(opts.Identity.Label, id); err != nil {
		return nil, errors.Wrap(err, "loading session identity failed")
	}

	raw, err := profile.ForSession(opts, nil)
	if err != nil {
		return nil, err
	}
	if err := s.connect(raw); err != nil {
		return nil, err
	}

	slog.Debug("ledger session established",
		"label", opts.Identity.Label,
		"profile", profile.Path,
		"discovery", opts.Discovery,
		"asLocalhost", opts.AsLocalhost,
	)
	return s, nil
}

type fabricSession struct {
	profile *Profile
	opts    SessionOptions
	metrics *metrics.Metrics
	wallet  *gateway.Wallet
	dial    dialFunc
	gw      *gateway.Gateway
}

func (s *fabricSession) connect(raw []byte) error {
	gw, err := s.dial(raw, s.wallet, s.opts.Identity.Label)
	if err != nil {
		return errors.Wrap(err, "connecting to gateway failed")
	}
	s.gw = gw
	return nil
}

// BindTransport reconnects with a profile whose client section carries the
// credential, so every later call runs over mutual TLS.
func (s *fabricSession) BindTransport(cred *wallet.TransportCredential) error {
	if cred == nil {
		return errors.New("transport credential is required")
	}

	raw, err := s.profile.ForSession(s.opts, cred)
	if err != nil {
		return err
	}

	old := s.gw
	if err := s.connect(raw); err != nil {
		return errors.WithMessage(err, "binding transport credential failed")
	}
	if old != nil {
		old.Close()
	}
	return nil
}

func (s *fabricSession) contract(channel, chaincode string) (*gateway.Contract, error) {
	network, err := s.gw.GetNetwork(channel)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get network %s", channel)
	}
	return network.GetContract(chaincode), nil
}

func (s *fabricSession) Submit(ctx context.Context, channel, chaincode, fcn string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	contract, err := s.contract(channel, chaincode)
	if err != nil {
		s.metrics.LedgerCall("submit", err)
		return nil, err
	}
	result, err := contract.SubmitTransaction(fcn, args...)
	s.metrics.LedgerCall("submit", err)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to submit %s on %s", fcn, chaincode)
	}
	return result, nil
}

func (s *fabricSession) Evaluate(ctx context.Context, channel, chaincode, fcn string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	contract, err := s.contract(channel, chaincode)
	if err != nil {
		s.metrics.LedgerCall("evaluate", err)
		return nil, err
	}
	result, err := contract.EvaluateTransaction(fcn, args...)
	s.metrics.LedgerCall("evaluate", err)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to evaluate %s on %s", fcn, chaincode)
	}
	return result, nil
}

func (s *fabricSession) Close() {
	if s.gw != nil {
		s.gw.Close()
		s.gw = nil
	}
}
