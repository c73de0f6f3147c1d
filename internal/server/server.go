// Package server wires the gateway components together and runs the API and
// operations servers.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/evidenceledger/ledgergateway/internal/config"
	"github.com/evidenceledger/ledgergateway/internal/disclosure"
	"github.com/evidenceledger/ledgergateway/internal/errl"
	"github.com/evidenceledger/ledgergateway/internal/gateway"
	"github.com/evidenceledger/ledgergateway/internal/ledger"
	"github.com/evidenceledger/ledgergateway/internal/metadata"
	"github.com/evidenceledger/ledgergateway/internal/metrics"
	"github.com/evidenceledger/ledgergateway/internal/opsserver"
	"github.com/evidenceledger/ledgergateway/internal/provision"
	"github.com/evidenceledger/ledgergateway/internal/token"
	"github.com/evidenceledger/ledgergateway/internal/wallet"
)

// Server manages the API and operations servers
type Server struct {
	cfg     *config.Config
	gateway *gateway.Server
	ops     *opsserver.Server
	client  *ledger.Client
	wallets wallet.CredentialWallet
}

// New creates every component from the configuration
func New(cfg *config.Config) (*Server, error) {
	m := metrics.New()

	authority, err := token.NewAuthority(cfg.Token.Secret)
	if err != nil {
		return nil, err
	}

	wallets, err := wallet.New(cfg.Wallet.Backend, cfg.Wallet.SQLitePath)
	if err != nil {
		return nil, err
	}

	client, err := ledger.NewClient(cfg.Network.Profile, cfg.Network.GoPath, m)
	if err != nil {
		return nil, errl.Errorf("failed to create ledger client: %w", err)
	}

	connector := ledger.NewFabricConnector(m, cfg.Server.ResponseTimeout)

	provisioner := provision.New(provision.Config{
		CryptoDir:   cfg.Crypto.Dir,
		Domain:      cfg.Crypto.Domain,
		DefaultUser: cfg.Crypto.DefaultUser,
		ProfilePath: cfg.Network.Profile,
	}, wallets, connector, m)

	cipher := disclosure.NewCipher()
	filter := disclosure.NewFilter(disclosure.DefaultSchema(), cipher, m)

	extractor := metadata.NewExtractor(metadata.Config{
		FetchTimeout: cfg.Metadata.FetchTimeout,
		MaxBytes:     cfg.Metadata.MaxBytes,
		CacheTTL:     cfg.Metadata.CacheTTL,
		FileRoot:     cfg.Metadata.FileRoot,
		MaxPixels:    cfg.Metadata.MaxPixels,
	}, cipher, m)

	gw := gateway.New(gateway.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ResponseTimeout: cfg.Server.ResponseTimeout,
		TokenTTL:        cfg.Token.TTL,
		Domain:          cfg.Crypto.Domain,
		ProfilePath:     cfg.Network.Profile,
	}, gateway.Deps{
		Authority:   authority,
		Ledger:      client,
		Provisioner: provisioner,
		Wallets:     wallets,
		Connector:   connector,
		Filter:      filter,
		Presenter:   metadata.NewVerifier(extractor),
		Extractor:   extractor,
		Metrics:     m,
	})

	ops := opsserver.New(cfg.Server.Host, cfg.Server.OpsPort, m,
		opsserver.CheckFunc{Label: "profile", Fn: func(context.Context) error {
			_, err := ledger.LoadProfile(cfg.Network.Profile)
			return err
		}},
		opsserver.CheckFunc{Label: "crypto", Fn: func(context.Context) error {
			_, err := os.Stat(cfg.Crypto.Dir)
			return err
		}},
	)

	return &Server{
		cfg:     cfg,
		gateway: gw,
		ops:     ops,
		client:  client,
		wallets: wallets,
	}, nil
}

// Start starts both servers and blocks until one fails or ctx is done
func (s *Server) Start(ctx context.Context) error {
	defer s.close()

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// API server
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.gateway.Start(ctx); err != nil {
			errChan <- fmt.Errorf("gateway server failed: %w", err)
		}
	}()

	// Operations server
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.ops.Start(ctx); err != nil {
			errChan <- fmt.Errorf("operations server failed: %w", err)
		}
	}()

	slog.Info("Servers started",
		"api_port", s.cfg.Server.Port,
		"ops_port", s.cfg.Server.OpsPort,
		"wallet_backend", s.wallets.Name(),
		"profile", s.cfg.Network.Profile)

	// Wait for either server to fail or context to be cancelled
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down servers")
		wg.Wait()
		return nil
	}
}

func (s *Server) close() {
	s.client.Close()
	if c, ok := s.wallets.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Error("Failed to close wallet backend", "error", err)
		}
	}
}
