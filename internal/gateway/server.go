// Package gateway is the REST API of the ledger gateway.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/hyperledger/fabric-sdk-go/pkg/common/providers/fab"

	"github.com/evidenceledger/ledgergateway/internal/disclosure"
	"github.com/evidenceledger/ledgergateway/internal/ledger"
	"github.com/evidenceledger/ledgergateway/internal/metrics"
	"github.com/evidenceledger/ledgergateway/internal/middleware"
	"github.com/evidenceledger/ledgergateway/internal/provision"
	"github.com/evidenceledger/ledgergateway/internal/token"
	"github.com/evidenceledger/ledgergateway/internal/wallet"
)

// Ledger is the set of pass-through operations run as the calling user
type Ledger interface {
	Enroll(ctx context.Context, username, orgName string) (*ledger.Enrollment, error)
	CreateChannel(ctx context.Context, caller ledger.Caller, channelName, configPath string) (string, error)
	UpdateAnchorPeers(ctx context.Context, caller ledger.Caller, channelName, configUpdatePath string) (string, error)
	JoinChannel(ctx context.Context, caller ledger.Caller, channelName string, peers []string) error
	Invoke(ctx context.Context, caller ledger.Caller, channelName, chaincode, fcn string, args, peers []string) (*ledger.InvokeResult, error)
	Query(ctx context.Context, caller ledger.Caller, channelName, chaincode, fcn string, args []string, peer string) ([]byte, error)
	BlockByNumber(ctx context.Context, caller ledger.Caller, channelName string, number uint64, peer string) (*common.Block, error)
	BlockByHash(ctx context.Context, caller ledger.Caller, channelName string, hash []byte, peer string) (*common.Block, error)
	Transaction(ctx context.Context, caller ledger.Caller, channelName, txID, peer string) (*pb.ProcessedTransaction, error)
	ChainInfo(ctx context.Context, caller ledger.Caller, channelName, peer string) (*fab.BlockchainInfoResponse, error)
	InstalledChaincodes(ctx context.Context, caller ledger.Caller, peer string) (*pb.ChaincodeQueryResponse, error)
	InstantiatedChaincodes(ctx context.Context, caller ledger.Caller, channelName, peer string) (*pb.ChaincodeQueryResponse, error)
	Channels(ctx context.Context, caller ledger.Caller, peer string) (*pb.ChannelQueryResponse, error)
	InstallChaincode(ctx context.Context, caller ledger.Caller, spec ledger.ChaincodeSpec, peers []string) ([]ledger.InstallResult, error)
	InstantiateChaincode(ctx context.Context, caller ledger.Caller, channelName string, spec ledger.ChaincodeSpec, fcn string, args, peers []string) (string, error)
	UpgradeChaincode(ctx context.Context, caller ledger.Caller, channelName string, spec ledger.ChaincodeSpec, fcn string, args, peers []string) (string, error)
}

type Provisioner interface {
	Provision(ctx context.Context, walletPath, username, orgName string) (*provision.Result, error)
}

type Revealer interface {
	Reveal(raw []byte, key string) *disclosure.Result
}

// Presenter writes the response of a revealed query result
type Presenter interface {
	Present(c *fiber.Ctx, res *disclosure.Result, key string) error
}

type ArgAugmenter interface {
	AugmentArgs(ctx context.Context, args []string, key, bearerToken string) ([]string, error)
}

// Config is the configuration of the API server
type Config struct {
	Host            string
	Port            string
	ResponseTimeout time.Duration
	TokenTTL        time.Duration
	// Domain is the organization domain suffix used for wallet labels
	Domain string
	// ProfilePath is the connection profile used by wallet invokes
	ProfilePath string
}

// Deps are the collaborators of the API server
type Deps struct {
	Authority   *token.Authority
	Ledger      Ledger
	Provisioner Provisioner
	Wallets     wallet.CredentialWallet
	Connector   ledger.Connector
	Filter      Revealer
	Presenter   Presenter
	Extractor   ArgAugmenter
	Metrics     *metrics.Metrics
}

// Server is the REST API server
type Server struct {
	cfg  Config
	deps Deps
	app  *fiber.App
	auth *middleware.BearerAuth
}

// New creates the API server with all its routes
func New(cfg Config, deps Deps) *Server {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 240 * time.Second
	}
	if cfg.Domain == "" {
		cfg.Domain = "example.com"
	}

	app := fiber.New(fiber.Config{
		AppName:      "Ledger Gateway",
		ReadTimeout:  cfg.ResponseTimeout,
		WriteTimeout: cfg.ResponseTimeout,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	s := &Server{
		cfg:  cfg,
		deps: deps,
		app:  app,
		auth: middleware.NewBearerAuth(deps.Authority, deps.Metrics, "/users"),
	}

	s.setupRoutes()
	return s
}

// App exposes the fiber application, for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// setupRoutes sets up all the server routes
func (s *Server) setupRoutes() {
	// Every route but enrollment needs a bearer token
	s.app.Use(s.auth.AuthMiddleware())

	// Enrollment
	s.app.Post("/users", s.Enroll)

	// Channels
	s.app.Post("/channels", s.CreateChannel)
	s.app.Post("/channels/:channelName/peers", s.JoinChannel)
	s.app.Post("/channels/:channelName/anchorpeers", s.UpdateAnchorPeers)

	// Chaincode lifecycle
	s.app.Post("/chaincodes", s.InstallChaincode)
	s.app.Post("/channels/:channelName/chaincodes", s.InstantiateChaincode)
	s.app.Post("/channels/:channelName/chaincode/:chaincodeName/upgrade", s.UpgradeChaincode)

	// Chaincode invoke and query
	s.app.Post("/channels/:channelName/chaincodes/:chaincodeName", s.Invoke)
	s.app.Post("/channels/:channelName/chaincodes/:chaincodeName/privateData", s.InvokePrivateData)
	s.app.Get("/channels/:channelName/chaincodes/:chaincodeName", s.Query)

	// Ledger and resource queries
	s.app.Get("/channels/:channelName/blocks/:blockId", s.BlockByNumber)
	s.app.Get("/channels/:channelName/blocks", s.BlockByHash)
	s.app.Get("/channels/:channelName/transactions/:trxnId", s.Transaction)
	s.app.Get("/channels/:channelName/chaincodes", s.InstantiatedChaincodes)
	s.app.Get("/channels/:channelName", s.ChainInfo)
	s.app.Get("/channels", s.Channels)
	s.app.Get("/chaincodes", s.InstalledChaincodes)

	// Wallet identities
	s.app.Post("/channels/:channelName/wallet/:username", s.ProvisionWallet)
	s.app.Post("/channels/:channelName/wallet/:username/invoke", s.WalletInvoke)
}

// Start starts the server and stops it when ctx is done
func (s *Server) Start(ctx context.Context) error {

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	slog.Info("Starting ledger gateway", "addr", addr, "timeout", s.cfg.ResponseTimeout)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(addr); err != nil {
			errChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.app.Shutdown()
	}
}
